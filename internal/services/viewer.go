package services

import (
	"strings"

	"github.com/estatevest/platform/internal/models"
	apperrors "github.com/estatevest/platform/pkg/errors"
)

// Viewer identifies the user a feed or bulk read-state operation is evaluated for.
// Role is validated once when the viewer is built from request credentials.
type Viewer struct {
	UserID string
	Role   models.Role
}

// NewViewer validates the raw identity supplied by the transport layer.
func NewViewer(userID, role string) (Viewer, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Viewer{}, apperrors.ErrUnauthorized
	}
	parsed, err := models.ParseRole(role)
	if err != nil {
		return Viewer{}, apperrors.ErrForbidden.WithInternal(err)
	}
	return Viewer{UserID: userID, Role: parsed}, nil
}

func (v Viewer) valid() bool {
	return strings.TrimSpace(v.UserID) != "" && v.Role.Valid()
}
