package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/estatevest/platform/internal/middleware"
	"github.com/estatevest/platform/internal/services"
	"github.com/estatevest/platform/pkg/errors"
	"github.com/estatevest/platform/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentUserID writes a 401 and returns false when no authenticated user is present.
func currentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}

// currentViewer builds the viewer from the identity stored by the auth middleware.
func currentViewer(c *gin.Context) (services.Viewer, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return services.Viewer{}, false
	}
	role, ok := middleware.RoleFromContext(c)
	if !ok {
		response.Error(c, errors.ErrForbidden)
		return services.Viewer{}, false
	}
	viewer, err := services.NewViewer(userID, role.String())
	if err != nil {
		response.Error(c, err)
		return services.Viewer{}, false
	}
	return viewer, true
}
