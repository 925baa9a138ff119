package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/estatevest/platform/internal/models"
	"github.com/estatevest/platform/internal/services"
	"github.com/estatevest/platform/pkg/errors"
	"github.com/estatevest/platform/pkg/response"
)

// GlobalNotificationHandler exposes the broadcast feed and its admin management endpoints.
type GlobalNotificationHandler struct {
	service *services.GlobalNotificationService
}

// NewGlobalNotificationHandler constructs a global notification handler.
func NewGlobalNotificationHandler(service *services.GlobalNotificationService) *GlobalNotificationHandler {
	return &GlobalNotificationHandler{service: service}
}

// Active returns the broadcasts currently visible to the caller with their view state.
func (h *GlobalNotificationHandler) Active(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}

	items, err := h.service.ListActive(requestContext(c), viewer)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}

// View records that the caller has seen a broadcast.
func (h *GlobalNotificationHandler) View(c *gin.Context) {
	h.recordView(c, false)
}

// Dismiss records that the caller has seen and dismissed a broadcast.
func (h *GlobalNotificationHandler) Dismiss(c *gin.Context) {
	h.recordView(c, true)
}

func (h *GlobalNotificationHandler) recordView(c *gin.Context, dismissed bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	var (
		recorded bool
		err      error
	)
	if dismissed {
		recorded, err = h.service.Dismiss(requestContext(c), id, userID)
	} else {
		recorded, err = h.service.MarkAsViewed(requestContext(c), id, userID, false)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	if !recorded {
		response.Error(c, errors.NewNotFound("global notification not found"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"viewed": true, "dismissed": dismissed})
}

// ViewAll marks every broadcast visible to the caller as viewed.
func (h *GlobalNotificationHandler) ViewAll(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}

	count, err := h.service.MarkAllAsViewed(requestContext(c), viewer)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"viewed": count})
}

// List returns a page of every broadcast with view counts.
func (h *GlobalNotificationHandler) List(c *gin.Context) {
	page, err := h.service.ListAll(requestContext(c), services.ListGlobalNotificationsInput{
		Limit:  parseIntQuery(c, "limit", 0),
		Offset: parseIntQuery(c, "offset", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	pageNumber := 1
	if page.Limit > 0 {
		pageNumber = page.Offset/page.Limit + 1
	}
	response.Paginated(c, page.Items, pageNumber, page.Limit, page.Total)
}

type createGlobalNotificationRequest struct {
	Title       string         `json:"title" validate:"required,max=255"`
	Message     string         `json:"message" validate:"required"`
	Type        string         `json:"type" validate:"omitempty,notification_type"`
	TargetRoles []string       `json:"target_roles" validate:"omitempty,dive,role"`
	Link        string         `json:"link" validate:"omitempty,max=2048"`
	Priority    string         `json:"priority" validate:"omitempty,max=16"`
	Icon        string         `json:"icon" validate:"omitempty,max=64"`
	Payload     map[string]any `json:"payload"`
	StartsAt    *time.Time     `json:"starts_at"`
	ExpiresAt   *time.Time     `json:"expires_at"`
	IsActive    *bool          `json:"is_active"`
}

// Create publishes a new broadcast.
func (h *GlobalNotificationHandler) Create(c *gin.Context) {
	var payload createGlobalNotificationRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	roles, err := parseRoles(payload.TargetRoles)
	if err != nil {
		response.Error(c, err)
		return
	}

	row, err := h.service.Create(requestContext(c), services.CreateGlobalNotificationInput{
		Title:       payload.Title,
		Message:     payload.Message,
		Type:        models.NotificationType(payload.Type),
		TargetRoles: roles,
		Link:        payload.Link,
		Priority:    payload.Priority,
		Icon:        payload.Icon,
		Payload:     payload.Payload,
		StartsAt:    payload.StartsAt,
		ExpiresAt:   payload.ExpiresAt,
		IsActive:    payload.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, row)
}

// Get returns a single broadcast.
func (h *GlobalNotificationHandler) Get(c *gin.Context) {
	row, err := h.service.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, row)
}

type updateGlobalNotificationRequest struct {
	Title          *string         `json:"title" validate:"omitempty,min=1,max=255"`
	Message        *string         `json:"message" validate:"omitempty,min=1"`
	Type           *string         `json:"type" validate:"omitempty,notification_type"`
	TargetRoles    *[]string       `json:"target_roles" validate:"omitempty,dive,role"`
	Link           *string         `json:"link" validate:"omitempty,max=2048"`
	Priority       *string         `json:"priority" validate:"omitempty,max=16"`
	Icon           *string         `json:"icon" validate:"omitempty,max=64"`
	Payload        *map[string]any `json:"payload"`
	StartsAt       *time.Time      `json:"starts_at"`
	ExpiresAt      *time.Time      `json:"expires_at"`
	ClearExpiresAt bool            `json:"clear_expires_at"`
	IsActive       *bool           `json:"is_active"`
}

// Update applies a partial update to a broadcast.
func (h *GlobalNotificationHandler) Update(c *gin.Context) {
	var payload updateGlobalNotificationRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	input := services.UpdateGlobalNotificationInput{
		Title:          payload.Title,
		Message:        payload.Message,
		Link:           payload.Link,
		Priority:       payload.Priority,
		Icon:           payload.Icon,
		Payload:        payload.Payload,
		StartsAt:       payload.StartsAt,
		ExpiresAt:      payload.ExpiresAt,
		ClearExpiresAt: payload.ClearExpiresAt,
		IsActive:       payload.IsActive,
	}
	if payload.Type != nil {
		notificationType := models.NotificationType(*payload.Type)
		input.Type = &notificationType
	}
	if payload.TargetRoles != nil {
		roles, err := parseRoles(*payload.TargetRoles)
		if err != nil {
			response.Error(c, err)
			return
		}
		input.TargetRoles = &roles
	}

	row, err := h.service.Update(requestContext(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, row)
}

// Delete removes a broadcast together with its view records.
func (h *GlobalNotificationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Stats returns reach figures for a broadcast.
func (h *GlobalNotificationHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// Analytics returns the engagement breakdown for a broadcast.
func (h *GlobalNotificationHandler) Analytics(c *gin.Context) {
	analytics, err := h.service.ViewAnalytics(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, analytics)
}
