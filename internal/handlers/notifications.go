package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/estatevest/platform/internal/models"
	"github.com/estatevest/platform/internal/services"
	"github.com/estatevest/platform/pkg/errors"
	"github.com/estatevest/platform/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for per-user notifications.
type NotificationHandler struct {
	service   *services.NotificationService
	directory services.UserDirectory
}

// NewNotificationHandler constructs a notification handler. The directory resolves
// role audiences for the admin send endpoint.
func NewNotificationHandler(service *services.NotificationService, directory services.UserDirectory) *NotificationHandler {
	return &NotificationHandler{service: service, directory: directory}
}

// List returns the caller's notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	items, err := h.service.ListRelated(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}

// UnreadCount returns the number of unread notifications for the caller.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	count, err := h.service.UnreadCount(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"unread": count})
}

// MarkRead marks one of the caller's notifications as read. Unknown and
// foreign ids answer 404.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	updated, err := h.service.MarkAsRead(requestContext(c), strings.TrimSpace(c.Param("id")), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !updated {
		response.Error(c, errors.NewNotFound("notification not found"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": true})
}

// MarkAllRead marks every notification and visible broadcast as read for the caller.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}

	if err := h.service.MarkAllAsRead(requestContext(c), viewer); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": true})
}

type sendNotificationRequest struct {
	Type    string                       `json:"type" validate:"required,notification_type"`
	UserIDs []string                     `json:"user_ids" validate:"omitempty,dive,required"`
	Roles   []string                     `json:"roles" validate:"omitempty,dive,role"`
	Title   string                       `json:"title" validate:"required_without=Entries,max=255"`
	Message string                       `json:"message" validate:"required_without=Entries"`
	Link    string                       `json:"link" validate:"omitempty,max=2048"`
	Payload map[string]any               `json:"payload"`
	Entries []services.NotificationEntry `json:"entries" validate:"omitempty,dive"`
}

// Send lets administrators deliver notifications. Entries carry per-recipient
// content; otherwise one body is sent to user_ids plus every enabled user holding one of roles.
func (h *NotificationHandler) Send(c *gin.Context) {
	var payload sendNotificationRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	notificationType := models.NotificationType(payload.Type)
	ctx := requestContext(c)

	if len(payload.Entries) > 0 {
		created, err := h.service.NotifyBulkCustom(ctx, payload.Entries, notificationType)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusCreated, gin.H{"created": created})
		return
	}

	body := services.NotificationBody{
		Title:   payload.Title,
		Message: payload.Message,
		Link:    payload.Link,
		Payload: payload.Payload,
	}

	recipients := append([]string(nil), payload.UserIDs...)
	if len(payload.Roles) > 0 {
		roles, err := parseRoles(payload.Roles)
		if err != nil {
			response.Error(c, err)
			return
		}
		if h.directory == nil {
			response.Error(c, errors.NewBadRequest("role audiences are not available"))
			return
		}
		ids, err := h.directory.ListUserIDs(ctx, services.UserFilter{EnabledOnly: true, Roles: roles})
		if err != nil {
			response.Error(c, err)
			return
		}
		recipients = append(recipients, ids...)
	}

	if len(recipients) == 0 {
		response.Error(c, errors.NewBadRequest("at least one recipient is required"))
		return
	}

	if len(recipients) == 1 && len(payload.Roles) == 0 {
		dto, err := h.service.Notify(ctx, recipients[0], notificationType, body)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusCreated, dto)
		return
	}

	created, err := h.service.NotifyBulk(ctx, recipients, notificationType, body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"created": created})
}
