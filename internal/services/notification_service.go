package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/estatevest/platform/internal/events"
	"github.com/estatevest/platform/internal/models"
	"github.com/estatevest/platform/internal/realtime"
	apperrors "github.com/estatevest/platform/pkg/errors"
	"github.com/estatevest/platform/pkg/metrics"
)

const bulkInsertBatchSize = 500

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID        string                    `json:"id"`
	UserID    string                    `json:"user_id"`
	Type      models.NotificationType   `json:"type"`
	Title     string                    `json:"title"`
	Message   string                    `json:"message"`
	Link      string                    `json:"link,omitempty"`
	Payload   map[string]any            `json:"payload,omitempty"`
	Status    models.NotificationStatus `json:"status"`
	IsRead    bool                      `json:"is_read"`
	ReadAt    *time.Time                `json:"read_at,omitempty"`
	CreatedAt time.Time                 `json:"created_at"`
}

// NotificationBody is the content shared by notify-style entry points.
type NotificationBody struct {
	Title   string         `json:"title" validate:"required,max=255"`
	Message string         `json:"message" validate:"required"`
	Link    string         `json:"link,omitempty" validate:"omitempty,max=2048"`
	Payload map[string]any `json:"payload,omitempty"`
}

// NotificationEntry addresses a body to a single recipient in NotifyBulkCustom.
type NotificationEntry struct {
	UserID string `json:"user_id" validate:"required"`
	NotificationBody
}

// CreateNotificationInput defines attributes required to persist a notification.
type CreateNotificationInput struct {
	UserID  string
	Type    models.NotificationType
	Title   string
	Message string
	Link    string
	Payload map[string]any
}

// NotificationCreatedEvent is the realtime and broker payload for a new notification.
type NotificationCreatedEvent struct {
	NotificationID string                  `json:"notification_id"`
	UserID         string                  `json:"user_id"`
	Type           models.NotificationType `json:"type"`
	Title          string                  `json:"title"`
}

// GlobalViewMarker marks every visible global notification as viewed for a user.
type GlobalViewMarker interface {
	MarkAllAsViewed(ctx context.Context, viewer Viewer) (int, error)
}

// NotificationService manages per-user notifications and their read state.
type NotificationService struct {
	db          *gorm.DB
	globalViews GlobalViewMarker
	sideEffects
}

// NewNotificationService constructs a NotificationService. globalViews may be
// nil, in which case MarkAllAsRead only touches per-user rows.
func NewNotificationService(db *gorm.DB, globalViews GlobalViewMarker, opts ...Option) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{
		db:          db,
		globalViews: globalViews,
		sideEffects: newSideEffects("notifications", opts),
	}, nil
}

// Create persists a single notification for its owner.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	row, err := s.buildRow(input.UserID, input.Type, NotificationBody{
		Title:   input.Title,
		Message: input.Message,
		Link:    input.Link,
		Payload: input.Payload,
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}

	s.afterCreate(ctx, []models.Notification{row})
	dto := mapNotification(row)
	return &dto, nil
}

// Notify is Create expressed with a structured body.
func (s *NotificationService) Notify(ctx context.Context, userID string, notificationType models.NotificationType, body NotificationBody) (*NotificationDTO, error) {
	return s.Create(ctx, CreateNotificationInput{
		UserID:  userID,
		Type:    notificationType,
		Title:   body.Title,
		Message: body.Message,
		Link:    body.Link,
		Payload: body.Payload,
	})
}

// NotifyBulk stores one notification with identical content per recipient.
// Blank and duplicate ids are dropped. Rows are inserted atomically.
func (s *NotificationService) NotifyBulk(ctx context.Context, userIDs []string, notificationType models.NotificationType, body NotificationBody) (int, error) {
	recipients := normaliseIDs(userIDs)
	entries := make([]NotificationEntry, 0, len(recipients))
	for _, userID := range recipients {
		entries = append(entries, NotificationEntry{UserID: userID, NotificationBody: body})
	}
	return s.NotifyBulkCustom(ctx, entries, notificationType)
}

// NotifyBulkCustom stores one notification per entry, each with its own content.
// Rows are inserted atomically.
func (s *NotificationService) NotifyBulkCustom(ctx context.Context, entries []NotificationEntry, notificationType models.NotificationType) (int, error) {
	ctx = ensureContext(ctx)
	if len(entries) == 0 {
		return 0, nil
	}

	rows := make([]models.Notification, 0, len(entries))
	for _, entry := range entries {
		row, err := s.buildRow(entry.UserID, notificationType, entry.NotificationBody)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&rows, bulkInsertBatchSize).Error
	}); err != nil {
		return 0, fmt.Errorf("notification service: bulk create notifications: %w", err)
	}

	s.afterCreate(ctx, rows)
	return len(rows), nil
}

// ListRelated returns the user's own notifications, newest first. Legacy
// broadcast rows are excluded.
func (s *NotificationService) ListRelated(ctx context.Context, userID string) ([]NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}

	var rows []models.Notification
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_global = ?", userID, false).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	return mapNotificationRows(rows), nil
}

// UnreadCount returns the number of unread notifications owned by userID.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)

	var total int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_global = ? AND status = ?", strings.TrimSpace(userID), false, models.NotificationStatusUnread).
		Count(&total).Error; err != nil {
		return 0, fmt.Errorf("notification service: count unread: %w", err)
	}
	return total, nil
}

// MarkAsRead marks a notification read when it is owned by userID. It reports
// whether exactly one row matched; unknown or foreign ids yield false.
func (s *NotificationService) MarkAsRead(ctx context.Context, notificationID, userID string) (bool, error) {
	ctx = ensureContext(ctx)
	notificationID = strings.TrimSpace(notificationID)
	userID = strings.TrimSpace(userID)
	if notificationID == "" || userID == "" {
		return false, nil
	}

	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]any{
			"status":  models.NotificationStatusRead,
			"read_at": s.now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("notification service: mark read: %w", result.Error)
	}

	if result.RowsAffected == 1 {
		metrics.NotificationsRead.WithLabelValues("single").Inc()
		return true, nil
	}
	return false, nil
}

// MarkAllAsRead marks every notification owned by the viewer as read, then
// marks every global notification visible to them as viewed. The two steps
// are not atomic; both are idempotent so callers may simply retry.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, viewer Viewer) error {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(viewer.UserID) == "" {
		return apperrors.NewBadRequest("user id is required")
	}

	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND status = ?", viewer.UserID, models.NotificationStatusUnread).
		Updates(map[string]any{
			"status":  models.NotificationStatusRead,
			"read_at": s.now(),
		})
	if result.Error != nil {
		return fmt.Errorf("notification service: mark all read: %w", result.Error)
	}
	metrics.NotificationsRead.WithLabelValues("all").Add(float64(result.RowsAffected))

	if s.globalViews != nil {
		if _, err := s.globalViews.MarkAllAsViewed(ctx, viewer); err != nil {
			return fmt.Errorf("notification service: mark global notifications viewed: %w", err)
		}
	}

	s.pushToUser(viewer.UserID, realtime.EventNotificationsRead, nil)
	return nil
}

func (s *NotificationService) buildRow(userID string, notificationType models.NotificationType, body NotificationBody) (models.Notification, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.Notification{}, apperrors.NewBadRequest("notification recipient is required")
	}
	if !notificationType.Valid() {
		return models.Notification{}, apperrors.NewBadRequest(fmt.Sprintf("unknown notification type %q", notificationType))
	}

	payload, err := encodeJSON(body.Payload)
	if err != nil {
		return models.Notification{}, fmt.Errorf("notification service: marshal payload: %w", err)
	}

	return models.Notification{
		UserID:   &userID,
		Type:     notificationType,
		Title:    body.Title,
		Message:  body.Message,
		Link:     body.Link,
		IsGlobal: false,
		Payload:  payload,
		Status:   models.NotificationStatusUnread,
	}, nil
}

func (s *NotificationService) afterCreate(ctx context.Context, rows []models.Notification) {
	batch := make([]events.Event, 0, len(rows))
	for _, row := range rows {
		metrics.NotificationsCreated.WithLabelValues(string(row.Type)).Inc()

		userID := derefString(row.UserID)
		event := NotificationCreatedEvent{
			NotificationID: row.ID,
			UserID:         userID,
			Type:           row.Type,
			Title:          row.Title,
		}
		s.pushToUser(userID, realtime.EventNotificationCreated, event)
		batch = append(batch, events.NewEvent(events.NotificationCreated, userID, event))
	}
	s.publish(ctx, batch...)
	if len(rows) > 1 {
		s.log.Debug("bulk notifications stored", zap.Int("count", len(rows)))
	}
}

func mapNotificationRows(rows []models.Notification) []NotificationDTO {
	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items
}

func mapNotification(row models.Notification) NotificationDTO {
	status := models.NotificationStatus(defaultIfEmpty(string(row.Status), string(models.NotificationStatusUnread)))
	return NotificationDTO{
		ID:        row.ID,
		UserID:    derefString(row.UserID),
		Type:      row.Type,
		Title:     row.Title,
		Message:   row.Message,
		Link:      row.Link,
		Payload:   decodeJSON(row.Payload),
		Status:    status,
		IsRead:    status == models.NotificationStatusRead,
		ReadAt:    row.ReadAt,
		CreatedAt: row.CreatedAt,
	}
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
