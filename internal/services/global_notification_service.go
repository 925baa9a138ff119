package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/estatevest/platform/internal/events"
	"github.com/estatevest/platform/internal/models"
	"github.com/estatevest/platform/internal/realtime"
	apperrors "github.com/estatevest/platform/pkg/errors"
	"github.com/estatevest/platform/pkg/metrics"
)

const (
	// DefaultFanoutLimit bounds concurrent view upserts in MarkAllAsViewed.
	DefaultFanoutLimit = 8

	defaultListLimit = 20
	maxListLimit     = 100
)

// GlobalNotificationConfig tunes the broadcaster.
type GlobalNotificationConfig struct {
	// FanoutLimit bounds concurrent upserts in MarkAllAsViewed. Zero selects DefaultFanoutLimit.
	FanoutLimit int
	// AnalyticsLocation is the zone used to bucket views by hour of day. Nil selects UTC.
	AnalyticsLocation *time.Location
}

// CreateGlobalNotificationInput describes a new broadcast. Zero values select
// the documented defaults: type system, every role, priority normal, starting
// now, active.
type CreateGlobalNotificationInput struct {
	Title       string
	Message     string
	Type        models.NotificationType
	TargetRoles []models.Role
	Link        string
	Priority    string
	Icon        string
	Payload     map[string]any
	StartsAt    *time.Time
	ExpiresAt   *time.Time
	IsActive    *bool
}

// UpdateGlobalNotificationInput is a partial update; nil fields are left untouched.
type UpdateGlobalNotificationInput struct {
	Title          *string
	Message        *string
	Type           *models.NotificationType
	TargetRoles    *[]models.Role
	Link           *string
	Priority       *string
	Icon           *string
	Payload        *map[string]any
	StartsAt       *time.Time
	ExpiresAt      *time.Time
	ClearExpiresAt bool
	IsActive       *bool
}

// ActiveGlobalNotification is a visible notification annotated with the viewer's state.
type ActiveGlobalNotification struct {
	models.GlobalNotification
	Viewed    bool       `json:"viewed"`
	Dismissed bool       `json:"dismissed"`
	ViewedAt  *time.Time `json:"viewed_at,omitempty"`
}

// GlobalNotificationStats summarises reach for a single notification.
type GlobalNotificationStats struct {
	NotificationID string `json:"notification_id"`
	TargetedUsers  int64  `json:"targeted_users"`
	// ViewedCount counts views that are not dismissed; dismissed views are
	// reported in DismissedCount only.
	ViewedCount    int64 `json:"viewed_count"`
	DismissedCount int64 `json:"dismissed_count"`
	ViewPercentage int   `json:"view_percentage"`
}

// ListGlobalNotificationsInput paginates the admin listing.
type ListGlobalNotificationsInput struct {
	Limit  int
	Offset int
}

// GlobalNotificationListItem is a notification annotated with its total view count.
type GlobalNotificationListItem struct {
	models.GlobalNotification
	ViewCount int64 `json:"view_count"`
}

// GlobalNotificationPage is one page of the admin listing.
type GlobalNotificationPage struct {
	Items  []GlobalNotificationListItem `json:"items"`
	Total  int64                        `json:"total"`
	Limit  int                          `json:"limit"`
	Offset int                          `json:"offset"`
}

// GlobalNotificationService manages role-targeted broadcasts and per-user view state.
type GlobalNotificationService struct {
	db          *gorm.DB
	directory   UserDirectory
	fanoutLimit int
	location    *time.Location
	sideEffects
}

// NewGlobalNotificationService constructs a GlobalNotificationService.
func NewGlobalNotificationService(db *gorm.DB, directory UserDirectory, cfg GlobalNotificationConfig, opts ...Option) (*GlobalNotificationService, error) {
	if db == nil {
		return nil, errors.New("global notification service: db is required")
	}
	if directory == nil {
		return nil, errors.New("global notification service: user directory is required")
	}

	limit := cfg.FanoutLimit
	if limit <= 0 {
		limit = DefaultFanoutLimit
	}
	location := cfg.AnalyticsLocation
	if location == nil {
		location = time.UTC
	}

	return &GlobalNotificationService{
		db:          db,
		directory:   directory,
		fanoutLimit: limit,
		location:    location,
		sideEffects: newSideEffects("global_notifications", opts),
	}, nil
}

// Create persists a new broadcast.
func (s *GlobalNotificationService) Create(ctx context.Context, input CreateGlobalNotificationInput) (*models.GlobalNotification, error) {
	ctx = ensureContext(ctx)

	if isBlank(input.Title) || isBlank(input.Message) {
		return nil, apperrors.NewBadRequest("title and message are required")
	}

	notificationType := input.Type
	if notificationType == "" {
		notificationType = models.NotificationTypeSystem
	}
	if !notificationType.Valid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown notification type %q", notificationType))
	}

	roles, err := checkRoles(input.TargetRoles)
	if err != nil {
		return nil, err
	}

	payload, err := encodeJSON(input.Payload)
	if err != nil {
		return nil, fmt.Errorf("global notification service: marshal payload: %w", err)
	}

	startsAt := s.now()
	if input.StartsAt != nil {
		startsAt = input.StartsAt.UTC()
	}

	row := models.GlobalNotification{
		Title:       input.Title,
		Message:     input.Message,
		Type:        notificationType,
		TargetRoles: datatypes.JSONSlice[models.Role](roles),
		Link:        input.Link,
		Priority:    defaultIfEmpty(strings.TrimSpace(input.Priority), models.PriorityNormal),
		Icon:        input.Icon,
		Payload:     payload,
		StartsAt:    startsAt,
		ExpiresAt:   utcPtr(input.ExpiresAt),
		IsActive:    input.IsActive == nil || *input.IsActive,
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("global notification service: create: %w", err)
	}

	metrics.GlobalNotificationOps.WithLabelValues("create").Inc()
	s.pushAnnouncement(realtime.EventGlobalNotificationCreated, row.ID)
	s.publish(ctx, events.NewEvent(events.GlobalNotificationCreated, row.ID, map[string]any{
		"id":           row.ID,
		"type":         row.Type,
		"priority":     row.Priority,
		"target_roles": roles,
	}))
	return &row, nil
}

// Get loads a broadcast by id.
func (s *GlobalNotificationService) Get(ctx context.Context, id string) (*models.GlobalNotification, error) {
	ctx = ensureContext(ctx)

	var row models.GlobalNotification
	if err := s.db.WithContext(ctx).First(&row, "id = ?", strings.TrimSpace(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("global notification service: get: %w", err)
	}
	return &row, nil
}

// Update applies a partial update and always refreshes updated_at.
func (s *GlobalNotificationService) Update(ctx context.Context, id string, input UpdateGlobalNotificationInput) (*models.GlobalNotification, error) {
	ctx = ensureContext(ctx)

	row, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"updated_at": s.now()}
	if input.Title != nil {
		if isBlank(*input.Title) {
			return nil, apperrors.NewBadRequest("title cannot be empty")
		}
		updates["title"] = *input.Title
	}
	if input.Message != nil {
		if isBlank(*input.Message) {
			return nil, apperrors.NewBadRequest("message cannot be empty")
		}
		updates["message"] = *input.Message
	}
	if input.Type != nil {
		if !input.Type.Valid() {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown notification type %q", *input.Type))
		}
		updates["type"] = *input.Type
	}
	if input.TargetRoles != nil {
		roles, err := checkRoles(*input.TargetRoles)
		if err != nil {
			return nil, err
		}
		updates["target_roles"] = datatypes.JSONSlice[models.Role](roles)
	}
	if input.Link != nil {
		updates["link"] = *input.Link
	}
	if input.Priority != nil {
		updates["priority"] = defaultIfEmpty(strings.TrimSpace(*input.Priority), models.PriorityNormal)
	}
	if input.Icon != nil {
		updates["icon"] = *input.Icon
	}
	if input.Payload != nil {
		payload, err := encodeJSON(*input.Payload)
		if err != nil {
			return nil, fmt.Errorf("global notification service: marshal payload: %w", err)
		}
		updates["payload"] = payload
	}
	if input.StartsAt != nil {
		updates["starts_at"] = input.StartsAt.UTC()
	}
	switch {
	case input.ClearExpiresAt:
		updates["expires_at"] = nil
	case input.ExpiresAt != nil:
		updates["expires_at"] = input.ExpiresAt.UTC()
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	if err := s.db.WithContext(ctx).Model(row).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("global notification service: update: %w", err)
	}

	updated, err := s.Get(ctx, row.ID)
	if err != nil {
		return nil, err
	}

	metrics.GlobalNotificationOps.WithLabelValues("update").Inc()
	s.pushAnnouncement(realtime.EventGlobalNotificationUpdated, updated.ID)
	return updated, nil
}

// ListActive returns the notifications visible to the viewer right now,
// newest first, annotated with the viewer's view state.
func (s *GlobalNotificationService) ListActive(ctx context.Context, viewer Viewer) ([]ActiveGlobalNotification, error) {
	ctx = ensureContext(ctx)

	rows, err := s.visibleTo(ctx, viewer)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []ActiveGlobalNotification{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var views []models.GlobalNotificationView
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND global_notification_id IN ?", viewer.UserID, ids).
		Find(&views).Error; err != nil {
		return nil, fmt.Errorf("global notification service: load views: %w", err)
	}

	byNotification := make(map[string]models.GlobalNotificationView, len(views))
	for _, view := range views {
		byNotification[view.GlobalNotificationID] = view
	}

	items := make([]ActiveGlobalNotification, 0, len(rows))
	for _, row := range rows {
		item := ActiveGlobalNotification{GlobalNotification: row}
		if view, ok := byNotification[row.ID]; ok {
			viewedAt := view.ViewedAt
			item.Viewed = true
			item.Dismissed = view.Dismissed
			item.ViewedAt = &viewedAt
		}
		items = append(items, item)
	}
	return items, nil
}

// MarkAsViewed records that userID saw the notification, creating the view on
// first sight and otherwise overwriting viewed_at and dismissed. A missing
// notification or user yields false without error.
func (s *GlobalNotificationService) MarkAsViewed(ctx context.Context, notificationID, userID string, dismissed bool) (bool, error) {
	action := "view"
	if dismissed {
		action = "dismiss"
	}
	return s.upsertView(ensureContext(ctx), notificationID, userID, dismissed, []string{"viewed_at", "dismissed"}, action)
}

// Dismiss is MarkAsViewed with dismissed set.
func (s *GlobalNotificationService) Dismiss(ctx context.Context, notificationID, userID string) (bool, error) {
	return s.MarkAsViewed(ctx, notificationID, userID, true)
}

// MarkAllAsViewed records a view for every notification currently visible to
// the viewer and returns how many were recorded. Upserts run concurrently over
// disjoint keys. Existing dismissals are preserved.
func (s *GlobalNotificationService) MarkAllAsViewed(ctx context.Context, viewer Viewer) (int, error) {
	ctx = ensureContext(ctx)

	rows, err := s.visibleTo(ctx, viewer)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	recorded := make([]bool, len(rows))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.fanoutLimit)
	for i, row := range rows {
		group.Go(func() error {
			ok, err := s.upsertView(groupCtx, row.ID, viewer.UserID, false, []string{"viewed_at"}, "bulk")
			recorded[i] = ok
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return 0, fmt.Errorf("global notification service: mark all viewed: %w", err)
	}

	count := 0
	for _, ok := range recorded {
		if ok {
			count++
		}
	}
	return count, nil
}

// Stats computes reach for a notification. ViewPercentage is zero when no
// enabled user is targeted.
func (s *GlobalNotificationService) Stats(ctx context.Context, id string) (*GlobalNotificationStats, error) {
	ctx = ensureContext(ctx)

	row, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	targeted, err := s.directory.CountUsers(ctx, UserFilter{EnabledOnly: true, Roles: row.TargetRoles})
	if err != nil {
		return nil, fmt.Errorf("global notification service: stats: %w", err)
	}

	viewed, err := s.countViews(ctx, row.ID, false)
	if err != nil {
		return nil, err
	}
	dismissed, err := s.countViews(ctx, row.ID, true)
	if err != nil {
		return nil, err
	}

	return &GlobalNotificationStats{
		NotificationID: row.ID,
		TargetedUsers:  targeted,
		ViewedCount:    viewed,
		DismissedCount: dismissed,
		ViewPercentage: viewPercentage(viewed, targeted),
	}, nil
}

// ListAll pages through every notification, newest first, with view counts.
func (s *GlobalNotificationService) ListAll(ctx context.Context, input ListGlobalNotificationsInput) (*GlobalNotificationPage, error) {
	ctx = ensureContext(ctx)

	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := max(0, input.Offset)

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.GlobalNotification{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("global notification service: count: %w", err)
	}

	var rows []models.GlobalNotification
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("global notification service: list: %w", err)
	}

	counts, err := s.viewCounts(ctx, rows)
	if err != nil {
		return nil, err
	}

	items := make([]GlobalNotificationListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, GlobalNotificationListItem{GlobalNotification: row, ViewCount: counts[row.ID]})
	}

	return &GlobalNotificationPage{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Delete removes a notification and its views in one transaction.
func (s *GlobalNotificationService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("global_notification_id = ?", id).Delete(&models.GlobalNotificationView{}).Error; err != nil {
			return fmt.Errorf("delete views: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&models.GlobalNotification{})
		if result.Error != nil {
			return fmt.Errorf("delete notification: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("global notification service: %w", err)
	}

	metrics.GlobalNotificationOps.WithLabelValues("delete").Inc()
	s.pushAnnouncement(realtime.EventGlobalNotificationDeleted, id)
	return nil
}

// DeactivateExpired clears is_active on notifications whose expiry is before now.
func (s *GlobalNotificationService) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.GlobalNotification{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at < ?", true, now.UTC()).
		Updates(map[string]any{"is_active": false, "updated_at": s.now()})
	if result.Error != nil {
		return 0, fmt.Errorf("global notification service: deactivate expired: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		metrics.GlobalNotificationOps.WithLabelValues("expire").Add(float64(result.RowsAffected))
		s.log.Info("deactivated expired global notifications", zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// PruneOrphanViews deletes view rows whose notification no longer exists.
func (s *GlobalNotificationService) PruneOrphanViews(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	existing := s.db.Model(&models.GlobalNotification{}).Select("id")
	result := s.db.WithContext(ctx).
		Where("global_notification_id NOT IN (?)", existing).
		Delete(&models.GlobalNotificationView{})
	if result.Error != nil {
		return 0, fmt.Errorf("global notification service: prune orphan views: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// visibleTo applies the time and activation filter in the database and the
// role filter in process.
func (s *GlobalNotificationService) visibleTo(ctx context.Context, viewer Viewer) ([]models.GlobalNotification, error) {
	if !viewer.valid() {
		return nil, apperrors.NewBadRequest("viewer requires a user id and a known role")
	}

	now := s.now()
	var rows []models.GlobalNotification
	if err := s.db.WithContext(ctx).
		Where("is_active = ? AND starts_at <= ? AND (expires_at IS NULL OR expires_at >= ?)", true, now, now).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("global notification service: list active: %w", err)
	}

	visible := rows[:0]
	for _, row := range rows {
		if row.Targets(viewer.Role) {
			visible = append(visible, row)
		}
	}
	return visible, nil
}

func (s *GlobalNotificationService) upsertView(ctx context.Context, notificationID, userID string, dismissed bool, overwrite []string, action string) (bool, error) {
	notificationID = strings.TrimSpace(notificationID)
	userID = strings.TrimSpace(userID)
	if notificationID == "" || userID == "" {
		return false, nil
	}

	view := models.GlobalNotificationView{
		UserID:               userID,
		GlobalNotificationID: notificationID,
		ViewedAt:             s.now(),
		Dismissed:            dismissed,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "global_notification_id"}},
		DoUpdates: clause.AssignmentColumns(overwrite),
	}).Create(&view).Error
	if err != nil {
		if isForeignKeyViolation(err) {
			metrics.GlobalNotificationViews.WithLabelValues(action, "rejected").Inc()
			return false, nil
		}
		metrics.GlobalNotificationViews.WithLabelValues(action, "error").Inc()
		return false, fmt.Errorf("global notification service: upsert view: %w", err)
	}

	metrics.GlobalNotificationViews.WithLabelValues(action, "recorded").Inc()
	return true, nil
}

func (s *GlobalNotificationService) countViews(ctx context.Context, notificationID string, dismissed bool) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).
		Model(&models.GlobalNotificationView{}).
		Where("global_notification_id = ? AND dismissed = ?", notificationID, dismissed).
		Count(&total).Error; err != nil {
		return 0, fmt.Errorf("global notification service: count views: %w", err)
	}
	return total, nil
}

func (s *GlobalNotificationService) viewCounts(ctx context.Context, rows []models.GlobalNotification) (map[string]int64, error) {
	counts := make(map[string]int64, len(rows))
	if len(rows) == 0 {
		return counts, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var grouped []struct {
		GlobalNotificationID string
		Total                int64
	}
	if err := s.db.WithContext(ctx).
		Model(&models.GlobalNotificationView{}).
		Select("global_notification_id, COUNT(*) AS total").
		Where("global_notification_id IN ?", ids).
		Group("global_notification_id").
		Scan(&grouped).Error; err != nil {
		return nil, fmt.Errorf("global notification service: count views: %w", err)
	}

	for _, entry := range grouped {
		counts[entry.GlobalNotificationID] = entry.Total
	}
	return counts, nil
}

func checkRoles(roles []models.Role) ([]models.Role, error) {
	out := make([]models.Role, 0, len(roles))
	seen := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		if !role.Valid() {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown role %q", role))
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out, nil
}

func viewPercentage(viewed, targeted int64) int {
	if targeted <= 0 {
		return 0
	}
	return int(math.Round(float64(viewed) / float64(targeted) * 100))
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}
