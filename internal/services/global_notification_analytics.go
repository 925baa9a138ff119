package services

import (
	"context"
	"fmt"
	"time"

	"github.com/estatevest/platform/internal/models"
)

const recentViewLimit = 10

// unknownRole buckets views whose user row could not be loaded.
const unknownRole models.Role = "unknown"

// RoleViewBreakdown counts views and dismissals for one role.
type RoleViewBreakdown struct {
	Total     int `json:"total"`
	Dismissed int `json:"dismissed"`
}

// ViewerSummary is the user detail attached to recent views.
type ViewerSummary struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Role      models.Role `json:"role"`
}

// RecentView is one of the latest views of a notification.
type RecentView struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	ViewedAt  time.Time      `json:"viewed_at"`
	Dismissed bool           `json:"dismissed"`
	User      *ViewerSummary `json:"user,omitempty"`
}

// GlobalNotificationAnalytics breaks down engagement with a notification.
// ViewsByHour is keyed by hour of day (0-23) and holds only hours with views.
type GlobalNotificationAnalytics struct {
	NotificationID string                            `json:"notification_id"`
	TotalViews     int                               `json:"total_views"`
	TotalDismissed int                               `json:"total_dismissed"`
	ViewsByRole    map[models.Role]RoleViewBreakdown `json:"views_by_role"`
	ViewsByHour    map[int]int                       `json:"views_by_hour"`
	RecentViews    []RecentView                      `json:"recent_views"`
}

// ViewAnalytics aggregates every view of a notification by the viewer's role
// and by hour of day in the configured analytics location.
func (s *GlobalNotificationService) ViewAnalytics(ctx context.Context, id string) (*GlobalNotificationAnalytics, error) {
	ctx = ensureContext(ctx)

	row, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var views []models.GlobalNotificationView
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("global_notification_id = ?", row.ID).
		Order("viewed_at DESC").
		Find(&views).Error; err != nil {
		return nil, fmt.Errorf("global notification service: load analytics views: %w", err)
	}

	return summariseViews(row.ID, views, s.location), nil
}

// summariseViews expects views ordered newest first.
func summariseViews(notificationID string, views []models.GlobalNotificationView, location *time.Location) *GlobalNotificationAnalytics {
	out := &GlobalNotificationAnalytics{
		NotificationID: notificationID,
		ViewsByRole:    make(map[models.Role]RoleViewBreakdown),
		ViewsByHour:    make(map[int]int),
		RecentViews:    make([]RecentView, 0, min(len(views), recentViewLimit)),
	}

	for i, view := range views {
		out.TotalViews++
		if view.Dismissed {
			out.TotalDismissed++
		}

		role := unknownRole
		if view.User != nil {
			role = view.User.Role
		}
		breakdown := out.ViewsByRole[role]
		breakdown.Total++
		if view.Dismissed {
			breakdown.Dismissed++
		}
		out.ViewsByRole[role] = breakdown

		out.ViewsByHour[view.ViewedAt.In(location).Hour()]++

		if i < recentViewLimit {
			out.RecentViews = append(out.RecentViews, recentView(view))
		}
	}

	return out
}

func recentView(view models.GlobalNotificationView) RecentView {
	item := RecentView{
		ID:        view.ID,
		UserID:    view.UserID,
		ViewedAt:  view.ViewedAt,
		Dismissed: view.Dismissed,
	}
	if view.User != nil {
		item.User = &ViewerSummary{
			ID:        view.User.ID,
			Email:     view.User.Email,
			FirstName: view.User.FirstName,
			LastName:  view.User.LastName,
			Role:      view.User.Role,
		}
	}
	return item
}
