package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/estatevest/platform/internal/database/testutil"
	"github.com/estatevest/platform/internal/models"
	apperrors "github.com/estatevest/platform/pkg/errors"
)

func TestGlobalNotificationViewAnalyticsByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	row := f.announce(t, CreateGlobalNotificationInput{TargetRoles: []models.Role{models.RoleInvestor, models.RoleBroker}})

	for i := 0; i < 3; i++ {
		user := f.user(t, fmt.Sprintf("investor-%d", i), models.RoleInvestor)
		f.clock.Advance(time.Minute)
		_, err := f.global.MarkAsViewed(ctx, row.ID, user.ID, i < 2)
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		user := f.user(t, fmt.Sprintf("broker-%d", i), models.RoleBroker)
		f.clock.Advance(time.Minute)
		_, err := f.global.MarkAsViewed(ctx, row.ID, user.ID, false)
		require.NoError(t, err)
	}

	analytics, err := f.global.ViewAnalytics(ctx, row.ID)
	require.NoError(t, err)
	require.Equal(t, row.ID, analytics.NotificationID)
	require.Equal(t, 5, analytics.TotalViews)
	require.Equal(t, 2, analytics.TotalDismissed)
	require.Equal(t, map[models.Role]RoleViewBreakdown{
		models.RoleInvestor: {Total: 3, Dismissed: 2},
		models.RoleBroker:   {Total: 2, Dismissed: 0},
	}, analytics.ViewsByRole)
	require.Equal(t, map[int]int{9: 5}, analytics.ViewsByHour)

	require.Len(t, analytics.RecentViews, 5)
	require.Equal(t, "broker-1", analytics.RecentViews[0].UserID, "most recent view first")
	require.NotNil(t, analytics.RecentViews[0].User)
	require.Equal(t, "broker-1@estatevest.test", analytics.RecentViews[0].User.Email)
	require.Equal(t, models.RoleBroker, analytics.RecentViews[0].User.Role)
	require.Equal(t, "investor-0", analytics.RecentViews[4].UserID)
}

func TestGlobalNotificationViewAnalyticsLimitsRecentViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	row := f.announce(t, CreateGlobalNotificationInput{})

	for i := 0; i < 12; i++ {
		user := f.user(t, fmt.Sprintf("tenant-%02d", i), models.RoleTenant)
		f.clock.Advance(30 * time.Minute)
		_, err := f.global.MarkAsViewed(ctx, row.ID, user.ID, false)
		require.NoError(t, err)
	}

	analytics, err := f.global.ViewAnalytics(ctx, row.ID)
	require.NoError(t, err)
	require.Equal(t, 12, analytics.TotalViews)
	require.Len(t, analytics.RecentViews, recentViewLimit)
	require.Equal(t, "tenant-11", analytics.RecentViews[0].UserID)
	require.Equal(t, "tenant-02", analytics.RecentViews[9].UserID)

	total := 0
	for hour, count := range analytics.ViewsByHour {
		require.GreaterOrEqual(t, hour, 0)
		require.LessOrEqual(t, hour, 23)
		total += count
	}
	require.Equal(t, 12, total)
	// 09:30 + 30m steps: 10:00 .. 15:30
	require.Equal(t, 2, analytics.ViewsByHour[10])
	require.Equal(t, 2, analytics.ViewsByHour[11])
	require.Equal(t, 2, analytics.ViewsByHour[15])
}

func TestGlobalNotificationViewAnalyticsUsesConfiguredLocation(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := newTestClock()
	directory, err := NewUserDirectory(db)
	require.NoError(t, err)

	location := time.FixedZone("UTC+3", 3*60*60)
	svc, err := NewGlobalNotificationService(db, directory, GlobalNotificationConfig{AnalyticsLocation: location}, WithClock(clock.Now))
	require.NoError(t, err)

	user := models.User{BaseModel: models.BaseModel{ID: "owner"}, Email: "owner@estatevest.test", Role: models.RoleOwner, IsEnabled: true}
	require.NoError(t, db.Create(&user).Error)

	row, err := svc.Create(context.Background(), CreateGlobalNotificationInput{Title: "t", Message: "m"})
	require.NoError(t, err)
	_, err = svc.MarkAsViewed(context.Background(), row.ID, user.ID, false)
	require.NoError(t, err)

	analytics, err := svc.ViewAnalytics(context.Background(), row.ID)
	require.NoError(t, err)
	require.Equal(t, map[int]int{12: 1}, analytics.ViewsByHour)
}

func TestGlobalNotificationViewAnalyticsNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.global.ViewAnalytics(context.Background(), "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSummariseViewsWithoutUsers(t *testing.T) {
	views := []models.GlobalNotificationView{
		{ID: "v1", UserID: "ghost", ViewedAt: time.Date(2026, 1, 1, 23, 59, 0, 0, time.UTC), Dismissed: true},
	}

	out := summariseViews("g1", views, time.UTC)
	require.Equal(t, map[models.Role]RoleViewBreakdown{unknownRole: {Total: 1, Dismissed: 1}}, out.ViewsByRole)
	require.Equal(t, map[int]int{23: 1}, out.ViewsByHour)
	require.Nil(t, out.RecentViews[0].User)

	empty := summariseViews("g1", nil, time.UTC)
	require.Zero(t, empty.TotalViews)
	require.Empty(t, empty.ViewsByRole)
	require.NotNil(t, empty.RecentViews)
}
