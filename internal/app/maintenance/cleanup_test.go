package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/estatevest/platform/internal/cache"
	testutil "github.com/estatevest/platform/internal/database/testutil"
	"github.com/estatevest/platform/internal/models"
	"github.com/estatevest/platform/internal/services"
)

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := fixedClock{current: time.Now().UTC()}

	global := newGlobalService(t, db, clock.Now)

	expired := seedAnnouncement(t, db, "expired", ptr(clock.Now().Add(-time.Hour)))
	current := seedAnnouncement(t, db, "current", ptr(clock.Now().Add(time.Hour)))
	open := seedAnnouncement(t, db, "open", nil)

	require.NoError(t, db.Create(&models.CacheEntry{
		Key:       "stale",
		Value:     []byte("1"),
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}).Error)
	require.NoError(t, db.Create(&models.CacheEntry{
		Key:       "fresh",
		Value:     []byte("1"),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}).Error)

	c := NewCleaner(global,
		WithNow(clock.Now),
		WithCacheStore(cache.NewDatabaseStore(db)),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)

	require.NoError(t, c.RunOnce(context.Background()))
	at, err := c.LastRun()
	require.NoError(t, err)
	require.True(t, at.Equal(clock.Now()))

	requireActive(t, db, expired.ID, false)
	requireActive(t, db, current.ID, true)
	requireActive(t, db, open.ID, true)

	var keys []string
	require.NoError(t, db.Model(&models.CacheEntry{}).Pluck("key", &keys).Error)
	require.Equal(t, []string{"fresh"}, keys)
}

func TestCleanerPrunesOrphanViews(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := fixedClock{current: time.Now().UTC()}
	global := newGlobalService(t, db, clock.Now)

	user := models.User{Email: "investor@example.com", Role: models.RoleInvestor, IsEnabled: true}
	require.NoError(t, db.Create(&user).Error)

	require.NoError(t, db.Exec("PRAGMA foreign_keys = OFF").Error)
	require.NoError(t, db.Create(&models.GlobalNotificationView{
		UserID:               user.ID,
		GlobalNotificationID: "deleted",
		ViewedAt:             clock.Now(),
	}).Error)
	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)

	require.NoError(t, NewCleaner(global).RunOnce(context.Background()))

	var count int64
	require.NoError(t, db.Model(&models.GlobalNotificationView{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCleanerStartRequiresSchedule(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	global := newGlobalService(t, db, time.Now)

	idle := NewCleaner(global)
	require.False(t, idle.Enabled())
	require.NoError(t, idle.Start())
	<-idle.Stop().Done()

	require.False(t, NewCleaner(nil, WithSchedule("@hourly")).Enabled())

	invalid := NewCleaner(global, WithSchedule("not a schedule"))
	require.True(t, invalid.Enabled())
	require.Error(t, invalid.Start())

	scheduled := NewCleaner(global, WithSchedule("@every 1h"))
	require.NoError(t, scheduled.Start())
	<-scheduled.Stop().Done()
}

func newGlobalService(t *testing.T, db *gorm.DB, now func() time.Time) *services.GlobalNotificationService {
	t.Helper()

	directory, err := services.NewUserDirectory(db)
	require.NoError(t, err)
	svc, err := services.NewGlobalNotificationService(db, directory, services.GlobalNotificationConfig{}, services.WithClock(now))
	require.NoError(t, err)
	return svc
}

func seedAnnouncement(t *testing.T, db *gorm.DB, title string, expiresAt *time.Time) models.GlobalNotification {
	t.Helper()

	row := models.GlobalNotification{
		Title:     title,
		Message:   title,
		Type:      models.NotificationTypeSystem,
		Priority:  models.PriorityNormal,
		StartsAt:  time.Now().UTC().Add(-2 * time.Hour),
		ExpiresAt: expiresAt,
		IsActive:  true,
	}
	require.NoError(t, db.Create(&row).Error)
	return row
}

func requireActive(t *testing.T, db *gorm.DB, id string, expected bool) {
	t.Helper()

	var row models.GlobalNotification
	require.NoError(t, db.First(&row, "id = ?", id).Error)
	require.Equal(t, expected, row.IsActive)
}

func ptr[T any](v T) *T {
	return &v
}

type fixedClock struct {
	current time.Time
}

func (c fixedClock) Now() time.Time {
	return c.current
}
