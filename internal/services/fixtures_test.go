package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/estatevest/platform/internal/database/testutil"
	"github.com/estatevest/platform/internal/events"
	"github.com/estatevest/platform/internal/models"
	"github.com/estatevest/platform/internal/realtime"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type broadcastRecord struct {
	stream  string
	userID  string
	message realtime.Message
}

type recordingBroadcaster struct {
	mu      sync.Mutex
	records []broadcastRecord
}

func (r *recordingBroadcaster) BroadcastToUser(stream, userID string, message realtime.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, broadcastRecord{stream: stream, userID: userID, message: message})
}

func (r *recordingBroadcaster) BroadcastStream(stream string, message realtime.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, broadcastRecord{stream: stream, message: message})
}

func (r *recordingBroadcaster) events(name string) []broadcastRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []broadcastRecord
	for _, record := range r.records {
		if record.message.Event == name {
			out = append(out, record)
		}
	}
	return out
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []events.Event
	calls     int
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, batch ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, batch...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	db       *gorm.DB
	clock    *testClock
	realtime *recordingBroadcaster
	events   *recordingPublisher
	global   *GlobalNotificationService
	personal *NotificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	f := &fixture{
		db:       db,
		clock:    newTestClock(),
		realtime: &recordingBroadcaster{},
		events:   &recordingPublisher{},
	}

	directory, err := NewUserDirectory(db)
	require.NoError(t, err)

	opts := []Option{WithClock(f.clock.Now), WithRealtime(f.realtime), WithEvents(f.events)}
	f.global, err = NewGlobalNotificationService(db, directory, GlobalNotificationConfig{}, opts...)
	require.NoError(t, err)
	f.personal, err = NewNotificationService(db, f.global, opts...)
	require.NoError(t, err)

	return f
}

func (f *fixture) user(t *testing.T, id string, role models.Role) *models.User {
	t.Helper()
	return f.userWithState(t, id, role, true)
}

func (f *fixture) userWithState(t *testing.T, id string, role models.Role, enabled bool) *models.User {
	t.Helper()

	user := models.User{
		BaseModel: models.BaseModel{ID: id},
		Email:     id + "@estatevest.test",
		FirstName: id,
		LastName:  "Tester",
		Role:      role,
		IsEnabled: enabled,
	}
	require.NoError(t, f.db.Create(&user).Error)
	return &user
}

func (f *fixture) viewer(user *models.User) Viewer {
	return Viewer{UserID: user.ID, Role: user.Role}
}

func (f *fixture) announce(t *testing.T, input CreateGlobalNotificationInput) *models.GlobalNotification {
	t.Helper()

	if input.Title == "" {
		input.Title = "Platform announcement"
	}
	if input.Message == "" {
		input.Message = "Quarterly distributions are scheduled."
	}
	row, err := f.global.Create(context.Background(), input)
	require.NoError(t, err)
	return row
}

func (f *fixture) viewCount(t *testing.T, notificationID string) int64 {
	t.Helper()

	var total int64
	require.NoError(t, f.db.Model(&models.GlobalNotificationView{}).
		Where("global_notification_id = ?", notificationID).
		Count(&total).Error)
	return total
}

func timePtr(value time.Time) *time.Time {
	return &value
}

func boolPtr(value bool) *bool {
	return &value
}

func stringPtr(value string) *string {
	return &value
}
