package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/estatevest/platform/internal/events"
	"github.com/estatevest/platform/internal/realtime"
	"github.com/estatevest/platform/pkg/logger"
)

// Option configures the side-effect collaborators shared by the notification services.
type Option func(*sideEffects)

// WithRealtime pushes realtime events after successful writes.
func WithRealtime(broadcaster realtime.Broadcaster) Option {
	return func(s *sideEffects) {
		s.realtime = broadcaster
	}
}

// WithEvents hands domain events to an out-of-process broker after successful writes.
func WithEvents(publisher events.Publisher) Option {
	return func(s *sideEffects) {
		s.events = publisher
	}
}

// WithClock overrides the time source used for read, view and visibility timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *sideEffects) {
		if now != nil {
			s.clock = now
		}
	}
}

// sideEffects holds best-effort collaborators. Failures are logged and never
// change the result of the persisted operation.
type sideEffects struct {
	realtime realtime.Broadcaster
	events   events.Publisher
	clock    func() time.Time
	log      *zap.Logger
}

func newSideEffects(module string, opts []Option) sideEffects {
	s := sideEffects{
		clock: time.Now,
		log:   logger.WithModule(module),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

func (s sideEffects) now() time.Time {
	return s.clock().UTC()
}

func (s sideEffects) pushToUser(userID, event string, data any) {
	if s.realtime == nil {
		return
	}
	s.realtime.BroadcastToUser(realtime.StreamNotifications, userID, realtime.Message{Event: event, Data: data})
}

func (s sideEffects) pushAnnouncement(event, notificationID string) {
	if s.realtime == nil {
		return
	}
	s.realtime.BroadcastStream(realtime.StreamAnnouncements, realtime.Message{
		Event: event,
		Data:  map[string]string{"id": notificationID},
	})
}

func (s sideEffects) publish(ctx context.Context, batch ...events.Event) {
	if s.events == nil || len(batch) == 0 {
		return
	}
	if err := s.events.Publish(ctx, batch...); err != nil {
		s.log.Warn("publish events failed",
			zap.String("event", batch[0].Name),
			zap.Int("count", len(batch)),
			zap.Error(err),
		)
	}
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func normaliseIDs(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func encodeJSON(value map[string]any) (datatypes.JSON, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func decodeJSON(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func isBlank(value string) bool {
	return strings.TrimSpace(value) == ""
}
