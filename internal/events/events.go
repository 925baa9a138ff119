// Package events hands domain events to an out-of-process broker so delivery
// workers (email, push) can react to notifications without touching the
// request path.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event names emitted by the notification services.
const (
	NotificationCreated       = "notification.created"
	GlobalNotificationCreated = "global_notification.created"
)

// Event is the broker-neutral envelope of a domain event.
type Event struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Key        string    `json:"key,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

// NewEvent builds an event stamped with a fresh id and the current UTC time.
// Key selects the partition/routing key, typically the recipient user id.
func NewEvent(name, key string, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Name:       name,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher delivers events to a broker. A call with several events hands
// them to the broker as one batch.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// Config selects and configures the publisher driver.
type Config struct {
	Driver   string
	Kafka    KafkaConfig
	RabbitMQ RabbitMQConfig
}

// New constructs the publisher named by cfg.Driver. An empty driver or "none"
// yields a no-op publisher.
func New(cfg Config) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return NopPublisher{}, nil
	case "kafka":
		return NewKafkaPublisher(cfg.Kafka)
	case "rabbitmq", "amqp":
		return NewRabbitMQPublisher(cfg.RabbitMQ)
	default:
		return nil, fmt.Errorf("events: unsupported driver %q", cfg.Driver)
	}
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, ...Event) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }

func encode(event Event) ([]byte, error) {
	if strings.TrimSpace(event.Name) == "" {
		return nil, fmt.Errorf("events: event name is required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("events: encode %s: %w", event.Name, err)
	}
	return data, nil
}
