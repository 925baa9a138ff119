package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/estatevest/platform/internal/events"
	"github.com/estatevest/platform/internal/services"
)

// GlobalNotificationConfig converts the notifications section into the broadcaster settings.
func (c NotificationsConfig) GlobalNotificationConfig() (services.GlobalNotificationConfig, error) {
	location := time.UTC
	if tz := strings.TrimSpace(c.AnalyticsTimezone); tz != "" {
		loaded, err := time.LoadLocation(tz)
		if err != nil {
			return services.GlobalNotificationConfig{}, fmt.Errorf("config: notifications.analytics_timezone: %w", err)
		}
		location = loaded
	}

	return services.GlobalNotificationConfig{
		FanoutLimit:       c.FanoutLimit,
		AnalyticsLocation: location,
	}, nil
}

// PublisherConfig converts the events section into the events package representation.
func (c EventsConfig) PublisherConfig() events.Config {
	brokers := make([]string, 0, len(c.Kafka.Brokers))
	for _, broker := range c.Kafka.Brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}

	return events.Config{
		Driver: strings.ToLower(strings.TrimSpace(c.Driver)),
		Kafka: events.KafkaConfig{
			Brokers:      brokers,
			Topic:        strings.TrimSpace(c.Kafka.Topic),
			BatchTimeout: c.Kafka.BatchTimeout,
		},
		RabbitMQ: events.RabbitMQConfig{
			URL:      strings.TrimSpace(c.RabbitMQ.URL),
			Exchange: strings.TrimSpace(c.RabbitMQ.Exchange),
		},
	}
}
