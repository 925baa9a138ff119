package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/estatevest/platform/pkg/metrics"
)

// DefaultKafkaTopic is used when no topic is configured.
const DefaultKafkaTopic = "estatevest.notifications"

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by Event.Key, so events
// for one recipient stay ordered within a partition.
type KafkaPublisher struct {
	writer kafkaWriter
}

// NewKafkaPublisher constructs a publisher backed by a kafka.Writer. The
// writer connects lazily on the first publish.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, broker := range cfg.Brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("events: kafka brokers are required")
	}

	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		topic = DefaultKafkaTopic
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}

	return newKafkaPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}), nil
}

func newKafkaPublisher(writer kafkaWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// Publish implements Publisher. All events go out in a single WriteMessages
// call so a bulk send waits for one batch, not one per recipient.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		body, err := encode(event)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(event.Key),
			Value: body,
			Time:  event.OccurredAt,
			Headers: []kafka.Header{
				{Key: "event", Value: []byte(event.Name)},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		metrics.EventsPublished.WithLabelValues("kafka", "failure").Add(float64(len(msgs)))
		return fmt.Errorf("events: kafka publish %s: %w", events[0].Name, err)
	}
	metrics.EventsPublished.WithLabelValues("kafka", "success").Add(float64(len(msgs)))
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
