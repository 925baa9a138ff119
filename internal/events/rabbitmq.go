package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"

	"github.com/estatevest/platform/pkg/metrics"
)

// DefaultRabbitMQExchange is used when no exchange is configured.
const DefaultRabbitMQExchange = "estatevest.events"

// RabbitMQConfig configures the AMQP publisher.
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher publishes events to a durable topic exchange using the
// event name as routing key, so consumers bind queues per event family.
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
}

// NewRabbitMQPublisher dials the broker and declares the exchange.
func NewRabbitMQPublisher(cfg RabbitMQConfig) (*RabbitMQPublisher, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("events: rabbitmq url is required")
	}
	exchange := strings.TrimSpace(cfg.Exchange)
	if exchange == "" {
		exchange = DefaultRabbitMQExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: connect rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events: open rabbitmq channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("events: declare exchange %s: %w", exchange, err)
	}

	publisher := newRabbitMQPublisher(channel, exchange)
	publisher.conn = conn
	return publisher, nil
}

func newRabbitMQPublisher(channel amqpChannel, exchange string) *RabbitMQPublisher {
	return &RabbitMQPublisher{channel: channel, exchange: exchange}
}

// Publish implements Publisher. Events are published in order on the shared
// channel and the first failure stops the batch.
func (p *RabbitMQPublisher) Publish(ctx context.Context, events ...Event) error {
	for _, event := range events {
		if err := p.publishOne(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (p *RabbitMQPublisher) publishOne(ctx context.Context, event Event) error {
	body, err := encode(event)
	if err != nil {
		return err
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		event.Name,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Timestamp:    event.OccurredAt,
			Type:         event.Name,
			Headers:      amqp.Table{"key": event.Key},
			Body:         body,
		},
	)
	if err != nil {
		metrics.EventsPublished.WithLabelValues("rabbitmq", "failure").Inc()
		return fmt.Errorf("events: rabbitmq publish %s: %w", event.Name, err)
	}
	metrics.EventsPublished.WithLabelValues("rabbitmq", "success").Inc()
	return nil
}

// Close releases the channel and the connection.
func (p *RabbitMQPublisher) Close() error {
	var err error
	if p.channel != nil {
		err = multierr.Append(err, p.channel.Close())
	}
	if p.conn != nil {
		err = multierr.Append(err, p.conn.Close())
	}
	return err
}
