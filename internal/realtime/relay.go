package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/estatevest/platform/pkg/logger"
)

// DefaultRelayChannel is the Redis pub/sub channel used when none is configured.
const DefaultRelayChannel = "estatevest:realtime"

const relayPublishTimeout = 2 * time.Second

// relayEnvelope is the wire format exchanged between instances.
// An empty UserID addresses every subscriber of the stream.
type relayEnvelope struct {
	Stream  string  `json:"stream"`
	UserID  string  `json:"user_id,omitempty"`
	Message Message `json:"message"`
}

// RedisRelay publishes realtime messages on a Redis channel and replays every
// message received on that channel into a local Broadcaster, so sockets held
// by any instance receive events produced by any other.
type RedisRelay struct {
	client  redis.UniversalClient
	channel string
	local   Broadcaster
	log     *zap.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRedisRelay constructs a relay delivering into local.
func NewRedisRelay(client redis.UniversalClient, channel string, local Broadcaster) (*RedisRelay, error) {
	if client == nil {
		return nil, errors.New("realtime relay: redis client is required")
	}
	if local == nil {
		return nil, errors.New("realtime relay: local broadcaster is required")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{
		client:  client,
		channel: channel,
		local:   local,
		log:     logger.WithModule("realtime.relay"),
	}, nil
}

// Start subscribes to the relay channel and begins delivering messages. The
// subscription is confirmed before Start returns.
func (r *RedisRelay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pubsub != nil {
		return errors.New("realtime relay: already started")
	}

	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("realtime relay: subscribe %s: %w", r.channel, err)
	}

	r.pubsub = pubsub
	r.done = make(chan struct{})
	go r.consume(pubsub.Channel(), r.done)

	r.log.Info("relay subscribed", zap.String("channel", r.channel))
	return nil
}

// Stop closes the subscription and waits for the delivery loop to exit.
func (r *RedisRelay) Stop() error {
	r.mu.Lock()
	pubsub, done := r.pubsub, r.done
	r.pubsub, r.done = nil, nil
	r.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}

// BroadcastToUser publishes a user-scoped message to every instance.
func (r *RedisRelay) BroadcastToUser(stream, userID string, message Message) {
	if strings.TrimSpace(userID) == "" {
		return
	}
	r.publish(relayEnvelope{Stream: stream, UserID: userID, Message: message})
}

// BroadcastStream publishes a stream-wide message to every instance.
func (r *RedisRelay) BroadcastStream(stream string, message Message) {
	r.publish(relayEnvelope{Stream: stream, Message: message})
}

func (r *RedisRelay) publish(envelope relayEnvelope) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		r.log.Warn("encode relay message", zap.String("event", envelope.Message.Event), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), relayPublishTimeout)
	defer cancel()

	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		// Local sockets still get the event when Redis is unreachable.
		r.log.Warn("publish relay message", zap.String("event", envelope.Message.Event), zap.Error(err))
		r.deliver(envelope)
	}
}

func (r *RedisRelay) consume(messages <-chan *redis.Message, done chan struct{}) {
	defer close(done)

	for msg := range messages {
		var envelope relayEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
			r.log.Warn("decode relay message", zap.Error(err))
			continue
		}
		r.deliver(envelope)
	}
}

func (r *RedisRelay) deliver(envelope relayEnvelope) {
	if envelope.UserID != "" {
		r.local.BroadcastToUser(envelope.Stream, envelope.UserID, envelope.Message)
		return
	}
	r.local.BroadcastStream(envelope.Stream, envelope.Message)
}
