package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotInitialised is returned when a store method is invoked on a nil receiver.
var ErrNotInitialised = errors.New("cache: store not initialised")

// Store represents a shared cache interface used across the application.
// Rate limiting uses IncrementWithTTL; the remaining methods back small
// key/value lookups such as memoised counters.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}

const defaultWindow = time.Minute

func normaliseWindow(window time.Duration) time.Duration {
	if window <= 0 {
		return defaultWindow
	}
	return window
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
