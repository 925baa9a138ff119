package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const memoryCleanupInterval = time.Minute

// MemoryStore implements Store in process memory. It backs single-replica
// deployments and tests; counters are not shared across instances.
type MemoryStore struct {
	mu    sync.Mutex
	items *gocache.Cache
}

// NewMemoryStore constructs an in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: gocache.New(gocache.NoExpiration, memoryCleanupInterval)}
}

// IncrementWithTTL increments the counter for key. The window starts with the first increment.
func (s *MemoryStore) IncrementWithTTL(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if s == nil {
		return 0, 0, ErrNotInitialised
	}
	window = normaliseWindow(window)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	value, expiry, found := s.items.GetWithExpiration(key)
	if current, ok := value.(int64); found && ok && expiry.After(now) {
		current++
		s.items.Set(key, current, expiry.Sub(now))
		return current, expiry.Sub(now), nil
	}

	s.items.Set(key, int64(1), window)
	return 1, window, nil
}

// Set stores a copy of value. A non-positive ttl stores the value without expiry.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil {
		return ErrNotInitialised
	}
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	stored := append([]byte(nil), value...)
	s.items.Set(key, stored, ttl)
	return nil
}

// Get returns a copy of the stored value.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, ErrNotInitialised
	}
	value, found := s.items.Get(key)
	if !found {
		return nil, false, nil
	}
	switch typed := value.(type) {
	case []byte:
		return append([]byte(nil), typed...), true, nil
	case int64:
		return []byte(strconv.FormatInt(typed, 10)), true, nil
	default:
		return nil, false, nil
	}
}

// Delete removes keys from memory.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	if s == nil {
		return ErrNotInitialised
	}
	for _, key := range keys {
		s.items.Delete(key)
	}
	return nil
}
