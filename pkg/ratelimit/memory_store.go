package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore implements Store using in-memory fixed windows. Suitable for
// single-process deployments and tests.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often expired windows are purged. Zero
// disables the background sweep.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.cleanupInterval = interval
	}
}

// NewMemoryStore creates an in-memory fixed-window store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		windows:         make(map[string]*window),
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ms)
	}

	if ms.cleanupInterval > 0 {
		go ms.cleanup()
	}
	return ms
}

func (ms *MemoryStore) Increment(ctx context.Context, key string, winDur time.Duration) (int, time.Time, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	w, ok := ms.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(winDur)}
		ms.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt, nil
}

func (ms *MemoryStore) Reset(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.windows, key)
	return nil
}

func (ms *MemoryStore) cleanup() {
	ticker := time.NewTicker(ms.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ms.removeExpired()
		case <-ms.stopCleanup:
			return
		}
	}
}

func (ms *MemoryStore) removeExpired() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	for key, w := range ms.windows {
		if !now.Before(w.resetAt) {
			delete(ms.windows, key)
		}
	}
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (ms *MemoryStore) Close() {
	select {
	case <-ms.stopCleanup:
	default:
		close(ms.stopCleanup)
	}
}
