package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type entry struct {
	data      []byte
	count     int
	isCount   bool
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryCache is an in-process Cache implementation for development and
// tests.
type MemoryCache struct {
	mu            sync.RWMutex
	entries       map[string]entry
	listTTL       time.Duration
	preferenceTTL time.Duration
}

// NewMemoryCache creates an in-memory recipient cache with default TTLs.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries:       make(map[string]entry),
		listTTL:       DefaultListTTL,
		preferenceTTL: DefaultPreferenceTTL,
	}
}

func (c *MemoryCache) GetUnreadCount(ctx context.Context, recipientID string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[unreadKey(recipientID)]
	if !ok || !e.isCount || e.expired(time.Now()) {
		return 0, ErrMiss
	}
	return e.count, nil
}

func (c *MemoryCache) SetUnreadCount(ctx context.Context, recipientID string, count int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[unreadKey(recipientID)] = entry{
		count:     count,
		isCount:   true,
		expiresAt: time.Now().Add(c.listTTL),
	}
	return nil
}

func (c *MemoryCache) IncrUnreadCount(ctx context.Context, recipientID string, delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := unreadKey(recipientID)
	e, ok := c.entries[key]
	if !ok || !e.isCount || e.expired(time.Now()) {
		return nil
	}
	e.count += delta
	if e.count < 0 {
		e.count = 0
	}
	c.entries[key] = e
	return nil
}

func (c *MemoryCache) GetPreferences(ctx context.Context, recipientID string) ([]byte, error) {
	return c.get(preferencesKey(recipientID))
}

func (c *MemoryCache) SetPreferences(ctx context.Context, recipientID string, data []byte) error {
	c.set(preferencesKey(recipientID), data, c.preferenceTTL)
	return nil
}

func (c *MemoryCache) GetList(ctx context.Context, recipientID, filterKey string) ([]byte, error) {
	return c.get(listKey(recipientID, filterKey))
}

func (c *MemoryCache) SetList(ctx context.Context, recipientID, filterKey string, data []byte) error {
	c.set(listKey(recipientID, filterKey), data, c.listTTL)
	return nil
}

func (c *MemoryCache) InvalidateRecipient(ctx context.Context, recipientID string) error {
	prefix := strings.TrimSuffix(recipientPattern(recipientID), "*")

	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *MemoryCache) get(key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || e.isCount || e.expired(time.Now()) {
		return nil, ErrMiss
	}
	return e.data, nil
}

func (c *MemoryCache) set(key string, data []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		data:      data,
		expiresAt: time.Now().Add(ttl),
	}
}
