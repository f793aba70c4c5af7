package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache on a shared Redis instance so the cached view
// is consistent across application replicas.
type RedisCache struct {
	client        *redis.Client
	listTTL       time.Duration
	preferenceTTL time.Duration
}

// RedisCacheOption configures a RedisCache.
type RedisCacheOption func(*RedisCache)

// WithTTLs overrides the default TTLs.
func WithTTLs(listTTL, preferenceTTL time.Duration) RedisCacheOption {
	return func(c *RedisCache) {
		if listTTL > 0 {
			c.listTTL = listTTL
		}
		if preferenceTTL > 0 {
			c.preferenceTTL = preferenceTTL
		}
	}
}

// NewRedisCache creates a Redis-backed recipient cache.
func NewRedisCache(client *redis.Client, opts ...RedisCacheOption) *RedisCache {
	c := &RedisCache{
		client:        client,
		listTTL:       DefaultListTTL,
		preferenceTTL: DefaultPreferenceTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) GetUnreadCount(ctx context.Context, recipientID string) (int, error) {
	val, err := c.client.Get(ctx, unreadKey(recipientID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrMiss
		}
		return 0, err
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		// A corrupt entry behaves like a miss so the next read heals it.
		_ = c.client.Del(ctx, unreadKey(recipientID)).Err()
		return 0, ErrMiss
	}
	return count, nil
}

func (c *RedisCache) SetUnreadCount(ctx context.Context, recipientID string, count int) error {
	return c.client.Set(ctx, unreadKey(recipientID), count, c.listTTL).Err()
}

func (c *RedisCache) IncrUnreadCount(ctx context.Context, recipientID string, delta int) error {
	key := unreadKey(recipientID)

	// Only bump an existing entry. Creating one from zero would fabricate
	// a count that disagrees with the store.
	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil || exists == 0 {
		return err
	}
	return c.client.IncrBy(ctx, key, int64(delta)).Err()
}

func (c *RedisCache) GetPreferences(ctx context.Context, recipientID string) ([]byte, error) {
	data, err := c.client.Get(ctx, preferencesKey(recipientID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, err
	}
	return data, nil
}

func (c *RedisCache) SetPreferences(ctx context.Context, recipientID string, data []byte) error {
	return c.client.Set(ctx, preferencesKey(recipientID), data, c.preferenceTTL).Err()
}

func (c *RedisCache) GetList(ctx context.Context, recipientID, filterKey string) ([]byte, error) {
	data, err := c.client.Get(ctx, listKey(recipientID, filterKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, err
	}
	return data, nil
}

func (c *RedisCache) SetList(ctx context.Context, recipientID, filterKey string, data []byte) error {
	return c.client.Set(ctx, listKey(recipientID, filterKey), data, c.listTTL).Err()
}

func (c *RedisCache) InvalidateRecipient(ctx context.Context, recipientID string) error {
	iter := c.client.Scan(ctx, 0, recipientPattern(recipientID), 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
