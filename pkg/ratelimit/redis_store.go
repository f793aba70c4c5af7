package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis so that multiple workers share the
// same fixed windows. INCR and the initial EXPIRE run in one atomic script.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// incrScript bumps the counter and sets the window expiry only on the
// first hit, returning the count and remaining TTL in milliseconds.
var incrScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

// NewRedisStore creates a Redis-backed fixed-window store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, keyPrefix: "ratelimit:"}
}

func (rs *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	res, err := incrScript.Run(ctx, rs.client, []string{rs.keyPrefix + key}, window.Milliseconds()).Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("ratelimit increment: %w", err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("ratelimit increment: unexpected script reply of length %d", len(res))
	}

	count, ok := res[0].(int64)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("ratelimit increment: unexpected count type %T", res[0])
	}
	ttlMs, ok := res[1].(int64)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("ratelimit increment: unexpected ttl type %T", res[1])
	}

	resetAt := time.Now().Add(time.Duration(ttlMs) * time.Millisecond)
	return int(count), resetAt, nil
}

func (rs *RedisStore) Reset(ctx context.Context, key string) error {
	return rs.client.Del(ctx, rs.keyPrefix+key).Err()
}
