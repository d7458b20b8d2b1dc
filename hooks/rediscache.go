package hooks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueryCache is a shared, multi-process variant of QueryCache
// backed by Redis: a TTL=0 entry is refused rather than written, since
// Redis has no notion of "stored but unreadable."
type RedisQueryCache struct {
	client *redis.Client
	prefix string
}

// NewRedisQueryCache wraps an existing redis client. prefix namespaces
// keys so multiple condition classes can share one Redis instance
// without collision.
func NewRedisQueryCache(client *redis.Client, prefix string) *RedisQueryCache {
	return &RedisQueryCache{client: client, prefix: prefix}
}

func (c *RedisQueryCache) key(k string) string {
	return c.prefix + ":" + k
}

// Get returns the cached value for key iff present and unexpired.
func (c *RedisQueryCache) Get(ctx context.Context, key string) (any, bool) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false
	}
	return value, true
}

// Set stores value under key with ttl. A ttl <= 0 is a no-op, matching
// QueryCache's bypass semantics for TTL==0.
func (c *RedisQueryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), raw, ttl).Err()
}
