package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"catchcert/pkg/platform/sentinel"
)

// Redis key prefix for draft cache entries.
const draftCacheKeyPrefix = "draft:"

// RedisClient is the Redis-backed cache client used in production. Entries
// have no TTL: they live until a mutation explicitly invalidates them, which
// is what keeps the cache coherent with the store.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient wraps an externally managed go-redis client.
func NewRedisClient(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

func (c *RedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := c.client.Get(ctx, draftCacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w: %w", key, sentinel.ErrUnavailable, err)
	}
	return raw, nil
}

func (c *RedisClient) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, draftCacheKeyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w: %w", key, sentinel.ErrUnavailable, err)
	}
	return nil
}

func (c *RedisClient) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, draftCacheKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w: %w", key, sentinel.ErrUnavailable, err)
	}
	return nil
}
