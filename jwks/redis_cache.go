package jwks

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a Cache backed by Redis, letting several service instances
// share one copy of the identity provider's documents.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCache returns a RedisCache storing every key under prefix.
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	provider, err := jwks.NewCachingProvider(
//	    jwks.WithDiscoveryURL(policy.DefaultDiscoveryURL),
//	    jwks.WithCache(jwks.NewRedisCache(rdb, "amtoken:")),
//	)
func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}
