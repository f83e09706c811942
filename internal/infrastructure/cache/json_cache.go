package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/perfume-storefront/pkg/helpers"
)

// JSONCache stores JSON values under a shared key prefix so they can be
// invalidated together.
type JSONCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewJSONCache(client redis.Cmdable, prefix string, ttl time.Duration) *JSONCache {
	return &JSONCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *JSONCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	return helpers.RedisGetJSON(ctx, c.client, c.prefix+key, dest)
}

func (c *JSONCache) Set(ctx context.Context, key string, v any) error {
	return helpers.RedisSetJSON(ctx, c.client, c.prefix+key, v, c.ttl)
}

// Invalidate drops every key under the prefix.
func (c *JSONCache) Invalidate(ctx context.Context) error {
	_, err := helpers.RedisDelPrefix(ctx, c.client, c.prefix)
	return err
}
