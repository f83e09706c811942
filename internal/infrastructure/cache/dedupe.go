package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers ids for a while and reports whether one was seen before.
type Deduper struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewDeduper(client redis.Cmdable, prefix string, ttl time.Duration) *Deduper {
	return &Deduper{client: client, prefix: prefix, ttl: ttl}
}

// FirstSeen claims id and returns true only for the first caller.
func (d *Deduper) FirstSeen(ctx context.Context, id string) (bool, error) {
	return d.client.SetNX(ctx, d.prefix+id, 1, d.ttl).Result()
}

// Forget releases id so a failed delivery can be processed again.
func (d *Deduper) Forget(ctx context.Context, id string) error {
	return d.client.Del(ctx, d.prefix+id).Err()
}
