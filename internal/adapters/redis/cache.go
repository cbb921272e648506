// Package redis provides the shared-state helpers the core needs across
// instances: callback dedupe, idempotent POST responses and rate-limit
// counters.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Ping reports whether redis is reachable; the readiness probe uses it.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// MarkCallbackSeen records a gateway transaction id and reports whether this
// was the first sighting. At-least-once webhook delivery makes the second
// sighting routine, not an error.
func (c *Cache) MarkCallbackSeen(ctx context.Context, transactionID string, ttl time.Duration) (bool, error) {
	res := c.client.SetNX(ctx, "cb:"+transactionID, time.Now().UTC().Format(time.RFC3339), ttl)
	return res.Val(), res.Err()
}
