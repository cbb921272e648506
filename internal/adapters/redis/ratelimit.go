package redis

import (
	"context"
	"time"
)

// Allow counts a hit against the caller's fixed window and reports whether
// it stays under limit. The counter key gets its TTL on first increment.
func (c *Cache) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	n, err := c.client.Incr(ctx, "rl:"+key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := c.client.Expire(ctx, "rl:"+key, window).Err(); err != nil {
			return false, err
		}
	}
	return n <= limit, nil
}
