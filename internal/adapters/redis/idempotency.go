package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Idempotency stores the first response produced for a keyed request so a
// retry with the same Idempotency-Key replays that outcome instead of booking
// twice.
type Idempotency struct {
	client *redis.Client
}

func NewIdempotency(client *redis.Client) *Idempotency {
	return &Idempotency{client: client}
}

// SavedResponse is the replayable slice of an HTTP response: status line and
// body. Headers beyond Content-Type are not preserved.
type SavedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// Get returns the saved response for the key, or nil when no attempt has
// completed under it yet.
func (i *Idempotency) Get(ctx context.Context, key string) (*SavedResponse, error) {
	val, err := i.client.Get(ctx, "idemp:"+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var resp SavedResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Set records the response unless one is already stored; with concurrent
// first attempts the earliest committed outcome is the one replayed.
func (i *Idempotency) Set(ctx context.Context, key string, resp SavedResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return i.client.SetNX(ctx, "idemp:"+key, data, ttl).Err()
}
