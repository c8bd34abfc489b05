package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers provider message ids so webhook retries are processed once.
type Deduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDeduper(client *redis.Client, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Deduper{client: client, ttl: ttl}
}

// FirstSeen marks id as seen and reports whether this call was the first.
func (d *Deduper) FirstSeen(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return true, nil
	}
	ok, err := d.client.SetNX(ctx, "inbound:sid:"+id, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark inbound sid: %w", err)
	}
	return ok, nil
}
