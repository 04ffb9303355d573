package redis

import (
	"context"
	"fmt"
	"time"
)

const (
	dedupPrefix     = "dedup:msg:"
	defaultDedupTTL = 10 * time.Minute
)

// Deduper remembers recently processed message ids in Redis. Entries
// are evicted by age via key TTLs, so the set stays bounded no matter
// how long the service runs.
type Deduper struct {
	client *Client
	ttl    time.Duration
}

// NewDeduper creates a message-id deduper
func NewDeduper(client *Client, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	return &Deduper{client: client, ttl: ttl}
}

// MarkSeen atomically records a message id and reports whether it had
// already been processed within the retention window
func (d *Deduper) MarkSeen(ctx context.Context, messageID string) (bool, error) {
	key := fmt.Sprintf("%s%s", dedupPrefix, messageID)

	created, err := d.client.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record message id: %w", err)
	}

	return !created, nil
}
