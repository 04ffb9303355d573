// Package memory holds in-process fallbacks for the repository ports,
// used in tests and in deployments without Redis.
package memory

import (
	"context"
	"sync"
	"time"
)

// Deduper is an in-memory message-id deduper with age-based eviction.
// Stale entries are pruned lazily on every insert, keeping the set
// bounded by the retention window.
type Deduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewDeduper creates an in-memory deduper
func NewDeduper(ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Deduper{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// MarkSeen records a message id and reports whether it was already
// present within the retention window
func (d *Deduper) MarkSeen(_ context.Context, messageID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	cutoff := now.Add(-d.ttl)
	for id, at := range d.seen {
		if at.Before(cutoff) {
			delete(d.seen, id)
		}
	}

	if at, ok := d.seen[messageID]; ok && !at.Before(cutoff) {
		return true, nil
	}

	d.seen[messageID] = now
	return false, nil
}
