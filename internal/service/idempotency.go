package service

import (
	"sync"
	"time"
)

// idempotencyCache remembers recently processed adapter event ids so a
// vendor-side retry returns the original decision instead of producing a
// second audit entry. The database's unique index on event_id is the
// durable backstop; this cache keeps the hot path off the database.
type idempotencyCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]idemEntry
}

type idemEntry struct {
	decision Decision
	storedAt time.Time
}

func newIdempotencyCache(ttl time.Duration) *idempotencyCache {
	return &idempotencyCache{
		ttl:     ttl,
		entries: make(map[string]idemEntry),
	}
}

func (c *idempotencyCache) get(eventID string) (Decision, bool) {
	if eventID == "" {
		return Decision{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[eventID]
	if !ok {
		return Decision{}, false
	}
	if time.Since(e.storedAt) > c.ttl {
		delete(c.entries, eventID)
		return Decision{}, false
	}
	return e.decision, true
}

func (c *idempotencyCache) put(eventID string, d Decision) {
	if eventID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// Opportunistic expiry sweep to bound memory
	now := time.Now()
	for id, e := range c.entries {
		if now.Sub(e.storedAt) > c.ttl {
			delete(c.entries, id)
		}
	}

	c.entries[eventID] = idemEntry{decision: d, storedAt: now}
}
