package application

import (
	"sync"
	"time"

	"github.com/example/interpreter-brokerage/internal/booking"
)

// committedCache stores recently loaded committed-session snapshots so
// read-only conflict previews avoid a repository round trip per probe. Any
// transition that can change an interpreter's calendar must invalidate the
// interpreter's entry.
type committedCache struct {
	mu      sync.RWMutex
	now     func() time.Time
	ttl     time.Duration
	entries map[string]committedCacheEntry
}

type committedCacheEntry struct {
	committed []booking.Committed
	expiresAt time.Time
}

func newCommittedCache(ttl time.Duration, now func() time.Time) *committedCache {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &committedCache{
		now:     now,
		ttl:     ttl,
		entries: make(map[string]committedCacheEntry),
	}
}

func (c *committedCache) Get(interpreterID string) ([]booking.Committed, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[interpreterID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, interpreterID)
		c.mu.Unlock()
		return nil, false
	}
	return cloneCommitted(entry.committed), true
}

func (c *committedCache) Store(interpreterID string, committed []booking.Committed) {
	if c == nil {
		return
	}
	cloned := cloneCommitted(committed)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	c.entries[interpreterID] = committedCacheEntry{committed: cloned, expiresAt: expiry}
}

// Invalidate drops the interpreter's snapshot.
func (c *committedCache) Invalidate(interpreterID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, interpreterID)
	c.mu.Unlock()
}

func (c *committedCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func cloneCommitted(committed []booking.Committed) []booking.Committed {
	if len(committed) == 0 {
		return nil
	}
	out := make([]booking.Committed, len(committed))
	copy(out, committed)
	return out
}
