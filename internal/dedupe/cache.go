package dedupe

import (
	"sync"
	"time"
)

// DefaultTTL is how long a fingerprint blocks re-emission of the same
// signal.
const DefaultTTL = 15 * time.Minute

// Cache is an in-memory fingerprint register with TTL expiry.
//
// CheckAndRegister is a single critical section: the lookup and the
// registration happen under one lock, so two concurrent evaluations of the
// same signal can never both pass.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time // fingerprint -> expiry
}

// NewCache returns a cache with the given TTL; ttl <= 0 uses DefaultTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]time.Time),
	}
}

// CheckAndRegister reports whether the fingerprint was already registered
// and still live at now. A fresh or expired fingerprint is (re)registered
// and reported as not seen.
func (c *Cache) CheckAndRegister(fp string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if expiry, ok := c.entries[fp]; ok && now.Before(expiry) {
		return true
	}
	c.entries[fp] = now.Add(c.ttl)
	return false
}

// Sweep drops expired entries and returns how many were removed. Callers
// run it periodically; correctness never depends on it since expired
// entries are also overwritten on access.
func (c *Cache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for fp, expiry := range c.entries {
		if !now.Before(expiry) {
			delete(c.entries, fp)
			removed++
		}
	}
	return removed
}

// Len returns the number of registered fingerprints, live or expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
