package eta

import (
	"sync"
	"time"
)

// cacheEntry pairs a cached estimate with its expiry instant
type cacheEntry struct {
	value     Estimate
	expiresAt time.Time
}

// Cache is a time-boxed estimate cache. Eviction is TTL-only: expired
// entries count as misses and are replaced on the next write; there is no
// LRU pressure at the query rates this serves. Clear drops everything in
// bulk on demand or on route deactivation.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration

	hits   uint64
	misses uint64
}

// NewCache creates a cache with the given TTL (DefaultCacheTTL if zero)
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Get returns the cached estimate for the key if present and fresh
func (c *Cache) Get(key string, now time.Time) (Estimate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || now.After(entry.expiresAt) {
		c.misses++
		return Estimate{}, false
	}
	c.hits++
	return entry.value, true
}

// Put stores an estimate under the key with a fresh TTL
func (c *Cache) Put(key string, value Estimate, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: now.Add(c.ttl)}
}

// Clear drops all entries. Hit/miss counters are preserved.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Stats returns the hit and miss counters and the current entry count,
// for the metrics exposition layer
func (c *Cache) Stats() (hits, misses uint64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.entries)
}
