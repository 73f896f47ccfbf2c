// Package cache provides a time-bounded memoizer for expensive provider
// calls. Only successful results are stored, so a failed fetch is retried
// on the next identical request.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value V
	at    time.Time
}

// Cache memoizes values for a fixed duration since insertion.
//
// It provides no in-flight deduplication: two concurrent misses on the
// same key may both invoke compute. The duplicate work is tolerated, the
// later write wins.
type Cache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry[V]

	now func() time.Time // test hook
}

// New creates a cache that keeps entries for ttl since insertion.
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		ttl:     ttl,
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// GetOrCompute returns the cached value for key if it is still within its
// TTL, otherwise invokes compute. A successful result is stored with the
// current timestamp and returned; an error is returned as is and nothing
// is stored.
func (c *Cache[V]) GetOrCompute(key string, compute func() (V, error)) (V, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if c.now().Sub(e.at) < c.ttl {
			c.mu.Unlock()
			return e.value, nil
		}
		delete(c.entries, key)
	}
	c.mu.Unlock()

	// Deliberately computed outside the lock: a slow provider call must
	// not serialize unrelated keys.
	value, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, at: c.now()}
	c.mu.Unlock()

	return value, nil
}

// Evict drops all expired entries and reports how many were removed.
// Expiry at read time already keeps results correct; Evict only bounds
// memory between reads.
func (c *Cache[V]) Evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if c.now().Sub(e.at) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}

	return removed
}

// Len returns the number of entries currently held, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
