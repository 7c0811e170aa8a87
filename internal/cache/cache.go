// Package cache implements the two bounded caches described by the
// configuration surface's embedding_cache_* and search_cache_* options:
// LRU eviction ordered by last access, a per-entry TTL, and an approximate
// byte budget enforced on top of the LRU's own item accounting.
package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// SizeFunc estimates the in-memory size of a cached value, in bytes, so the
// cache can enforce a byte budget rather than just an item count.
type SizeFunc[V any] func(V) int

// Cache is a generic byte-budgeted, TTL-bounded LRU cache. It wraps
// expirable.LRU (unbounded by item count) and evicts the least-recently-used
// entry whenever the tracked byte total exceeds maxBytes.
type Cache[V any] struct {
	mu       sync.Mutex
	lru      *expirable.LRU[string, V]
	sizeFunc SizeFunc[V]
	maxBytes int64
	curBytes int64

	hits   int64
	misses int64
}

// New creates a cache bounded to maxMB megabytes with the given per-entry
// TTL. A zero or negative maxMB disables the byte budget (unbounded); a zero
// or negative ttl disables expiry.
func New[V any](maxMB int, ttl time.Duration, sizeFunc SizeFunc[V]) *Cache[V] {
	c := &Cache[V]{
		sizeFunc: sizeFunc,
		maxBytes: int64(maxMB) * 1024 * 1024,
	}
	c.lru = expirable.NewLRU[string, V](0, c.onEvict, ttl)
	return c
}

// onEvict is invoked by the underlying LRU whenever an entry is removed,
// whether by TTL expiry, explicit Remove, or RemoveOldest. It runs while the
// caller already holds c.mu, since every public entry point does.
func (c *Cache[V]) onEvict(_ string, v V) {
	c.curBytes -= int64(c.sizeFunc(v))
}

// Get returns the cached value for key, or (zero, false) on a miss or
// expired entry.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(key)
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Set stores value under key, evicting least-recently-used entries until the
// cache is back within its byte budget.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.lru.Peek(key); ok {
		c.curBytes -= int64(c.sizeFunc(existing))
	}

	c.lru.Add(key, value)
	c.curBytes += int64(c.sizeFunc(value))

	if c.maxBytes <= 0 {
		return
	}
	for c.curBytes > c.maxBytes {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
	}
}

// Remove deletes key if present.
func (c *Cache[V]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Purge clears the entire cache. Used to invalidate the search cache in bulk
// after a successful index/reindex/remove, since per-key invalidation of
// every query that might have touched an affected file isn't tractable.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.curBytes = 0
}

// Len returns the current number of live entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats reports cumulative hit/miss counts and current byte usage.
type Stats struct {
	Hits      int64
	Misses    int64
	Entries   int
	UsedBytes int64
	MaxBytes  int64
}

func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Entries:   c.lru.Len(),
		UsedBytes: c.curBytes,
		MaxBytes:  c.maxBytes,
	}
}
