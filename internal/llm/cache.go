package llm

import (
	"sync"
	"time"
)

// cacheEntry represents a cached capability response.
type cacheEntry[T any] struct {
	expiry time.Time
	value  T
}

// ttlCache provides thread-safe caching for capability responses.
type ttlCache[T any] struct {
	entries map[string]cacheEntry[T]
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
	once    sync.Once
}

// newTTLCache creates a new cache with the specified TTL.
func newTTLCache[T any](ttl time.Duration) *ttlCache[T] {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	cache := &ttlCache[T]{
		entries: make(map[string]cacheEntry[T]),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

// get retrieves a value if it exists and hasn't expired.
func (c *ttlCache[T]) get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero T
	entry, exists := c.entries[key]
	if !exists {
		return zero, false
	}

	if time.Now().After(entry.expiry) {
		return zero, false
	}

	return entry.value, true
}

// set stores a value in the cache.
func (c *ttlCache[T]) set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry[T]{
		value:  value,
		expiry: time.Now().Add(c.ttl),
	}
}

// cleanup periodically removes expired entries.
func (c *ttlCache[T]) cleanup() {
	interval := c.ttl
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// size returns the number of entries in the cache.
func (c *ttlCache[T]) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (c *ttlCache[T]) Close() {
	c.once.Do(func() { close(c.stopCh) })
}
