package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Checker-Finance/experiences/internal/metrics"
)

type memoryItem[V any] struct {
	value      V
	expiration time.Time
}

// Memory is a thread-safe in-process TTL cache.
type Memory[V any] struct {
	mu   sync.RWMutex
	name string
	data map[string]memoryItem[V]
	now  func() time.Time
}

// NewMemory creates an empty in-memory cache. name labels its metrics.
func NewMemory[V any](name string) *Memory[V] {
	return &Memory[V]{
		name: name,
		data: make(map[string]memoryItem[V]),
		now:  time.Now,
	}
}

// Get returns a cached value if present and not expired.
func (c *Memory[V]) Get(_ context.Context, key Key) (V, bool) {
	k := key.String()
	c.mu.RLock()
	item, ok := c.data[k]
	c.mu.RUnlock()
	if !ok {
		metrics.IncCacheAccess(c.name, "miss")
		var zero V
		return zero, false
	}
	if c.now().After(item.expiration) {
		c.mu.Lock()
		delete(c.data, k)
		c.mu.Unlock()
		metrics.IncCacheAccess(c.name, "expired")
		var zero V
		return zero, false
	}
	metrics.IncCacheAccess(c.name, "hit")
	return item.value, true
}

// Put inserts or overwrites an entry. A non-positive ttl is a no-op.
func (c *Memory[V]) Put(_ context.Context, key Key, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key.String()] = memoryItem[V]{
		value:      value,
		expiration: c.now().Add(ttl),
	}
}

// Delete removes a single entry.
func (c *Memory[V]) Delete(_ context.Context, key Key) {
	c.mu.Lock()
	delete(c.data, key.String())
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *Memory[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// StartCleaner periodically removes expired entries until stop is closed.
func (c *Memory[V]) StartCleaner(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-stop:
			return
		}
	}
}

func (c *Memory[V]) cleanupExpired() {
	now := c.now()
	c.mu.Lock()
	for k, v := range c.data {
		if now.After(v.expiration) {
			delete(c.data, k)
		}
	}
	c.mu.Unlock()
}
