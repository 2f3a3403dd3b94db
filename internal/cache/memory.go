package cache

import (
	"context"
	"sync"
)

// MemoryCache is an in-process Cache for tests and single-worker runs
// without a Redis instance. It is safe for concurrent use but invisible
// to sibling processes.
type MemoryCache struct {
	mu  sync.RWMutex
	set map[string]struct{}
}

// NewMemoryCache returns an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{set: make(map[string]struct{})}
}

// Contains reports membership.
func (c *MemoryCache) Contains(_ context.Context, id string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.set[id]
	return ok, nil
}

// Add inserts one id.
func (c *MemoryCache) Add(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set[id] = struct{}{}
	return nil
}

// BulkLoad replaces the set.
func (c *MemoryCache) BulkLoad(_ context.Context, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		c.set[id] = struct{}{}
	}
	return nil
}

// Close is a no-op.
func (c *MemoryCache) Close() error { return nil }
