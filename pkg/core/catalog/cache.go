package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a loaded snapshot is served before the store is read again.
const DefaultCacheTTL = 60 * time.Second

// Cache serves catalog snapshots read wholesale from a Store.
// Every caller receives its own copy; Invalidate must be called after a write.
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	snapshot *Snapshot
	loadedAt time.Time
	// gen is bumped by Invalidate; a read started under an older gen is not cached.
	gen uint64
}

// NewCache creates a cache over store. A non-positive ttl selects DefaultCacheTTL.
func NewCache(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{store: store, ttl: ttl, now: time.Now}
}

// Store returns the underlying store.
func (c *Cache) Store() Store {
	return c.store
}

// Load returns a snapshot, reading the store only when the cached one is stale.
func (c *Cache) Load(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	if c.snapshot != nil && c.now().Sub(c.loadedAt) < c.ttl {
		snap := c.snapshot.Clone()
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	return c.Fresh(ctx)
}

// Fresh reads the store unconditionally and refreshes the cached snapshot,
// unless Invalidate ran while the read was in flight.
func (c *Cache) Fresh(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	schema, records, err := c.store.ReadAllRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	snap := NewSnapshot(schema, records)
	snap.LoadedAt = c.now()

	c.mu.Lock()
	if c.gen == gen {
		c.snapshot = snap
		c.loadedAt = snap.LoadedAt
	}
	c.mu.Unlock()

	return snap.Clone(), nil
}

// Invalidate drops the cached snapshot so the next Load reflects recent writes.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.loadedAt = time.Time{}
	c.gen++
	c.mu.Unlock()
}
