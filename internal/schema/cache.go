package schema

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Source supplies the raw, versioned schema description for a database
// identifier. Implementations live in internal/schemasource.
type Source interface {
	LoadDescription(ctx context.Context, databaseID string) (Description, error)
}

// Cache builds catalogs on first reference and keeps them for the process
// lifetime, or until Invalidate. Concurrent first-loads for the same database
// identifier are coalesced: at most one build runs, later callers wait for
// its result. Cached catalogs are immutable and shared without locking.
type Cache struct {
	source Source
	group  singleflight.Group

	mu       sync.RWMutex
	catalogs map[string]*Catalog
}

// NewCache wraps a schema source.
func NewCache(source Source) *Cache {
	return &Cache{source: source, catalogs: make(map[string]*Catalog)}
}

// Load returns the catalog for a database identifier, building it on first
// use. A context cancellation releases the waiting caller; the in-flight
// build keeps running so the next caller can still use its result.
func (c *Cache) Load(ctx context.Context, databaseID string) (*Catalog, error) {
	c.mu.RLock()
	cached, ok := c.catalogs[databaseID]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	ch := c.group.DoChan(databaseID, func() (any, error) {
		c.mu.RLock()
		existing, ok := c.catalogs[databaseID]
		c.mu.RUnlock()
		if ok {
			return existing, nil
		}

		desc, err := c.source.LoadDescription(context.WithoutCancel(ctx), databaseID)
		if err != nil {
			return nil, fmt.Errorf("load schema description for %q: %w", databaseID, err)
		}
		built, err := NewCatalog(desc)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.catalogs[databaseID] = built
		c.mu.Unlock()
		return built, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Catalog), nil
	}
}

// Invalidate drops the cached catalog so the next Load rebuilds it.
func (c *Cache) Invalidate(databaseID string) {
	c.mu.Lock()
	delete(c.catalogs, databaseID)
	c.mu.Unlock()
	c.group.Forget(databaseID)
}

// Cached reports whether a catalog is currently held for the identifier.
func (c *Cache) Cached(databaseID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.catalogs[databaseID]
	return ok
}
