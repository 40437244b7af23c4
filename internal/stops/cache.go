// Package stops memoizes stop coordinate lookups for the duration of a run.
package stops

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"drtnav/internal/model"
	"drtnav/internal/store"
)

// Resolver is the slice of the store the cache needs.
type Resolver interface {
	GetStop(ctx context.Context, stopID string) (model.Stop, error)
}

// Cache wraps a Resolver with concurrent-safe memoization. Misses and
// unresolvable stops are cached too, so one bad stop id costs one lookup per
// run instead of one per referencing request. A single in-flight lookup per
// stop id is shared by all waiters.
type Cache struct {
	resolver Resolver

	mu      sync.RWMutex
	coords  map[string]model.GeoPoint
	unknown map[string]bool

	group singleflight.Group

	lookups int64
	misses  int64
}

func NewCache(r Resolver) *Cache {
	return &Cache{
		resolver: r,
		coords:   map[string]model.GeoPoint{},
		unknown:  map[string]bool{},
	}
}

// Coords returns the stop's coordinate, or ok=false when the stop is missing
// or carries the 0/0 unresolvable marker.
func (c *Cache) Coords(ctx context.Context, stopID string) (model.GeoPoint, bool) {
	c.mu.RLock()
	if p, ok := c.coords[stopID]; ok {
		c.mu.RUnlock()
		return p, true
	}
	if c.unknown[stopID] {
		c.mu.RUnlock()
		return model.GeoPoint{}, false
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(stopID, func() (any, error) {
		c.mu.Lock()
		c.lookups++
		c.mu.Unlock()
		s, err := c.resolver.GetStop(ctx, stopID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return model.GeoPoint{}, nil
			}
			return model.GeoPoint{}, err
		}
		return s.Position, nil
	})
	if err != nil {
		// Transient store errors are treated as unresolvable for this run but
		// not cached, so a later run can retry.
		return model.GeoPoint{}, false
	}

	p := v.(model.GeoPoint)
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.IsZero() {
		if !c.unknown[stopID] {
			c.unknown[stopID] = true
			c.misses++
		}
		return model.GeoPoint{}, false
	}
	c.coords[stopID] = p
	return p, true
}

// Stats reports lookup and unresolvable counts for run reporting.
func (c *Cache) Stats() (lookups, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookups, c.misses
}
