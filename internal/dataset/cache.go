package dataset

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// defaultLoadTimeout bounds one shared load.
const defaultLoadTimeout = time.Minute

// LoadFunc produces a fresh value for a Cache.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// Cache memoizes the result of a LoadFunc for the life of the process, or for ttl when ttl > 0.
// Failed loads are not cached. Concurrent cold callers share a single load.
type Cache[T any] struct {
	load        LoadFunc[T]
	ttl         time.Duration
	loadTimeout time.Duration
	now         func() time.Time

	mu       sync.RWMutex
	value    T
	loaded   bool
	loadedAt time.Time

	group singleflight.Group
}

func NewCache[T any](load LoadFunc[T], ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		load:        load,
		ttl:         ttl,
		loadTimeout: defaultLoadTimeout,
		now:         time.Now,
	}
}

// Get returns the memoized value, loading it when cold or expired.
// The shared load runs detached from any single caller, bounded by loadTimeout;
// a caller whose ctx ends stops waiting without failing the others.
func (c *Cache[T]) Get(ctx context.Context) (T, error) {
	if v, ok := c.cached(); ok {
		return v, nil
	}

	ch := c.group.DoChan("load", func() (any, error) {
		if v, ok := c.cached(); ok {
			return v, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		v, err := c.load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.value = v
		c.loaded = true
		c.loadedAt = c.now()
		c.mu.Unlock()
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func (c *Cache[T]) cached() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		var zero T
		return zero, false
	}
	if c.ttl > 0 && c.now().Sub(c.loadedAt) >= c.ttl {
		var zero T
		return zero, false
	}
	return c.value, true
}

// Clear drops the memoized value; the next Get reloads.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.loaded = false
	c.loadedAt = time.Time{}
}
