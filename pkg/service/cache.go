package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cached holds the last result of one query per key. Commands that change
// the underlying data call Invalidate after they succeed, so the next Get
// goes back to the backend. Concurrent misses for the same key share one
// fetch.
type Cached[T any] struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]cacheEntry[T]
	gen     uint64
}

type cacheEntry[T any] struct {
	value     T
	fetchedAt time.Time
}

// NewCached creates a cache whose entries go stale after ttl. Zero keeps
// them until invalidated.
func NewCached[T any](ttl time.Duration) *Cached[T] {
	return &Cached[T]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry[T]),
	}
}

// Get returns the cached value for key or fetches it.
func (c *Cached[T]) Get(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Peek(key); ok {
		return v, nil
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		// An invalidation during the fetch wins over its result.
		if c.gen == gen {
			c.entries[key] = cacheEntry[T]{value: v, fetchedAt: c.now()}
		}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// Peek returns the cached value without fetching.
func (c *Cached[T]) Peek(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || (c.ttl > 0 && c.now().Sub(e.fetchedAt) >= c.ttl) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Invalidate drops every key.
func (c *Cached[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry[T])
	c.gen++
}

// Len returns the number of cached keys.
func (c *Cached[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
