package settings

import (
	"context"
	"sync"
	"time"
)

// Loader fetches the current value from its source of truth.
type Loader[T any] func(ctx context.Context) (T, error)

// Cell holds one lazily loaded value. A zero TTL keeps the value until
// Invalidate or Set is called.
type Cell[T any] struct {
	mu       sync.Mutex
	load     Loader[T]
	ttl      time.Duration
	now      func() time.Time
	value    T
	loaded   bool
	loadedAt time.Time
}

func NewCell[T any](load Loader[T], ttl time.Duration) *Cell[T] {
	return &Cell[T]{load: load, ttl: ttl, now: time.Now}
}

// Get returns the cached value, loading it first if needed. Concurrent
// callers wait for a single load.
func (c *Cell[T]) Get(ctx context.Context) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded && (c.ttl <= 0 || c.now().Sub(c.loadedAt) < c.ttl) {
		return c.value, nil
	}

	v, err := c.load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.value, c.loaded, c.loadedAt = v, true, c.now()
	return v, nil
}

// Set stores a value that was just written to the source of truth.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value, c.loaded, c.loadedAt = v, true, c.now()
}

// Invalidate forces the next Get to reload.
func (c *Cell[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value, c.loaded = zero, false
}
