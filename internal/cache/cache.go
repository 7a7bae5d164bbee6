// Package cache provides a concurrency-safe key/value store whose entries
// expire individually.
//
// Expiry is lazy: an entry past its deadline is never returned, and is
// physically removed the next time it is written, deleted or pruned.
// There is no capacity bound.
package cache

import (
	"sync"
	"time"
)

// Clock supplies the current time. Tests substitute a controllable clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type entry[V any] struct {
	value    V
	deadline time.Time
}

// Cache is a TTL map. The zero value is not usable; call New.
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	clock   Clock
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// New creates an empty cache.
func New[K comparable, V any](opts ...Option) *Cache[K, V] {
	o := options{clock: systemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[K, V]{
		entries: make(map[K]entry[V]),
		clock:   o.clock,
	}
}

// Get returns the value for k if present and not expired.
// Readers share the lock and never wait on each other.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()

	if !ok || !c.clock.Now().Before(e.deadline) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores v under k for ttl. A non-positive ttl stores nothing and
// removes any existing entry.
func (c *Cache[K, V]) Set(k K, v V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		delete(c.entries, k)
		return
	}
	c.entries[k] = entry[V]{value: v, deadline: c.clock.Now().Add(ttl)}
}

// SetMany stores every pair with the same ttl under a single lock, so no
// reader observes a partially applied batch.
func (c *Cache[K, V]) SetMany(items map[K]V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := c.clock.Now().Add(ttl)
	for k, v := range items {
		if ttl <= 0 {
			delete(c.entries, k)
			continue
		}
		c.entries[k] = entry[V]{value: v, deadline: deadline}
	}
}

// Delete removes the given keys. Missing keys are ignored.
func (c *Cache[K, V]) Delete(keys ...K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.entries, k)
	}
}

// Prune drops expired entries and returns how many were removed.
func (c *Cache[K, V]) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.deadline) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Range calls fn for every live entry until fn returns false.
// fn must not call back into the cache.
func (c *Cache[K, V]) Range(fn func(k K, v V) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.clock.Now()
	for k, e := range c.entries {
		if !now.Before(e.deadline) {
			continue
		}
		if !fn(k, e.value) {
			return
		}
	}
}
