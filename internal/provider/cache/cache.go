// Package cache keeps provider answers for a fresh window and, past it, a
// longer stale window that is only served when the provider fails.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Config sizes a Cache.
type Config struct {
	// FreshFor is how long a value is served without asking the provider.
	FreshFor time.Duration
	// StaleFor is how long a value may stand in for a failed fetch. Values
	// shorter than FreshFor are raised to it.
	StaleFor time.Duration
	// MaxEntries bounds the cache; 0 means unbounded.
	MaxEntries int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Stats counts the entries of a Cache at one instant.
type Stats struct {
	Entries int
	Fresh   int
	Stale   int
}

// Cache is a keyed provider cache with request coalescing. The zero value is
// not usable; call New.
type Cache[V any] struct {
	freshFor   time.Duration
	staleFor   time.Duration
	maxEntries int
	now        func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]entry[V]
}

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

// New creates an empty cache.
func New[V any](cfg Config) *Cache[V] {
	if cfg.StaleFor < cfg.FreshFor {
		cfg.StaleFor = cfg.FreshFor
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cache[V]{
		freshFor:   cfg.FreshFor,
		staleFor:   cfg.StaleFor,
		maxEntries: cfg.MaxEntries,
		now:        cfg.Now,
		entries:    make(map[string]entry[V]),
	}
}

// Fresh returns the value stored under key if it is inside its fresh window.
func (c *Cache[V]) Fresh(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.fetchedAt) >= c.freshFor {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Load runs fetch for key, once for all concurrent callers, and stores its
// value. If fetch fails while an entry inside the stale window exists, that
// entry is returned with stale set and a nil error.
//
// The shared fetch gets a context that keeps ctx's values but not its
// cancellation, so one caller going away cannot fail the others. Each caller
// stops waiting when its own ctx is done.
func (c *Cache[V]) Load(ctx context.Context, key string, fetch func(context.Context) (V, error)) (value V, stale bool, err error) {
	type result struct {
		value V
		stale bool
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		fetched, err := fetch(shared)
		if err == nil {
			c.put(key, fetched)
			return result{value: fetched}, nil
		}

		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && c.now().Sub(e.fetchedAt) < c.staleFor {
			return result{value: e.value, stale: true}, nil
		}
		return nil, err
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		r := res.Val.(result)
		return r.value, r.stale, nil
	}
}

func (c *Cache[V]) put(key string, value V) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.dropExpired(now)
		if len(c.entries) >= c.maxEntries {
			c.dropOldest()
		}
	}
	c.entries[key] = entry[V]{value: value, fetchedAt: now}
}

// dropExpired removes entries past the stale window. Caller holds c.mu.
func (c *Cache[V]) dropExpired(now time.Time) int {
	n := 0
	for k, e := range c.entries {
		if now.Sub(e.fetchedAt) >= c.staleFor {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// dropOldest removes the least recently fetched entry. Caller holds c.mu.
func (c *Cache[V]) dropOldest() {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.fetchedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = k, e.fetchedAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}

// Sweep removes entries past the stale window and returns how many it removed.
func (c *Cache[V]) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropExpired(now)
}

// Purge removes every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats classifies the stored entries.
func (c *Cache[V]) Stats() Stats {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{Entries: len(c.entries)}
	for _, e := range c.entries {
		switch age := now.Sub(e.fetchedAt); {
		case age < c.freshFor:
			s.Fresh++
		case age < c.staleFor:
			s.Stale++
		}
	}
	return s
}
