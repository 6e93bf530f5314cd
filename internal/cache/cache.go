// Package cache provides the in-memory TTL response cache shared by the data services.
//
// Entries are logically absent once their expiry has been reached: reads evict them
// lazily and a sweeper removes the rest periodically. Writes are last-write-wins.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/chinmay4o/superlinks/internal/clock"
	"github.com/chinmay4o/superlinks/internal/constants"
	"github.com/chinmay4o/superlinks/internal/events"
	"github.com/chinmay4o/superlinks/internal/logging"
	"github.com/chinmay4o/superlinks/internal/metrics"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// FetchFunc loads a value on a cache miss.
type FetchFunc func(ctx context.Context) (any, error)

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries int
	Hits    int64
	Misses  int64
	Expired int64
	Fetches int64
}

// Cache is a TTL key/value store safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	// generation is bumped by every invalidation so that a fetch started
	// before the invalidation does not write its (now stale) result back.
	generation uint64

	clock      clock.Clock
	defaultTTL time.Duration
	bus        *events.EventBus
	logger     *logging.Logger
	group      singleflight.Group

	sweepMu    sync.Mutex
	sweepTimer clock.Timer
	sweepRun   int

	hits    atomic.Int64
	misses  atomic.Int64
	expired atomic.Int64
	fetches atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the time source. Defaults to the real clock.
func WithClock(c clock.Clock) Option {
	return func(cache *Cache) { cache.clock = c }
}

// WithDefaultTTL sets the TTL used when Set is called with a non-positive ttl.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(cache *Cache) {
		if ttl > 0 {
			cache.defaultTTL = ttl
		}
	}
}

// WithEventBus publishes CacheInvalidated events for deletes.
func WithEventBus(bus *events.EventBus) Option {
	return func(cache *Cache) { cache.bus = bus }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(cache *Cache) { cache.logger = logger }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]entry),
		clock:      clock.Real(),
		defaultTTL: constants.DefaultCacheTTL,
		logger:     logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value stored under key. An expired entry is evicted and
// reported as a miss.
func (c *Cache) Get(key string) (any, bool) {
	now := c.clock.Now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		metrics.RecordCacheLookup("miss")
		return nil, false
	}

	if !now.Before(e.expiresAt) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the entry.
		if cur, still := c.entries[key]; still && !now.Before(cur.expiresAt) {
			delete(c.entries, key)
			metrics.RecordCacheEviction("expired", 1)
			metrics.SetCacheEntries(len(c.entries))
		}
		c.mu.Unlock()
		c.expired.Add(1)
		metrics.RecordCacheLookup("expired")
		return nil, false
	}

	c.hits.Add(1)
	metrics.RecordCacheLookup("hit")
	return e.value, true
}

// Set stores value under key for ttl, replacing any previous entry.
// A non-positive ttl selects the default TTL.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	expiresAt := c.clock.Now().Add(ttl)

	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: expiresAt}
	n := len(c.entries)
	c.mu.Unlock()

	metrics.SetCacheEntries(n)
}

// Update rewrites a live entry in place, keeping its expiry. It reports
// whether an entry was patched; missing or expired entries are left alone.
func (c *Cache) Update(key string, patch func(old any) any) bool {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !now.Before(e.expiresAt) {
		return false
	}
	e.value = patch(e.value)
	c.entries[key] = e
	return true
}

// Delete removes key. It reports whether the key was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	c.generation++
	n := len(c.entries)
	c.mu.Unlock()

	if ok {
		metrics.RecordCacheEviction("delete", 1)
		metrics.SetCacheEntries(n)
		c.publishInvalidated(key, []string{key})
	}
	return ok
}

// DeleteByPattern removes every key selected by m and returns the removed keys.
func (c *Cache) DeleteByPattern(m Matcher) []string {
	c.mu.Lock()
	var removed []string
	for key := range c.entries {
		if m.Match(key) {
			delete(c.entries, key)
			removed = append(removed, key)
		}
	}
	c.generation++
	n := len(c.entries)
	c.mu.Unlock()

	if len(removed) > 0 {
		c.logger.Debug().Str("pattern", m.String()).Int("keys", len(removed)).Msg("Invalidated cache entries")
		metrics.RecordCacheEviction("pattern", len(removed))
		metrics.SetCacheEntries(n)
	}
	c.publishInvalidated(m.String(), removed)
	return removed
}

// Clear removes every entry and returns how many were dropped.
func (c *Cache) Clear() int {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]entry)
	c.generation++
	c.mu.Unlock()

	metrics.RecordCacheEviction("clear", n)
	metrics.SetCacheEntries(0)
	return n
}

// Len returns the number of live (unexpired) entries.
func (c *Cache) Len() int {
	now := c.clock.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

// Keys returns the keys of live entries in no particular order.
func (c *Cache) Keys() []string {
	now := c.clock.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for key, e := range c.entries {
		if now.Before(e.expiresAt) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Sweep evicts every expired entry and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.clock.Now()

	c.mu.Lock()
	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	n := len(c.entries)
	c.mu.Unlock()

	if removed > 0 {
		c.logger.Debug().Int("evicted", removed).Int("remaining", n).Msg("Cache sweep")
		metrics.RecordCacheEviction("expired", removed)
		metrics.SetCacheEntries(n)
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done. A non-positive
// interval selects the default. Calling it again replaces the previous sweeper.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = constants.CacheSweepInterval
	}

	c.sweepMu.Lock()
	c.stopSweeperLocked()
	c.sweepRun++
	run := c.sweepRun
	c.sweepMu.Unlock()

	var schedule func()
	schedule = func() {
		c.sweepMu.Lock()
		defer c.sweepMu.Unlock()
		if ctx.Err() != nil || c.sweepRun != run {
			return
		}
		c.sweepTimer = c.clock.AfterFunc(interval, func() {
			if ctx.Err() != nil {
				return
			}
			c.Sweep()
			schedule()
		})
	}
	schedule()

	go func() {
		<-ctx.Done()
		c.sweepMu.Lock()
		defer c.sweepMu.Unlock()
		if c.sweepRun == run {
			c.stopSweeperLocked()
		}
	}()
}

// StopSweeper cancels the pending sweep, if any.
func (c *Cache) StopSweeper() {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()
	c.sweepRun++
	c.stopSweeperLocked()
}

func (c *Cache) stopSweeperLocked() {
	if c.sweepTimer != nil {
		c.sweepTimer.Stop()
		c.sweepTimer = nil
	}
}

// GetOrFetch returns the cached value for key or calls fetch and stores its
// result for ttl. Concurrent misses on the same key share a single fetch.
// Errors are returned to every waiter and never cached.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// Another caller may have filled the entry while we waited for the group.
		if v, ok := c.peek(key); ok {
			return v, nil
		}

		c.mu.RLock()
		gen := c.generation
		c.mu.RUnlock()

		c.fetches.Add(1)
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.generation == gen {
			if ttl <= 0 {
				ttl = c.defaultTTL
			}
			c.entries[key] = entry{value: v, expiresAt: c.clock.Now().Add(ttl)}
		} else {
			c.logger.Debug().Str("key", key).Msg("Discarding fetch result invalidated in flight")
		}
		n := len(c.entries)
		c.mu.Unlock()
		metrics.SetCacheEntries(n)
		return v, nil
	})
	if shared {
		c.logger.Debug().Str("key", key).Msg("Collapsed concurrent cache miss")
	}
	return v, err
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries: c.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Expired: c.expired.Load(),
		Fetches: c.fetches.Load(),
	}
}

// peek reads a live entry without touching counters.
func (c *Cache) peek(key string) (any, bool) {
	now := c.clock.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !now.Before(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) publishInvalidated(pattern string, keys []string) {
	if c.bus == nil || len(keys) == 0 {
		return
	}
	c.bus.Publish(&events.CacheInvalidatedEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventCacheInvalidated,
			Time:      c.clock.Now(),
		},
		Pattern: pattern,
		Keys:    keys,
	})
}

// Lookup is a typed Get. A value of the wrong type is reported as a miss.
func Lookup[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Fetch is a typed GetOrFetch.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.GetOrFetch(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		// A different type was stored under key; fetch fresh and overwrite.
		fresh, err := fetch(ctx)
		if err != nil {
			return zero, err
		}
		c.Set(key, fresh, ttl)
		return fresh, nil
	}
	return typed, nil
}
