package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chinmay4o/superlinks/internal/clock"
	"github.com/chinmay4o/superlinks/internal/events"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestCache() (*Cache, *clock.Fake) {
	fc := clock.NewFake(epoch)
	return New(WithClock(fc)), fc
}

func TestGetSet(t *testing.T) {
	c, _ := newTestCache()

	if _, ok := c.Get("missing"); ok {
		t.Error("Expected miss for unknown key")
	}

	c.Set("k", "v1", time.Minute)
	c.Set("k", "v2", time.Minute)

	v, ok := c.Get("k")
	if !ok || v != "v2" {
		t.Errorf("Expected last write to win, got %v (ok=%v)", v, ok)
	}
}

// A 600000ms entry is gone 601000ms later.
func TestExpiredEntryIsAbsent(t *testing.T) {
	c, fc := newTestCache()

	c.Set("bio-data", map[string]string{"username": "maya"}, 600000*time.Millisecond)
	fc.Advance(601000 * time.Millisecond)

	v, ok := c.Get("bio-data")
	if ok || v != nil {
		t.Errorf("Expected nil after expiry, got %v", v)
	}

	c.mu.RLock()
	_, present := c.entries["bio-data"]
	c.mu.RUnlock()
	if present {
		t.Error("Expected expired entry to be evicted on read")
	}
}

func TestExpiryBoundary(t *testing.T) {
	c, fc := newTestCache()
	c.Set("k", 1, time.Second)

	fc.Advance(999 * time.Millisecond)
	if _, ok := c.Get("k"); !ok {
		t.Error("Expected entry to be live just before expiry")
	}

	fc.Advance(time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("Expected entry to be absent when now == expiresAt")
	}
}

func TestDefaultTTL(t *testing.T) {
	fc := clock.NewFake(epoch)
	c := New(WithClock(fc), WithDefaultTTL(10*time.Second))

	c.Set("k", 1, 0)
	fc.Advance(9 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Error("Expected entry to live for the default TTL")
	}
	fc.Advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("Expected entry to expire after the default TTL")
	}
}

func TestDeleteByPattern(t *testing.T) {
	c, _ := newTestCache()
	bus := events.NewEventBus(10)
	defer bus.Close()
	c.bus = bus
	sub := bus.Subscribe(events.EventCacheInvalidated)

	c.Set("purchases:page:1", 1, time.Minute)
	c.Set("purchases:page:2", 2, time.Minute)
	c.Set("bio-data", 3, time.Minute)

	removed := c.DeleteByPattern(Substring("purchases"))
	sort.Strings(removed)

	if len(removed) != 2 || removed[0] != "purchases:page:1" || removed[1] != "purchases:page:2" {
		t.Errorf("Unexpected removed keys: %v", removed)
	}
	if _, ok := c.Get("bio-data"); !ok {
		t.Error("Expected unrelated key to survive")
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 entry left, got %d", c.Len())
	}

	select {
	case ev := <-sub:
		inv := ev.(*events.CacheInvalidatedEvent)
		if inv.Pattern != "purchases" || len(inv.Keys) != 2 {
			t.Errorf("Unexpected invalidation event: %+v", inv)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a cache invalidation event")
	}
}

func TestDeleteByRegexp(t *testing.T) {
	c, _ := newTestCache()
	c.Set("products:list", 1, time.Minute)
	c.Set("products:prd-1", 2, time.Minute)
	c.Set("public:products", 3, time.Minute)

	removed := c.DeleteByPattern(MustRegexp(`^products:`))
	if len(removed) != 2 {
		t.Errorf("Expected 2 keys removed, got %v", removed)
	}
	if _, ok := c.Get("public:products"); !ok {
		t.Error("Expected anchored pattern to leave public:products alone")
	}

	if _, err := Regexp("("); err == nil {
		t.Error("Expected error for invalid expression")
	}
}

func TestDeleteAndClear(t *testing.T) {
	c, _ := newTestCache()
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	if !c.Delete("a") {
		t.Error("Expected Delete to report an existing key")
	}
	if c.Delete("a") {
		t.Error("Expected second Delete to report a missing key")
	}
	if n := c.Clear(); n != 1 {
		t.Errorf("Expected Clear to drop 1 entry, got %d", n)
	}
	if c.Len() != 0 {
		t.Errorf("Expected empty cache, got %d", c.Len())
	}
}

func TestUpdateKeepsExpiry(t *testing.T) {
	c, fc := newTestCache()
	c.Set("k", 1, time.Minute)
	fc.Advance(30 * time.Second)

	if !c.Update("k", func(old any) any { return old.(int) + 1 }) {
		t.Fatal("Expected live entry to be patched")
	}
	if v, _ := c.Get("k"); v != 2 {
		t.Errorf("Expected patched value 2, got %v", v)
	}

	fc.Advance(30 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("Expected patch to keep the original expiry")
	}
	if c.Update("k", func(old any) any { return old }) {
		t.Error("Expected Update on an expired entry to do nothing")
	}
}

func TestSweeper(t *testing.T) {
	c, fc := newTestCache()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.Set("short", 1, time.Minute)
	c.Set("long", 2, time.Hour)
	c.StartSweeper(ctx, 10*time.Minute)

	fc.Advance(10 * time.Minute)

	c.mu.RLock()
	physical := len(c.entries)
	c.mu.RUnlock()
	if physical != 1 {
		t.Errorf("Expected sweeper to evict the expired entry, %d entries remain", physical)
	}
	if fc.Pending() != 1 {
		t.Errorf("Expected sweeper to reschedule itself, %d timers pending", fc.Pending())
	}

	c.StopSweeper()
	if fc.Pending() != 0 {
		t.Errorf("Expected StopSweeper to cancel the pending sweep, %d pending", fc.Pending())
	}
}

func TestGetOrFetchWritesThrough(t *testing.T) {
	c, _ := newTestCache()
	calls := 0
	fetch := func(ctx context.Context) (any, error) {
		calls++
		return "fresh", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrFetch(context.Background(), "k", time.Minute, fetch)
		if err != nil || v != "fresh" {
			t.Fatalf("Unexpected result %v, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("Expected one fetch, got %d", calls)
	}
}

func TestGetOrFetchDoesNotCacheErrors(t *testing.T) {
	c, _ := newTestCache()
	boom := errors.New("boom")
	calls := 0
	fetch := func(ctx context.Context) (any, error) {
		calls++
		return nil, boom
	}

	for i := 0; i < 2; i++ {
		if _, err := c.GetOrFetch(context.Background(), "k", time.Minute, fetch); !errors.Is(err, boom) {
			t.Fatalf("Expected boom, got %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("Expected every call to retry the fetch, got %d calls", calls)
	}
	if c.Len() != 0 {
		t.Error("Expected no entry after failed fetches")
	}
}

func TestGetOrFetchCollapsesConcurrentMisses(t *testing.T) {
	c, _ := newTestCache()
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})

	fetch := func(ctx context.Context) (any, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "shared", nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]any, n)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = c.GetOrFetch(context.Background(), "k", time.Minute, fetch)
	}()
	<-started
	for i := 1; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.GetOrFetch(context.Background(), "k", time.Minute, fetch)
		}(i)
	}
	// Give the followers time to join the in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("Expected a single fetch, got %d", calls.Load())
	}
	for i, r := range results {
		if r != "shared" {
			t.Errorf("Result %d = %v, want shared", i, r)
		}
	}
}

func TestInvalidationDuringFetchIsNotOverwritten(t *testing.T) {
	c, _ := newTestCache()
	fetch := func(ctx context.Context) (any, error) {
		c.DeleteByPattern(Substring("k"))
		return "stale", nil
	}

	v, err := c.GetOrFetch(context.Background(), "k", time.Minute, fetch)
	if err != nil || v != "stale" {
		t.Fatalf("Expected caller to still receive the fetched value, got %v, %v", v, err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("Expected value invalidated in flight not to be cached")
	}
}

func TestTypedHelpers(t *testing.T) {
	c, _ := newTestCache()
	type profile struct{ Name string }

	p, err := Fetch(context.Background(), c, "profile", time.Minute, func(ctx context.Context) (*profile, error) {
		return &profile{Name: "maya"}, nil
	})
	if err != nil || p.Name != "maya" {
		t.Fatalf("Unexpected Fetch result %+v, %v", p, err)
	}

	got, ok := Lookup[*profile](c, "profile")
	if !ok || got != p {
		t.Error("Expected Lookup to return the cached pointer")
	}
	if _, ok := Lookup[string](c, "profile"); ok {
		t.Error("Expected Lookup with the wrong type to miss")
	}
}

func TestStats(t *testing.T) {
	c, fc := newTestCache()
	c.Set("k", 1, time.Second)
	c.Get("k")
	c.Get("nope")
	fc.Advance(time.Second)
	c.Get("k")

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Expired != 1 {
		t.Errorf("Unexpected stats %+v", s)
	}
}
