// Package mutation implements optimistic updates: a change is applied to
// local state immediately, committed to the server, then reconciled with the
// server's answer or rolled back.
//
// Every mutation moves through
//
//	idle -> speculative-applied -> committed | rolled-back
//
// and reaches exactly one terminal status. Mutations on the same target are
// versioned: when a newer mutation for a target starts before an older one
// settles, the older result is stale and its reconciliation is dropped.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chinmay4o/superlinks/internal/api"
	"github.com/chinmay4o/superlinks/internal/cache"
	"github.com/chinmay4o/superlinks/internal/constants"
	"github.com/chinmay4o/superlinks/internal/events"
	"github.com/chinmay4o/superlinks/internal/logging"
	"github.com/chinmay4o/superlinks/internal/metrics"
)

// Status of a mutation.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusApplied    Status = "speculative-applied"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled-back"
)

// IsTerminal reports whether the mutation has settled.
func (s Status) IsTerminal() bool {
	return s == StatusCommitted || s == StatusRolledBack
}

// CachePatch rewrites one cache entry from the committed result. The entry
// keeps its expiry; a missing entry is left missing.
type CachePatch[T any] struct {
	Key   string
	Apply func(old any, result T) any
}

// CacheEffects declares what a successful commit does to the response cache.
type CacheEffects[T any] struct {
	Patch      []CachePatch[T]
	Invalidate []string
	Patterns   []cache.Matcher
}

// Mutation describes one optimistic change. Commit is required; the rest
// is optional.
type Mutation[T any] struct {
	// Target identifies the entity for events and versioning, e.g. "blocks/blk-1".
	Target string

	// Rollback basis. Snapshot captures local state before Apply and returns
	// the function restoring it. Refetch reloads authoritative state instead.
	// When both are set the snapshot is restored first.
	Snapshot func() (restore func())
	Refetch  func(ctx context.Context) error

	Apply     func()
	Commit    func(ctx context.Context) (T, error)
	Reconcile func(result T)

	Cache CacheEffects[T]

	// FailureTitle heads the user notification raised on failure.
	FailureTitle string
}

// Handle tracks an asynchronous mutation started with Go.
type Handle[T any] struct {
	ID     string
	Target string

	mu     sync.Mutex
	status Status
	result T
	err    error
	done   chan struct{}
}

// Done is closed once the mutation settles.
func (h *Handle[T]) Done() <-chan struct{} { return h.done }

// Status returns the current status.
func (h *Handle[T]) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Wait blocks until the mutation settles or ctx ends.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result, h.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (h *Handle[T]) setStatus(s Status) {
	h.mu.Lock()
	h.status = s
	h.mu.Unlock()
}

func (h *Handle[T]) settle(s Status, result T, err error) {
	h.mu.Lock()
	h.status = s
	h.result = result
	h.err = err
	h.mu.Unlock()
	close(h.done)
}

type targetVersion struct {
	latest   uint64
	inflight int
}

// Engine runs mutations against a shared cache and event bus.
type Engine struct {
	cache  *cache.Cache
	bus    *events.EventBus
	logger *logging.Logger

	mu       sync.Mutex
	versions map[string]*targetVersion

	wg sync.WaitGroup
}

// NewEngine creates an engine. Any argument may be nil.
func NewEngine(c *cache.Cache, bus *events.EventBus, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{
		cache:    c,
		bus:      bus,
		logger:   logger,
		versions: make(map[string]*targetVersion),
	}
}

// Cache returns the engine's response cache, possibly nil.
func (e *Engine) Cache() *cache.Cache { return e.cache }

// Wait blocks until every mutation started with Go has settled.
func (e *Engine) Wait() { e.wg.Wait() }

// NewTempID returns a client-side placeholder id.
func NewTempID() string {
	return constants.TempIDPrefix + uuid.NewString()[:8]
}

// Run applies m locally, commits it and reconciles, blocking until it settles.
func Run[T any](ctx context.Context, e *Engine, m Mutation[T]) (T, error) {
	h, restore, version := start(e, m)
	finish(ctx, e, m, h, restore, version)
	return h.result, h.err
}

// Go applies m locally before returning and commits in the background.
func Go[T any](ctx context.Context, e *Engine, m Mutation[T]) *Handle[T] {
	h, restore, version := start(e, m)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		finish(ctx, e, m, h, restore, version)
	}()
	return h
}

func start[T any](e *Engine, m Mutation[T]) (*Handle[T], func(), uint64) {
	h := &Handle[T]{
		ID:     uuid.NewString(),
		Target: m.Target,
		status: StatusIdle,
		done:   make(chan struct{}),
	}

	version := e.begin(m.Target)

	var restore func()
	if m.Snapshot != nil {
		restore = m.Snapshot()
	}
	if m.Apply != nil {
		m.Apply()
	}
	h.setStatus(StatusApplied)
	e.publish(h.ID, m.Target, StatusApplied, nil)
	return h, restore, version
}

func finish[T any](ctx context.Context, e *Engine, m Mutation[T], h *Handle[T], restore func(), version uint64) {
	result, err := commit(ctx, m)
	latest := e.end(m.Target, version)

	if err != nil {
		fail(ctx, e, m, h, restore, latest, err)
		return
	}

	if !latest {
		// A newer mutation owns the target now; its result wins.
		e.logger.Info().Str("target", m.Target).Str("mutation", h.ID).Msg("Dropping stale mutation result")
		metrics.RecordMutation("stale")
		e.invalidate(m.Cache.Invalidate, m.Cache.Patterns)
		h.settle(StatusCommitted, result, nil)
		e.publish(h.ID, m.Target, StatusCommitted, nil)
		return
	}

	if m.Reconcile != nil {
		m.Reconcile(result)
	}
	if e.cache != nil {
		for _, p := range m.Cache.Patch {
			e.cache.Update(p.Key, func(old any) any { return p.Apply(old, result) })
		}
	}
	e.invalidate(m.Cache.Invalidate, m.Cache.Patterns)

	metrics.RecordMutation("committed")
	h.settle(StatusCommitted, result, nil)
	e.publish(h.ID, m.Target, StatusCommitted, nil)
}

func commit[T any](ctx context.Context, m Mutation[T]) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("commit panicked: %v", r)
		}
	}()
	if m.Commit == nil {
		return result, errors.New("mutation has no commit step")
	}
	return m.Commit(ctx)
}

func fail[T any](ctx context.Context, e *Engine, m Mutation[T], h *Handle[T], restore func(), latest bool, err error) {
	var zero T
	cancelled := api.IsCancellation(err)

	if latest {
		if restore != nil {
			restore()
		}
		if m.Refetch != nil {
			refetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.HTTPAPITimeout)
			if rerr := m.Refetch(refetchCtx); rerr != nil {
				e.logger.Warn().Err(rerr).Str("target", m.Target).Msg("Refetch after failed mutation failed")
			}
			cancel()
		}
		metrics.RecordMutation("rolled_back")
	} else {
		// Restoring this snapshot would clobber the newer speculative state.
		e.logger.Info().Str("target", m.Target).Str("mutation", h.ID).Msg("Stale mutation failed; leaving newer state in place")
		metrics.RecordMutation("stale")
	}

	if cancelled {
		e.logger.Debug().Str("target", m.Target).Msg("Mutation cancelled")
	} else {
		e.logger.Warn().Err(err).Str("target", m.Target).Msg("Mutation failed, rolled back")
		if e.bus != nil {
			title := m.FailureTitle
			if title == "" {
				title = "Change not saved"
			}
			e.bus.PublishNotification(events.SeverityError, title, err.Error(), err)
		}
	}

	h.settle(StatusRolledBack, zero, err)
	e.publish(h.ID, m.Target, StatusRolledBack, err)
}

// begin registers a new mutation on target and returns its version.
func (e *Engine) begin(target string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.versions[target]
	if !ok {
		v = &targetVersion{}
		e.versions[target] = v
	}
	v.latest++
	v.inflight++
	return v.latest
}

// end settles one mutation on target and reports whether it was the newest.
func (e *Engine) end(target string, version uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.versions[target]
	if !ok {
		return true
	}
	latest := v.latest == version
	v.inflight--
	if v.inflight <= 0 {
		delete(e.versions, target)
	}
	return latest
}

// InFlight returns the number of unsettled mutations on target.
func (e *Engine) InFlight(target string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.versions[target]; ok {
		return v.inflight
	}
	return 0
}

func (e *Engine) invalidate(keys []string, patterns []cache.Matcher) {
	if e.cache == nil {
		return
	}
	for _, k := range keys {
		e.cache.Delete(k)
	}
	for _, p := range patterns {
		e.cache.DeleteByPattern(p)
	}
}

func (e *Engine) publish(id, target string, status Status, err error) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(&events.MutationEvent{
		BaseEvent:  events.BaseEvent{EventType: eventType(status), Time: time.Now()},
		MutationID: id,
		Target:     target,
		Status:     string(status),
		Error:      err,
	})
}

func eventType(s Status) events.EventType {
	switch s {
	case StatusCommitted:
		return events.EventMutationCommitted
	case StatusRolledBack:
		return events.EventMutationRolledBack
	default:
		return events.EventMutationApplied
	}
}
