package mutation

import (
	"sync"
	"time"

	"github.com/chinmay4o/superlinks/internal/clock"
	"github.com/chinmay4o/superlinks/internal/constants"
	"github.com/chinmay4o/superlinks/internal/metrics"
)

// Debouncer runs one callback per key after a quiet window. Every Schedule
// for a key restarts its window and replaces the pending callback, so a burst
// of edits produces a single commit carrying the last value.
type Debouncer struct {
	clock  clock.Clock
	window time.Duration

	mu      sync.Mutex
	pending map[string]*debounced
	seq     uint64 // shared by all keys so a recreated entry never reuses a number
	stopped bool
	running sync.WaitGroup
}

type debounced struct {
	timer clock.Timer
	fn    func()
	seq   uint64
}

// NewDebouncer returns a Debouncer. A nil clock uses real time and a
// non-positive window uses the default of 500ms.
func NewDebouncer(clk clock.Clock, window time.Duration) *Debouncer {
	if clk == nil {
		clk = clock.Real()
	}
	if window <= 0 {
		window = constants.DefaultDebounceWindow
	}
	return &Debouncer{
		clock:   clk,
		window:  window,
		pending: make(map[string]*debounced),
	}
}

// Window returns the quiet window.
func (d *Debouncer) Window() time.Duration { return d.window }

// Schedule arranges for fn to run once key has been quiet for the window.
// It reports false after Stop.
func (d *Debouncer) Schedule(key string, fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	metrics.RecordDebouncedEdit("edit")

	p, ok := d.pending[key]
	if !ok {
		p = &debounced{}
		d.pending[key] = p
	} else if p.timer != nil {
		p.timer.Stop()
	}
	d.seq++
	p.seq = d.seq
	p.fn = fn
	seq := p.seq
	p.timer = d.clock.AfterFunc(d.window, func() { d.fire(key, seq) })
	return true
}

func (d *Debouncer) fire(key string, seq uint64) {
	d.mu.Lock()
	p, ok := d.pending[key]
	// A timer that lost the race with a later Schedule or Cancel is ignored.
	if !ok || p.seq != seq || d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	fn := p.fn
	d.running.Add(1)
	d.mu.Unlock()

	defer d.running.Done()
	metrics.RecordDebouncedEdit("commit")
	fn()
}

// Flush runs the pending callback for key now, if any.
func (d *Debouncer) Flush(key string) bool {
	d.mu.Lock()
	p, ok := d.pending[key]
	if !ok || d.stopped {
		d.mu.Unlock()
		return false
	}
	p.timer.Stop()
	delete(d.pending, key)
	fn := p.fn
	d.running.Add(1)
	d.mu.Unlock()

	defer d.running.Done()
	metrics.RecordDebouncedEdit("commit")
	fn()
	return true
}

// Cancel drops the pending callback for key.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pending[key]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(d.pending, key)
	return true
}

// Pending reports whether key has a callback waiting.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Stop cancels every pending callback and waits for callbacks already
// running to return. Later Schedule calls are ignored. It must not be called
// from inside a callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for key, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, key)
	}
	d.mu.Unlock()
	d.running.Wait()
}
