package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chinmay4o/superlinks/internal/api"
	"github.com/chinmay4o/superlinks/internal/clock"
	"github.com/chinmay4o/superlinks/internal/constants"
	"github.com/chinmay4o/superlinks/internal/events"
	"github.com/chinmay4o/superlinks/internal/logging"
	"github.com/chinmay4o/superlinks/internal/metrics"
	"github.com/chinmay4o/superlinks/internal/models"
	"github.com/chinmay4o/superlinks/internal/validation"
)

var (
	// ErrClosed is returned by Enqueue after Close.
	ErrClosed = errors.New("upload coordinator is closed")

	// ErrTaskNotFound is returned for unknown or cleared task IDs.
	ErrTaskNotFound = errors.New("task not found")
)

// Coordinator schedules uploads under a concurrency bound.
//
// Lock order is Coordinator.mu before Semaphore.mu. Events are published
// while mu is held; EventBus.Publish never blocks, and holding the lock keeps
// the events of one task in order.
type Coordinator struct {
	mu    sync.Mutex
	tasks []*TransferTask // All tasks in creation order
	byID  map[string]*TransferTask

	sem       *Semaphore
	transport Transport
	bus       *events.EventBus
	ownsBus   bool
	clock     clock.Clock
	logger    *logging.Logger

	timeout          time.Duration
	progressInterval time.Duration

	closed bool
	wg     sync.WaitGroup
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithMaxConcurrent sets the number of tasks allowed in the active state.
func WithMaxConcurrent(n int) CoordinatorOption {
	return func(c *Coordinator) { c.sem = NewSemaphore(n) }
}

// WithTimeout sets the per-task deadline, measured from activation.
func WithTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithEventBus publishes task events on bus instead of a private bus.
func WithEventBus(bus *events.EventBus) CoordinatorOption {
	return func(c *Coordinator) { c.bus = bus }
}

// WithClock sets the time source used for timestamps, estimates and timeouts.
func WithClock(clk clock.Clock) CoordinatorOption {
	return func(c *Coordinator) { c.clock = clk }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = logger }
}

// WithProgressInterval sets the minimum spacing of progress events per task.
// Zero publishes every report.
func WithProgressInterval(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d >= 0 {
			c.progressInterval = d
		}
	}
}

// NewCoordinator creates a coordinator that moves files with transport.
func NewCoordinator(transport Transport, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		byID:             make(map[string]*TransferTask),
		sem:              NewSemaphore(constants.DefaultMaxConcurrent),
		transport:        transport,
		clock:            clock.Real(),
		logger:           logging.NewNopLogger(),
		timeout:          constants.DefaultUploadTimeout,
		progressInterval: constants.ProgressUpdateInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bus == nil {
		c.bus = events.NewEventBus(0)
		c.ownsBus = true
	}
	return c
}

// Subscribe returns a channel of TransferEvents for every task.
func (c *Coordinator) Subscribe() <-chan events.Event {
	return c.bus.Subscribe(
		events.EventTransferQueued,
		events.EventTransferStarted,
		events.EventTransferProgress,
		events.EventTransferCompleted,
		events.EventTransferFailed,
		events.EventTransferCancelled,
	)
}

// Unsubscribe stops delivery to a channel returned by Subscribe.
func (c *Coordinator) Unsubscribe(ch <-chan events.Event) {
	c.bus.Unsubscribe(ch)
}

// SetMaxConcurrent changes the concurrency bound. Growing promotes queued
// tasks immediately; shrinking lets active tasks finish.
func (c *Coordinator) SetMaxConcurrent(n int) {
	c.sem.SetCapacity(n)
}

// Enqueue validates file and queues it for upload. Validation failures are
// returned as *api.ValidationError and leave no trace in the queue.
// The task is cancelled if ctx is cancelled.
func (c *Coordinator) Enqueue(ctx context.Context, file File, opts Options) (string, error) {
	if err := c.validate([]File{file}, opts); err != nil {
		return "", err
	}
	return c.enqueueValidated(ctx, file, opts)
}

func (c *Coordinator) validate(files []File, opts Options) error {
	uploadType := opts.metadata("").UploadType
	cands := make([]validation.Candidate, len(files))
	for i, f := range files {
		cands[i] = f.candidate()
	}

	err := validation.ValidateBatch(cands, uploadType)
	if err == nil {
		if ferr := validation.ValidateFolder(opts.Folder); ferr != nil {
			err = &api.ValidationError{Field: "folder", Message: ferr.Error()}
		}
	}
	if err == nil {
		for _, f := range files {
			if f.Open == nil {
				err = &api.ValidationError{Field: "file", File: f.Name, Message: "file has no content"}
				break
			}
		}
	}

	if err != nil {
		var ve *api.ValidationError
		if errors.As(err, &ve) {
			metrics.RecordValidationRejection(ve.Field)
		}
		c.logger.Debug().Err(err).Msg("Upload rejected by pre-flight validation")
		return err
	}
	return nil
}

func (c *Coordinator) enqueueValidated(ctx context.Context, file File, opts Options) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}

	task := newTransferTask(file, opts, c.clock.Now())
	task.ctx, task.cancel = context.WithCancel(ctx)
	// Reserved under mu, so line order is enqueue order.
	task.ticket = c.sem.Reserve()

	c.tasks = append(c.tasks, task)
	c.byID[task.ID] = task
	c.wg.Add(1)
	c.publishLocked(events.EventTransferQueued, task)
	c.mu.Unlock()

	c.logger.Debug().Str("task", task.ID).Str("name", task.Name).Int64("size", task.Size).Msg("Upload queued")
	c.updateGauges()

	go c.run(task)
	return task.ID, nil
}

// run drives one task from queued to a terminal state.
func (c *Coordinator) run(task *TransferTask) {
	defer c.wg.Done()

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Msgf("PANIC in upload for %s: %v", task.Name, r)
			c.finish(task, TaskFailed, fmt.Errorf("upload %s panicked: %v", task.Name, r), nil)
		}
	}()

	select {
	case <-task.ticket.Ready():
	case <-task.ctx.Done():
		c.finish(task, TaskCancelled, cancelledError(task), nil)
		return
	}

	if !c.activate(task) {
		return
	}

	attemptCtx, cancelAttempt := context.WithCancel(task.ctx)
	var timedOut atomic.Bool
	timer := c.clock.AfterFunc(c.timeout, func() {
		timedOut.Store(true)
		cancelAttempt()
	})

	desc, err := c.transport.Upload(attemptCtx, task.file, task.meta, func(sent int64) {
		c.reportProgress(task, sent)
	})
	timer.Stop()
	cancelAttempt()

	switch {
	case err == nil && desc == nil:
		c.finish(task, TaskFailed, &api.ServerError{Op: "upload " + task.Name, StatusCode: 200, Body: "empty file descriptor"}, nil)
	case err == nil:
		if c.finish(task, TaskCompleted, nil, desc) && task.opts.OnComplete != nil {
			task.opts.OnComplete(task.ID, desc)
		}
	case task.ctx.Err() != nil || (api.IsCancellation(err) && !timedOut.Load()):
		c.finish(task, TaskCancelled, cancelledError(task), nil)
	case timedOut.Load():
		c.finish(task, TaskFailed, &api.TimeoutError{
			Op:  "upload " + task.Name,
			Err: fmt.Errorf("no response within %s: %w", c.timeout, context.DeadlineExceeded),
		}, nil)
	default:
		c.finish(task, TaskFailed, api.Classify("upload "+task.Name, err), nil)
	}
}

// activate moves a task that was granted a slot into the active state. It
// returns false if the task was cancelled while waiting.
func (c *Coordinator) activate(task *TransferTask) bool {
	c.mu.Lock()
	if task.State != TaskQueued {
		c.mu.Unlock()
		task.ticket.Release()
		return false
	}
	now := c.clock.Now()
	task.State = TaskActive
	task.StartedAt = now
	task.estimator = NewEstimator(task.Size, now)
	task.Progress = task.estimator.Current(now)
	task.lastEmit = now
	c.publishLocked(events.EventTransferStarted, task)
	c.mu.Unlock()

	c.logger.Debug().Msgf("[SLOT] UPLOAD %s: ACQUIRED (active=%d/%d)", task.Name, c.sem.Held(), c.sem.Capacity())
	c.updateGauges()
	return true
}

func (c *Coordinator) reportProgress(task *TransferTask, sent int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if task.State != TaskActive {
		return
	}
	now := c.clock.Now()
	before := task.BytesSent
	task.Progress = task.estimator.Observe(sent, now)
	task.BytesSent = task.Progress.BytesSent

	if task.BytesSent == before {
		return
	}
	if task.BytesSent < task.Size && now.Sub(task.lastEmit) < c.progressInterval {
		return
	}
	task.lastEmit = now
	c.publishLocked(events.EventTransferProgress, task)
}

// finish settles a task. Only the first call for a task has an effect; it
// reports whether this call was the one that settled it.
func (c *Coordinator) finish(task *TransferTask, state TaskState, err error, desc *models.FileDescriptor) bool {
	c.mu.Lock()
	snap, ok := c.finishLocked(task, state, err, desc)
	c.mu.Unlock()

	if ok {
		c.afterFinish(snap)
	}
	return ok
}

func (c *Coordinator) finishLocked(task *TransferTask, state TaskState, err error, desc *models.FileDescriptor) (Snapshot, bool) {
	if task.State.IsTerminal() {
		return Snapshot{}, false
	}

	now := c.clock.Now()
	task.State = state
	task.Error = err
	task.Result = desc
	task.CompletedAt = now

	if state == TaskCompleted {
		if task.estimator != nil {
			task.Progress = task.estimator.Observe(task.Size, now)
		}
		task.BytesSent = task.Size
		task.Progress.BytesSent = task.Size
		task.Progress.Percentage = 100
		task.Progress.Remaining = 0
	}

	// Release exactly once: frees the slot, or leaves the line if still queued.
	task.ticket.Release()
	task.cancel()

	switch state {
	case TaskCompleted:
		c.publishLocked(events.EventTransferCompleted, task)
	case TaskFailed:
		c.publishLocked(events.EventTransferFailed, task)
	case TaskCancelled:
		c.publishLocked(events.EventTransferCancelled, task)
	}
	close(task.done)
	task.estimator = nil

	return task.snapshot(), true
}

func (c *Coordinator) afterFinish(snap Snapshot) {
	var seconds float64
	if !snap.StartedAt.IsZero() {
		seconds = snap.CompletedAt.Sub(snap.StartedAt).Seconds()
	}
	metrics.RecordUploadFinished(string(snap.State), snap.Size, seconds)
	c.updateGauges()

	switch snap.State {
	case TaskCompleted:
		c.logger.Info().Str("task", snap.ID).Str("name", snap.Name).Msg("File uploaded")
	case TaskFailed:
		c.logger.Error().Err(snap.Error).Str("task", snap.ID).Str("name", snap.Name).Msg("Upload failed")
	case TaskCancelled:
		c.logger.Info().Str("task", snap.ID).Str("name", snap.Name).Msg("Upload cancelled")
	}
}

func cancelledError(task *TransferTask) error {
	return fmt.Errorf("upload %s: %w", task.Name, api.ErrCancelled)
}

// Cancel aborts a task. A queued task is removed from the line without ever
// becoming active; an active task has its transfer aborted and its slot
// handed to the next queued task at once. Cancelling a settled task is a no-op.
func (c *Coordinator) Cancel(taskID string) error {
	c.mu.Lock()
	task, ok := c.byID[taskID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	snap, settled := c.finishLocked(task, TaskCancelled, cancelledError(task), nil)
	c.mu.Unlock()

	if settled {
		c.afterFinish(snap)
	}
	return nil
}

// CancelAll cancels every queued and active task and returns how many were
// cancelled. Queued tasks are withdrawn first so none of them is promoted.
func (c *Coordinator) CancelAll() int {
	c.mu.Lock()
	var snaps []Snapshot
	for _, want := range []TaskState{TaskQueued, TaskActive} {
		for _, task := range c.tasks {
			if task.State != want {
				continue
			}
			if snap, ok := c.finishLocked(task, TaskCancelled, cancelledError(task), nil); ok {
				snaps = append(snaps, snap)
			}
		}
	}
	c.mu.Unlock()

	for _, snap := range snaps {
		c.afterFinish(snap)
	}
	return len(snaps)
}

// Wait blocks until the task settles or ctx is done and returns its outcome.
func (c *Coordinator) Wait(ctx context.Context, taskID string) (*models.FileDescriptor, error) {
	c.mu.Lock()
	task, ok := c.byID[taskID]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	select {
	case <-task.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return task.Result, task.Error
}

// UploadMultiple validates the whole batch, uploads every file and waits for
// all of them. If any upload fails the returned error is non-nil, but the
// results of completed uploads are still returned.
func (c *Coordinator) UploadMultiple(ctx context.Context, files []File, opts Options) ([]Result, error) {
	if err := c.validate(files, opts); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(files))
	for _, f := range files {
		id, err := c.enqueueValidated(ctx, f, opts)
		if err != nil {
			for _, queued := range ids {
				_ = c.Cancel(queued)
			}
			return nil, err
		}
		ids = append(ids, id)
	}

	c.logger.Info().Msgf("[BATCH] Starting UPLOAD batch: %d files (active=%d/%d)", len(ids), c.sem.Held(), c.sem.Capacity())

	results := make([]Result, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			desc, err := c.Wait(ctx, id)
			results[i] = Result{TaskID: id, Name: files[i].Name, File: desc, Err: err}
			if api.IsFailure(err) {
				return err
			}
			return nil
		})
	}
	firstErr := g.Wait()

	var failed, cancelled int
	for _, r := range results {
		switch {
		case api.IsFailure(r.Err):
			failed++
		case r.Err != nil:
			cancelled++
		}
	}
	c.logger.Info().Msgf("[BATCH] UPLOAD batch complete: %d files (%d failed, %d cancelled)", len(ids), failed, cancelled)

	switch {
	case failed > 0:
		return results, fmt.Errorf("%d of %d uploads failed: %w", failed, len(ids), firstErr)
	case cancelled > 0:
		return results, fmt.Errorf("%d of %d uploads cancelled: %w", cancelled, len(ids), api.ErrCancelled)
	}
	return results, nil
}

// Retry enqueues a failed or cancelled task again as a new task.
func (c *Coordinator) Retry(ctx context.Context, taskID string) (string, error) {
	c.mu.Lock()
	task, ok := c.byID[taskID]
	if !ok {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	snap := task.snapshot()
	file, opts := task.file, task.opts
	c.mu.Unlock()

	if !snap.CanRetry() {
		return "", fmt.Errorf("task %s is %s, only failed or cancelled tasks can be retried", taskID, snap.State)
	}
	return c.enqueueValidated(ctx, file, opts)
}

// Task returns a copy of a task by ID.
func (c *Coordinator) Task(taskID string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, ok := c.byID[taskID]
	if !ok {
		return Snapshot{}, false
	}
	return task.snapshot(), true
}

// Tasks returns copies of all tracked tasks in creation order.
func (c *Coordinator) Tasks() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Snapshot, len(c.tasks))
	for i, task := range c.tasks {
		out[i] = task.snapshot()
	}
	return out
}

// Stats returns task counts by state.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

func (c *Coordinator) statsLocked() Stats {
	var stats Stats
	for _, task := range c.tasks {
		switch task.State {
		case TaskQueued:
			stats.Queued++
		case TaskActive:
			stats.Active++
		case TaskCompleted:
			stats.Completed++
		case TaskFailed:
			stats.Failed++
		case TaskCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

// ClearCompleted forgets every settled task and returns how many were removed.
func (c *Coordinator) ClearCompleted() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.tasks[:0]
	removed := 0
	for _, task := range c.tasks {
		if task.State.IsTerminal() {
			delete(c.byID, task.ID)
			removed++
			continue
		}
		kept = append(kept, task)
	}
	for i := len(kept); i < len(c.tasks); i++ {
		c.tasks[i] = nil
	}
	c.tasks = kept
	return removed
}

// Close cancels all outstanding tasks, waits for their goroutines and
// refuses further work.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.CancelAll()
	c.wg.Wait()
	if c.ownsBus {
		c.bus.Close()
	}
}

func (c *Coordinator) updateGauges() {
	stats := c.Stats()
	metrics.SetUploadQueue(stats.Queued, stats.Active)
}

func (c *Coordinator) publishLocked(eventType events.EventType, task *TransferTask) {
	c.bus.Publish(&events.TransferEvent{
		BaseEvent: events.BaseEvent{
			EventType: eventType,
			Time:      c.clock.Now(),
		},
		TaskID:        task.ID,
		Name:          task.Name,
		Status:        string(task.State),
		BytesSent:     task.BytesSent,
		ByteSize:      task.Size,
		Percentage:    task.Progress.Percentage,
		Speed:         task.Progress.Speed,
		RemainingTime: task.Progress.Remaining,
		Error:         task.Error,
	})
}
