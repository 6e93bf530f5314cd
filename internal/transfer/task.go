// Package transfer provides the bounded-concurrency upload coordinator.
//
// Tasks are queued in FIFO order, at most N are active at once, and each task
// settles exactly once as completed, failed or cancelled. Every state change
// and progress update is published on the event bus.
package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chinmay4o/superlinks/internal/models"
	"github.com/chinmay4o/superlinks/internal/validation"
)

// TaskState represents the current state of a transfer task.
type TaskState string

const (
	TaskQueued    TaskState = "queued"    // Waiting in line for a concurrency slot
	TaskActive    TaskState = "active"    // Holding a slot, bytes are moving
	TaskCompleted TaskState = "completed" // Successfully completed
	TaskFailed    TaskState = "failed"    // Failed with error
	TaskCancelled TaskState = "cancelled" // Cancelled by user
)

// IsTerminal returns true for completed, failed and cancelled.
func (s TaskState) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// File is a local file offered for upload.
type File struct {
	Name     string // Original filename sent to the server
	Size     int64
	MimeType string

	// Open returns a fresh reader over the content. It is called once per
	// attempt, so a retried task re-reads from the start.
	Open func() (io.ReadCloser, error)
}

// FileFromPath describes the file at path. The MIME type is derived from
// the extension.
func FileFromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	name := filepath.Base(path)
	return File{
		Name:     name,
		Size:     info.Size(),
		MimeType: validation.DetectMIME(name),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// FileFromBytes describes an in-memory file.
func FileFromBytes(name, mimeType string, data []byte) File {
	if mimeType == "" {
		mimeType = validation.DetectMIME(name)
	}
	return File{
		Name:     name,
		Size:     int64(len(data)),
		MimeType: mimeType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func (f File) candidate() validation.Candidate {
	return validation.Candidate{Name: f.Name, Size: f.Size, MimeType: f.MimeType}
}

// Options apply to every file of an Enqueue or UploadMultiple call.
type Options struct {
	UploadType  models.UploadType
	ProductID   string
	Folder      string
	Description string

	// OnComplete is called once with the server's descriptor after a task
	// completes. It runs on the task's goroutine, outside coordinator locks.
	OnComplete func(taskID string, file *models.FileDescriptor)
}

func (o Options) metadata(name string) models.UploadMetadata {
	uploadType := o.UploadType
	if uploadType == "" {
		uploadType = models.UploadTypeGeneral
	}
	return models.UploadMetadata{
		OriginalName: name,
		UploadType:   uploadType,
		ProductID:    o.ProductID,
		Folder:       o.Folder,
		Description:  o.Description,
	}
}

// TransferTask is one file upload tracked by the coordinator.
// All fields are guarded by the coordinator's mutex; callers only ever see
// copies returned by Snapshot.
type TransferTask struct {
	ID   string
	Name string
	Size int64

	State     TaskState
	BytesSent int64
	Progress  Sample
	Error     error
	Result    *models.FileDescriptor

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	file      File
	opts      Options
	meta      models.UploadMetadata
	estimator *Estimator
	ticket    *Ticket
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	lastEmit  time.Time
}

func newTransferTask(file File, opts Options, now time.Time) *TransferTask {
	return &TransferTask{
		ID:        uuid.NewString(),
		Name:      file.Name,
		Size:      file.Size,
		State:     TaskQueued,
		Progress:  Sample{ByteSize: file.Size, Remaining: UnknownRemaining},
		CreatedAt: now,
		file:      file,
		opts:      opts,
		meta:      opts.metadata(file.Name),
		done:      make(chan struct{}),
	}
}

// Snapshot is a copy of a task safe to keep after the coordinator moves on.
type Snapshot struct {
	ID          string
	Name        string
	Size        int64
	State       TaskState
	BytesSent   int64
	Percentage  float64
	Speed       float64
	Remaining   time.Duration
	Error       error
	Result      *models.FileDescriptor
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

func (t *TransferTask) snapshot() Snapshot {
	return Snapshot{
		ID:          t.ID,
		Name:        t.Name,
		Size:        t.Size,
		State:       t.State,
		BytesSent:   t.BytesSent,
		Percentage:  t.Progress.Percentage,
		Speed:       t.Progress.Speed,
		Remaining:   t.Progress.Remaining,
		Error:       t.Error,
		Result:      t.Result,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}

// IsTerminal returns true if the task is in a terminal state.
func (s Snapshot) IsTerminal() bool {
	return s.State.IsTerminal()
}

// CanRetry returns true if the task can be retried (failed or cancelled).
func (s Snapshot) CanRetry() bool {
	return s.State == TaskFailed || s.State == TaskCancelled
}

// Stats holds counts of tasks by state.
type Stats struct {
	Queued    int
	Active    int
	Completed int
	Failed    int
	Cancelled int
}

// Total returns total number of tracked tasks.
func (s Stats) Total() int {
	return s.Queued + s.Active + s.Completed + s.Failed + s.Cancelled
}

// Result is the outcome of one file of an UploadMultiple call.
type Result struct {
	TaskID string
	Name   string
	File   *models.FileDescriptor // nil unless the task completed
	Err    error
}

// Transport moves one file to storage. progress is called with the
// cumulative number of bytes handed to the network; it may be called from
// any goroutine.
type Transport interface {
	Upload(ctx context.Context, file File, meta models.UploadMetadata, progress func(sent int64)) (*models.FileDescriptor, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, file File, meta models.UploadMetadata, progress func(sent int64)) (*models.FileDescriptor, error)

// Upload calls f.
func (f TransportFunc) Upload(ctx context.Context, file File, meta models.UploadMetadata, progress func(sent int64)) (*models.FileDescriptor, error) {
	return f(ctx, file, meta, progress)
}

// ProgressReader reports cumulative bytes read through fn. Transports wrap
// the file body with it.
type ProgressReader struct {
	r  io.Reader
	n  int64
	fn func(int64)
	mu sync.Mutex
}

// NewProgressReader wraps r.
func NewProgressReader(r io.Reader, fn func(int64)) *ProgressReader {
	return &ProgressReader{r: r, fn: fn}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.mu.Lock()
		p.n += int64(n)
		total := p.n
		p.mu.Unlock()
		if p.fn != nil {
			p.fn(total)
		}
	}
	return n, err
}

// BytesRead returns the number of bytes read so far.
func (p *ProgressReader) BytesRead() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}
