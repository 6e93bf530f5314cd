// Package progress renders upload coordinator events in a terminal:
// a single progress bar for one file, stacked bars for a batch, and plain
// lines when stderr is not a terminal.
package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/chinmay4o/superlinks/internal/events"
	"github.com/chinmay4o/superlinks/internal/transfer"
)

// UI consumes transfer events for display.
type UI interface {
	// Handle renders one transfer event.
	Handle(ev *events.TransferEvent)

	// Wait blocks until rendering has flushed.
	Wait()

	// Writer returns an io.Writer that prints without corrupting the bars.
	Writer() io.Writer
}

// IsTerminal reports whether stderr is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// New picks the display for an upload of total files.
func New(total int) UI {
	if total == 1 {
		return NewSingleUI(os.Stderr, IsTerminal())
	}
	return NewUploadUI(total)
}

// Render feeds every TransferEvent from ch into ui until ch closes.
// Closing the subscription after the work is done still drains what is
// buffered, so final result lines are not lost.
func Render(ch <-chan events.Event, ui UI) {
	for ev := range ch {
		if te, ok := ev.(*events.TransferEvent); ok {
			ui.Handle(te)
		}
	}
}

// Follow feeds TransferEvents from ch into ui until every task in taskIDs
// reached a terminal state, ch closes or ctx ends. Events of other tasks
// are ignored.
func Follow(ctx context.Context, ch <-chan events.Event, ui UI, taskIDs ...string) {
	pending := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		pending[id] = true
	}
	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			te, ok := ev.(*events.TransferEvent)
			if !ok || !pending[te.TaskID] {
				continue
			}
			ui.Handle(te)
			if transfer.TaskState(te.Status).IsTerminal() {
				delete(pending, te.TaskID)
			}
		}
	}
}

// SingleUI shows one upload with a progressbar.
type SingleUI struct {
	out      io.Writer
	terminal bool
	bar      *progressbar.ProgressBar
	started  time.Time
}

// NewSingleUI creates a SingleUI writing to out. With terminal false only
// start and finish lines are printed.
func NewSingleUI(out io.Writer, terminal bool) *SingleUI {
	return &SingleUI{out: out, terminal: terminal}
}

// Handle implements UI.
func (s *SingleUI) Handle(ev *events.TransferEvent) {
	switch transfer.TaskState(ev.Status) {
	case transfer.TaskQueued:
		if !s.terminal {
			fmt.Fprintf(s.out, "Queued %s (%s)\n", ev.Name, humanize.IBytes(uint64(ev.ByteSize)))
		}
	case transfer.TaskActive:
		s.start(ev)
		if s.bar != nil {
			_ = s.bar.Set64(ev.BytesSent)
		}
	case transfer.TaskCompleted:
		if s.bar != nil {
			_ = s.bar.Set64(ev.ByteSize)
			_ = s.bar.Finish()
		}
		fmt.Fprintf(s.out, "✓ %s (%s, %s)\n", ev.Name, humanize.IBytes(uint64(ev.ByteSize)), s.elapsed(ev))
	case transfer.TaskFailed, transfer.TaskCancelled:
		if s.bar != nil {
			_ = s.bar.Exit()
		}
		fmt.Fprintf(s.out, "✗ %s: %v\n", ev.Name, ev.Error)
	}
}

func (s *SingleUI) start(ev *events.TransferEvent) {
	if !s.started.IsZero() {
		return
	}
	s.started = ev.Timestamp()
	if !s.terminal {
		fmt.Fprintf(s.out, "Uploading %s (%s)\n", ev.Name, humanize.IBytes(uint64(ev.ByteSize)))
		return
	}
	s.bar = progressbar.NewOptions64(ev.ByteSize,
		progressbar.OptionSetDescription(ev.Name),
		progressbar.OptionSetWriter(s.out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(s.out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (s *SingleUI) elapsed(ev *events.TransferEvent) time.Duration {
	if s.started.IsZero() {
		return 0
	}
	return ev.Timestamp().Sub(s.started).Round(time.Millisecond)
}

// Wait implements UI.
func (s *SingleUI) Wait() {}

// Writer implements UI.
func (s *SingleUI) Writer() io.Writer { return s.out }
