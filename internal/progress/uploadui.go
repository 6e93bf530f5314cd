package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/chinmay4o/superlinks/internal/events"
	"github.com/chinmay4o/superlinks/internal/transfer"
)

// UploadUI shows a batch of uploads as stacked mpb bars, one per task.
type UploadUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool
	totalFiles int

	mu        sync.Mutex
	bars      map[string]*FileBar
	started   int
	completed int
	failed    int
}

// FileBar is the bar of one task.
type FileBar struct {
	bar        *mpb.Bar
	index      int
	name       string
	size       int64
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
}

// NewUploadUI creates an UploadUI on stderr for totalFiles uploads.
func NewUploadUI(totalFiles int) *UploadUI {
	return NewUploadUIWithOutput(os.Stderr, IsTerminal(), totalFiles)
}

// NewUploadUIWithOutput creates an UploadUI writing to out. Without a
// terminal no bars are drawn; each task prints a start and a result line.
func NewUploadUIWithOutput(out io.Writer, terminal bool, totalFiles int) *UploadUI {
	var p *mpb.Progress
	if terminal {
		if f, ok := out.(*os.File); ok {
			enableANSIOnWindows(f)
		}
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(100),
		)
	}
	return &UploadUI{
		progress:   p,
		out:        out,
		isTerminal: terminal,
		totalFiles: totalFiles,
		bars:       make(map[string]*FileBar),
	}
}

// Handle implements UI.
func (u *UploadUI) Handle(ev *events.TransferEvent) {
	u.mu.Lock()
	defer u.mu.Unlock()

	switch transfer.TaskState(ev.Status) {
	case transfer.TaskQueued:
		// Bars appear once a slot is granted.
	case transfer.TaskActive:
		fb := u.barLocked(ev)
		fb.update(ev.BytesSent, ev.Timestamp())
	case transfer.TaskCompleted:
		fb := u.barLocked(ev)
		u.completed++
		if fb.bar != nil {
			fb.bar.SetCurrent(fb.size)
			fb.bar.SetTotal(fb.size, true)
		}
		elapsed := ev.Timestamp().Sub(fb.startTime)
		u.printLocked("✓ %s (%s, %s, %s/s)\n",
			truncatePath(fb.name, 2),
			humanize.IBytes(uint64(fb.size)),
			elapsed.Round(time.Millisecond),
			humanize.IBytes(uint64(ev.Speed)))
	case transfer.TaskFailed, transfer.TaskCancelled:
		fb, ok := u.bars[ev.TaskID]
		u.failed++
		if ok && fb.bar != nil {
			fb.bar.Abort(false)
		}
		u.printLocked("✗ %s: %v\n", truncatePath(ev.Name, 2), ev.Error)
	}
}

// barLocked returns the task's bar, creating it on first sight.
func (u *UploadUI) barLocked(ev *events.TransferEvent) *FileBar {
	if fb, ok := u.bars[ev.TaskID]; ok {
		return fb
	}
	u.started++
	fb := &FileBar{
		index:      u.started,
		name:       ev.Name,
		size:       ev.ByteSize,
		startTime:  ev.Timestamp(),
		lastUpdate: ev.Timestamp(),
	}
	label := fmt.Sprintf("[%d/%d] %s (%s)", fb.index, u.totalFiles, truncatePath(ev.Name, 2), humanize.IBytes(uint64(ev.ByteSize)))

	if u.isTerminal {
		fb.bar = u.progress.New(ev.ByteSize,
			mpb.BarStyle().
				Lbound("[").
				Filler("█").
				Tip("█").
				Padding("░").
				Rbound("]"),
			mpb.PrependDecorators(
				decor.Name(label, decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				decor.Name("  "),
				decor.Percentage(decor.WCSyncSpace),
				decor.Name("  "),
				decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 30, decor.WCSyncSpace),
				decor.Name("  "),
				decor.Name("ETA ", decor.WCSyncWidth),
				decor.EwmaETA(decor.ET_STYLE_GO, 30),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		fmt.Fprintf(u.out, "Uploading %s\n", label)
	}
	u.bars[ev.TaskID] = fb
	return fb
}

// update moves the bar to sent bytes. EwmaIncrBy needs the elapsed time
// even when no bytes moved so speed and ETA stay honest.
func (f *FileBar) update(sent int64, now time.Time) {
	if f.bar == nil {
		f.lastBytes = sent
		return
	}
	delta := sent - f.lastBytes
	if delta < 0 {
		delta = 0
	}
	f.bar.EwmaIncrBy(int(delta), now.Sub(f.lastUpdate))
	f.lastBytes = sent
	f.lastUpdate = now
}

func (u *UploadUI) printLocked(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if u.isTerminal && u.progress != nil {
		// Through mpb so the line lands above the bars.
		_, _ = u.progress.Write([]byte(msg))
		return
	}
	fmt.Fprint(u.out, msg)
}

// Counts returns how many tasks completed and how many failed or were
// cancelled so far.
func (u *UploadUI) Counts() (completed, failed int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.completed, u.failed
}

// Wait implements UI.
func (u *UploadUI) Wait() {
	if u.progress != nil {
		u.progress.Wait()
	}
}

// Writer implements UI.
func (u *UploadUI) Writer() io.Writer {
	if u.progress != nil && u.isTerminal {
		return u.progress
	}
	return u.out
}

// truncatePath keeps the last maxComponents components of path.
// Example: truncatePath("/a/b/c/d/file.txt", 3) → "…/c/d/file.txt"
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return filepath.Base(path)
	}
	return "…/" + strings.Join(parts[len(parts)-maxComponents:], "/")
}

// enableANSIOnWindows turns on escape sequence handling on Windows consoles.
func enableANSIOnWindows(f *os.File) {
	if runtime.GOOS == "windows" {
		enableWindowsANSI(f)
	}
}
