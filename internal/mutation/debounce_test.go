package mutation

import (
	"testing"
	"time"

	"github.com/chinmay4o/superlinks/internal/clock"
)

func TestDebounceCollapsesBurst(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	d := NewDebouncer(clk, 500*time.Millisecond)

	var commits []string
	value := ""
	for i := 0; i < 10; i++ {
		value = "bio draft " + string(rune('a'+i))
		v := value
		d.Schedule("bio", func() { commits = append(commits, v) })
		clk.Advance(40 * time.Millisecond)
	}

	if len(commits) != 0 {
		t.Fatalf("committed %v during the burst", commits)
	}
	clk.Advance(500 * time.Millisecond)

	if len(commits) != 1 {
		t.Fatalf("commits = %v, want exactly one", commits)
	}
	if commits[0] != value {
		t.Errorf("committed %q, want final value %q", commits[0], value)
	}
	if clk.Pending() != 0 {
		t.Errorf("Pending timers = %d, want 0", clk.Pending())
	}
}

func TestDebounceWindowRestartsOnEachEdit(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	d := NewDebouncer(clk, 500*time.Millisecond)

	fired := 0
	d.Schedule("k", func() { fired++ })
	clk.Advance(400 * time.Millisecond)
	d.Schedule("k", func() { fired++ })
	clk.Advance(400 * time.Millisecond)
	if fired != 0 {
		t.Fatal("fired before the window elapsed since the last edit")
	}
	clk.Advance(100 * time.Millisecond)
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
}

func TestDebounceKeysAreIndependent(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	d := NewDebouncer(clk, 0)
	if d.Window() != 500*time.Millisecond {
		t.Errorf("default Window() = %v", d.Window())
	}

	got := map[string]int{}
	d.Schedule("title", func() { got["title"]++ })
	d.Schedule("bio", func() { got["bio"]++ })
	clk.Advance(time.Second)

	if got["title"] != 1 || got["bio"] != 1 {
		t.Errorf("got = %v, want one commit per key", got)
	}
}

func TestDebounceCancelAndStop(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	d := NewDebouncer(clk, 500*time.Millisecond)

	fired := 0
	d.Schedule("a", func() { fired++ })
	if !d.Cancel("a") {
		t.Error("Cancel() = false for a pending key")
	}
	if d.Cancel("a") {
		t.Error("second Cancel() = true")
	}

	d.Schedule("b", func() { fired++ })
	d.Stop()
	if d.Pending("b") {
		t.Error("Stop() left b pending")
	}
	if d.Schedule("c", func() { fired++ }) {
		t.Error("Schedule() after Stop() = true")
	}
	clk.Advance(time.Second)

	if fired != 0 {
		t.Errorf("fired = %d after cancel/stop, want 0", fired)
	}
	if clk.Pending() != 0 {
		t.Errorf("Pending timers = %d, want 0", clk.Pending())
	}
}

func TestDebounceFlush(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	d := NewDebouncer(clk, 500*time.Millisecond)

	fired := 0
	d.Schedule("a", func() { fired++ })
	if !d.Flush("a") {
		t.Fatal("Flush() = false")
	}
	clk.Advance(time.Second)
	if fired != 1 {
		t.Errorf("fired = %d, want exactly 1", fired)
	}
	if d.Flush("a") {
		t.Error("Flush() of an empty key = true")
	}
}

func TestDebounceStaleTimerAfterRecreate(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	d := NewDebouncer(clk, 500*time.Millisecond)

	fired := 0
	d.Schedule("bio", func() { t.Error("cancelled callback ran") })
	d.Cancel("bio")
	d.Schedule("bio", func() { fired++ })

	// The first timer's callback was already running when Cancel stopped it.
	d.fire("bio", 1)
	if fired != 0 {
		t.Fatal("stale timer fired the recreated entry early")
	}
	if !d.Pending("bio") {
		t.Fatal("stale timer consumed the recreated entry")
	}

	clk.Advance(499 * time.Millisecond)
	if fired != 0 {
		t.Fatalf("fired = %d before the window elapsed", fired)
	}
	clk.Advance(time.Millisecond)
	if fired != 1 {
		t.Errorf("fired = %d after the window, want 1", fired)
	}
}

func TestDebounceStopWaitsForRunningCallback(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	d := NewDebouncer(clk, 500*time.Millisecond)

	started := make(chan struct{})
	release := make(chan struct{})
	finished := false
	d.Schedule("bio", func() {
		close(started)
		<-release
		finished = true
	})
	go clk.Advance(time.Second)
	<-started

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop() returned while a callback was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop() did not return after the callback finished")
	}
	if !finished {
		t.Error("Stop() returned before the callback finished")
	}
}
