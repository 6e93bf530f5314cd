package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceFiresInOrder(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var order []int
	c.AfterFunc(200*time.Millisecond, func() { order = append(order, 2) })
	c.AfterFunc(100*time.Millisecond, func() { order = append(order, 1) })
	c.AfterFunc(time.Second, func() { order = append(order, 3) })

	c.Advance(500 * time.Millisecond)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("Expected [1 2], got %v", order)
	}
	if got := c.Now().Sub(start); got != 500*time.Millisecond {
		t.Errorf("Expected clock at +500ms, got +%v", got)
	}
	if c.Pending() != 1 {
		t.Errorf("Expected 1 pending timer, got %d", c.Pending())
	}
}

func TestFakeTimerStop(t *testing.T) {
	c := NewFake(time.Now())
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("Stop should report true for a pending timer")
	}
	if timer.Stop() {
		t.Error("Second Stop should report false")
	}
	c.Advance(2 * time.Second)
	if fired {
		t.Error("Stopped timer must not fire")
	}
}

func TestFakeTimerScheduledFromCallback(t *testing.T) {
	c := NewFake(time.Now())
	count := 0
	var schedule func()
	schedule = func() {
		count++
		if count < 3 {
			c.AfterFunc(100*time.Millisecond, schedule)
		}
	}
	c.AfterFunc(100*time.Millisecond, schedule)

	c.Advance(time.Second)
	if count != 3 {
		t.Errorf("Expected chained timers to fire 3 times, got %d", count)
	}
}
