package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chinmay4o/superlinks/internal/clock"
)

func newTestLimiter(rate, burst float64) (*RateLimiter, *clock.Fake) {
	clk := clock.NewFake(time.Unix(1700000000, 0))
	return NewRateLimiter(rate, burst, clk, nil), clk
}

// waitForTimer blocks until Wait has scheduled its wake-up.
func waitForTimer(t *testing.T, clk *clock.Fake) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for clk.Pending() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Wait() never scheduled a timer")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewRateLimiterStartsFull(t *testing.T) {
	rl, _ := newTestLimiter(1, 10)
	if got := rl.Tokens(); got != 10 {
		t.Errorf("Tokens() = %.2f, want 10", got)
	}
}

func TestAllowConsumesBurst(t *testing.T) {
	rl, _ := newTestLimiter(1, 5)
	for i := 0; i < 5; i++ {
		if !rl.Allow() {
			t.Fatalf("Allow() failed on attempt %d", i+1)
		}
	}
	if rl.Allow() {
		t.Error("Allow() should fail when the bucket is empty")
	}
}

func TestRefillAndCap(t *testing.T) {
	rl, clk := newTestLimiter(10, 10)
	for i := 0; i < 10; i++ {
		rl.Allow()
	}

	clk.Advance(200 * time.Millisecond)
	if got := rl.Tokens(); got < 1.99 || got > 2.01 {
		t.Errorf("Tokens() after 200ms at 10/s = %.2f, want 2", got)
	}

	clk.Advance(time.Hour)
	if got := rl.Tokens(); got != 10 {
		t.Errorf("Tokens() = %.2f, want the cap of 10", got)
	}
}

func TestWaitBlocksUntilTokenAvailable(t *testing.T) {
	rl, clk := newTestLimiter(2, 1)
	rl.Allow()

	done := make(chan error, 1)
	go func() { done <- rl.Wait(context.Background()) }()

	waitForTimer(t, clk)
	select {
	case err := <-done:
		t.Fatalf("Wait() returned %v before a token was available", err)
	default:
	}

	clk.Advance(500 * time.Millisecond)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return after the refill")
	}
}

func TestWaitHonorsCancellation(t *testing.T) {
	rl, clk := newTestLimiter(0.01, 1)
	rl.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rl.Wait(ctx) }()

	waitForTimer(t, clk)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Wait() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() ignored cancellation")
	}
	if clk.Pending() != 0 {
		t.Errorf("cancelled Wait() left %d timers", clk.Pending())
	}
}

func TestWaitImmediateWithTokens(t *testing.T) {
	rl, clk := newTestLimiter(1, 3)
	for i := 0; i < 3; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if clk.Pending() != 0 {
		t.Error("Wait() with tokens available should not schedule a timer")
	}
}
