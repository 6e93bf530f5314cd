// Package ratelimit paces API calls with a token bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/chinmay4o/superlinks/internal/clock"
	"github.com/chinmay4o/superlinks/internal/logging"
)

// warnAfter is the shortest wait that is reported to the user.
const warnAfter = 2 * time.Second

// RateLimiter implements a token bucket rate limiter.
// It allows bursts up to maxTokens, then refills at refillRate tokens/second.
type RateLimiter struct {
	tokens     float64   // Current number of tokens available
	maxTokens  float64   // Maximum bucket capacity
	refillRate float64   // Tokens added per second
	lastRefill time.Time // Last time tokens were refilled
	lastWarn   time.Time
	clock      clock.Clock
	logger     *logging.Logger
	mu         sync.Mutex
}

// NewRateLimiter creates a rate limiter that starts with a full bucket.
//
// Parameters:
//   - tokensPerSecond: Rate at which tokens are added (e.g., 10.0 for 10 calls/second)
//   - burstSize: Maximum tokens that can accumulate (allows brief bursts)
//
// A nil clock uses the real time; a nil logger discards the waiting notices.
func NewRateLimiter(tokensPerSecond, burstSize float64, clk clock.Clock, logger *logging.Logger) *RateLimiter {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if burstSize < 1 {
		burstSize = 1
	}
	return &RateLimiter{
		tokens:     burstSize,
		maxTokens:  burstSize,
		refillRate: tokensPerSecond,
		lastRefill: clk.Now(),
		clock:      clk,
		logger:     logger,
	}
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	start := rl.clock.Now()
	for {
		wait, ok := rl.reserve()
		if ok {
			if waited := rl.clock.Now().Sub(start); waited > warnAfter {
				rl.logger.Debug().Dur("waited", waited).Msg("Rate limit wait completed")
			}
			return nil
		}
		rl.maybeWarn(wait)

		ready := make(chan struct{})
		timer := rl.clock.AfterFunc(wait, func() { close(ready) })
		select {
		case <-ready:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Allow takes a token if one is available without waiting.
func (rl *RateLimiter) Allow() bool {
	_, ok := rl.reserve()
	return ok
}

// reserve takes a token, or reports how long until one is available.
func (rl *RateLimiter) reserve() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()
	if rl.tokens >= 1.0 {
		rl.tokens -= 1.0
		return 0, true
	}
	if rl.refillRate <= 0 {
		// Never refills; poll rarely rather than spin.
		return time.Minute, false
	}
	need := (1.0 - rl.tokens) / rl.refillRate
	wait := time.Duration(need * float64(time.Second))
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait, false
}

func (rl *RateLimiter) refillLocked() {
	now := rl.clock.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	if elapsed > 0 {
		rl.tokens += elapsed * rl.refillRate
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
	}
	rl.lastRefill = now
}

// maybeWarn reports long waits at most every 10 seconds.
func (rl *RateLimiter) maybeWarn(wait time.Duration) {
	if wait <= warnAfter {
		return
	}
	rl.mu.Lock()
	now := rl.clock.Now()
	warn := now.Sub(rl.lastWarn) > 10*time.Second
	if warn {
		rl.lastWarn = now
	}
	rl.mu.Unlock()
	if warn {
		rl.logger.Warn().Msgf("⏳ Rate limited: waiting ~%.1fs for API capacity...", wait.Seconds())
	}
}

// Tokens returns the current number of tokens.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked()
	return rl.tokens
}
