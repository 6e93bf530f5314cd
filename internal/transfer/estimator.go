package transfer

import (
	"math"
	"time"
)

// UnknownRemaining is reported as the remaining time while no bytes have
// moved yet, i.e. when the speed is zero.
const UnknownRemaining = time.Duration(math.MaxInt64)

// Sample is one progress observation of a task.
type Sample struct {
	BytesSent  int64
	ByteSize   int64
	Percentage float64       // 0 to 100
	Speed      float64       // bytes/sec, average since start
	Remaining  time.Duration // UnknownRemaining when speed is zero
}

// Estimator derives speed and remaining time for a single task from its
// progress reports. It is not safe for concurrent use; the owning task
// serializes access.
type Estimator struct {
	size  int64
	start time.Time
	sent  int64
}

// NewEstimator returns an estimator for a transfer of size bytes that
// started at start.
func NewEstimator(size int64, start time.Time) *Estimator {
	return &Estimator{size: size, start: start}
}

// Observe records that sent bytes have been handed to the transport by now.
// Reports that would move the counter backwards are ignored, so successive
// samples never decrease.
func (e *Estimator) Observe(sent int64, now time.Time) Sample {
	if sent > e.sent {
		e.sent = sent
	}
	if e.size > 0 && e.sent > e.size {
		e.sent = e.size
	}
	return e.sample(now)
}

// Current returns a sample for the last observed counter.
func (e *Estimator) Current(now time.Time) Sample {
	return e.sample(now)
}

func (e *Estimator) sample(now time.Time) Sample {
	s := Sample{
		BytesSent: e.sent,
		ByteSize:  e.size,
		Remaining: UnknownRemaining,
	}

	if e.size > 0 {
		s.Percentage = clampPercent(float64(e.sent) / float64(e.size) * 100)
	}

	elapsed := now.Sub(e.start).Seconds()
	if elapsed > 0 && e.sent > 0 {
		s.Speed = float64(e.sent) / elapsed
	}

	if s.Speed > 0 {
		left := e.size - e.sent
		if left < 0 {
			left = 0
		}
		s.Remaining = time.Duration(float64(left) / s.Speed * float64(time.Second))
	}
	return s
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0 || math.IsNaN(p):
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
