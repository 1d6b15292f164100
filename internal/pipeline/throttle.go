package pipeline

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Throttle paces model calls. Wait blocks until the next call may start.
type Throttle interface {
	Wait(ctx context.Context) error
}

// FixedDelay pauses for a fixed interval after every call.
type FixedDelay struct {
	Delay time.Duration
	Clock clockwork.Clock
}

// NewFixedDelay creates a FixedDelay throttle. A nil clock uses real time.
func NewFixedDelay(delay time.Duration, clock clockwork.Clock) *FixedDelay {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &FixedDelay{Delay: delay, Clock: clock}
}

// Wait sleeps for the configured delay or until ctx is done.
func (f *FixedDelay) Wait(ctx context.Context) error {
	if f.Delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.Clock.After(f.Delay):
		return nil
	}
}

// NewTokenBucket returns a limiter allowing one call per interval with no burst.
// Unlike FixedDelay it counts the model's own latency toward the interval.
// The initial token is spent so the first Wait also blocks.
func NewTokenBucket(every time.Duration) *rate.Limiter {
	l := rate.NewLimiter(rate.Every(every), 1)
	l.Allow()
	return l
}
