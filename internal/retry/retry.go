// Package retry runs an operation with bounded exponential backoff.
package retry

import (
	"context"
	"time"
)

// Policy controls how many times an operation runs and how long to wait
// between attempts. Delays are deterministic; there is no jitter.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration // cap on every wait; 0 means no waiting
	Factor       float64

	// OnRetry, if set, is called before each wait with the attempt that
	// just failed (1-based), the upcoming delay and the failure.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy returns 3 attempts starting at 1s, doubling, capped at 10s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Factor:       2.0,
	}
}

// Delays returns the waits Do would perform if every attempt failed.
func (p Policy) Delays() []time.Duration {
	n := p.attempts() - 1
	out := make([]time.Duration, 0, n)
	d := p.first()
	for i := 0; i < n; i++ {
		out = append(out, d)
		d = p.next(d)
	}
	return out
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) first() time.Duration {
	return p.clamp(float64(p.InitialDelay))
}

func (p Policy) next(d time.Duration) time.Duration {
	f := p.Factor
	if f < 1 {
		f = 1
	}
	return p.clamp(float64(d) * f)
}

// clamp bounds a delay to [0, MaxDelay]. The comparison happens before the
// conversion so a long doubling run cannot overflow. MaxDelay <= 0 means
// attempts follow each other without waiting.
func (p Policy) clamp(d float64) time.Duration {
	limit := p.MaxDelay
	if limit < 0 {
		limit = 0
	}
	switch {
	case d <= 0:
		return 0
	case d >= float64(limit):
		return limit
	default:
		return time.Duration(d)
	}
}

// Do calls op until it succeeds or the policy's attempts are used up, and
// returns the last result. A cancelled ctx aborts the wait between attempts
// and Do returns ctx.Err().
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.attempts()
	delay := p.first()

	for attempt := 1; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= attempts {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		delay = p.next(delay)
	}
}
