package app

import (
	"math/rand"
	"time"
)

// Default retry backoff values, mirroring a job scheduler's exponential policy.
const (
	DefaultBackoffInitial = 30 * time.Second
	DefaultBackoffMax     = 15 * time.Minute
)

// backoff implements exponential backoff with jitter. It hands out delays
// instead of sleeping so the scheduler can wait on a timer and a context.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
	jitter  func() float64
}

// newBackoff creates a new backoff with the given initial and max durations.
func newBackoff(initial, max time.Duration) *backoff {
	if max < initial {
		max = initial
	}
	return &backoff{
		initial: initial,
		max:     max,
		current: initial,
		jitter:  rand.Float64,
	}
}

// Next returns the delay to wait now and doubles the delay for next time.
func (b *backoff) Next() time.Duration {
	// ±20%, never above max
	j := float64(b.current) * 0.2 * (b.jitter()*2 - 1)
	d := time.Duration(float64(b.current) + j)
	if d > b.max {
		d = b.max
	}

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Reset resets the backoff to the initial duration.
func (b *backoff) Reset() {
	b.current = b.initial
}

// Current returns the current backoff duration.
func (b *backoff) Current() time.Duration {
	return b.current
}
