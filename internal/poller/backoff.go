package poller

import (
	"math/rand/v2"
	"time"
)

// DefaultMaxBackoff is the hard cap on the retry delay.
const DefaultMaxBackoff = 5 * time.Minute

// Backoff computes the delay before the next poll from the number of
// consecutive failures. It starts at the base poll interval, doubles on every
// failure up to a cap, and resets fully on the first success.
//
// Backoff is not safe for concurrent use; each poller owns its own.
type Backoff struct {
	base    time.Duration
	max     time.Duration
	current time.Duration

	// jitter is the fraction (0..1) by which a returned error delay may be
	// shortened at random. Zero keeps delays deterministic.
	jitter float64
}

// NewBackoff returns a Backoff starting at base and capped at max.
// A cap below base is raised to base.
func NewBackoff(base, max time.Duration) *Backoff {
	if max < base {
		max = base
	}
	return &Backoff{base: base, max: max, current: base}
}

// WithJitter enables randomized shortening of error delays by up to
// fraction of the delay. Values outside (0, 1] disable jitter.
func (b *Backoff) WithJitter(fraction float64) *Backoff {
	if fraction <= 0 || fraction > 1 {
		fraction = 0
	}
	b.jitter = fraction
	return b
}

// OnError doubles the delay (capped) and returns it.
func (b *Backoff) OnError() time.Duration {
	b.current *= 2
	if b.current > b.max || b.current <= 0 {
		b.current = b.max
	}
	if b.jitter == 0 {
		return b.current
	}
	return b.current - time.Duration(rand.Float64()*b.jitter*float64(b.current))
}

// OnSuccess resets the delay to the base interval and returns it.
func (b *Backoff) OnSuccess() time.Duration {
	b.current = b.base
	return b.current
}

// Current returns the stored delay without changing it.
func (b *Backoff) Current() time.Duration {
	return b.current
}
