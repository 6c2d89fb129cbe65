package poller

import (
	"math/rand/v2"
	"time"
)

// Stagger assigns each poller a one-time delay before its first cycle so
// that first requests do not all fire at once.
//
// The window is split into one slot per poller. Without a random source each
// poller starts at the beginning of its slot; with one, at a random point
// inside it.
type Stagger struct {
	Window time.Duration
	Rand   *rand.Rand
}

// Offsets returns n initial delays, all within [0, Window).
func (s Stagger) Offsets(n int) []time.Duration {
	if n <= 0 {
		return nil
	}

	offsets := make([]time.Duration, n)
	if s.Window <= 0 {
		return offsets
	}

	slot := s.Window / time.Duration(n)
	for i := range offsets {
		offsets[i] = time.Duration(i) * slot
		if s.Rand != nil && slot > 0 {
			offsets[i] += time.Duration(s.Rand.Int64N(int64(slot)))
		}
	}
	return offsets
}
