// Package bus provides the fan-in channel between pollers and the dispatcher.
//
// The bus is bounded: when it is full, Publish blocks until the consumer
// catches up or the producer's context ends. An accepted event is never
// dropped. Events from one producer come out in the order that producer put
// them in; there is no ordering between producers.
package bus

import (
	"context"

	"github.com/jpalmerr/statuswatch/internal/event"
)

// DefaultCapacity is the number of events buffered before producers block.
const DefaultCapacity = 256

// Bus is a many-producer, single-consumer FIFO of events.
type Bus struct {
	ch chan event.Event
}

// New creates a [Bus] buffering up to capacity events.
// A capacity below 1 uses [DefaultCapacity].
func New(capacity int) *Bus {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Bus{ch: make(chan event.Event, capacity)}
}

// Publish enqueues ev, blocking while the bus is full. It returns ctx's
// error if ctx ends first, in which case ev was not enqueued.
func (b *Bus) Publish(ctx context.Context, ev event.Event) error {
	select {
	case b.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the consumer side of the bus. It is never closed; the
// consumer stops on its own context.
func (b *Bus) Events() <-chan event.Event {
	return b.ch
}

// Len returns the number of buffered events.
func (b *Bus) Len() int {
	return len(b.ch)
}
