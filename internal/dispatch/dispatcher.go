// Package dispatch drains the event bus and forwards every event to the
// registered sinks.
//
// Exactly one [Dispatcher] consumes the bus. Each event is handed to every
// sink synchronously, in registration order. A sink that returns an error or
// panics is logged and skipped; the remaining sinks and the next event are
// unaffected.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/jpalmerr/statuswatch/internal/event"
	"github.com/jpalmerr/statuswatch/internal/metrics"
)

// Sink consumes events and produces externally visible output.
//
// Handle is called from the dispatcher goroutine only. Implementations
// should contain their own failures where possible; a returned error is
// logged and does not stop delivery elsewhere.
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev event.Event) error
}

// Dispatcher is the single consumer of the event bus.
type Dispatcher struct {
	events    <-chan event.Event
	sinks     []Sink
	logger    *slog.Logger
	metrics   *metrics.Metrics
	delivered atomic.Int64
}

// New creates a [Dispatcher] reading from events and delivering to sinks in
// the given order.
func New(events <-chan event.Event, sinks []Sink, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		events:  events,
		sinks:   sinks,
		logger:  logger,
		metrics: m,
	}
}

// Run consumes events until ctx is cancelled. Events already buffered at
// that point are still delivered, best effort, before Run returns.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case ev := <-d.events:
			d.Dispatch(ctx, ev)
		case <-ctx.Done():
			d.drain(context.WithoutCancel(ctx))
			return
		}
	}
}

// drain delivers whatever is buffered without waiting for more.
func (d *Dispatcher) drain(ctx context.Context) {
	n := 0
	for {
		select {
		case ev := <-d.events:
			d.Dispatch(ctx, ev)
			n++
		default:
			if n > 0 {
				d.logger.Info("drained pending events", "count", n)
			}
			return
		}
	}
}

// Dispatch delivers ev to every sink in order.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.Event) {
	for _, s := range d.sinks {
		if err := d.deliverSafe(ctx, s, ev); err != nil {
			d.metrics.SinkFailed(s.Name())
			d.logger.Warn("sink delivery failed",
				"sink", s.Name(),
				"event_id", ev.ID,
				"provider", ev.Provider,
				"error", err.Error(),
			)
		}
	}
	d.delivered.Add(1)
	d.metrics.EventDispatched(ev.Provider, ev.Kind.String())
}

// Delivered returns the number of events dispatched so far.
func (d *Dispatcher) Delivered() int64 {
	return d.delivered.Load()
}

// deliverSafe calls the sink with panic recovery. A panic is logged with its
// stack trace under a correlation ID and reported as an error.
func (d *Dispatcher) deliverSafe(ctx context.Context, s Sink, ev event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			d.logger.Error("sink panicked",
				"correlation_id", correlationID,
				"sink", s.Name(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("sink panic (correlation_id: %s)", correlationID)
		}
	}()
	return s.Handle(ctx, ev)
}
