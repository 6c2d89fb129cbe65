package sink

import (
	"context"

	"github.com/jpalmerr/statuswatch/internal/event"
)

// Func adapts a callback into a sink.
type Func struct {
	name string
	fn   func(context.Context, event.Event) error
}

// NewFunc creates a [Func] sink called name.
func NewFunc(name string, fn func(context.Context, event.Event) error) *Func {
	return &Func{name: name, fn: fn}
}

// Name implements dispatch.Sink.
func (f *Func) Name() string { return f.name }

// Handle implements dispatch.Sink.
func (f *Func) Handle(ctx context.Context, ev event.Event) error {
	if f.fn == nil {
		return nil
	}
	return f.fn(ctx, ev)
}
