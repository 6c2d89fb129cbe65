// Package sink holds the event sinks that do not need their own package.
package sink

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jpalmerr/statuswatch/internal/event"
)

const timeLayout = "2006-01-02 15:04:05"

// Console writes one human-readable line per event.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a [Console] writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Name implements dispatch.Sink.
func (c *Console) Name() string { return "console" }

// Handle implements dispatch.Sink.
func (c *Console) Handle(_ context.Context, ev event.Event) error {
	line := Format(ev)

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.w, line+"\n")
	return err
}

// Format renders ev as a single line:
//
//	[2024-03-01 12:00:00] OpenAI API incident_updated: Elevated errors (investigating -> identified) - We are looking into it
func Format(ev event.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s: %s", ev.Timestamp.Format(timeLayout), ev.Provider, ev.Kind, ev.EntityName)

	switch {
	case ev.OldStatus != "" && ev.OldStatus != ev.NewStatus:
		fmt.Fprintf(&b, " (%s -> %s)", ev.OldStatus, ev.NewStatus)
	case ev.NewStatus != "":
		fmt.Fprintf(&b, " (%s)", ev.NewStatus)
	}

	if text := singleLine(ev.Text); text != "" {
		b.WriteString(" - ")
		b.WriteString(text)
	}
	return b.String()
}

// singleLine collapses all whitespace runs, newlines included, to one space.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
