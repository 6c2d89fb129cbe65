package statuswatch

import (
	"time"

	"github.com/jpalmerr/statuswatch/internal/event"
)

// EventKind identifies what changed upstream.
type EventKind string

// Event kinds, mirrored from the wire format.
const (
	IncidentCreated        EventKind = EventKind(event.IncidentCreated)
	IncidentUpdated        EventKind = EventKind(event.IncidentUpdated)
	IncidentResolved       EventKind = EventKind(event.IncidentResolved)
	ComponentStatusChanged EventKind = EventKind(event.ComponentStatusChanged)
)

// String implements fmt.Stringer.
func (k EventKind) String() string {
	return string(k)
}

// Event is a single change observed on a provider's status page.
//
// Events passed to callbacks registered with [WithEventCallback] are copies;
// callbacks may keep them.
type Event struct {
	ID         string
	Kind       EventKind
	Provider   string
	EntityID   string
	EntityName string

	// OldStatus is empty when there was no previous status.
	OldStatus string
	NewStatus string

	Timestamp time.Time

	// Text is the latest update body, or the status when there is none.
	Text string
}

func publicEvent(ev event.Event) Event {
	return Event{
		ID:         ev.ID,
		Kind:       EventKind(ev.Kind),
		Provider:   ev.Provider,
		EntityID:   ev.EntityID,
		EntityName: ev.EntityName,
		OldStatus:  ev.OldStatus,
		NewStatus:  ev.NewStatus,
		Timestamp:  ev.Timestamp,
		Text:       ev.Text,
	}
}
