// Package event defines the change events produced by status-page pollers.
//
// An [Event] is created once by a poller and never mutated afterwards. It is
// passed by value through the bus, the dispatcher and every sink, so it can
// be shared freely between goroutines.
package event

import (
	"encoding/json"
	"time"
)

// Kind identifies what changed upstream.
type Kind string

const (
	// IncidentCreated is emitted for an incident seen for the first time
	// (or still open when the watcher started).
	IncidentCreated Kind = "incident_created"

	// IncidentUpdated is emitted when an open incident changes status or
	// receives a new update.
	IncidentUpdated Kind = "incident_updated"

	// IncidentResolved is emitted when an incident moves to a resolved-class status.
	IncidentResolved Kind = "incident_resolved"

	// ComponentStatusChanged is emitted when a component's status transitions.
	ComponentStatusChanged Kind = "component_status_changed"
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}

// Event describes a single upstream change.
type Event struct {
	// ID uniquely identifies the event; used as the SSE event id.
	ID string

	Kind       Kind
	Provider   string
	EntityID   string
	EntityName string

	// OldStatus is empty when there was no previous status.
	OldStatus string
	NewStatus string

	// Timestamp is the upstream time of the change, or the poll time when
	// the upstream did not supply a usable one.
	Timestamp time.Time

	// Text is the human-readable detail, usually the latest update body.
	Text string
}

// Wire is the JSON mirror of an [Event] sent to streaming subscribers.
type Wire struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Provider   string    `json:"provider"`
	EntityID   string    `json:"entity_id"`
	EntityName string    `json:"entity_name"`
	OldStatus  string    `json:"old_status,omitempty"`
	NewStatus  string    `json:"new_status"`
	Timestamp  time.Time `json:"timestamp"`
	Text       string    `json:"text"`
}

// ToWire converts the event to its wire representation.
func (e Event) ToWire() Wire {
	return Wire{
		ID:         e.ID,
		Kind:       e.Kind,
		Provider:   e.Provider,
		EntityID:   e.EntityID,
		EntityName: e.EntityName,
		OldStatus:  e.OldStatus,
		NewStatus:  e.NewStatus,
		Timestamp:  e.Timestamp,
		Text:       e.Text,
	}
}

// MarshalJSON encodes the event as its [Wire] form.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToWire())
}
