package poller

import (
	"time"

	"github.com/jpalmerr/statuswatch/internal/event"
)

// entityState is what a poller remembers about one incident or component.
type entityState struct {
	status    string
	updatedAt string
	updates   int
}

// snapshot maps entity id to its last known state.
type snapshot map[string]entityState

// diffIncidents compares a parsed incident list against the previous
// snapshot and returns the resulting events plus the replacement snapshot.
//
// On the first successful cycle (warm == false) incidents that are already
// resolved are absorbed silently and every open incident yields one
// IncidentCreated event.
func diffIncidents(provider string, incidents []incident, prev snapshot, warm bool, now time.Time) ([]event.Event, snapshot) {
	next := make(snapshot, len(incidents))
	var events []event.Event

	for _, inc := range incidents {
		cur := entityState{status: inc.Status, updatedAt: inc.UpdatedAt, updates: len(inc.Updates)}
		next[inc.ID] = cur

		old, seen := prev[inc.ID]

		var kind event.Kind
		switch {
		case !seen && !warm:
			if inc.resolved() {
				continue
			}
			kind = event.IncidentCreated
		case !seen:
			kind = event.IncidentCreated
			if inc.resolved() {
				// opened and closed between two polls
				kind = event.IncidentResolved
			}
		case old.status != cur.status:
			kind = event.IncidentUpdated
			if inc.resolved() {
				kind = event.IncidentResolved
			}
		case cur.updates > old.updates:
			kind = event.IncidentUpdated
		default:
			continue
		}

		text, rawTS := inc.detail()
		ev := event.Event{
			Kind:       kind,
			Provider:   provider,
			EntityID:   inc.ID,
			EntityName: inc.Name,
			NewStatus:  inc.Status,
			Timestamp:  parseTimestamp(rawTS, now),
			Text:       text,
		}
		if seen {
			ev.OldStatus = old.status
		}
		events = append(events, ev)
	}

	return events, next
}

// diffComponents compares a parsed component list against the previous
// snapshot. Only status transitions of known components produce events; the
// first cycle records the baseline and new components are recorded silently.
func diffComponents(provider string, components []component, prev snapshot, warm bool, now time.Time) ([]event.Event, snapshot) {
	next := make(snapshot, len(components))
	var events []event.Event

	for _, c := range components {
		next[c.ID] = entityState{status: c.Status, updatedAt: c.UpdatedAt}

		if !warm {
			continue
		}
		old, seen := prev[c.ID]
		if !seen || old.status == c.Status {
			continue
		}

		events = append(events, event.Event{
			Kind:       event.ComponentStatusChanged,
			Provider:   provider,
			EntityID:   c.ID,
			EntityName: c.Name,
			OldStatus:  old.status,
			NewStatus:  c.Status,
			Timestamp:  parseTimestamp(c.UpdatedAt, now),
			Text:       humanStatus(c.Status),
		})
	}

	return events, next
}
