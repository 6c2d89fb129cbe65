package poller

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Facet selects which feed of a provider a poller watches.
type Facet string

const (
	FacetIncidents  Facet = "incidents"
	FacetComponents Facet = "components"
)

// Facets lists every facet polled per provider, in launch order.
var Facets = []Facet{FacetIncidents, FacetComponents}

// Path returns the feed path relative to the provider's base API URL.
func (f Facet) Path() string {
	return string(f) + ".json"
}

// gatedByPageTimestamp reports whether an unchanged page.updated_at means
// the facet's entities are unchanged. The page timestamp follows incident
// activity; components can change under a constant one.
func (f Facet) gatedByPageTimestamp() bool {
	return f == FacetIncidents
}

var (
	// ErrUnexpectedStatus is returned for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrMalformedResponse is returned when a body is not valid feed JSON or
	// lacks required fields.
	ErrMalformedResponse = errors.New("malformed response")
)

// FetchError is a transient poll failure. It never escapes the poller other
// than through logs.
type FetchError struct {
	Provider string
	Facet    Facet
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Facet, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// envelope is the first decoding stage: only the page timestamp is read,
// entity lists stay raw until the timestamp shows a change.
type envelope struct {
	Page struct {
		UpdatedAt string `json:"updated_at"`
	} `json:"page"`
	Incidents  json.RawMessage `json:"incidents"`
	Components json.RawMessage `json:"components"`
}

func decodeEnvelope(body []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return env, nil
}

// entities returns the raw entity list for the facet.
func (env envelope) entities(f Facet) (json.RawMessage, error) {
	var raw json.RawMessage
	switch f {
	case FacetIncidents:
		raw = env.Incidents
	case FacetComponents:
		raw = env.Components
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: missing %q list", ErrMalformedResponse, string(f))
	}
	return raw, nil
}

type incident struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Status     string           `json:"status"`
	UpdatedAt  string           `json:"updated_at"`
	ResolvedAt *string          `json:"resolved_at"`
	Updates    []incidentUpdate `json:"incident_updates"`
}

type incidentUpdate struct {
	Status    string `json:"status"`
	Body      string `json:"body"`
	DisplayAt string `json:"display_at"`
	UpdatedAt string `json:"updated_at"`
}

type component struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	UpdatedAt string `json:"updated_at"`
}

func decodeIncidents(raw json.RawMessage) ([]incident, error) {
	var incidents []incident
	if err := json.Unmarshal(raw, &incidents); err != nil {
		return nil, fmt.Errorf("%w: incidents: %v", ErrMalformedResponse, err)
	}
	for i, inc := range incidents {
		if inc.ID == "" || inc.Status == "" {
			return nil, fmt.Errorf("%w: incidents[%d]: id and status are required", ErrMalformedResponse, i)
		}
	}
	return incidents, nil
}

func decodeComponents(raw json.RawMessage) ([]component, error) {
	var components []component
	if err := json.Unmarshal(raw, &components); err != nil {
		return nil, fmt.Errorf("%w: components: %v", ErrMalformedResponse, err)
	}
	for i, c := range components {
		if c.ID == "" || c.Status == "" {
			return nil, fmt.Errorf("%w: components[%d]: id and status are required", ErrMalformedResponse, i)
		}
	}
	return components, nil
}

// resolvedStatuses are incident statuses that end an incident's lifecycle.
var resolvedStatuses = map[string]bool{
	"resolved":   true,
	"postmortem": true,
	"completed":  true,
}

// resolved reports whether the incident is in a resolved-class state.
func (inc incident) resolved() bool {
	return resolvedStatuses[strings.ToLower(inc.Status)] || (inc.ResolvedAt != nil && *inc.ResolvedAt != "")
}

// detail returns the rendered text and raw timestamp of the newest update.
// Statuspage lists updates newest first.
func (inc incident) detail() (text, ts string) {
	if len(inc.Updates) == 0 {
		return inc.Status, inc.UpdatedAt
	}
	latest := inc.Updates[0]
	text = strings.TrimSpace(latest.Body)
	if text == "" {
		text = latest.Status
	}
	if text == "" {
		text = inc.Status
	}
	ts = latest.DisplayAt
	if ts == "" {
		ts = latest.UpdatedAt
	}
	if ts == "" {
		ts = inc.UpdatedAt
	}
	return text, ts
}

// humanStatus renders a component status for display.
func humanStatus(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

// parseTimestamp parses an upstream timestamp, falling back to now.
func parseTimestamp(raw string, now time.Time) time.Time {
	if raw == "" {
		return now
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return now
	}
	return t
}
