// Package mockstatus serves a fake Statuspage API for demos.
//
// A [Page] walks a scripted incident through investigating, identified,
// monitoring and resolved while one component degrades and recovers, then
// starts over with a fresh incident. Each step bumps page.updated_at so
// watchers see the change.
package mockstatus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// maxIncidents bounds the incident history like a real page's recent list.
const maxIncidents = 5

type step struct {
	incidentStatus string // empty: no incident yet
	update         string
	apiStatus      string
}

var script = []step{
	{apiStatus: "operational"},
	{incidentStatus: "investigating", update: "We are investigating elevated error rates on the API.", apiStatus: "degraded_performance"},
	{incidentStatus: "identified", update: "The issue has been identified and a fix is being rolled out.", apiStatus: "partial_outage"},
	{incidentStatus: "monitoring", update: "A fix has been deployed. We are monitoring the results.", apiStatus: "degraded_performance"},
	{incidentStatus: "resolved", update: "This incident has been resolved.", apiStatus: "operational"},
}

type update struct {
	Body      string    `json:"body"`
	Status    string    `json:"status"`
	DisplayAt time.Time `json:"display_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type incident struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Status          string     `json:"status"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	IncidentUpdates []update   `json:"incident_updates"`
}

type component struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

type pageInfo struct {
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Page is a fake status page. It is safe for concurrent use.
type Page struct {
	name   string
	clock  clockwork.Clock
	minGap time.Duration
	maxGap time.Duration
	logger *slog.Logger

	createdAt time.Time

	mu           sync.Mutex
	step         int
	round        int
	updatedAt    time.Time
	nextChangeAt time.Time
	incidents    []incident
	apiChangedAt time.Time
}

// NewPage creates a [Page] that advances one step every minGap to maxGap.
func NewPage(name string, clock clockwork.Clock, minGap, maxGap time.Duration, logger *slog.Logger) *Page {
	if logger == nil {
		logger = slog.Default()
	}
	if maxGap < minGap {
		maxGap = minGap
	}
	now := clock.Now()
	p := &Page{
		name:         name,
		clock:        clock,
		minGap:       minGap,
		maxGap:       maxGap,
		logger:       logger,
		createdAt:    now,
		updatedAt:    now,
		apiChangedAt: now,
	}
	p.nextChangeAt = now.Add(p.gap())
	return p
}

func (p *Page) gap() time.Duration {
	if p.maxGap == p.minGap {
		return p.minGap
	}
	return p.minGap + rand.N(p.maxGap-p.minGap)
}

// Advance moves to the next scripted step immediately.
func (p *Page) Advance() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
}

func (p *Page) advance() {
	now := p.clock.Now()
	prev := script[p.step]
	p.step = (p.step + 1) % len(script)
	if p.step == 0 {
		p.round++
	}
	cur := script[p.step]

	if cur.incidentStatus != "" {
		p.recordIncident(cur, now)
	}
	if cur.apiStatus != prev.apiStatus {
		p.apiChangedAt = now
	}
	p.updatedAt = now
	p.nextChangeAt = now.Add(p.gap())

	p.logger.Info("status change", "page", p.name, "step", p.step, "incident", cur.incidentStatus, "api", cur.apiStatus)
}

// recordIncident updates the current round's incident, creating it on the
// first step that has one.
func (p *Page) recordIncident(s step, now time.Time) {
	id := fmt.Sprintf("inc-%d", p.round+1)
	if len(p.incidents) == 0 || p.incidents[0].ID != id {
		p.incidents = append([]incident{{ID: id, Name: "Elevated API error rates"}}, p.incidents...)
		if len(p.incidents) > maxIncidents {
			p.incidents = p.incidents[:maxIncidents]
		}
	}
	inc := &p.incidents[0]
	inc.Status = s.incidentStatus
	inc.UpdatedAt = now
	// newest update first
	inc.IncidentUpdates = append([]update{{Body: s.update, Status: s.incidentStatus, DisplayAt: now, UpdatedAt: now}}, inc.IncidentUpdates...)
	if s.incidentStatus == "resolved" {
		resolvedAt := now
		inc.ResolvedAt = &resolvedAt
	}
}

// tick advances if the next change is due.
func (p *Page) tick() {
	if !p.clock.Now().Before(p.nextChangeAt) {
		p.advance()
	}
}

// ServeHTTP serves incidents.json and components.json under /api/v2/.
func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.tick()
	info := pageInfo{Name: p.name, UpdatedAt: p.updatedAt}

	var body any
	switch r.URL.Path {
	case "/api/v2/incidents.json":
		body = struct {
			Page      pageInfo   `json:"page"`
			Incidents []incident `json:"incidents"`
		}{info, append([]incident{}, p.incidents...)}
	case "/api/v2/components.json":
		body = struct {
			Page       pageInfo    `json:"page"`
			Components []component `json:"components"`
		}{info, []component{
			{ID: "api", Name: "API", Status: script[p.step].apiStatus, UpdatedAt: p.apiChangedAt},
			{ID: "web", Name: "Web App", Status: "operational", UpdatedAt: p.createdAt},
		}}
	}
	p.mu.Unlock()

	if body == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		p.logger.Error("failed to encode response", "error", err)
	}
}
