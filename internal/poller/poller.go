package poller

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/jpalmerr/statuswatch/internal/event"
	"github.com/jpalmerr/statuswatch/internal/metrics"
)

// Publisher accepts events produced by a poller. Publish blocks until the
// event is accepted or ctx is done.
type Publisher interface {
	Publish(ctx context.Context, ev event.Event) error
}

// Target describes what a single [Poller] watches and how often.
type Target struct {
	// Provider is the display name used in events and logs.
	Provider string

	// BaseURL is the provider's API root, e.g. https://status.example.com/api/v2.
	BaseURL string

	// Facet selects the feed: incidents or components.
	Facet Facet

	// Interval is the regular delay between cycles and the backoff base.
	Interval time.Duration

	// MaxBackoff caps the retry delay. Zero means [DefaultMaxBackoff].
	MaxBackoff time.Duration

	// Timeout bounds a single fetch.
	Timeout time.Duration

	// Jitter randomly shortens error delays by up to this fraction.
	Jitter float64
}

// URL returns the feed URL for the target's facet.
func (t Target) URL() string {
	return strings.TrimRight(t.BaseURL, "/") + "/" + t.Facet.Path()
}

// pollState is the poller's private memory of the feed.
type pollState struct {
	etag          string
	pageUpdatedAt string
	warm          bool
	entities      snapshot
}

// Poller runs the fetch, compare, diff, publish, sleep cycle for one
// (provider, facet) pair. It is used from a single goroutine.
type Poller struct {
	target  Target
	url     string
	client  *Client
	pub     Publisher
	backoff *Backoff
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
	state   pollState
}

// NewPoller creates a [Poller]. A nil clock means the real clock; a nil
// metrics disables instrumentation.
func NewPoller(target Target, client *Client, pub Publisher, clock clockwork.Clock, logger *slog.Logger, m *metrics.Metrics) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	maxBackoff := target.MaxBackoff
	if maxBackoff == 0 {
		maxBackoff = DefaultMaxBackoff
	}
	return &Poller{
		target:  target,
		url:     target.URL(),
		client:  client,
		pub:     pub,
		backoff: NewBackoff(target.Interval, maxBackoff).WithJitter(target.Jitter),
		clock:   clock,
		logger:  logger.With("provider", target.Provider, "facet", string(target.Facet)),
		metrics: m,
		state:   pollState{entities: snapshot{}},
	}
}

// Target returns the poller's configuration.
func (p *Poller) Target() Target {
	return p.target
}

// Run waits initialDelay, then cycles until ctx is cancelled.
func (p *Poller) Run(ctx context.Context, initialDelay time.Duration) {
	if err := sleep(ctx, p.clock, initialDelay); err != nil {
		return
	}
	for {
		delay := p.Cycle(ctx)
		if ctx.Err() != nil {
			return
		}
		if err := sleep(ctx, p.clock, delay); err != nil {
			return
		}
	}
}

// Cycle performs one poll and returns how long to wait before the next.
//
// A failed fetch or an unparseable body leaves the snapshot untouched and
// grows the backoff. A 304 skips parsing entirely, as does an unchanged page
// timestamp on the incidents feed. The components feed is diffed on every
// other successful fetch.
func (p *Poller) Cycle(ctx context.Context) time.Duration {
	resp := p.client.Fetch(ctx, Request{URL: p.url, Timeout: p.target.Timeout, ETag: p.state.etag})
	if ctx.Err() != nil {
		return 0
	}

	if resp.Error == nil && resp.NotModified() && p.state.warm {
		p.metrics.ObserveFetch(p.target.Provider, string(p.target.Facet), metrics.OutcomeUnchanged, resp.Latency)
		p.logger.Debug("feed not modified", "etag", p.state.etag)
		return p.next(p.backoff.OnSuccess())
	}

	if err := checkResponse(resp); err != nil {
		return p.fail(err, resp.Latency)
	}

	env, err := decodeEnvelope(resp.Body)
	if err != nil {
		return p.fail(err, resp.Latency)
	}

	ts := env.Page.UpdatedAt
	if p.target.Facet.gatedByPageTimestamp() && ts != "" && ts == p.state.pageUpdatedAt {
		p.state.etag = resp.ETag
		p.metrics.ObserveFetch(p.target.Provider, string(p.target.Facet), metrics.OutcomeUnchanged, resp.Latency)
		p.logger.Debug("feed unchanged", "updated_at", ts)
		return p.next(p.backoff.OnSuccess())
	}

	events, next, err := p.diff(env)
	if err != nil {
		return p.fail(err, resp.Latency)
	}

	outcome := metrics.OutcomeChanged
	if !p.target.Facet.gatedByPageTimestamp() && p.state.warm && len(events) == 0 {
		outcome = metrics.OutcomeUnchanged
	}

	p.state = pollState{etag: resp.ETag, pageUpdatedAt: ts, warm: true, entities: next}
	p.metrics.ObserveFetch(p.target.Provider, string(p.target.Facet), outcome, resp.Latency)
	p.logger.Debug("feed diffed", "outcome", outcome, "updated_at", ts, "entities", len(next), "events", len(events))

	for _, ev := range events {
		ev.ID = uuid.NewString()
		if err := p.pub.Publish(ctx, ev); err != nil {
			return 0
		}
	}

	return p.next(p.backoff.OnSuccess())
}

// diff parses the facet's entity list and compares it with the snapshot.
func (p *Poller) diff(env envelope) ([]event.Event, snapshot, error) {
	raw, err := env.entities(p.target.Facet)
	if err != nil {
		return nil, nil, err
	}

	now := p.clock.Now()
	switch p.target.Facet {
	case FacetIncidents:
		incidents, err := decodeIncidents(raw)
		if err != nil {
			return nil, nil, err
		}
		events, next := diffIncidents(p.target.Provider, incidents, p.state.entities, p.state.warm, now)
		return events, next, nil
	case FacetComponents:
		components, err := decodeComponents(raw)
		if err != nil {
			return nil, nil, err
		}
		events, next := diffComponents(p.target.Provider, components, p.state.entities, p.state.warm, now)
		return events, next, nil
	default:
		return nil, nil, fmt.Errorf("unknown facet %q", p.target.Facet)
	}
}

// fail records a transient failure and returns the backoff delay.
func (p *Poller) fail(err error, latency time.Duration) time.Duration {
	fetchErr := &FetchError{Provider: p.target.Provider, Facet: p.target.Facet, Err: err}
	delay := p.backoff.OnError()

	p.metrics.ObserveFetch(p.target.Provider, string(p.target.Facet), metrics.OutcomeError, latency)
	p.logger.Warn("poll failed",
		"url", p.url,
		"error", fetchErr.Error(),
		"retry_in", delay.String(),
	)
	return p.next(delay)
}

func (p *Poller) next(d time.Duration) time.Duration {
	p.metrics.SetNextDelay(p.target.Provider, string(p.target.Facet), d)
	return d
}

// checkResponse classifies transport failures and non-2xx statuses.
func checkResponse(resp Response) error {
	if resp.Error != nil {
		return resp.Error
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}

// sleep waits for d on clock, returning early with ctx's error on cancellation.
func sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
