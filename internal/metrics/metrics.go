// Package metrics exposes Prometheus collectors for the watcher.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without instrumentation in tests.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "statuswatch"

// Fetch outcomes recorded by [Metrics.ObserveFetch].
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeError     = "error"
)

// Metrics groups all collectors registered by the watcher.
type Metrics struct {
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	retryDelay    *prometheus.GaugeVec
	events        *prometheus.CounterVec
	sinkFailures  *prometheus.CounterVec
	subscribers   prometheus.Gauge
	dropped       prometheus.Counter
}

// New creates the collectors and registers them with reg. Collectors
// already registered by an earlier call are reused, so several watchers may
// share one registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Status page fetches by provider, facet and outcome",
		}, []string{"provider", "facet", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Status page fetch latency in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		}, []string{"provider", "facet"}),
		retryDelay: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "next_poll_delay_seconds",
			Help:      "Delay before the next poll, including backoff",
		}, []string{"provider", "facet"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "Events delivered to sinks by provider and kind",
		}, []string{"provider", "kind"}),
		sinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_failures_total",
			Help:      "Sink deliveries that returned an error or panicked",
		}, []string{"sink"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Currently connected streaming subscribers",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscribers_dropped_total",
			Help:      "Subscribers removed after a failed delivery",
		}),
	}

	m.fetches = register(reg, m.fetches)
	m.fetchDuration = register(reg, m.fetchDuration)
	m.retryDelay = register(reg, m.retryDelay)
	m.events = register(reg, m.events)
	m.sinkFailures = register(reg, m.sinkFailures)
	m.subscribers = register(reg, m.subscribers)
	m.dropped = register(reg, m.dropped)
	return m
}

// register adds c to reg, or returns the identical collector registered
// before. Any other registration error is a programming error and panics,
// as MustRegister does.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	panic(err)
}

// ObserveFetch records one poll cycle.
func (m *Metrics) ObserveFetch(provider, facet, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(provider, facet, outcome).Inc()
	m.fetchDuration.WithLabelValues(provider, facet).Observe(latency.Seconds())
}

// SetNextDelay records the sleep chosen after a poll cycle.
func (m *Metrics) SetNextDelay(provider, facet string, d time.Duration) {
	if m == nil {
		return
	}
	m.retryDelay.WithLabelValues(provider, facet).Set(d.Seconds())
}

// EventDispatched counts an event handed to the sinks.
func (m *Metrics) EventDispatched(provider, kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(provider, kind).Inc()
}

// SinkFailed counts a failed sink delivery.
func (m *Metrics) SinkFailed(sink string) {
	if m == nil {
		return
	}
	m.sinkFailures.WithLabelValues(sink).Inc()
}

// SetSubscribers records the current subscriber count.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

// SubscriberDropped counts a subscriber removed by the broadcaster.
func (m *Metrics) SubscriberDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
