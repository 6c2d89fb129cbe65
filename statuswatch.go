package statuswatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/statuswatch/dashboard"
	"github.com/jpalmerr/statuswatch/internal/broadcast"
	"github.com/jpalmerr/statuswatch/internal/bus"
	"github.com/jpalmerr/statuswatch/internal/dispatch"
	"github.com/jpalmerr/statuswatch/internal/event"
	"github.com/jpalmerr/statuswatch/internal/metrics"
	"github.com/jpalmerr/statuswatch/internal/poller"
	"github.com/jpalmerr/statuswatch/internal/server"
	"github.com/jpalmerr/statuswatch/internal/sink"
)

const (
	defaultPollInterval  = 30 * time.Second
	defaultPort          = 8080
	defaultFetchTimeout  = 15 * time.Second
	defaultStartupWindow = 5 * time.Second
)

// Watcher polls status pages and turns their changes into events.
//
// A Watcher is created with [New] and run with [Watcher.Start]:
//
//	p, _ := statuswatch.NewProvider("OpenAI API", "https://status.openai.com/api/v2")
//	w, err := statuswatch.New(statuswatch.WithProvider(p), statuswatch.WithWeb(true))
//	if err != nil {
//	    slog.Error("failed to create watcher", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	w.Start(ctx) // blocks until ctx is cancelled
type Watcher struct {
	title            string
	providers        []Provider
	pollInterval     time.Duration
	port             int
	web              bool
	logger           *slog.Logger
	output           io.Writer
	callbacks        []func(Event)
	busCapacity      int
	subscriberBuffer int
	startupWindow    time.Duration
	maxBackoff       time.Duration
	fetchTimeout     time.Duration
	jitter           float64
	registry         *prometheus.Registry
	metrics          *metrics.Metrics
	clock            clockwork.Clock
}

// New creates a [Watcher] with the given options.
//
// At least one provider is required. Defaults:
//   - Poll interval: 30 seconds
//   - Port: 8080 (only used with [WithWeb])
//   - Fetch timeout: 15 seconds
//   - Max backoff: 5 minutes
//   - Startup window: min(5s, poll interval)
//
// Returns an error if no providers are configured, if two providers share a
// name, or if any option is invalid.
func New(opts ...Option) (*Watcher, error) {
	cfg := &watcherConfig{
		pollInterval: defaultPollInterval,
		port:         defaultPort,
		output:       os.Stdout,
		busCapacity:  bus.DefaultCapacity,
		maxBackoff:   poller.DefaultMaxBackoff,
		fetchTimeout: defaultFetchTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.providers) == 0 {
		return nil, errors.New("at least one provider is required")
	}

	// names key the per-provider state, metrics and log lines
	seen := make(map[string]bool, len(cfg.providers))
	for _, p := range cfg.providers {
		if p.name == "" {
			return nil, errors.New("provider must be created with NewProvider")
		}
		if seen[p.name] {
			return nil, fmt.Errorf("duplicate provider name: %q", p.name)
		}
		seen[p.name] = true
	}

	window := cfg.startupWindow
	if !cfg.startupWindowSet {
		window = min(defaultStartupWindow, cfg.pollInterval)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	// collectors outlive a single Start so repeated runs keep counting
	reg := cfg.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Watcher{
		title:            cfg.title,
		providers:        cfg.providers,
		pollInterval:     cfg.pollInterval,
		port:             cfg.port,
		web:              cfg.web,
		logger:           logger,
		output:           cfg.output,
		callbacks:        cfg.callbacks,
		busCapacity:      cfg.busCapacity,
		subscriberBuffer: cfg.subscriberBuffer,
		startupWindow:    window,
		maxBackoff:       cfg.maxBackoff,
		fetchTimeout:     cfg.fetchTimeout,
		jitter:           cfg.jitter,
		registry:         reg,
		metrics:          metrics.New(reg),
		clock:            clockwork.NewRealClock(),
	}, nil
}

// Start polls every provider and delivers events until ctx is cancelled.
//
// Each provider gets two pollers, one for incidents and one for components.
// Their first polls are spread across the startup window. When the web
// surface is enabled, the HTTP server is started before polling begins.
//
// On cancellation the pollers are stopped first, then the dispatcher
// delivers any events still queued, then Start returns.
//
// Returns nil on graceful shutdown, or an error if the HTTP server cannot
// bind its port.
func (w *Watcher) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	m := w.metrics

	client := poller.NewClient()
	defer client.Close()

	eventBus := bus.New(w.busCapacity)

	sinks := []dispatch.Sink{sink.NewConsole(w.output)}
	var hub *broadcast.Broadcaster
	if w.web {
		hub = broadcast.New(w.subscriberBuffer, w.logger, m)
		sinks = append(sinks, hub)
	}
	for i, cb := range w.callbacks {
		sinks = append(sinks, sink.NewFunc(fmt.Sprintf("callback-%d", i+1), callbackSink(cb)))
	}
	dispatcher := dispatch.New(eventBus.Events(), sinks, w.logger, m)

	scheduler := poller.NewScheduler(w.pollers(client, eventBus, m), w.stagger(), w.logger)

	// the dispatcher outlives ctx so it can drain the bus after pollers stop
	dispatchCtx, stopDispatch := context.WithCancel(context.WithoutCancel(ctx))
	defer stopDispatch()

	var g errgroup.Group
	g.Go(func() error {
		dispatcher.Run(dispatchCtx)
		return nil
	})

	shutdown := func() {
		scheduler.Stop()
		stopDispatch()
		_ = g.Wait()
	}

	if w.web {
		srv := server.NewServer(hub, server.Config{
			Port:       w.port,
			Assets:     dashboard.Assets,
			Title:      w.title,
			Gatherer:   w.registry,
			Providers:  len(w.providers),
			Dispatched: dispatcher.Delivered,
		}, w.logger)
		if err := srv.Start(ctx); err != nil {
			shutdown()
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		w.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", w.port))
	}

	w.logger.Info("watcher starting",
		"providers", len(w.providers),
		"poll_interval", w.pollInterval.String(),
		"startup_window", w.startupWindow.String(),
	)
	scheduler.Start(ctx)

	<-ctx.Done()
	shutdown()
	w.logger.Info("watcher stopped", "events_dispatched", dispatcher.Delivered())
	return nil
}

// pollers builds one poller per (provider, facet) in provider order.
func (w *Watcher) pollers(client *poller.Client, pub poller.Publisher, m *metrics.Metrics) []*poller.Poller {
	pollers := make([]*poller.Poller, 0, len(w.providers)*len(poller.Facets))
	for _, p := range w.providers {
		interval := p.interval
		if interval == 0 {
			interval = w.pollInterval
		}
		timeout := p.timeout
		if timeout == 0 {
			timeout = w.fetchTimeout
		}

		for _, facet := range poller.Facets {
			target := poller.Target{
				Provider:   p.name,
				BaseURL:    p.baseURL,
				Facet:      facet,
				Interval:   interval,
				MaxBackoff: w.maxBackoff,
				Timeout:    timeout,
				Jitter:     w.jitter,
			}
			pollers = append(pollers, poller.NewPoller(target, client, pub, w.clock, w.logger, m))
		}
	}
	return pollers
}

func (w *Watcher) stagger() poller.Stagger {
	return poller.Stagger{
		Window: w.startupWindow,
		Rand:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

func callbackSink(cb func(Event)) func(context.Context, event.Event) error {
	return func(_ context.Context, ev event.Event) error {
		cb(publicEvent(ev))
		return nil
	}
}

// Providers returns a copy of the configured providers, in order.
func (w *Watcher) Providers() []Provider {
	cp := make([]Provider, len(w.providers))
	copy(cp, w.providers)
	return cp
}

// PollInterval returns the default interval between polls.
func (w *Watcher) PollInterval() time.Duration {
	return w.pollInterval
}

// Port returns the configured HTTP port.
func (w *Watcher) Port() int {
	return w.port
}

// Web reports whether the HTTP surface is enabled.
func (w *Watcher) Web() bool {
	return w.web
}

// StartupWindow returns the window across which first polls are spread.
func (w *Watcher) StartupWindow() time.Duration {
	return w.startupWindow
}
