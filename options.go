package statuswatch

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// watcherConfig holds mutable state during Watcher construction.
type watcherConfig struct {
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
	startupWindowSet bool
	maxBackoff       time.Duration
	fetchTimeout     time.Duration
	jitter           float64
	registry         *prometheus.Registry
}

// Option configures a [Watcher] during [New].
//
// Options return an error if validation fails.
type Option func(*watcherConfig) error

// WithProvider adds a single [Provider]. Can be called multiple times.
// At least one provider is required.
func WithProvider(p Provider) Option {
	return func(cfg *watcherConfig) error {
		cfg.providers = append(cfg.providers, p)
		return nil
	}
}

// WithProviders adds several providers at once, preserving their order.
func WithProviders(providers ...Provider) Option {
	return func(cfg *watcherConfig) error {
		cfg.providers = append(cfg.providers, providers...)
		return nil
	}
}

// WithPollInterval sets the delay between successful polls of each feed.
// It is also the backoff base after a failure. Defaults to 30 seconds.
//
// Returns an error if the duration is zero or negative.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *watcherConfig) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		cfg.pollInterval = d
		return nil
	}
}

// WithPort sets the HTTP port used when the web surface is enabled.
// Defaults to 8080.
//
// Returns an error if the port is not between 1 and 65535.
func WithPort(port int) Option {
	return func(cfg *watcherConfig) error {
		if port < 1 || port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", port)
		}
		cfg.port = port
		return nil
	}
}

// WithWeb enables the HTTP surface: dashboard, /events, /ws, /health and
// /metrics. Disabled by default.
func WithWeb(enabled bool) Option {
	return func(cfg *watcherConfig) error {
		cfg.web = enabled
		return nil
	}
}

// WithTitle sets the dashboard title. Defaults to "Status Watch".
func WithTitle(title string) Option {
	return func(cfg *watcherConfig) error {
		cfg.title = title
		return nil
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
//
// Returns an error if logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *watcherConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithOutput sets where the console sink writes event lines.
// Defaults to os.Stdout.
//
// Returns an error if w is nil.
func WithOutput(w io.Writer) Option {
	return func(cfg *watcherConfig) error {
		if w == nil {
			return errors.New("output writer cannot be nil")
		}
		cfg.output = w
		return nil
	}
}

// WithEventCallback registers a function called for every event, after the
// console and streaming sinks, in dispatch order.
//
// Callbacks run on the dispatcher goroutine. A slow callback delays every
// later event; a panicking callback is recovered and logged.
//
// Returns an error if fn is nil.
func WithEventCallback(fn func(Event)) Option {
	return func(cfg *watcherConfig) error {
		if fn == nil {
			return errors.New("event callback cannot be nil")
		}
		cfg.callbacks = append(cfg.callbacks, fn)
		return nil
	}
}

// WithBusCapacity sets how many events may be queued before pollers block.
// Defaults to 256.
//
// Returns an error if n is less than 1.
func WithBusCapacity(n int) Option {
	return func(cfg *watcherConfig) error {
		if n < 1 {
			return fmt.Errorf("bus capacity must be at least 1, got %d", n)
		}
		cfg.busCapacity = n
		return nil
	}
}

// WithSubscriberBuffer sets each streaming subscriber's message buffer.
// A subscriber whose buffer fills is disconnected. Defaults to 100.
//
// Returns an error if n is less than 1.
func WithSubscriberBuffer(n int) Option {
	return func(cfg *watcherConfig) error {
		if n < 1 {
			return fmt.Errorf("subscriber buffer must be at least 1, got %d", n)
		}
		cfg.subscriberBuffer = n
		return nil
	}
}

// WithStartupWindow sets the window across which first polls are spread.
// Zero starts every poller immediately. Defaults to the smaller of 5
// seconds and the poll interval.
//
// Returns an error if the duration is negative.
func WithStartupWindow(d time.Duration) Option {
	return func(cfg *watcherConfig) error {
		if d < 0 {
			return errors.New("startup window cannot be negative")
		}
		cfg.startupWindow = d
		cfg.startupWindowSet = true
		return nil
	}
}

// WithMaxBackoff caps the retry delay after consecutive failures.
// Defaults to 5 minutes.
//
// Returns an error if the duration is zero or negative.
func WithMaxBackoff(d time.Duration) Option {
	return func(cfg *watcherConfig) error {
		if d <= 0 {
			return errors.New("max backoff must be positive")
		}
		cfg.maxBackoff = d
		return nil
	}
}

// WithFetchTimeout sets the default per-request timeout. Providers may
// override it with [WithProviderTimeout]. Defaults to 15 seconds.
//
// Returns an error if the duration is zero or negative.
func WithFetchTimeout(d time.Duration) Option {
	return func(cfg *watcherConfig) error {
		if d <= 0 {
			return errors.New("fetch timeout must be positive")
		}
		cfg.fetchTimeout = d
		return nil
	}
}

// WithBackoffJitter randomly shortens each retry delay by up to fraction,
// so providers failing together do not retry in lockstep. Zero disables it.
//
// Returns an error if fraction is outside [0, 1).
func WithBackoffJitter(fraction float64) Option {
	return func(cfg *watcherConfig) error {
		if fraction < 0 || fraction >= 1 {
			return fmt.Errorf("backoff jitter must be in [0, 1), got %v", fraction)
		}
		cfg.jitter = fraction
		return nil
	}
}

// WithMetricsRegistry registers the watcher's collectors with reg and
// serves it on /metrics. By default each [Watcher] gets its own registry.
// Watchers sharing reg share their collectors.
//
// Returns an error if reg is nil.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(cfg *watcherConfig) error {
		if reg == nil {
			return errors.New("metrics registry cannot be nil")
		}
		cfg.registry = reg
		return nil
	}
}
