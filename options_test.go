package statuswatch

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func mustProvider(t *testing.T, name, url string) Provider {
	t.Helper()
	p, err := NewProvider(name, url)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	return p
}

func TestNew_Valid(t *testing.T) {
	w, err := New(WithProvider(mustProvider(t, "P", "https://example.com/api/v2")))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(w.Providers()) != 1 {
		t.Errorf("len(Providers()) = %d, want 1", len(w.Providers()))
	}
}

func TestNew_NoProviders(t *testing.T) {
	if _, err := New(); err == nil {
		t.Error("New() expected error for no providers, got nil")
	}
}

func TestNew_ZeroProvider(t *testing.T) {
	if _, err := New(WithProvider(Provider{})); err == nil {
		t.Error("New() expected error for zero-value provider, got nil")
	}
}

func TestNew_DuplicateProviderNames(t *testing.T) {
	_, err := New(WithProviders(
		mustProvider(t, "API", "https://a.example.com"),
		mustProvider(t, "DB", "https://b.example.com"),
		mustProvider(t, "API", "https://c.example.com"),
	))
	if err == nil {
		t.Fatal("New() expected error for duplicate provider names, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate provider name") {
		t.Errorf("New() error = %v, want containing 'duplicate provider name'", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	w, err := New(WithProvider(mustProvider(t, "P", "https://example.com")))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if w.Port() != 8080 {
		t.Errorf("Port() = %d, want 8080", w.Port())
	}
	if w.PollInterval() != 30*time.Second {
		t.Errorf("PollInterval() = %v, want 30s", w.PollInterval())
	}
	if w.Web() {
		t.Error("Web() = true, want false")
	}
	if w.StartupWindow() != 5*time.Second {
		t.Errorf("StartupWindow() = %v, want 5s", w.StartupWindow())
	}
	if w.maxBackoff != 5*time.Minute {
		t.Errorf("maxBackoff = %v, want 5m", w.maxBackoff)
	}
	if w.fetchTimeout != 15*time.Second {
		t.Errorf("fetchTimeout = %v, want 15s", w.fetchTimeout)
	}
}

func TestNew_StartupWindow(t *testing.T) {
	p := mustProvider(t, "P", "https://example.com")
	tests := []struct {
		name string
		opts []Option
		want time.Duration
	}{
		{"short interval bounds window", []Option{WithPollInterval(2 * time.Second)}, 2 * time.Second},
		{"explicit window", []Option{WithStartupWindow(time.Minute)}, time.Minute},
		{"explicit zero", []Option{WithStartupWindow(0)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := New(append([]Option{WithProvider(p)}, tt.opts...)...)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if w.StartupWindow() != tt.want {
				t.Errorf("StartupWindow() = %v, want %v", w.StartupWindow(), tt.want)
			}
		})
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	p := mustProvider(t, "P", "https://example.com")
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero interval", WithPollInterval(0)},
		{"negative interval", WithPollInterval(-time.Second)},
		{"port zero", WithPort(0)},
		{"port too high", WithPort(70000)},
		{"nil logger", WithLogger(nil)},
		{"nil output", WithOutput(nil)},
		{"nil callback", WithEventCallback(nil)},
		{"bus capacity zero", WithBusCapacity(0)},
		{"subscriber buffer zero", WithSubscriberBuffer(0)},
		{"negative window", WithStartupWindow(-time.Second)},
		{"zero max backoff", WithMaxBackoff(0)},
		{"zero fetch timeout", WithFetchTimeout(0)},
		{"jitter too large", WithBackoffJitter(1)},
		{"negative jitter", WithBackoffJitter(-0.1)},
		{"nil registry", WithMetricsRegistry(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(WithProvider(p), tt.opt); err == nil {
				t.Error("New() expected error, got nil")
			}
		})
	}
}

func TestNew_AppliesOptions(t *testing.T) {
	var logBuf, out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))
	reg := prometheus.NewRegistry()

	w, err := New(
		WithProvider(mustProvider(t, "P", "https://example.com")),
		WithPollInterval(time.Minute),
		WithPort(9090),
		WithWeb(true),
		WithTitle("Vendors"),
		WithLogger(logger),
		WithOutput(&out),
		WithEventCallback(func(Event) {}),
		WithBusCapacity(8),
		WithSubscriberBuffer(4),
		WithMaxBackoff(10*time.Minute),
		WithFetchTimeout(time.Second),
		WithBackoffJitter(0.2),
		WithMetricsRegistry(reg),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if w.PollInterval() != time.Minute || w.Port() != 9090 || !w.Web() {
		t.Errorf("interval, port, web = %v, %d, %v", w.PollInterval(), w.Port(), w.Web())
	}
	if w.title != "Vendors" || w.logger != logger || w.output != &out {
		t.Error("title, logger or output not applied")
	}
	if len(w.callbacks) != 1 || w.busCapacity != 8 || w.subscriberBuffer != 4 {
		t.Errorf("callbacks, bus, buffer = %d, %d, %d", len(w.callbacks), w.busCapacity, w.subscriberBuffer)
	}
	if w.maxBackoff != 10*time.Minute || w.fetchTimeout != time.Second || w.jitter != 0.2 || w.registry != reg {
		t.Error("backoff, timeout, jitter or registry not applied")
	}
}

func TestProviders_ReturnsCopy(t *testing.T) {
	w, err := New(WithProviders(
		mustProvider(t, "A", "https://a.example.com"),
		mustProvider(t, "B", "https://b.example.com"),
	))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got := w.Providers()
	got[0] = Provider{}

	if w.Providers()[0].Name() != "A" {
		t.Error("modifying Providers() result changed the watcher")
	}
	if w.Providers()[1].Name() != "B" {
		t.Error("provider order not preserved")
	}
}
