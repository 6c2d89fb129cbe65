package statuswatch

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Provider is a status page to watch.
//
// Provider is immutable after creation via [NewProvider]. The set of
// providers is fixed when the [Watcher] is built; there is no runtime
// add or remove.
type Provider struct {
	name     string
	baseURL  string
	timeout  time.Duration
	interval time.Duration
}

// Name returns the provider's display name, used in events and logs.
func (p Provider) Name() string {
	return p.name
}

// BaseURL returns the API root, without a trailing slash.
// The incidents and components feeds are fetched relative to it.
func (p Provider) BaseURL() string {
	return p.baseURL
}

// Timeout returns the per-request timeout, or 0 to use the watcher default.
func (p Provider) Timeout() time.Duration {
	return p.timeout
}

// Interval returns the provider's poll interval, or 0 to use the watcher default.
func (p Provider) Interval() time.Duration {
	return p.interval
}

// ProviderOption configures a [Provider] during [NewProvider].
type ProviderOption func(*Provider) error

// WithProviderTimeout overrides the fetch timeout for one provider.
//
// Returns an error if the duration is zero or negative.
func WithProviderTimeout(d time.Duration) ProviderOption {
	return func(p *Provider) error {
		if d <= 0 {
			return errors.New("provider timeout must be positive")
		}
		p.timeout = d
		return nil
	}
}

// WithProviderInterval overrides the poll interval for one provider.
//
// Returns an error if the duration is zero or negative.
func WithProviderInterval(d time.Duration) ProviderOption {
	return func(p *Provider) error {
		if d <= 0 {
			return errors.New("provider interval must be positive")
		}
		p.interval = d
		return nil
	}
}

// NewProvider creates a [Provider].
//
// rawURL is the Statuspage-style API root, for example
// https://status.openai.com/api/v2. It must be an absolute http or https URL.
//
// Example:
//
//	p, err := statuswatch.NewProvider("OpenAI API", "https://status.openai.com/api/v2")
func NewProvider(name, rawURL string, opts ...ProviderOption) (Provider, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Provider{}, errors.New("provider name cannot be empty")
	}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return Provider{}, fmt.Errorf("provider %q: invalid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Provider{}, fmt.Errorf("provider %q: URL must use http or https, got %q", name, rawURL)
	}
	if u.Host == "" {
		return Provider{}, fmt.Errorf("provider %q: URL has no host", name)
	}

	p := Provider{
		name:    name,
		baseURL: strings.TrimRight(u.String(), "/"),
	}
	for _, opt := range opts {
		if err := opt(&p); err != nil {
			return Provider{}, fmt.Errorf("provider %q: %w", name, err)
		}
	}
	return p, nil
}
