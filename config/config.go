// Package config loads statuswatch configuration files.
//
// Files are YAML; JSON is accepted too since it is valid YAML. Example:
//
//	title: Vendor status
//	poll_interval: 30s
//	web: true
//	port: 8080
//
//	providers:
//	  - name: OpenAI API
//	    url: https://status.openai.com/api/v2
//	  - name: GitHub
//	    url: ${GITHUB_STATUS_URL:-https://www.githubstatus.com/api/v2}
//	    timeout: 5s
//
// providers may also be a mapping of name to URL, kept in file order:
//
//	providers:
//	  OpenAI API: https://status.openai.com/api/v2
//	  GitHub: https://www.githubstatus.com/api/v2
//
// A file that is only such a mapping, with no other settings, is read as the
// provider list:
//
//	{"OpenAI API": "https://status.openai.com/api/v2"}
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// minPollInterval keeps a typo from hammering a vendor's status page.
	minPollInterval = 1 * time.Second

	defaultPort         = 8080
	defaultPollInterval = 30 * time.Second
)

// DefaultProviderName and DefaultProviderURL are used when no configuration
// file is given.
const (
	DefaultProviderName = "OpenAI API"
	DefaultProviderURL  = "https://status.openai.com/api/v2"
)

// knownKeys are the top-level settings. A mapping with none of them is a
// bare provider list.
var knownKeys = map[string]bool{
	"title":          true,
	"port":           true,
	"poll_interval":  true,
	"web":            true,
	"fetch_timeout":  true,
	"max_backoff":    true,
	"backoff_jitter": true,
	"startup_window": true,
	"providers":      true,
}

// Config is the root configuration structure.
//
// Use [Load] or [Parse] to create a Config.
type Config struct {
	// Title is the dashboard title.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// PollInterval is the delay between polls of each feed. Defaults to 30s.
	PollInterval Duration `yaml:"poll_interval"`

	// Web enables the dashboard and streaming endpoints.
	Web bool `yaml:"web"`

	// FetchTimeout is the default per-request timeout. Zero uses the SDK default.
	FetchTimeout Duration `yaml:"fetch_timeout"`

	// MaxBackoff caps the retry delay. Zero uses the SDK default.
	MaxBackoff Duration `yaml:"max_backoff"`

	// BackoffJitter randomly shortens retry delays by up to this fraction.
	BackoffJitter float64 `yaml:"backoff_jitter"`

	// StartupWindow spreads first polls. Nil uses the SDK default.
	StartupWindow *Duration `yaml:"startup_window"`

	// Providers lists the status pages to watch, in order.
	Providers Providers `yaml:"providers"`
}

// ProviderConfig defines a single status page.
type ProviderConfig struct {
	// Name is the display name used in events.
	Name string `yaml:"name"`

	// URL is the API root, e.g. https://status.openai.com/api/v2.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Timeout overrides the fetch timeout for this provider.
	Timeout Duration `yaml:"timeout"`

	// Interval overrides the poll interval for this provider.
	// Must be between 1s and 1h.
	Interval Duration `yaml:"interval"`
}

// Providers is an ordered provider list. In YAML it is either a sequence of
// provider objects or a mapping of name to URL.
type Providers []ProviderConfig

// UnmarshalYAML implements yaml.Unmarshaler for Providers.
func (p *Providers) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []ProviderConfig
		if err := node.Decode(&list); err != nil {
			return err
		}
		*p = list
		return nil

	case yaml.MappingNode:
		list, err := decodeProviderMap(node)
		if err != nil {
			return err
		}
		*p = list
		return nil
	}

	return fmt.Errorf("providers must be a list or a mapping, got %v", node.Kind)
}

// decodeProviderMap reads a name: url mapping, keeping key order.
func decodeProviderMap(node *yaml.Node) ([]ProviderConfig, error) {
	list := make([]ProviderConfig, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("provider %q: url must be a string (line %d)", key.Value, value.Line)
		}
		list = append(list, ProviderConfig{Name: key.Value, URL: value.Value})
	}
	return list, nil
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part, present when a default was given
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		sub := envVarPattern.FindStringSubmatch(match)
		name := sub[1]
		hasDefault := sub[2] != ""

		value, ok := os.LookupEnv(name)
		if !ok {
			if hasDefault {
				return sub[3]
			}
			firstErr = fmt.Errorf("environment variable %q is not set", name)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Default returns the configuration used when no file is given: a single
// provider and default settings.
func Default() *Config {
	return &Config{
		Port:         defaultPort,
		PollInterval: Duration(defaultPollInterval),
		Providers:    Providers{{Name: DefaultProviderName, URL: DefaultProviderURL}},
	}
}

// Load reads and parses a configuration file.
//
// Returns an error if the file cannot be read or is invalid.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML or JSON configuration data.
//
// Environment variables are expanded in provider URLs. Defaults are applied
// for Port (8080) and PollInterval (30s).
func Parse(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, errors.New("config is empty")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config must be a mapping, got %v", root.Kind)
	}

	var cfg Config
	if isBareProviderMap(root) {
		list, err := decodeProviderMap(root)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		cfg.Providers = list
	} else if err := root.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(defaultPollInterval)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func isBareProviderMap(root *yaml.Node) bool {
	if len(root.Content) == 0 {
		return false
	}
	for i := 0; i < len(root.Content); i += 2 {
		if knownKeys[root.Content[i].Value] {
			return false
		}
	}
	return true
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("fetch_timeout cannot be negative, got %s", c.FetchTimeout.Duration())
	}
	if c.MaxBackoff < 0 {
		return fmt.Errorf("max_backoff cannot be negative, got %s", c.MaxBackoff.Duration())
	}
	if c.BackoffJitter < 0 || c.BackoffJitter >= 1 {
		return fmt.Errorf("backoff_jitter must be in [0, 1), got %v", c.BackoffJitter)
	}
	if c.StartupWindow != nil && *c.StartupWindow < 0 {
		return fmt.Errorf("startup_window cannot be negative, got %s", c.StartupWindow.Duration())
	}

	if len(c.Providers) == 0 {
		return errors.New("at least one provider must be defined")
	}

	seen := make(map[string]bool, len(c.Providers))
	for i := range c.Providers {
		p := &c.Providers[i]

		if p.Name == "" {
			return fmt.Errorf("providers[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("providers[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true

		if p.URL == "" {
			return fmt.Errorf("providers[%d] (%s): url is required", i, p.Name)
		}
		expanded, err := expandEnvVars(p.URL)
		if err != nil {
			return fmt.Errorf("providers[%d] (%s): url: %w", i, p.Name, err)
		}
		p.URL = expanded

		parsedURL, err := url.Parse(p.URL)
		if err != nil {
			return fmt.Errorf("providers[%d] (%s): invalid url: %w", i, p.Name, err)
		}
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return fmt.Errorf("providers[%d] (%s): url scheme must be http or https, got %q", i, p.Name, parsedURL.Scheme)
		}

		if p.Timeout != 0 && p.Timeout.Duration() < time.Second {
			return fmt.Errorf("providers[%d] (%s): timeout must be at least 1s if specified, got %s",
				i, p.Name, p.Timeout.Duration())
		}

		if p.Interval != 0 {
			if p.Interval.Duration() < minPollInterval {
				return fmt.Errorf("providers[%d] (%s): interval must be at least 1s, got %s",
					i, p.Name, p.Interval.Duration())
			}
			if p.Interval.Duration() > time.Hour {
				return fmt.Errorf("providers[%d] (%s): interval must not exceed 1h, got %s",
					i, p.Name, p.Interval.Duration())
			}
		}
	}

	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set are not overridden. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
