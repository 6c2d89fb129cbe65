package config

import (
	"github.com/jpalmerr/statuswatch"
)

// BuildProviders converts the configured providers into SDK providers,
// preserving order.
func BuildProviders(cfg *Config) ([]statuswatch.Provider, error) {
	providers := make([]statuswatch.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		p, err := buildProvider(pc)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}

func buildProvider(pc ProviderConfig) (statuswatch.Provider, error) {
	var opts []statuswatch.ProviderOption
	if pc.Timeout != 0 {
		opts = append(opts, statuswatch.WithProviderTimeout(pc.Timeout.Duration()))
	}
	if pc.Interval != 0 {
		opts = append(opts, statuswatch.WithProviderInterval(pc.Interval.Duration()))
	}
	return statuswatch.NewProvider(pc.Name, pc.URL, opts...)
}

// Options converts the whole configuration into watcher options.
func Options(cfg *Config) ([]statuswatch.Option, error) {
	providers, err := BuildProviders(cfg)
	if err != nil {
		return nil, err
	}

	opts := []statuswatch.Option{
		statuswatch.WithProviders(providers...),
		statuswatch.WithPollInterval(cfg.PollInterval.Duration()),
		statuswatch.WithPort(cfg.Port),
		statuswatch.WithWeb(cfg.Web),
	}
	if cfg.Title != "" {
		opts = append(opts, statuswatch.WithTitle(cfg.Title))
	}
	if cfg.FetchTimeout != 0 {
		opts = append(opts, statuswatch.WithFetchTimeout(cfg.FetchTimeout.Duration()))
	}
	if cfg.MaxBackoff != 0 {
		opts = append(opts, statuswatch.WithMaxBackoff(cfg.MaxBackoff.Duration()))
	}
	if cfg.BackoffJitter != 0 {
		opts = append(opts, statuswatch.WithBackoffJitter(cfg.BackoffJitter))
	}
	if cfg.StartupWindow != nil {
		opts = append(opts, statuswatch.WithStartupWindow(cfg.StartupWindow.Duration()))
	}
	return opts, nil
}
