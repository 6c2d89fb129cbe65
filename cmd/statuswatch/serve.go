package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/statuswatch"
	"github.com/jpalmerr/statuswatch/config"
	"github.com/jpalmerr/statuswatch/internal/logging"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch the configured status pages",
	Long: `Poll every configured provider and print change events until interrupted.

Without --config a single provider is watched: OpenAI API at
https://status.openai.com/api/v2.

With --web the dashboard is served on --port, along with /events (SSE),
/ws (WebSocket), /health and /metrics.

The watcher runs until interrupted (Ctrl+C) or it receives SIGTERM.

Example:
  statuswatch serve
  statuswatch serve -c providers.yaml -i 60 --web`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("config", "c", "", "path to YAML or JSON config file")
	f.StringP("interval", "i", "", "poll interval, in seconds or as a duration (default 30s)")
	f.Bool("web", false, "serve the dashboard and event streams")
	f.IntP("port", "p", 0, "HTTP port for --web (default $PORT or 8080)")
	f.String("log-level", "info", "log level: debug, info, warn, error")
	f.String("log-format", "json", "log format: json or text")
	f.String("env-file", ".env", "load environment variables from this file if it exists")
}

func runServe(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	level, _ := flags.GetString("log-level")
	format, _ := flags.GetString("log-format")
	logger, err := logging.New(level, format, os.Stderr)
	if err != nil {
		return err
	}

	envFile, _ := flags.GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts, err := config.Options(cfg)
	if err != nil {
		return fmt.Errorf("failed to build providers: %w", err)
	}
	opts = append(opts, statuswatch.WithLogger(logger), statuswatch.WithOutput(cmd.OutOrStdout()))

	w, err := statuswatch.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	out := cmd.OutOrStdout()
	// the dashboard URL is logged by the watcher once the port is bound
	fmt.Fprintln(out, banner(len(cfg.Providers), cfg.PollInterval.Duration()))
	fmt.Fprintln(out, "ctrl+c to stop")
	fmt.Fprintln(out)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- w.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("watcher error: %w", err)
		}
		return nil

	case <-ctx.Done():
		logger.Info("shutting down")
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("watcher error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}

// loadConfig reads --config, or the built-in default, and applies flag and
// environment overrides. Precedence: flag, then $PORT, then file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	cfg := config.Default()
	if path, _ := flags.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if flags.Changed("interval") {
		raw, _ := flags.GetString("interval")
		d, err := parseInterval(raw)
		if err != nil {
			return nil, err
		}
		cfg.PollInterval = config.Duration(d)
	}

	if flags.Changed("web") {
		cfg.Web, _ = flags.GetBool("web")
	}

	switch {
	case flags.Changed("port"):
		cfg.Port, _ = flags.GetInt("port")
	case os.Getenv("PORT") != "":
		port, err := strconv.Atoi(os.Getenv("PORT"))
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", os.Getenv("PORT"), err)
		}
		cfg.Port = port
	}

	return cfg, nil
}

// parseInterval accepts whole seconds ("60") or a duration ("1m30s").
func parseInterval(s string) (time.Duration, error) {
	var d time.Duration
	if n, err := strconv.Atoi(s); err == nil {
		d = time.Duration(n) * time.Second
	} else {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid interval %q: want seconds or a duration like 30s", s)
		}
		d = parsed
	}
	if d < time.Second {
		return 0, fmt.Errorf("interval must be at least 1s, got %s", d)
	}
	return d, nil
}

func banner(providers int, interval time.Duration) string {
	noun := "providers"
	if providers == 1 {
		noun = "provider"
	}
	return fmt.Sprintf("watching %d %s, poll interval %s", providers, noun, interval)
}
