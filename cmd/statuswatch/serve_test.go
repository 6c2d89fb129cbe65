package main

import (
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/statuswatch/config"
)

func newServeTestCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "serve"}
	addServeFlags(cmd)
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("Parse(%v) error = %v", args, err)
	}
	return cmd
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PORT", "")

	cfg, err := loadConfig(newServeTestCmd(t))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if len(cfg.Providers) != 1 || cfg.Providers[0].Name != config.DefaultProviderName {
		t.Errorf("Providers = %+v, want default provider", cfg.Providers)
	}
	if cfg.Port != 8080 || cfg.Web || cfg.PollInterval.Duration() != 30*time.Second {
		t.Errorf("port, web, interval = %d, %v, %v", cfg.Port, cfg.Web, cfg.PollInterval.Duration())
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := writeConfig(t, "port: 7000\npoll_interval: 10s\nproviders:\n  P: https://example.com/api/v2\n")

	tests := []struct {
		name     string
		env      string
		args     []string
		wantPort int
		wantWeb  bool
		wantIvl  time.Duration
	}{
		{"file only", "", []string{"-c", path}, 7000, false, 10 * time.Second},
		{"PORT env beats file", "7100", []string{"-c", path}, 7100, false, 10 * time.Second},
		{"flag beats PORT env", "7100", []string{"-c", path, "--port", "7200"}, 7200, false, 10 * time.Second},
		{"interval seconds and web", "", []string{"-c", path, "-i", "60", "--web"}, 7000, true, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PORT", tt.env)

			cfg, err := loadConfig(newServeTestCmd(t, tt.args...))
			if err != nil {
				t.Fatalf("loadConfig() error = %v", err)
			}
			if cfg.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", cfg.Port, tt.wantPort)
			}
			if cfg.Web != tt.wantWeb {
				t.Errorf("Web = %v, want %v", cfg.Web, tt.wantWeb)
			}
			if cfg.PollInterval.Duration() != tt.wantIvl {
				t.Errorf("PollInterval = %v, want %v", cfg.PollInterval.Duration(), tt.wantIvl)
			}
		})
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Setenv("PORT", "")

	if _, err := loadConfig(newServeTestCmd(t, "-c", "/nonexistent.yaml")); err == nil {
		t.Error("loadConfig() expected error for missing file, got nil")
	}
	if _, err := loadConfig(newServeTestCmd(t, "-i", "fast")); err == nil {
		t.Error("loadConfig() expected error for bad interval, got nil")
	}

	t.Setenv("PORT", "eighty")
	if _, err := loadConfig(newServeTestCmd(t)); err == nil {
		t.Error("loadConfig() expected error for bad PORT, got nil")
	}
}

// TestServe_PortInUse verifies a bind failure is reported without first
// advertising a dashboard URL.
func TestServe_PortInUse(t *testing.T) {
	t.Setenv("PORT", "")

	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	defer func() { _ = ln.Close() }()
	port := strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)

	path := writeConfig(t, "providers:\n  P: https://example.com/api/v2\n")
	output, err := executeCmd(t, "serve", "-c", path, "--web", "--port", port, "--env-file", "")
	if err == nil {
		t.Fatal("serve expected error for port in use, got nil")
	}
	if !strings.Contains(err.Error(), "failed to bind") {
		t.Errorf("error = %v, want bind failure", err)
	}
	if strings.Contains(output, "http://") {
		t.Errorf("output advertises a URL before binding:\n%s", output)
	}
}
