package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jpalmerr/statuswatch"
	"github.com/jpalmerr/statuswatch/example/mockstatus"
)

func main() {
	// fake status page that moves every 10-20s
	page := mockstatus.NewPage("Acme", clockwork.NewRealClock(), 10*time.Second, 20*time.Second, slog.Default())
	mock := httptest.NewServer(page)
	defer mock.Close()

	acme, err := statuswatch.NewProvider("Acme", mock.URL+"/api/v2")
	if err != nil {
		slog.Error("failed to create provider", "error", err)
		os.Exit(1)
	}

	// a real provider with its own slower interval (overrides global 5s)
	openai, err := statuswatch.NewProvider("OpenAI API", "https://status.openai.com/api/v2",
		statuswatch.WithProviderInterval(60*time.Second),
	)
	if err != nil {
		slog.Error("failed to create provider", "error", err)
		os.Exit(1)
	}

	w, err := statuswatch.New(
		statuswatch.WithProviders(acme, openai),
		statuswatch.WithPollInterval(5*time.Second),
		statuswatch.WithWeb(true),
		statuswatch.WithPort(8080),
		statuswatch.WithTitle("Status Watch Demo"),
		statuswatch.WithEventCallback(func(e statuswatch.Event) {
			if e.Kind == statuswatch.IncidentResolved {
				slog.Info("incident closed", "provider", e.Provider, "incident", e.EntityName)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create watcher", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  Status Watch demo")
	fmt.Println()
	fmt.Println("  Dashboard:   http://localhost:8080")
	fmt.Println("  Event feed:  curl -N http://localhost:8080/events")
	fmt.Println("  Mock page:   " + mock.URL + "/api/v2/incidents.json")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil {
		slog.Error("statuswatch error", "error", err)
		os.Exit(1)
	}
}
