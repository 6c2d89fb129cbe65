// Package statuswatch watches Statuspage-style status pages and reports
// incident and component changes as a stream of events.
//
// For every configured [Provider] the watcher polls two feeds,
// incidents.json and components.json, each on its own schedule. Each poll
// is compared with the previous one and the differences become [Event]
// values: an incident created, updated or resolved, or a component changing
// status. Events are written to the console, passed to any registered
// callbacks, and, when the web surface is enabled, streamed to browsers.
//
// # Quick Start
//
//	p, _ := statuswatch.NewProvider("OpenAI API", "https://status.openai.com/api/v2")
//	w, _ := statuswatch.New(statuswatch.WithProvider(p))
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	w.Start(ctx) // blocks until ctx is cancelled
//
// # Polling
//
// A feed is fetched every poll interval. After a failure the delay doubles,
// capped at 5 minutes, and drops back to the interval on the next success.
// A feed whose page.updated_at has not moved is not diffed again. Incidents
// already resolved when the watcher starts are ignored; incidents still open
// are reported as created.
//
// # Web surface
//
// With [WithWeb] the watcher serves:
//
//   - GET /: a live event page
//   - GET /events: Server-Sent Events, one frame per event
//   - GET /ws: the same events over a WebSocket
//   - GET /health: JSON liveness summary
//   - GET /metrics: Prometheus metrics
//
// Streaming clients see only events produced after they connect. A client
// that falls behind is disconnected rather than slowing anyone else down.
//
// # Architecture
//
//   - internal/poller: HTTP client, pollers, backoff, startup stagger
//   - internal/bus: bounded FIFO between pollers and the dispatcher
//   - internal/dispatch: single consumer that delivers events to sinks
//   - internal/sink: console and callback sinks
//   - internal/broadcast: subscriber registry for streaming clients
//   - internal/server: HTTP transport
//   - internal/metrics: Prometheus collectors
//   - dashboard: embedded web UI
package statuswatch
