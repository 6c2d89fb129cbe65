// Package server provides the optional HTTP surface of the watcher.
//
// Routes:
//
//   - GET /: the embedded dashboard page
//   - GET /events: Server-Sent Events stream of change events
//   - GET /ws: the same stream over a WebSocket
//   - GET /health: JSON liveness summary
//   - GET /metrics: Prometheus exposition
//
// Streaming clients are subscribers of a broadcast hub. Each connection
// subscribes on arrival and unsubscribes when the client goes away, the
// hub drops it, or the server shuts down. Shutdown is driven by context
// cancellation with a 5-second grace period for in-flight requests.
package server
