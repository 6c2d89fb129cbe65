// Package poller watches status-page feeds and turns changes into events.
//
// This package is internal to statuswatch. One [Poller] runs per
// (provider, facet) pair, where the facet is either the incidents feed or the
// components feed. Each poller owns its snapshot exclusively; no state is
// shared between pollers, so none of it needs locking.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with per-request timeouts and size limits
//   - [Backoff]: retry delay that doubles on failure and resets on success
//   - [Stagger]: one-time startup offsets that spread first requests out
//   - [Poller]: fetch, compare page timestamp, diff, publish, sleep
//   - [Scheduler]: starts every poller with its offset and stops them together
//
// Users of the statuswatch library should not need to interact with this
// package directly. Configuration is done through the main statuswatch package.
package poller
