package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jpalmerr/statuswatch/internal/event"
)

func newTestPollers(fs *feedServer, pub Publisher) []*Poller {
	return []*Poller{
		newTestPoller(fs, FacetIncidents, pub),
		newTestPoller(fs, FacetComponents, pub),
	}
}

// TestScheduler_StopBeforeStart verifies that calling Stop() on a scheduler
// that was never started does not panic and is a safe no-op.
func TestScheduler_StopBeforeStart(t *testing.T) {
	fs := newFeedServer(t)
	scheduler := NewScheduler(newTestPollers(fs, &recorder{}), Stagger{}, testLogger())

	scheduler.Stop()

	// Start after Stop is a no-op
	scheduler.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	if n := fs.requests.Load(); n != 0 {
		t.Errorf("requests after Stop then Start = %d, want 0", n)
	}
}

// TestScheduler_StopTwice verifies that Stop() is idempotent.
func TestScheduler_StopTwice(t *testing.T) {
	fs := newFeedServer(t)
	scheduler := NewScheduler(newTestPollers(fs, &recorder{}), Stagger{}, testLogger())
	scheduler.Start(context.Background())

	scheduler.Stop()
	scheduler.Stop()
}

// TestScheduler_PollsEveryFacet verifies that each poller performs its first
// cycle when started with a zero stagger window.
func TestScheduler_PollsEveryFacet(t *testing.T) {
	fs := newFeedServer(t)
	fs.set("/api/v2/incidents.json", `{"page":{"updated_at":"T1"},"incidents":[{"id":"1","name":"X","status":"investigating"}]}`)
	fs.set("/api/v2/components.json", `{"page":{"updated_at":"T1"},"components":[]}`)

	rec := &recorder{}
	scheduler := NewScheduler(newTestPollers(fs, rec), Stagger{}, testLogger())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	deadline := time.After(2 * time.Second)
	for fs.requests.Load() < 2 || rec.count() < 1 {
		select {
		case <-deadline:
			t.Fatalf("requests = %d, events = %d, want 2 and 1", fs.requests.Load(), rec.count())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// TestScheduler_StopCancelsStaggerWait verifies Stop returns promptly while
// pollers are still waiting for their initial delay.
func TestScheduler_StopCancelsStaggerWait(t *testing.T) {
	fs := newFeedServer(t)
	scheduler := NewScheduler(newTestPollers(fs, &recorder{}), Stagger{Window: time.Hour}, testLogger())
	scheduler.Start(context.Background())

	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return")
	}
}

func TestScheduler_Offsets(t *testing.T) {
	fs := newFeedServer(t)
	scheduler := NewScheduler(newTestPollers(fs, &recorder{}), Stagger{Window: 10 * time.Second}, testLogger())

	got := scheduler.Offsets()
	if len(got) != 2 || got[0] != 0 || got[1] != 5*time.Second {
		t.Errorf("Offsets() = %v, want [0s 5s]", got)
	}
}

// TestScheduler_ConcurrentStartStop verifies that calling Start() and Stop()
// concurrently does not cause a race condition or panic.
// Run with: go test -race ./internal/poller/...
func TestScheduler_ConcurrentStartStop(t *testing.T) {
	fs := newFeedServer(t)

	for i := 0; i < 50; i++ {
		scheduler := NewScheduler(newTestPollers(fs, &recorder{}), Stagger{Window: time.Minute}, testLogger())

		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			scheduler.Start(context.Background())
		}()

		go func() {
			defer wg.Done()
			scheduler.Stop()
		}()

		wg.Wait()
		scheduler.Stop()
	}
}

// panicPublisher panics on the first event.
type panicPublisher struct{}

func (panicPublisher) Publish(context.Context, event.Event) error {
	panic("boom")
}

// TestScheduler_RecoversPollerPanic verifies a panicking poller does not
// take the process down and Stop still returns.
func TestScheduler_RecoversPollerPanic(t *testing.T) {
	fs := newFeedServer(t)
	fs.set("/api/v2/incidents.json", `{"page":{"updated_at":"T1"},"incidents":[{"id":"1","name":"X","status":"investigating"}]}`)

	p := newTestPoller(fs, FacetIncidents, panicPublisher{})
	scheduler := NewScheduler([]*Poller{p}, Stagger{}, testLogger())
	scheduler.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for fs.requests.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("poller never fetched")
		case <-time.After(10 * time.Millisecond):
		}
	}

	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return after poller panic")
	}
}
