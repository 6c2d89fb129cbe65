package broadcast

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/jpalmerr/statuswatch/internal/event"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_DefaultBuffer(t *testing.T) {
	b := New(0, nil, nil)
	if b.bufferSize != DefaultBufferSize {
		t.Errorf("bufferSize = %d, want %d", b.bufferSize, DefaultBufferSize)
	}
	if b.Count() != 0 {
		t.Errorf("Count() = %d, want 0", b.Count())
	}
}

func TestBroadcaster_SubscribeReceives(t *testing.T) {
	b := New(10, testLogger(), nil)
	sub := b.Subscribe()
	defer b.Unsubscribe(sub.ID)

	ev := event.Event{ID: "ev-1", Kind: event.IncidentCreated, Provider: "P", EntityName: "X", NewStatus: "investigating"}
	if err := b.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	msg := <-sub.Messages
	if msg.ID != "ev-1" {
		t.Errorf("msg.ID = %q, want ev-1", msg.ID)
	}
	var w event.Wire
	if err := json.Unmarshal(msg.Data, &w); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if w.Kind != event.IncidentCreated || w.EntityName != "X" {
		t.Errorf("payload = %+v, want incident_created for X", w)
	}
}

func TestBroadcaster_NoReplay(t *testing.T) {
	b := New(10, testLogger(), nil)
	_ = b.Handle(context.Background(), event.Event{ID: "before"})

	sub := b.Subscribe()
	defer b.Unsubscribe(sub.ID)

	select {
	case msg := <-sub.Messages:
		t.Errorf("late subscriber received %q, want nothing", msg.ID)
	default:
	}
}

// TestBroadcaster_BrokenSubscriberRemoved verifies that a subscriber that
// cannot accept a message is removed while the others keep receiving.
func TestBroadcaster_BrokenSubscriberRemoved(t *testing.T) {
	b := New(1, testLogger(), nil)
	slow := b.Subscribe()
	fast := b.Subscribe()
	defer b.Unsubscribe(fast.ID)

	_ = b.Handle(context.Background(), event.Event{ID: "1"})
	<-fast.Messages

	// slow never reads, so its single slot is still occupied
	_ = b.Handle(context.Background(), event.Event{ID: "2"})

	if b.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", b.Count())
	}
	if msg := <-fast.Messages; msg.ID != "2" {
		t.Errorf("fast subscriber got %q, want 2", msg.ID)
	}

	// the buffered message is still readable, then the channel is closed
	if msg := <-slow.Messages; msg.ID != "1" {
		t.Errorf("slow subscriber got %q, want 1", msg.ID)
	}
	if _, ok := <-slow.Messages; ok {
		t.Error("slow subscriber channel still open")
	}

	// unsubscribing an already removed subscriber is a no-op
	b.Unsubscribe(slow.ID)
}

func TestBroadcaster_UnsubscribeIdempotent(t *testing.T) {
	b := New(1, testLogger(), nil)
	sub := b.Subscribe()

	b.Unsubscribe(sub.ID)
	b.Unsubscribe(sub.ID)
	b.Unsubscribe(uuid.New())

	if _, ok := <-sub.Messages; ok {
		t.Error("channel still open after Unsubscribe")
	}
	if b.Count() != 0 {
		t.Errorf("Count() = %d, want 0", b.Count())
	}
}

func TestBroadcaster_NoSubscribers(t *testing.T) {
	b := New(1, testLogger(), nil)
	if err := b.Handle(context.Background(), event.Event{ID: "1"}); err != nil {
		t.Errorf("Handle() error = %v, want nil", err)
	}
}

// TestBroadcaster_ConcurrentAccess exercises subscribe, unsubscribe and
// delivery from many goroutines.
// Run with: go test -race ./internal/broadcast/...
func TestBroadcaster_ConcurrentAccess(t *testing.T) {
	b := New(DefaultBufferSize, testLogger(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				sub := b.Subscribe()
				b.Unsubscribe(sub.ID)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = b.Handle(context.Background(), event.Event{ID: "x"})
		}
	}()

	wg.Wait()
	if b.Count() != 0 {
		t.Errorf("Count() = %d, want 0", b.Count())
	}
}
