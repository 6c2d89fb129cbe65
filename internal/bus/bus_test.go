package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jpalmerr/statuswatch/internal/event"
)

func TestNew_DefaultCapacity(t *testing.T) {
	b := New(0)
	if got := cap(b.ch); got != DefaultCapacity {
		t.Errorf("cap = %d, want %d", got, DefaultCapacity)
	}
}

// TestBus_PerProducerOrder verifies that each producer's events come out in
// the order it published them, whatever the interleaving.
func TestBus_PerProducerOrder(t *testing.T) {
	b := New(4)
	const producers, perProducer = 5, 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				ev := event.Event{Provider: fmt.Sprint(p), EntityID: fmt.Sprint(i)}
				if err := b.Publish(context.Background(), ev); err != nil {
					t.Errorf("Publish() error = %v", err)
					return
				}
			}
		}(p)
	}

	next := make(map[string]int, producers)
	for n := 0; n < producers*perProducer; n++ {
		select {
		case ev := <-b.Events():
			want := fmt.Sprint(next[ev.Provider])
			if ev.EntityID != want {
				t.Fatalf("producer %s: got event %s, want %s", ev.Provider, ev.EntityID, want)
			}
			next[ev.Provider]++
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d events, want %d", n, producers*perProducer)
		}
	}
	wg.Wait()
}

// TestBus_BackpressureBlocks verifies a full bus blocks producers rather
// than dropping events.
func TestBus_BackpressureBlocks(t *testing.T) {
	b := New(1)
	ctx := context.Background()

	if err := b.Publish(ctx, event.Event{EntityID: "1"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	published := make(chan struct{})
	go func() {
		_ = b.Publish(ctx, event.Event{EntityID: "2"})
		close(published)
	}()

	select {
	case <-published:
		t.Fatal("Publish() returned while bus was full")
	case <-time.After(50 * time.Millisecond):
	}

	if ev := <-b.Events(); ev.EntityID != "1" {
		t.Errorf("first event = %s, want 1", ev.EntityID)
	}
	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("Publish() still blocked after consumer read")
	}
	if ev := <-b.Events(); ev.EntityID != "2" {
		t.Errorf("second event = %s, want 2", ev.EntityID)
	}
}

func TestBus_PublishCancelled(t *testing.T) {
	b := New(1)
	_ = b.Publish(context.Background(), event.Event{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := b.Publish(ctx, event.Event{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Publish() error = %v, want %v", err, context.DeadlineExceeded)
	}
	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}
}
