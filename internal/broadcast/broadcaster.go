// Package broadcast fans events out to live streaming subscribers.
//
// A [Broadcaster] keeps a registry of subscribers, each with a bounded
// message buffer. Events are serialized once and pushed to every subscriber
// without blocking. A subscriber whose buffer is full is treated as broken:
// it is removed from the registry and its channel is closed, so the stream
// handler serving it ends. Subscribers only see events published after they
// joined; nothing is replayed.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jpalmerr/statuswatch/internal/event"
	"github.com/jpalmerr/statuswatch/internal/metrics"
)

// DefaultBufferSize is the per-subscriber message buffer.
const DefaultBufferSize = 100

// Message is one serialized event ready for a stream.
type Message struct {
	ID   string
	Data []byte
}

// Subscription is a live registration returned by [Broadcaster.Subscribe].
//
// Messages is closed when the subscription is removed, either by
// [Broadcaster.Unsubscribe] or because the subscriber fell behind.
type Subscription struct {
	ID       uuid.UUID
	Messages <-chan Message
}

// Broadcaster is a sink that pushes every event to all current subscribers.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[uuid.UUID]chan Message
	bufferSize  int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// New creates a [Broadcaster]. A bufferSize below 1 uses [DefaultBufferSize].
func New(bufferSize int, logger *slog.Logger, m *metrics.Metrics) *Broadcaster {
	if bufferSize < 1 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[uuid.UUID]chan Message),
		bufferSize:  bufferSize,
		logger:      logger,
		metrics:     m,
	}
}

// Subscribe registers a new subscriber.
//
// Caller must call [Broadcaster.Unsubscribe] when done.
func (b *Broadcaster) Subscribe() *Subscription {
	id := uuid.New()
	ch := make(chan Message, b.bufferSize)

	b.mu.Lock()
	b.subscribers[id] = ch
	n := len(b.subscribers)
	b.mu.Unlock()

	b.metrics.SetSubscribers(n)
	b.logger.Debug("subscriber added", "subscriber_id", id, "subscribers", n)
	return &Subscription{ID: id, Messages: ch}
}

// Unsubscribe removes a subscriber and closes its channel.
// Safe to call multiple times or with an unknown ID.
func (b *Broadcaster) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	n := len(b.subscribers)
	b.mu.Unlock()

	if ok {
		b.metrics.SetSubscribers(n)
		b.logger.Debug("subscriber removed", "subscriber_id", id, "subscribers", n)
	}
}

// Count returns the number of current subscribers.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Name implements dispatch.Sink.
func (b *Broadcaster) Name() string { return "broadcast" }

// Handle implements dispatch.Sink. It never blocks on a subscriber.
func (b *Broadcaster) Handle(_ context.Context, ev event.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	msg := Message{ID: ev.ID, Data: data}

	b.mu.Lock()
	var dropped []uuid.UUID
	for id, ch := range b.subscribers {
		select {
		case ch <- msg:
		default:
			delete(b.subscribers, id)
			close(ch)
			dropped = append(dropped, id)
		}
	}
	n := len(b.subscribers)
	b.mu.Unlock()

	for _, id := range dropped {
		b.metrics.SubscriberDropped()
		b.logger.Warn("subscriber dropped", "subscriber_id", id, "reason", "buffer full")
	}
	if len(dropped) > 0 {
		b.metrics.SetSubscribers(n)
	}
	return nil
}
