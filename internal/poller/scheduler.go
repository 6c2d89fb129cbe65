package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Scheduler launches a set of pollers, each after its own startup offset,
// and stops them together.
//
// Every poller runs in its own goroutine. A panic inside one poller is
// recovered and logged, and that poller restarts after one regular interval;
// other pollers are unaffected.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	pollers []*Poller
	stagger Stagger
	logger  *slog.Logger
	group   errgroup.Group
	cancel  context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewScheduler creates a [Scheduler] for the given pollers.
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop].
func NewScheduler(pollers []*Poller, stagger Stagger, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		pollers: pollers,
		stagger: stagger,
		logger:  logger,
	}
}

// Offsets returns the startup delay assigned to each poller, in order.
func (s *Scheduler) Offsets() []time.Duration {
	return s.stagger.Offsets(len(s.pollers))
}

// Start launches every poller in the background and returns immediately.
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, s.cancel = context.WithCancel(ctx)

	for i, offset := range s.Offsets() {
		p := s.pollers[i]
		s.logger.Debug("poller scheduled",
			"provider", p.target.Provider,
			"facet", string(p.target.Facet),
			"initial_delay", offset.String(),
		)
		s.group.Go(func() error {
			s.supervise(ctx, p, offset)
			return nil
		})
	}
}

// Stop cancels all pollers and blocks until every poller goroutine has
// returned. Stop is idempotent and safe to call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	_ = s.group.Wait()
}

// supervise runs p until ctx is done, restarting it after a panic.
func (s *Scheduler) supervise(ctx context.Context, p *Poller, offset time.Duration) {
	delay := offset
	for ctx.Err() == nil {
		if !s.runSafe(ctx, p, delay) {
			return
		}
		delay = p.target.Interval
	}
}

// runSafe runs the poller with panic recovery. It reports whether the poller
// panicked. The full stack trace is logged with a correlation ID.
func (s *Scheduler) runSafe(ctx context.Context, p *Poller, delay time.Duration) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("poller panic",
				"correlation_id", uuid.NewString(),
				"provider", p.target.Provider,
				"facet", string(p.target.Facet),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			panicked = true
		}
	}()
	p.Run(ctx, delay)
	return false
}
