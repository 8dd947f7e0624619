package coordinator

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is how often the pool is refreshed while the driver is
// online with no active task.
const DefaultPollInterval = 30 * time.Second

// Scheduler drives the periodic pool refresh and the one-time session-start
// hydration. It is an explicit object with Start/Stop semantics: going
// offline, gaining an active task, or stopping all halt the interval
// immediately, and Stop does not return until the polling goroutine is gone.
type Scheduler struct {
	coord    *Coordinator
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	kick   chan struct{}
}

// NewScheduler binds a scheduler to a coordinator. interval <= 0 falls back
// to DefaultPollInterval.
func NewScheduler(c *Coordinator, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	s := &Scheduler{
		coord:    c,
		interval: interval,
		kick:     make(chan struct{}, 1),
	}
	c.attachScheduler(s)
	return s
}

// Start hydrates active task and history, then begins polling. Calling Start
// on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
}

// Stop halts polling and waits for the goroutine to exit. Safe to call on a
// stopped scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Kick wakes the run loop to re-evaluate the polling condition. Non-blocking;
// redundant kicks coalesce.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.coord.Hydrate(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	if !s.coord.shouldPoll() {
		ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
			if s.coord.shouldPoll() {
				ticker.Reset(s.interval)
			} else {
				ticker.Stop()
			}
		case <-ticker.C:
			if s.coord.shouldPoll() {
				if err := s.coord.RefreshPool(ctx); err != nil {
					// Already reported; keep polling.
					continue
				}
			}
		}
	}
}
