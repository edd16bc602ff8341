package broadcaster

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultMockInterval    = 100 * time.Millisecond
	DefaultAccountInterval = time.Minute
)

type SchedulerOption func(*Scheduler)

func WithMockInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.mockInterval = d
	}
}

func WithAccountInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.accountInterval = d
	}
}

// Scheduler drives the mock ticks and the accounting of a broadcaster.
type Scheduler struct {
	b               *Broadcaster
	mockInterval    time.Duration
	accountInterval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(b *Broadcaster, opts ...SchedulerOption) *Scheduler {
	ret := &Scheduler{
		b:               b,
		mockInterval:    DefaultMockInterval,
		accountInterval: DefaultAccountInterval,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Start launches the tickers. They stop when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(2)
	go s.every(ctx, s.mockInterval, s.b.MockTick)
	go s.every(ctx, s.accountInterval, func() { s.b.Account() })
}

// Stop waits for the running tick functions to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

func (s *Scheduler) every(ctx context.Context, d time.Duration, fn func()) {
	defer s.wg.Done()
	if d <= 0 {
		return
	}
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
