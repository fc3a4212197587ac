// Package scheduler drives periodic auto-save checkpoints. The
// scheduler is an explicit object owned by the workspace-session
// lifetime, with cancellation tied to session teardown, instead of
// process-wide timers.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler fires a callback on a fixed interval until stopped.
type Scheduler struct {
	fire   func()
	logger *slog.Logger

	mu       sync.Mutex
	interval time.Duration
	ctx      context.Context // parent context from Start, kept for restarts
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a stopped scheduler.
func New(interval time.Duration, fire func(), logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		interval: interval,
		fire:     fire,
		logger:   logger,
	}
}

// Start begins firing. Starting a running scheduler restarts it, which
// also resets the next-fire deadline.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx = ctx
	s.startLocked()
}

func (s *Scheduler) startLocked() {
	s.stopLocked()

	runCtx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel
	interval := s.interval

	s.wg.Add(1)
	go s.loop(runCtx, interval)
	s.logger.Debug("auto-save scheduler started", "interval", interval)
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.fire()
		case <-ctx.Done():
			return
		}
	}
}

// Stop cancels the loop and waits for any in-progress fire to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Reset changes the interval. A running scheduler restarts its loop so
// the new interval takes effect immediately; a stopped one just records
// it for the next Start.
func (s *Scheduler) Reset(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interval = interval
	if s.cancel != nil {
		s.startLocked()
	}
}

// Interval returns the configured interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}
