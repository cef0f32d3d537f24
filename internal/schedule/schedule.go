// Package schedule runs the scrape job on a fixed interval.
//
// A short initial delay lets the process finish starting up before the
// first run. Manual triggers share the same loop as timed ticks, so runs
// never overlap from the scheduler's side.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/pfrederiksen/sydney-events/internal/logger"
)

const (
	DefaultInterval     = 6 * time.Hour
	DefaultInitialDelay = 30 * time.Second
)

// Job is the unit of work the scheduler runs.
type Job func(ctx context.Context)

// Scheduler triggers a job periodically and on demand.
type Scheduler struct {
	interval     time.Duration
	initialDelay time.Duration
	job          Job

	trigger chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New creates a scheduler. A non-positive interval and a negative initial
// delay fall back to the defaults; a zero delay runs immediately.
func New(interval, initialDelay time.Duration, job Job) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if initialDelay < 0 {
		initialDelay = DefaultInitialDelay
	}
	return &Scheduler{
		interval:     interval,
		initialDelay: initialDelay,
		job:          job,
		trigger:      make(chan struct{}, 1),
	}
}

// Start launches the scheduling loop. The first run happens after the
// initial delay, then every interval. Start returns immediately; the loop
// runs until Stop or the context ends.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return // already started
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.stopped = make(chan struct{})

	logger.Info("scheduler started", logger.Fields{
		"interval":      s.interval.String(),
		"initial_delay": s.initialDelay.String(),
	})
	go s.loop(ctx, s.stopped)
}

func (s *Scheduler) loop(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)

	initial := time.NewTimer(s.initialDelay)
	defer initial.Stop()
	select {
	case <-ctx.Done():
		return
	case <-initial.C:
		s.job(ctx)
	case <-s.trigger:
		s.job(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.job(ctx)
		case <-s.trigger:
			s.job(ctx)
		}
	}
}

// TriggerNow requests an immediate run. Requests arriving while a run is
// pending coalesce into a single run.
func (s *Scheduler) TriggerNow() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Stop halts the loop and waits for it to exit. A job in flight runs to
// completion only as far as its context allows; the context is cancelled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, stopped := s.cancel, s.stopped
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
	logger.Info("scheduler stopped", nil)
}
