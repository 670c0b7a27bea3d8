// Package scheduler runs the periodic sweep that archives expired prompts.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/longregen/memoir/internal/platform/logger"
	"github.com/longregen/memoir/internal/ports"
)

// Expirer is the part of the lifecycle manager the sweep drives
type Expirer interface {
	ExpireStale(ctx context.Context, now time.Time, limit int) (int, error)
}

// Scheduler fires ExpireStale on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	cron    *cron.Cron
	expirer Expirer
	clock   ports.Clock
	batch   int
	log     *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

func New(expirer Expirer, clock ports.Clock, batch int, log *logger.Logger) *Scheduler {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		expirer: expirer,
		clock:   clock,
		batch:   batch,
		log:     log,
	}
}

// Sweep archives up to one batch of expired prompts and reports how many were retired
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	started := s.clock.Now()
	n, err := s.expirer.ExpireStale(ctx, started, s.batch)
	if err != nil {
		s.log.Error("expiry sweep failed", "expired", n, "error", err)
		return n, err
	}
	s.log.Info("expiry sweep finished", "expired", n, "duration", time.Since(started).String())
	return n, nil
}

// Start registers the sweep under spec and starts the cron runner.
// Jobs run with a context that Stop cancels.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("scheduler already started")
	}

	jobCtx, cancel := context.WithCancel(ctx)
	if _, err := s.cron.AddFunc(spec, func() {
		_, _ = s.Sweep(jobCtx)
	}); err != nil {
		cancel()
		return fmt.Errorf("invalid expire schedule %q: %w", spec, err)
	}
	s.cancel = cancel

	s.cron.Start()
	s.log.Info("expiry scheduler started", "schedule", spec, "batch", s.batch)
	return nil
}

// Stop waits for a running sweep to return, then cancels the job context
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cancel()
	s.cancel = nil
	s.log.Info("expiry scheduler stopped")
}

// Running reports whether a schedule is registered and Stop has not been called
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
