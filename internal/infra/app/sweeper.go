package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultSweepInterval = 10 * time.Minute

// SweepFunc deletes stale records and reports how many were removed.
type SweepFunc func(ctx context.Context) (int, error)

// SweepObserver receives the outcome of each sweep.
type SweepObserver interface {
	ObserveSweep(kind string, deleted int, elapsed time.Duration)
}

type sweepJob struct {
	kind string
	run  SweepFunc
}

// Sweeper periodically removes expired sessions, spent tokens and idle limiter windows.
type Sweeper struct {
	interval time.Duration
	jobs     []sweepJob
	observer SweepObserver
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper running every interval.
func NewSweeper(interval time.Duration, observer SweepObserver, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{interval: interval, observer: observer, logger: logger}
}

// Add registers a sweep under kind. Jobs run in registration order.
func (s *Sweeper) Add(kind string, run SweepFunc) *Sweeper {
	if run != nil {
		s.jobs = append(s.jobs, sweepJob{kind: kind, run: run})
	}
	return s
}

// RunOnce executes every job. All jobs are attempted even if earlier ones fail.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	var errs []error
	for _, job := range s.jobs {
		started := time.Now()
		deleted, err := job.run(ctx)
		elapsed := time.Since(started)

		if err != nil {
			s.logger.Warn("sweep failed", zap.String("kind", job.kind), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if s.observer != nil {
			s.observer.ObserveSweep(job.kind, deleted, elapsed)
		}
		if deleted > 0 {
			s.logger.Info("swept stale records",
				zap.String("kind", job.kind),
				zap.Int("deleted", deleted),
				zap.Duration("elapsed", elapsed),
			)
		}
	}
	return errors.Join(errs...)
}

// Start begins periodic sweeping until ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop halts the sweeper and waits for an in-flight run to finish.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.RunOnce(ctx)
		}
	}
}
