package shard

import (
	"context"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"
)

// retryDelay is how long the scheduler waits after failing to compute the
// next tick.
const retryDelay = 30 * time.Second

// Scheduler runs a job on a cron schedule. Runs never overlap: a tick that
// arrives while the job is still running is skipped.
type Scheduler struct {
	expr   string
	job    func(ctx context.Context) error
	logger *zap.Logger
}

// NewScheduler creates a scheduler for a cron expression.
func NewScheduler(expr string, job func(ctx context.Context) error, logger *zap.Logger) *Scheduler {
	return &Scheduler{expr: expr, job: job, logger: logger}
}

// Next returns the first tick strictly after t.
func (s *Scheduler) Next(t time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.expr, t, false)
}

// Run waits for each tick and runs the job until ctx is cancelled. Job
// errors are logged; the next tick retries.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler_started", zap.String("cron", s.expr))

	for {
		next, err := s.Next(time.Now())
		wait := time.Until(next)
		if err != nil {
			s.logger.Error("scheduler_next_tick_failed", zap.String("cron", s.expr), zap.Error(err))
			wait = retryDelay
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler_stopping")
			return nil
		case <-timer.C:
		}
		if err != nil {
			continue
		}

		start := time.Now()
		if err := s.job(ctx); err != nil {
			s.logger.Error("scheduled_job_failed", zap.String("cron", s.expr), zap.Error(err))
			continue
		}
		s.logger.Debug("scheduled_job_complete", zap.Duration("duration", time.Since(start)))
	}
}
