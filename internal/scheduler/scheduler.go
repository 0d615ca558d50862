package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Maintainer is the part of the orchestrator the periodic jobs drive.
type Maintainer interface {
	RefreshAll(ctx context.Context) error
	PruneAll(ctx context.Context) error
}

// Scheduler runs the refresh and prune sweeps on cron specs with a seconds
// field.
type Scheduler struct {
	cron    *cron.Cron
	target  Maintainer
	logger  *zap.Logger
	ctx     context.Context
	timeout time.Duration
}

// New creates a scheduler. Jobs inherit ctx and are bounded by timeout
// (zero means no bound).
func New(ctx context.Context, target Maintainer, logger *zap.Logger, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		target:  target,
		logger:  logger,
		ctx:     ctx,
		timeout: timeout,
	}
}

// Register adds the refresh and prune jobs.
func (s *Scheduler) Register(refreshCron, pruneCron string) error {
	if _, err := s.cron.AddFunc(refreshCron, s.RunRefreshNow); err != nil {
		return fmt.Errorf("register refresh job: %w", err)
	}
	if _, err := s.cron.AddFunc(pruneCron, s.RunPruneNow); err != nil {
		return fmt.Errorf("register prune job: %w", err)
	}
	return nil
}

// Start starts the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop halts the loop and waits for running jobs, or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}

// RunRefreshNow runs the refresh sweep once.
func (s *Scheduler) RunRefreshNow() {
	s.run("refresh", s.target.RefreshAll)
}

// RunPruneNow runs the prune sweep once.
func (s *Scheduler) RunPruneNow() {
	s.run("prune", s.target.PruneAll)
}

func (s *Scheduler) run(name string, job func(context.Context) error) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error("sweep failed", zap.String("job", name), zap.Error(err))
		return
	}
	s.logger.Debug("sweep done", zap.String("job", name), zap.Duration("took", time.Since(start)))
}
