// Package scheduler runs periodic metadata backfill.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Backfiller fills in missing background metadata.
type Backfiller interface {
	Backfill(ctx context.Context) (int, error)
}

// Scheduler runs a Backfiller on a cron schedule. Runs never overlap.
type Scheduler struct {
	job      Backfiller
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	running  bool
	logger   *slog.Logger
}

// New creates a Scheduler for schedule, a standard cron spec or descriptor
// such as "@every 6h".
func New(job Backfiller, schedule string) *Scheduler {
	return &Scheduler{
		job:      job,
		schedule: schedule,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:   slog.Default().With("component", "scheduler"),
	}
}

// Start schedules the job and stops it when ctx is done. An empty schedule
// disables the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("backfill schedule not configured, skipping scheduler")
		return nil
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule backfill: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("backfill scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	start := time.Now()
	filled, err := s.job.Backfill(ctx)
	if err != nil {
		s.logger.Error("scheduled backfill failed", "error", err)
		return
	}
	s.logger.Debug("scheduled backfill completed", "filled", filled, "elapsed", time.Since(start))
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("backfill scheduler stopped")
}

// IsRunning reports whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled run, or nil when not scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
