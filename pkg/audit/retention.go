package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig controls scheduled audit-log pruning.
type RetentionConfig struct {
	// RetentionDays is how long entries are kept. Zero disables
	// pruning.
	RetentionDays int

	// PruneSchedule is a cron expression for when pruning runs.
	// Common expressions:
	//   - "0 3 * * *"   - daily at 3 AM
	//   - "0 */6 * * *" - every 6 hours
	// Empty disables the scheduler.
	PruneSchedule string
}

// Scheduler runs audit-log pruning on a cron schedule.
type Scheduler struct {
	log     Log
	config  RetentionConfig
	cron    *cron.Cron
	logger  *slog.Logger
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a retention scheduler for the given audit log.
func NewScheduler(log Log, config RetentionConfig) *Scheduler {
	return &Scheduler{
		log:    log,
		config: config,
		cron:   cron.New(),
		logger: slog.Default().With("component", "audit.scheduler"),
	}
}

// Start begins scheduled pruning. If either the schedule or the
// retention period is unset, Start logs and does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.PruneSchedule == "" || s.config.RetentionDays <= 0 {
		s.logger.Info("audit retention not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.config.PruneSchedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.config.PruneSchedule, err)
	}

	_, err := s.cron.AddFunc(s.config.PruneSchedule, func() {
		s.runPruning(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule audit pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("audit retention scheduler started",
		"schedule", s.config.PruneSchedule,
		"retention_days", s.config.RetentionDays,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runPruning executes one pruning cycle.
func (s *Scheduler) runPruning(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)

	deleted, err := s.log.Prune(ctx, cutoff)
	if err != nil {
		s.logger.Error("scheduled audit pruning failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("scheduled audit pruning completed", "deleted_count", deleted)
	} else {
		s.logger.Debug("scheduled audit pruning completed, no entries deleted")
	}
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("audit retention scheduler stopped")
	}
}
