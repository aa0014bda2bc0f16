package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"rentwise/internal/ports"
)

// CronScheduler owns the single active sync timer. It is a small owned
// component rather than package-level state so tests and multiple
// environments can run their own instance.
type CronScheduler struct {
	mu     sync.Mutex
	runner *cron.Cron
	entry  cron.EntryID
	active bool
	logger *slog.Logger
}

var _ ports.CronRunner = (*CronScheduler)(nil)

// New builds a scheduler bound to the given location.
func New(loc *time.Location, logger *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &CronScheduler{
		runner: cron.New(cron.WithLocation(loc)),
		logger: logger,
	}
}

// Replace validates expr and atomically swaps the active timer onto it.
// On a validation error the previous timer keeps running.
func (s *CronScheduler) Replace(expr string, job func()) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		s.runner.Remove(s.entry)
		s.active = false
	}

	id, err := s.runner.AddFunc(expr, job)
	if err != nil {
		return fmt.Errorf("register cron job: %w", err)
	}
	s.entry = id
	s.active = true

	if s.logger != nil {
		s.logger.Info("cron timer installed", "expression", expr)
	}
	return nil
}

// Start begins firing registered entries. Idempotent.
func (s *CronScheduler) Start() {
	s.runner.Start()
}

// Stop halts the timer, waiting for a running job until ctx expires.
func (s *CronScheduler) Stop(ctx context.Context) error {
	done := s.runner.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
