package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rentwise/internal/ports"
)

// ErrUnknownSchedule marks a cadence label outside the supported set.
var ErrUnknownSchedule = errors.New("unknown schedule label")

// CustomScheduleLabel is reported when the persisted expression does
// not match any supported cadence.
const CustomScheduleLabel = "Custom Schedule"

type cadence struct {
	Label string
	Expr  string
}

// cadences is the fixed set of supported sync schedules, in the order
// they are presented to administrators.
var cadences = []cadence{
	{"Every 6 hours", "0 */6 * * *"},
	{"Daily at 2:00 AM", "0 2 * * *"},
	{"Weekly on Sunday", "0 2 * * 0"},
	{"Monthly", "0 2 1 * *"},
}

// ScheduleManager binds the persisted cadence to the cron runner and
// the sync job. Exactly one schedule is active at a time; updating it
// replaces the running timer.
type ScheduleManager struct {
	store  ports.ScheduleStore
	runner ports.CronRunner
	job    func()
	logger *slog.Logger
}

// NewScheduleManager wires the schedule store, timer and sync job.
func NewScheduleManager(store ports.ScheduleStore, runner ports.CronRunner, job func(), logger *slog.Logger) *ScheduleManager {
	return &ScheduleManager{store: store, runner: runner, job: job, logger: logger}
}

// Start loads the persisted expression and installs the timer. An
// invalid stored expression is logged and leaves the scheduler idle
// instead of crashing the process.
func (m *ScheduleManager) Start(ctx context.Context) error {
	expr, err := m.store.ScheduleExpression(ctx)
	if err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}

	if err := m.runner.Replace(expr, m.job); err != nil {
		if m.logger != nil {
			m.logger.Error("stored cron expression rejected, scheduler idle", "expression", expr, "error", err)
		}
	}

	m.runner.Start()
	return nil
}

// SetSchedule accepts a supported cadence label, persists its cron
// expression and reschedules the timer. An unrecognized label leaves
// the previous schedule unmodified.
func (m *ScheduleManager) SetSchedule(ctx context.Context, label string) error {
	expr := ""
	for _, c := range cadences {
		if c.Label == label {
			expr = c.Expr
			break
		}
	}
	if expr == "" {
		return fmt.Errorf("%w: %q", ErrUnknownSchedule, label)
	}

	if err := m.store.SaveScheduleExpression(ctx, expr); err != nil {
		return fmt.Errorf("persist schedule: %w", err)
	}

	if err := m.runner.Replace(expr, m.job); err != nil {
		return fmt.Errorf("reschedule: %w", err)
	}

	if m.logger != nil {
		m.logger.Info("sync schedule updated", "label", label, "expression", expr)
	}
	return nil
}

// Schedule returns the active cron expression and its human label.
func (m *ScheduleManager) Schedule(ctx context.Context) (string, string, error) {
	expr, err := m.store.ScheduleExpression(ctx)
	if err != nil {
		return "", "", fmt.Errorf("load schedule: %w", err)
	}
	return expr, ReadableLabel(expr), nil
}

// Labels lists the supported cadence labels in presentation order.
func Labels() []string {
	labels := make([]string, 0, len(cadences))
	for _, c := range cadences {
		labels = append(labels, c.Label)
	}
	return labels
}

// ReadableLabel maps a cron expression back to its cadence label.
func ReadableLabel(expr string) string {
	for _, c := range cadences {
		if c.Expr == expr {
			return c.Label
		}
	}
	return CustomScheduleLabel
}
