// Package maintenance runs periodic housekeeping jobs on a cron schedule.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Parthmh361/pure-harvest/pkg/logger"
	"github.com/Parthmh361/pure-harvest/pkg/metrics"
)

const (
	defaultRetentionDays = 90
	defaultPurgeSpec     = "@daily"

	retentionTaskName = "purge_read_notifications"
)

// Purger removes read notifications older than a cutoff.
// repository.NotificationStore satisfies it.
type Purger interface {
	PurgeRead(ctx context.Context, before time.Time) (int64, error)
}

// Task is one job run on every tick of the schedule.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Cleaner runs its tasks in order on a single cron entry. A tick that fires
// while the previous one is still running is skipped.
type Cleaner struct {
	tasks     []Task
	cron      *cron.Cron
	schedule  string
	retention int
	now       func() time.Time
	log       *zap.Logger
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron replaces the scheduler, mainly for tests.
func WithCron(c *cron.Cron) Option {
	return func(cl *Cleaner) {
		if c != nil {
			cl.cron = c
		}
	}
}

// WithNow overrides the clock used for retention cutoffs.
func WithNow(now func() time.Time) Option {
	return func(cl *Cleaner) {
		if now != nil {
			cl.now = now
		}
	}
}

// WithRetentionDays sets how many days read notifications are kept.
func WithRetentionDays(days int) Option {
	return func(cl *Cleaner) {
		if days > 0 {
			cl.retention = days
		}
	}
}

// WithSchedule sets the cron spec; descriptors such as @hourly are accepted.
func WithSchedule(spec string) Option {
	return func(cl *Cleaner) {
		if spec != "" {
			cl.schedule = spec
		}
	}
}

// WithTask appends a job that runs after the retention sweep.
func WithTask(task Task) Option {
	return func(cl *Cleaner) {
		if task.Run != nil {
			cl.tasks = append(cl.tasks, task)
		}
	}
}

// NewCleaner builds a Cleaner whose first task sweeps purger. A nil purger
// leaves only the tasks added through WithTask.
func NewCleaner(purger Purger, opts ...Option) *Cleaner {
	cl := &Cleaner{
		schedule:  defaultPurgeSpec,
		retention: defaultRetentionDays,
		now:       time.Now,
		log:       logger.WithModule("maintenance"),
	}
	for _, opt := range opts {
		opt(cl)
	}
	if purger != nil {
		retention := Task{Name: retentionTaskName, Run: func(ctx context.Context) error {
			_, err := PurgeReadNotifications(ctx, purger, cl.now(), cl.retention)
			return err
		}}
		cl.tasks = append([]Task{retention}, cl.tasks...)
	}
	if cl.cron == nil {
		cl.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cl
}

// Start schedules the tasks and starts the scheduler. With no tasks it does nothing.
func (cl *Cleaner) Start() error {
	if len(cl.tasks) == 0 {
		return nil
	}

	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		if err := cl.RunOnce(context.Background()); err != nil {
			cl.log.Warn("maintenance run failed", zap.Error(err))
		}
	}))
	if _, err := cl.cron.AddJob(cl.schedule, job); err != nil {
		return fmt.Errorf("maintenance: schedule %q: %w", cl.schedule, err)
	}
	cl.cron.Start()
	cl.log.Info("maintenance scheduled", zap.String("schedule", cl.schedule), zap.Int("tasks", len(cl.tasks)))
	return nil
}

// Stop halts the scheduler. The returned context is done once running jobs finish.
func (cl *Cleaner) Stop() context.Context {
	return cl.cron.Stop()
}

// RunOnce runs every task in order and returns their combined errors.
func (cl *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, task := range cl.tasks {
		started := time.Now()
		err := task.Run(ctx)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("maintenance: %s: %w", task.Name, err))
		}
		cl.log.Debug("maintenance task finished",
			zap.String("task", task.Name),
			zap.Duration("took", time.Since(started)),
			zap.Error(err),
		)
	}
	return errs
}

// PurgeReadNotifications removes notifications read more than retentionDays
// before now. Unread notifications are never removed.
func PurgeReadNotifications(ctx context.Context, purger Purger, now time.Time, retentionDays int) (int64, error) {
	if purger == nil {
		return 0, errors.New("purge notifications: store is required")
	}
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	removed, err := purger.PurgeRead(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}

	metrics.NotificationsPurged.Add(float64(removed))
	logger.WithModule("maintenance").Info("purged read notifications", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
	return removed, nil
}
