package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// RunnerConfig holds the cron specs of both passes.
type RunnerConfig struct {
	GenerateSchedule string
	DispatchSchedule string
	Location         *time.Location
}

// Runner triggers the scheduler's passes on cron schedules.
type Runner struct {
	cron      *cron.Cron
	scheduler *Scheduler
	logger    *logging.Logger
}

// NewRunner registers both passes. A pass still running when its next tick
// arrives skips that tick.
func NewRunner(scheduler *Scheduler, cfg RunnerConfig, logger *logging.Logger) (*Runner, error) {
	if logger == nil {
		logger = logging.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{logger: logger.Component("reminders.cron")}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	r := &Runner{cron: c, scheduler: scheduler, logger: logger}

	if _, err := c.AddFunc(cfg.GenerateSchedule, func() {
		_, _ = scheduler.Generate(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("reminders: generate schedule %q: %w", cfg.GenerateSchedule, err)
	}
	if _, err := c.AddFunc(cfg.DispatchSchedule, func() {
		_, _ = scheduler.Dispatch(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("reminders: dispatch schedule %q: %w", cfg.DispatchSchedule, err)
	}
	return r, nil
}

// Start begins scheduling in the background.
func (r *Runner) Start() {
	r.cron.Start()
	r.logger.Info("reminder runner started", "jobs", len(r.cron.Entries()))
}

// Stop halts scheduling and waits for a running pass to finish or ctx to end.
func (r *Runner) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		r.logger.Info("reminder runner stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
