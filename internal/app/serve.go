package app

import (
	"context"
	"log/slog"

	"github.com/venkytv/calendar-converter/pkg/calendar"
	"github.com/venkytv/calendar-converter/pkg/config"
	"github.com/venkytv/calendar-converter/pkg/scheduler"
)

// ServeOptions select what re-triggers a run.
type ServeOptions struct {
	// Schedule is a cron spec. Empty disables timed runs.
	Schedule string
	// Watch re-runs when the configuration or a local import file changes.
	Watch bool
}

// Serve runs the conversion once, then keeps re-running it until ctx is
// cancelled. Failed runs are logged and reported but do not end the loop.
func (r *Runner) Serve(ctx context.Context, opts ServeOptions) error {
	logger := slog.New(newHandler(config.LoggingConfig{}, r.opts.Debug, r.opts.LogOutput))

	cfg := scheduler.DefaultConfig()
	cfg.Schedule = opts.Schedule
	if opts.Watch {
		cfg.WatchPaths = append(cfg.WatchPaths, r.opts.ConfigPath)
		if calendar.DetectType(r.opts.ImportLocation) == calendar.TypeFile {
			cfg.WatchPaths = append(cfg.WatchPaths, r.opts.ImportLocation)
		}
	}

	sched, err := scheduler.NewScheduler(cfg, func(ctx context.Context) error {
		_, err := r.RunOnce(ctx)
		return err
	}, logger)
	if err != nil {
		return err
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}

	sched.Trigger("startup")

	<-ctx.Done()

	if err := sched.Stop(); err != nil {
		return err
	}

	stats := sched.GetStats()
	logger.Info("Stopped re-running conversions",
		"runs", stats.Runs,
		"failures", stats.Failures,
		"skipped", stats.Skipped)
	return nil
}
