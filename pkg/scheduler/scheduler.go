// Package scheduler re-runs a conversion on a cron schedule and whenever
// one of a set of watched files changes.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/venkytv/calendar-converter/internal/apperr"
)

// RunFunc performs one conversion run.
type RunFunc func(ctx context.Context) error

// Config holds the scheduler configuration
type Config struct {
	// Schedule is a standard cron spec or descriptor such as "@hourly" or
	// "@every 30m". Empty disables timed runs.
	Schedule string `yaml:"schedule"`
	// WatchPaths are files whose changes trigger a run.
	WatchPaths []string `yaml:"watch_paths"`
	// Debounce collapses bursts of file events into one run.
	Debounce time.Duration `yaml:"debounce"`
}

// DefaultConfig returns a default scheduler configuration
func DefaultConfig() *Config {
	return &Config{
		Debounce: 500 * time.Millisecond,
	}
}

// Scheduler triggers runs from cron and file watch events. Runs never
// overlap: a trigger arriving while a run is in progress is skipped.
type Scheduler struct {
	config   *Config
	schedule cron.Schedule
	run      RunFunc
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	runMu sync.Mutex
	stats Stats
}

// Stats holds statistics about the scheduler
type Stats struct {
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	Skipped   int       `json:"skipped"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
	IsRunning bool      `json:"is_running"`
}

// NewScheduler creates a scheduler. An invalid cron spec is a
// configuration error.
func NewScheduler(config *Config, run RunFunc, logger *slog.Logger) (*Scheduler, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultConfig().Debounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	if run == nil {
		return nil, &apperr.PreconditionError{Operation: "create scheduler", Reason: "run function is nil"}
	}

	s := &Scheduler{
		config: config,
		run:    run,
		logger: logger,
	}

	if config.Schedule != "" {
		schedule, err := cron.ParseStandard(config.Schedule)
		if err != nil {
			return nil, &apperr.ConfigurationError{Key: "schedule", Message: fmt.Sprintf("invalid cron spec %q", config.Schedule), Err: err}
		}
		s.schedule = schedule
	}

	return s, nil
}

// Start begins timed and watch triggered runs. It does not run the
// conversion immediately. Runs, including those started with Trigger after
// Start, get a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	if len(s.config.WatchPaths) > 0 {
		w, err := newWatcher(s.config.WatchPaths, s.config.Debounce, s.logger)
		if err != nil {
			s.cancel()
			return fmt.Errorf("failed to watch files: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			w.run(s.ctx, func(path string) { s.Trigger("file changed: " + path) })
		}()
	}

	if s.schedule != nil {
		s.cron = cron.New(cron.WithLogger(cronLogger{s.logger}))
		s.cron.Schedule(s.schedule, cron.FuncJob(func() { s.Trigger("schedule") }))
		s.cron.Start()
	}

	s.running = true
	s.logger.Info("Starting scheduler",
		"schedule", s.config.Schedule,
		"watch", s.config.WatchPaths)

	return nil
}

// Stop stops triggering runs and waits for a run in progress to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	c, cancel := s.cron, s.cancel
	s.cron = nil
	s.mu.Unlock()

	s.logger.Info("Stopping scheduler")

	if c != nil {
		<-c.Stop().Done()
	}
	cancel()
	s.wg.Wait()

	// Wait for a run started by a manual trigger.
	s.runMu.Lock()
	s.runMu.Unlock()

	s.logger.Info("Scheduler stopped")
	return nil
}

// Trigger runs the conversion now unless a run is already in progress.
// It reports whether a run happened.
func (s *Scheduler) Trigger(reason string) bool {
	if !s.runMu.TryLock() {
		s.mu.Lock()
		s.stats.Skipped++
		s.mu.Unlock()
		s.logger.Warn("Skipping run, previous run still in progress", "reason", reason)
		return false
	}
	defer s.runMu.Unlock()

	ctx := s.runContext()
	s.logger.Info("Starting scheduled run", "reason", reason)
	err := s.run(ctx)

	s.mu.Lock()
	s.stats.Runs++
	s.stats.LastRun = time.Now()
	if err != nil {
		s.stats.Failures++
		s.stats.LastError = err.Error()
	} else {
		s.stats.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Scheduled run failed", "reason", reason, "error", err)
	}
	return true
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return s.ctx
	}
	return context.Background()
}

// GetStats returns scheduler statistics
func (s *Scheduler) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.IsRunning = s.running
	return stats
}

// cronLogger routes cron's own logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
