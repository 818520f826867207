// Package app wires one conversion run: configuration, logging, the
// modifier registry, the import source, the converter and the run report.
package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/venkytv/calendar-converter/internal/apperr"
	"github.com/venkytv/calendar-converter/internal/models"
	"github.com/venkytv/calendar-converter/pkg/calendar"
	"github.com/venkytv/calendar-converter/pkg/calendar/providers"
	"github.com/venkytv/calendar-converter/pkg/config"
	"github.com/venkytv/calendar-converter/pkg/converter"
	"github.com/venkytv/calendar-converter/pkg/modifier"
	"github.com/venkytv/calendar-converter/pkg/nats"
)

// Options are the command line inputs of a run.
type Options struct {
	ConfigPath     string
	ImportLocation string
	ExportPath     string
	Debug          bool
	// DryRun prepares and converts but does not write the export file.
	DryRun bool
	// LogOutput receives log records. Defaults to stderr.
	LogOutput io.Writer
}

// ReportPublisher publishes the report of a finished run.
type ReportPublisher interface {
	PublishReport(ctx context.Context, report *models.Report) error
	Close() error
}

// Runner executes conversion runs. Configuration is reloaded for every
// run so scheduled runs pick up edits.
type Runner struct {
	opts     Options
	now      func() time.Time
	newRunID func() string

	newPublisher func(cfg config.NATSConfig, logger *slog.Logger) (ReportPublisher, error)
}

// NewRunner creates a runner for opts.
func NewRunner(opts Options) *Runner {
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}
	return &Runner{
		opts:         opts,
		now:          time.Now,
		newRunID:     uuid.NewString,
		newPublisher: newNATSPublisher,
	}
}

func newNATSPublisher(cfg config.NATSConfig, logger *slog.Logger) (ReportPublisher, error) {
	return nats.NewPublisher(&nats.Config{URL: cfg.URL, Subject: cfg.Subject}, logger)
}

// RunOnce performs one prepare, convert and save cycle. The report is
// returned even when the run fails.
func (r *Runner) RunOnce(ctx context.Context) (*models.Report, error) {
	report := models.NewReport(r.newRunID(), r.opts.ImportLocation, r.opts.ExportPath, r.now())
	report.DryRun = r.opts.DryRun

	cfg, err := config.Load(r.opts.ConfigPath)
	if err != nil {
		logger := slog.New(newHandler(config.LoggingConfig{}, r.opts.Debug, r.opts.LogOutput))
		r.finish(ctx, nil, logger, report, err)
		return report, err
	}

	logger, closeLog, err := NewLogger(cfg.Logging, r.opts.Debug, r.opts.LogOutput)
	if err != nil {
		logger := slog.New(newHandler(cfg.Logging, r.opts.Debug, r.opts.LogOutput))
		r.finish(ctx, cfg, logger, report, err)
		return report, err
	}
	defer closeLog()
	logger = logger.With("run_id", report.RunID)

	logger.Debug("Starting conversion",
		"config", r.opts.ConfigPath,
		"import", r.opts.ImportLocation,
		"export", r.opts.ExportPath,
		"dry_run", r.opts.DryRun)

	err = r.convert(ctx, cfg, logger, report)
	r.finish(ctx, cfg, logger, report, err)
	return report, err
}

func (r *Runner) convert(ctx context.Context, cfg *config.Config, logger *slog.Logger, report *models.Report) error {
	// Modifiers are built before the import is touched so configuration
	// errors surface first.
	factory := modifier.NewFactory(logger)
	factory.SetNow(r.now)
	registry, err := factory.Build(cfg.ModifierEntries())
	if err != nil {
		return err
	}
	report.Modifiers = registry.Len()

	sources := calendar.NewDefaultSourceFactory()
	providers.InitializeBuiltinSources(sources, logger)

	source, err := sources.CreateSource(cfg.Import.SourceType(r.opts.ImportLocation))
	if err != nil {
		return err
	}
	defer source.Close()

	if err := source.Initialize(ctx, cfg.Import.SourceConfig(r.opts.ImportLocation)); err != nil {
		return err
	}

	conv := converter.NewConverter(&converter.Config{
		ExpandEnd:      cfg.Calendar.ExpandEndAt(r.now()),
		Workers:        cfg.Calendar.Workers,
		MaxOccurrences: cfg.Calendar.MaxOccurrences,
	}, source, r.opts.ExportPath, logger)
	conv.SetRegistry(registry)

	if err := conv.Prepare(ctx); err != nil {
		return err
	}
	if err := conv.Convert(ctx); err != nil {
		return err
	}

	stats := conv.Stats()
	report.Events = stats.Events
	report.Filtered = stats.Filtered
	report.Changed = stats.Changed
	report.Exported = stats.Exported
	report.Expanded = stats.Expanded

	if r.opts.DryRun {
		logger.Info("Dry run, export document not written", "path", r.opts.ExportPath)
		return nil
	}

	if err := conv.Save(ctx); err != nil {
		return err
	}
	if out := conv.Output(); out != nil {
		report.Bytes = out.Bytes
		report.Digest = out.Digest
	}
	return nil
}

// finish completes the report, logs it and publishes it when configured.
func (r *Runner) finish(ctx context.Context, cfg *config.Config, logger *slog.Logger, report *models.Report, err error) {
	report.Finish(r.now(), err, apperr.ExitCode(err))

	if err != nil {
		logger.Error("Conversion failed", report.LogAttrs()...)
	} else {
		logger.Info("Conversion finished", report.LogAttrs()...)
	}

	if cfg == nil || !cfg.Report.NATS.Enabled() {
		return
	}

	publisher, perr := r.newPublisher(cfg.Report.NATS, logger)
	if perr != nil {
		logger.Warn("Failed to connect report publisher", "error", perr)
		return
	}
	defer publisher.Close()

	if perr := publisher.PublishReport(context.WithoutCancel(ctx), report); perr != nil {
		logger.Warn("Failed to publish report", "error", perr)
	}
}
