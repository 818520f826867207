package modifier

import (
	"log/slog"
	"time"

	"github.com/venkytv/calendar-converter/internal/apperr"
	"github.com/venkytv/calendar-converter/pkg/calendar/ical"
	"github.com/venkytv/calendar-converter/pkg/timestamp"
)

// FilterTimeBefore excludes events starting at or before a cutoff.
type FilterTimeBefore struct {
	cutoff time.Time
	logger *slog.Logger
}

// NewFilterTimeBefore creates a filter with the given cutoff.
func NewFilterTimeBefore(cutoff time.Time, logger *slog.Logger) *FilterTimeBefore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilterTimeBefore{cutoff: cutoff, logger: logger}
}

func newFilterTimeBefore(param Param, opts Options) (Modifier, error) {
	var raw string
	if err := param.Decode(&raw); err != nil {
		return nil, &apperr.ConfigurationError{
			Key:     string(KindFilterTimeBefore),
			Message: "expected a date/time value",
			Err:     err,
		}
	}
	cutoff, err := timestamp.Parse(raw, opts.Now())
	if err != nil {
		return nil, &apperr.ConfigurationError{Key: string(KindFilterTimeBefore), Err: err}
	}
	return NewFilterTimeBefore(cutoff, opts.Logger), nil
}

// Kind implements Modifier.
func (f *FilterTimeBefore) Kind() Kind { return KindFilterTimeBefore }

// Cutoff returns the configured cutoff.
func (f *FilterTimeBefore) Cutoff() time.Time { return f.cutoff }

// Process implements Modifier. Events without a usable start are kept.
func (f *FilterTimeBefore) Process(e *ical.Event) Result {
	start, ok := e.Start()
	if !ok {
		f.logger.Debug("Event has no usable start, keeping it", "uid", e.UID())
		return Unchanged
	}
	if !start.After(f.cutoff) {
		f.logger.Debug("Filtering event starting before cutoff",
			"uid", e.UID(),
			"start", start,
			"cutoff", f.cutoff)
		return Excluded
	}
	return Unchanged
}
