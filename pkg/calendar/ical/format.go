package ical

import (
	"io"
	"log/slog"
	"time"
)

// Format bundles parsing, serialization, validation and expansion behind
// one value so callers can depend on a small interface.
type Format struct {
	logger         *slog.Logger
	maxOccurrences int
}

// NewFormat creates a Format. maxOccurrences <= 0 selects the default cap.
func NewFormat(maxOccurrences int, logger *slog.Logger) *Format {
	if logger == nil {
		logger = slog.Default()
	}
	return &Format{
		logger:         logger,
		maxOccurrences: maxOccurrences,
	}
}

// Parse implements the converter format.
func (f *Format) Parse(r io.Reader) (*Document, error) {
	return Parse(r)
}

// Write implements the converter format.
func (f *Format) Write(w io.Writer, d *Document) error {
	return Write(w, d)
}

// Validate implements the converter format.
func (f *Format) Validate(d *Document) []Problem {
	return Validate(d)
}

// Expand implements the converter format.
func (f *Format) Expand(d *Document, start, end time.Time) (*Document, error) {
	result, err := Expand(d, ExpandConfig{
		RangeStart:             start,
		RangeEnd:               end,
		MaxOccurrencesPerEvent: f.maxOccurrences,
		Logger:                 f.logger,
	})
	if err != nil {
		return nil, err
	}
	f.logger.Debug("Expanded recurring events",
		"events_before", d.Len(),
		"events_after", result.Document.Len(),
		"window_start", start,
		"window_end", end)
	return result.Document, nil
}
