// Package caldav imports calendars from CalDAV servers that publish an
// authenticated iCalendar export URL.
package caldav

import (
	"context"
	"io"
	"log/slog"

	"github.com/venkytv/calendar-converter/internal/apperr"
	"github.com/venkytv/calendar-converter/pkg/calendar"
	"github.com/venkytv/calendar-converter/pkg/calendar/ical"
	"github.com/venkytv/calendar-converter/pkg/retry"
)

// Source is a CalDAV source that fetches iCal data via HTTP basic auth
type Source struct {
	http   *ical.Source
	logger *slog.Logger
}

// NewSource creates a new CalDAV source
func NewSource() *Source {
	return &Source{
		http:   ical.NewSource(),
		logger: slog.Default(),
	}
}

// Name returns the source name
func (s *Source) Name() string {
	return "CalDAV"
}

// Type returns the source type identifier
func (s *Source) Type() string {
	return calendar.TypeCalDAV
}

// SetLogger sets the logger for this source
func (s *Source) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
		s.http.SetLogger(logger)
	}
}

// SetRetryConfig replaces the backoff policy used for fetches
func (s *Source) SetRetryConfig(cfg *retry.Config) {
	s.http.SetRetryConfig(cfg)
}

// Initialize validates the credentials and sets up the HTTP fetch
func (s *Source) Initialize(ctx context.Context, cfg calendar.SourceConfig) error {
	if cfg.Location == "" {
		return &apperr.ConfigurationError{Key: "import", Message: "CalDAV URL is required"}
	}
	if cfg.Username == "" {
		return &apperr.ConfigurationError{Key: "import.username", Message: "CalDAV username is required"}
	}
	if cfg.Password == "" {
		return &apperr.ConfigurationError{Key: "import.password", Message: "CalDAV password is required"}
	}

	if err := s.http.Initialize(ctx, cfg); err != nil {
		return err
	}
	s.logger.Info("Initialized CalDAV source", "url", cfg.Location, "username", cfg.Username)
	return nil
}

// Open fetches the calendar document
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	return s.http.Open(ctx)
}

// Close cleans up resources
func (s *Source) Close() error {
	return s.http.Close()
}
