// Package file imports calendars from the local filesystem.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/venkytv/calendar-converter/internal/apperr"
	"github.com/venkytv/calendar-converter/pkg/calendar"
)

// Source reads an iCalendar document from a local file
type Source struct {
	path   string
	logger *slog.Logger
}

// NewSource creates a new file source
func NewSource() *Source {
	return &Source{logger: slog.Default()}
}

// Name returns the source name
func (s *Source) Name() string {
	return "File"
}

// Type returns the source type identifier
func (s *Source) Type() string {
	return calendar.TypeFile
}

// SetLogger sets the logger for this source
func (s *Source) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Path returns the configured file path.
func (s *Source) Path() string {
	return s.path
}

// Initialize records the path. Existence is checked on Open so a watched
// file may appear later.
func (s *Source) Initialize(ctx context.Context, cfg calendar.SourceConfig) error {
	if cfg.Location == "" {
		return &apperr.ConfigurationError{Key: "import", Message: "import file path is required"}
	}
	s.path = cfg.Location
	s.logger.Debug("Initialized file source", "path", s.path)
	return nil
}

// Open opens the file for reading
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.path == "" {
		return nil, &apperr.PreconditionError{Operation: "open file source", Reason: "source not initialized"}
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &apperr.IOError{Operation: "open", Path: s.path, Err: fmt.Errorf("import file does not exist: %w", err)}
		}
		return nil, &apperr.IOError{Operation: "stat", Path: s.path, Err: err}
	}
	if info.IsDir() {
		return nil, &apperr.IOError{Operation: "open", Path: s.path, Err: errors.New("is a directory")}
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, &apperr.IOError{Operation: "open", Path: s.path, Err: err}
	}
	s.logger.Debug("Opened import file", "path", s.path, "size", info.Size())
	return f, nil
}

// Close cleans up resources
func (s *Source) Close() error {
	return nil
}
