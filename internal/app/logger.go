package app

import (
	"io"
	"log/slog"
	"os"

	"github.com/venkytv/calendar-converter/internal/apperr"
	"github.com/venkytv/calendar-converter/pkg/config"
)

// NewLogger configures the application logger. Records go to w and, when
// cfg.File is set, are appended to that file too. The returned function
// closes the log file.
func NewLogger(cfg config.LoggingConfig, debugMode bool, w io.Writer) (*slog.Logger, func() error, error) {
	if w == nil {
		w = os.Stderr
	}
	closeFn := func() error { return nil }

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, &apperr.IOError{Operation: "open log file", Path: cfg.File, Err: err}
		}
		w = io.MultiWriter(w, f)
		closeFn = f.Close
	}

	return slog.New(newHandler(cfg, debugMode, w)), closeFn, nil
}

func newHandler(cfg config.LoggingConfig, debugMode bool, w io.Writer) slog.Handler {
	var level slog.Level

	// Override config level if debug mode is enabled
	if debugMode {
		level = slog.LevelDebug
	} else {
		switch cfg.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}
	}

	opts := &slog.HandlerOptions{Level: level}

	switch cfg.Format {
	case "json":
		return slog.NewJSONHandler(w, opts)
	default:
		return slog.NewTextHandler(w, opts)
	}
}
