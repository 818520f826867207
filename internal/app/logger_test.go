package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/venkytv/calendar-converter/internal/apperr"
	"github.com/venkytv/calendar-converter/pkg/config"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LoggingConfig
		debug     bool
		wantLevel slog.Level
	}{
		{"default", config.LoggingConfig{}, false, slog.LevelInfo},
		{"warn", config.LoggingConfig{Level: "warn"}, false, slog.LevelWarn},
		{"error", config.LoggingConfig{Level: "error"}, false, slog.LevelError},
		{"debug flag overrides", config.LoggingConfig{Level: "error"}, true, slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, closeLog, err := NewLogger(tt.cfg, tt.debug, &bytes.Buffer{})
			if err != nil {
				t.Fatal(err)
			}
			defer closeLog()

			ctx := context.Background()
			if !logger.Enabled(ctx, tt.wantLevel) {
				t.Errorf("Expected level %v to be enabled", tt.wantLevel)
			}
			if logger.Enabled(ctx, tt.wantLevel-1) {
				t.Errorf("Expected level below %v to be disabled", tt.wantLevel)
			}
		})
	}
}

func TestNewLoggerJSONAndFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "converter.log")
	var out bytes.Buffer

	logger, closeLog, err := NewLogger(config.LoggingConfig{Format: "json", File: logFile}, false, &out)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("Events filtered out", "count", 1)
	if err := closeLog(); err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(out.String(), "{") {
		t.Errorf("Expected JSON output, got %q", out.String())
	}
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Events filtered out") {
		t.Errorf("Expected log file to receive records, got %q", data)
	}
}

func TestNewLoggerUnwritableFile(t *testing.T) {
	_, _, err := NewLogger(config.LoggingConfig{File: filepath.Join(t.TempDir(), "missing", "x.log")}, false, &bytes.Buffer{})
	if !errors.Is(err, apperr.ErrIO) {
		t.Errorf("Expected I/O error, got %v", err)
	}
}
