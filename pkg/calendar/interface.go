package calendar

import (
	"context"
	"io"
)

// Source defines the interface that all import sources must satisfy
type Source interface {
	// Name returns the human-readable name of the source
	Name() string

	// Type returns the source type identifier (e.g., "file", "ical")
	Type() string

	// Initialize sets up the source with its location and credentials
	Initialize(ctx context.Context, cfg SourceConfig) error

	// Open returns the raw calendar document. The caller closes it.
	Open(ctx context.Context) (io.ReadCloser, error)

	// Close cleans up any resources used by the source
	Close() error
}

// SourceFactory creates import sources based on configuration
type SourceFactory interface {
	// CreateSource creates a new source instance
	CreateSource(sourceType string) (Source, error)

	// SupportedTypes returns a list of supported source types
	SupportedTypes() []string
}
