package calendar

import (
	"sort"

	"github.com/venkytv/calendar-converter/internal/apperr"
)

// DefaultSourceFactory is the default implementation of SourceFactory
type DefaultSourceFactory struct {
	sources map[string]func() Source
}

// NewDefaultSourceFactory creates a new default source factory
func NewDefaultSourceFactory() *DefaultSourceFactory {
	return &DefaultSourceFactory{
		sources: make(map[string]func() Source),
	}
}

// RegisterSource registers a source constructor function
func (f *DefaultSourceFactory) RegisterSource(sourceType string, constructor func() Source) {
	f.sources[sourceType] = constructor
}

// CreateSource creates a new source instance based on the type
func (f *DefaultSourceFactory) CreateSource(sourceType string) (Source, error) {
	constructor, exists := f.sources[sourceType]
	if !exists {
		return nil, &apperr.ConfigurationError{
			Key:     "import.type",
			Message: "unsupported source type: " + sourceType,
		}
	}
	return constructor(), nil
}

// SupportedTypes returns the supported source types, sorted
func (f *DefaultSourceFactory) SupportedTypes() []string {
	types := make([]string, 0, len(f.sources))
	for sourceType := range f.sources {
		types = append(types, sourceType)
	}
	sort.Strings(types)
	return types
}
