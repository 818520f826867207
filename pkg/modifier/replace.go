package modifier

import (
	"log/slog"
	"strings"

	"github.com/venkytv/calendar-converter/internal/apperr"
	"github.com/venkytv/calendar-converter/pkg/calendar/ical"
)

// EmptyKey is the reserved mapping key used when the field is empty or
// unset.
const EmptyKey = "empty"

// ReplaceLocation maps location strings to replacement values. Only exact
// matches of the trimmed value are replaced.
type ReplaceLocation struct {
	mapping map[string]string
	logger  *slog.Logger
}

// NewReplaceLocation creates a location replacement. The mapping is copied.
func NewReplaceLocation(mapping map[string]string, logger *slog.Logger) (*ReplaceLocation, error) {
	if len(mapping) == 0 {
		return nil, &apperr.ConfigurationError{
			Key:     string(KindReplaceLocation),
			Message: "expected a non-empty mapping of location values",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := make(map[string]string, len(mapping))
	for k, v := range mapping {
		m[k] = v
	}
	return &ReplaceLocation{mapping: m, logger: logger}, nil
}

func newReplaceLocation(param Param, opts Options) (Modifier, error) {
	var mapping map[string]string
	if err := param.Decode(&mapping); err != nil {
		return nil, &apperr.ConfigurationError{
			Key:     string(KindReplaceLocation),
			Message: "expected a mapping of location values",
			Err:     err,
		}
	}
	return NewReplaceLocation(mapping, opts.Logger)
}

// Kind implements Modifier.
func (r *ReplaceLocation) Kind() Kind { return KindReplaceLocation }

// Process implements Modifier.
func (r *ReplaceLocation) Process(e *ical.Event) Result {
	current := e.Location()
	key := strings.TrimSpace(current)

	replacement, ok := r.mapping[key]
	if !ok && key == "" {
		replacement, ok = r.mapping[EmptyKey]
	}
	if !ok || replacement == current {
		return Unchanged
	}

	r.logger.Debug("Replacing location",
		"uid", e.UID(),
		"from", current,
		"to", replacement)
	e.SetLocation(replacement)
	return Changed
}
