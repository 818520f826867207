package modifier

import (
	"log/slog"
	"strings"

	"github.com/venkytv/calendar-converter/internal/apperr"
	"github.com/venkytv/calendar-converter/pkg/calendar/ical"
)

// SetOrganizer forces the organizer of every event to one value.
type SetOrganizer struct {
	organizer string
	logger    *slog.Logger
}

// NewSetOrganizer creates an organizer override.
func NewSetOrganizer(organizer string, logger *slog.Logger) (*SetOrganizer, error) {
	organizer = strings.TrimSpace(organizer)
	if organizer == "" {
		return nil, &apperr.ConfigurationError{
			Key:     string(KindSetOrganizer),
			Message: "expected a non-empty organizer",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SetOrganizer{organizer: organizer, logger: logger}, nil
}

func newSetOrganizer(param Param, opts Options) (Modifier, error) {
	var organizer string
	if err := param.Decode(&organizer); err != nil {
		return nil, &apperr.ConfigurationError{
			Key:     string(KindSetOrganizer),
			Message: "expected a single string",
			Err:     err,
		}
	}
	return NewSetOrganizer(organizer, opts.Logger)
}

// Kind implements Modifier.
func (s *SetOrganizer) Kind() Kind { return KindSetOrganizer }

// Process implements Modifier. The comparison ignores case and a mailto:
// prefix.
func (s *SetOrganizer) Process(e *ical.Event) Result {
	if strings.EqualFold(e.Organizer(), stripMailto(s.organizer)) {
		return Unchanged
	}

	s.logger.Debug("Setting organizer of event",
		"uid", e.UID(),
		"organizer", s.organizer)
	e.SetOrganizer(s.organizer)
	return Changed
}

func stripMailto(v string) string {
	const prefix = "mailto:"
	if len(v) >= len(prefix) && strings.EqualFold(v[:len(prefix)], prefix) {
		return v[len(prefix):]
	}
	return v
}
