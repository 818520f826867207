// Package modifier implements the per-event transformation rules applied
// by the converter.
//
// A Modifier inspects one event, may change it in place and reports a
// Result. Filters never change the event; they report Excluded to drop
// it from the output.
package modifier

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/venkytv/calendar-converter/pkg/calendar/ical"
)

// Result is the outcome of applying a modifier to one event.
type Result int

const (
	// Unchanged means the event was left as it was.
	Unchanged Result = iota
	// Changed means the modifier altered the event.
	Changed
	// Excluded means the event must not be exported.
	Excluded
)

func (r Result) String() string {
	switch r {
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	case Excluded:
		return "excluded"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Kind is the configuration key naming a modifier variant.
type Kind string

// Built-in modifier kinds.
const (
	KindFilterTimeBefore Kind = "filter_time_before"
	KindSetOrganizer     Kind = "set_organizer"
	KindReplaceLocation  Kind = "replace_location"
)

// Modifier is one configured transformation rule. Implementations hold
// only immutable configuration, so a Modifier may be used from several
// goroutines at once as long as each event is processed by one goroutine.
type Modifier interface {
	Kind() Kind
	Process(e *ical.Event) Result
}

// Param is a configured modifier parameter. *yaml.Node satisfies it.
type Param interface {
	Decode(v any) error
}

// Options carries the dependencies handed to modifier constructors.
type Options struct {
	Logger *slog.Logger
	// Now resolves the "now" keyword in time parameters.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
