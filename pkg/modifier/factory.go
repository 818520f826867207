package modifier

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/venkytv/calendar-converter/internal/apperr"
)

// Constructor builds a modifier from its configured parameter.
type Constructor func(param Param, opts Options) (Modifier, error)

// Entry is one configured modifier: a kind and its parameter.
type Entry struct {
	Kind  string
	Param Param
}

var builtinConstructors = map[Kind]Constructor{
	KindFilterTimeBefore: newFilterTimeBefore,
	KindSetOrganizer:     newSetOrganizer,
	KindReplaceLocation:  newReplaceLocation,
}

// Factory maps configuration keys to modifier constructors.
type Factory struct {
	constructors map[Kind]Constructor
	opts         Options
}

// NewFactory returns a factory knowing the built-in modifier kinds.
func NewFactory(logger *slog.Logger) *Factory {
	f := &Factory{
		constructors: make(map[Kind]Constructor, len(builtinConstructors)),
		opts:         Options{Logger: logger}.withDefaults(),
	}
	for kind, ctor := range builtinConstructors {
		f.constructors[kind] = ctor
	}
	return f
}

// SetNow overrides the clock used to resolve "now" in parameters.
func (f *Factory) SetNow(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	f.opts.Now = now
}

// Register adds or replaces the constructor for kind.
func (f *Factory) Register(kind Kind, ctor Constructor) {
	f.constructors[kind] = ctor
}

// Create builds one modifier. Unknown kinds are configuration errors.
func (f *Factory) Create(kind string, param Param) (Modifier, error) {
	ctor, ok := f.constructors[Kind(kind)]
	if !ok {
		return nil, &apperr.ConfigurationError{
			Key:     kind,
			Message: fmt.Sprintf("unknown modifier, supported: %v", f.SupportedKinds()),
		}
	}
	if param == nil {
		return nil, &apperr.ConfigurationError{Key: kind, Message: "missing parameter"}
	}
	return ctor(param, f.opts)
}

// Build creates a modifier for every entry and pushes them, in order, onto
// a new registry.
func (f *Factory) Build(entries []Entry) (*Registry, error) {
	registry := NewRegistry()
	for i, entry := range entries {
		m, err := f.Create(entry.Kind, entry.Param)
		if err != nil {
			return nil, fmt.Errorf("failed to create modifier %d (%s): %w", i+1, entry.Kind, err)
		}
		if err := registry.Push(m); err != nil {
			return nil, err
		}
		f.opts.Logger.Debug("Registered modifier", "position", i+1, "kind", entry.Kind)
	}
	return registry, nil
}

// SupportedKinds returns the registered kinds, sorted.
func (f *Factory) SupportedKinds() []Kind {
	kinds := make([]Kind, 0, len(f.constructors))
	for kind := range f.constructors {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
