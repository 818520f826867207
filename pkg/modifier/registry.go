package modifier

import (
	"sync"

	"github.com/venkytv/calendar-converter/internal/apperr"
)

// Registry is the ordered list of modifiers applied to every event. It is
// append-only and becomes read-only once frozen.
type Registry struct {
	mu        sync.RWMutex
	modifiers []Modifier
	frozen    bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Push appends m.
func (r *Registry) Push(m Modifier) error {
	if m == nil {
		return &apperr.PreconditionError{Operation: "push modifier", Reason: "modifier is nil"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return &apperr.PreconditionError{Operation: "push modifier", Reason: "registry is frozen"}
	}
	r.modifiers = append(r.modifiers, m)
	return nil
}

// Freeze fixes the registry's contents and order.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Len returns the number of modifiers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modifiers)
}

// Modifiers returns a copy of the modifiers in insertion order.
func (r *Registry) Modifiers() []Modifier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Modifier, len(r.modifiers))
	copy(out, r.modifiers)
	return out
}
