package activate

import (
	"sort"
	"sync"
)

// Tracked is implemented by every *Activator regardless of its engine type.
type Tracked interface {
	Name() string
	State() State
	Reset()
}

var _ Tracked = (*Activator[struct{}])(nil)

// Registry owns the activators of one Enhancer, so their readiness can be
// inspected and reset as a group.
type Registry struct {
	mu         sync.Mutex
	activators map[string]Tracked
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{activators: make(map[string]Tracked)}
}

// Register adds a, replacing any activator with the same name.
func (r *Registry) Register(a Tracked) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activators[a.Name()] = a
}

// Lookup returns the activator registered under name.
func (r *Registry) Lookup(name string) (Tracked, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.activators[name]
	return a, ok
}

// States returns the state of every registered renderer.
func (r *Registry) States() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]State, len(r.activators))
	for name, a := range r.activators {
		out[name] = a.State()
	}
	return out
}

// Names returns the registered renderer names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.activators))
	for name := range r.activators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset returns every registered activator to Unloaded.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.activators {
		a.Reset()
	}
}
