package loader

import "sync"

// HandleState is the lifecycle of one resource URL.
type HandleState int

// Handle states.
const (
	NotRequested HandleState = iota
	Requested
	Settled
)

func (s HandleState) String() string {
	switch s {
	case Requested:
		return "requested"
	case Settled:
		return "settled"
	default:
		return "not-requested"
	}
}

// Registry records the state of every resource URL seen by a Loader.
// It lives as long as the Loader; Reset exists for tests.
type Registry struct {
	mu      sync.Mutex
	handles map[string]HandleState
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]HandleState)}
}

// State returns the state of url.
func (r *Registry) State(url string) HandleState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[url]
}

// Len returns the number of URLs that are requested or settled.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Reset forgets every URL.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles = make(map[string]HandleState)
}

func (r *Registry) set(url string, s HandleState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s == NotRequested {
		delete(r.handles, url)
		return
	}
	r.handles[url] = s
}
