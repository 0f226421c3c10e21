// Package activate brings external renderers (math engine, diagram engine,
// extra grammars) up lazily, once, on first need.
//
// Each renderer is described by a Renderer: the stylesheets and scripts it
// needs, the global its entry point is published under, and hooks that
// configure it and construct the typed engine the transformers consume.
// An Activator walks Unloaded → Loading → Ready, or Failed on any error.
// Failure is reported as false, never as an error; a later call retries.
package activate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/alnah/go-msgenhance/internal/loader"
	"github.com/alnah/go-msgenhance/internal/metrics"
)

// ErrEntryPointMissing indicates the scripts loaded but the renderer's
// global was not defined afterwards.
var ErrEntryPointMissing = errors.New("renderer entry point not defined")

// State is the lifecycle of one renderer.
type State int

// Renderer states.
const (
	Unloaded State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unloaded"
	}
}

// ResourceLoader is the subset of *loader.Loader the activator uses.
type ResourceLoader interface {
	EnsureStylesheet(ctx context.Context, url string) error
	EnsureScript(ctx context.Context, url string, host loader.ScriptHost) error
}

// Options are supplied by the caller on every activation.
type Options struct {
	// Theme is applied by the first successful activation only.
	Theme string
}

// Renderer describes how to activate one external renderer producing an engine E.
type Renderer[E any] struct {
	// Name identifies the renderer in logs and metrics.
	Name string

	// Stylesheets and Scripts are ensured in order, stylesheets first.
	Stylesheets []string
	Scripts     []string

	// Host evaluates Scripts and is checked for Entry.
	// May be nil when Scripts is empty and Entry is blank.
	Host loader.ScriptHost

	// Entry is the global that must be defined once Scripts have run.
	Entry string

	// Configure performs one-time global setup. Optional.
	Configure func(ctx context.Context, opts Options) error

	// Build constructs the engine after verification.
	Build func(ctx context.Context) (E, error)
}

// Activator tracks the state of one renderer.
type Activator[E any] struct {
	r       Renderer[E]
	loader  ResourceLoader
	log     zerolog.Logger
	metrics *metrics.Collector

	mu     sync.Mutex
	state  State
	engine E
	theme  string
}

// Option configures an Activator.
type Option func(*settings)

type settings struct {
	log     zerolog.Logger
	metrics *metrics.Collector
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *settings) {
		s.log = log
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// New creates an Unloaded activator for r.
// Panics if r has no Build hook.
func New[E any](r Renderer[E], l ResourceLoader, opts ...Option) *Activator[E] {
	if r.Build == nil {
		panic(fmt.Sprintf("activate: renderer %q has no Build hook", r.Name))
	}
	s := settings{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&s)
	}
	return &Activator[E]{
		r:       r,
		loader:  l,
		log:     s.log.With().Str("renderer", r.Name).Logger(),
		metrics: s.metrics,
	}
}

// Name returns the renderer name.
func (a *Activator[E]) Name() string {
	return a.r.Name
}

// Activate loads the renderer if needed and reports whether it is usable.
// Concurrent callers wait for the activation in progress.
func (a *Activator[E]) Activate(ctx context.Context, opts Options) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == Ready {
		if opts.Theme != "" && opts.Theme != a.theme {
			a.log.Debug().Str("configured", a.theme).Str("requested", opts.Theme).
				Msg("renderer already configured, theme change ignored")
		}
		return true
	}

	a.state = Loading
	if err := a.load(ctx, opts); err != nil {
		a.state = Failed
		a.metrics.Activation(a.r.Name, metrics.ResultFailed)
		a.log.Warn().Err(err).Msg("renderer activation failed")
		return false
	}

	a.state = Ready
	a.theme = opts.Theme
	a.metrics.Activation(a.r.Name, metrics.ResultReady)
	a.log.Debug().Msg("renderer ready")
	return true
}

func (a *Activator[E]) load(ctx context.Context, opts Options) error {
	for _, url := range a.r.Stylesheets {
		if err := a.loader.EnsureStylesheet(ctx, url); err != nil {
			return err
		}
	}
	for _, url := range a.r.Scripts {
		if err := a.loader.EnsureScript(ctx, url, a.r.Host); err != nil {
			return err
		}
	}

	if a.r.Entry != "" && (a.r.Host == nil || !a.r.Host.Has(a.r.Entry)) {
		return fmt.Errorf("%w: %s", ErrEntryPointMissing, a.r.Entry)
	}

	if a.r.Configure != nil {
		if err := a.r.Configure(ctx, opts); err != nil {
			return fmt.Errorf("configuring: %w", err)
		}
	}

	engine, err := a.r.Build(ctx)
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}
	a.engine = engine
	return nil
}

// Engine returns the engine and whether the renderer is Ready.
func (a *Activator[E]) Engine() (E, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != Ready {
		var zero E
		return zero, false
	}
	return a.engine, true
}

// State returns the current state.
func (a *Activator[E]) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// ConfiguredTheme returns the theme applied by the first successful
// activation, or "" if the renderer is not Ready.
func (a *Activator[E]) ConfiguredTheme() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.theme
}

// Reset returns the activator to Unloaded. Resources already in the
// document stay there. The next activation re-evaluates scripts only in
// hosts that have not run them yet.
func (a *Activator[E]) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero E
	a.state = Unloaded
	a.engine = zero
	a.theme = ""
}
