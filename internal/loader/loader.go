package loader

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/sync/singleflight"

	"github.com/alnah/go-msgenhance/internal/metrics"
)

// Resource kinds, used as metric labels and in log fields.
const (
	KindStylesheet = "stylesheet"
	KindScript     = "script"
)

// Document is the part of the live document the loader mutates.
type Document interface {
	HasResource(tag, attr, url string) bool
	AppendToHead(tag string, attrs ...html.Attribute)
}

// ScriptHost is a global environment scripts are evaluated in.
type ScriptHost interface {
	// Evaluate runs source, fetched from url, in the host's global scope.
	Evaluate(ctx context.Context, url string, source []byte) error

	// Has reports whether name is defined in the host's global scope.
	Has(name string) bool
}

// Loader ensures resources are active in a Document.
//
// A stylesheet is active once the document links it. A script is active
// once the document references it and it has been evaluated in the host
// asking for it: a <script src> already in the document says nothing about
// what a given host has run. Hosts are compared by identity.
type Loader struct {
	doc      Document
	fetcher  Fetcher
	registry *Registry
	flight   singleflight.Group
	log      zerolog.Logger
	metrics  *metrics.Collector

	mu        sync.Mutex
	hosts     map[ScriptHost]int
	evaluated map[hostURL]bool
}

type hostURL struct {
	host int
	url  string
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Loader) {
		l.log = log
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(l *Loader) {
		l.metrics = m
	}
}

// New creates a Loader that inserts resources into doc using fetcher.
func New(doc Document, fetcher Fetcher, opts ...Option) *Loader {
	l := &Loader{
		doc:       doc,
		fetcher:   fetcher,
		registry:  NewRegistry(),
		log:       zerolog.Nop(),
		hosts:     make(map[ScriptHost]int),
		evaluated: make(map[hostURL]bool),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Registry returns the handle registry.
func (l *Loader) Registry() *Registry {
	return l.registry
}

// EnsureStylesheet fetches url and links it from the document head.
// Returns a *LoadError on failure.
func (l *Loader) EnsureStylesheet(ctx context.Context, url string) error {
	return l.ensure(ctx, resource{
		kind: KindStylesheet, tag: "link", attr: "href", url: url,
		attrs:    []html.Attribute{{Key: "rel", Val: "stylesheet"}, {Key: "href", Val: url}},
		activate: func([]byte) error { return nil },
	})
}

// EnsureScript fetches url, evaluates it in host, and references it from
// the document head. Returns a *LoadError on failure.
func (l *Loader) EnsureScript(ctx context.Context, url string, host ScriptHost) error {
	if host == nil {
		return &LoadError{URL: url, Err: ErrNilHost}
	}
	return l.ensure(ctx, resource{
		kind: KindScript, tag: "script", attr: "src", url: url,
		attrs:    []html.Attribute{{Key: "src", Val: url}},
		host:     l.hostID(host),
		activate: func(body []byte) error { return host.Evaluate(ctx, url, body) },
	})
}

type resource struct {
	kind, tag, attr, url string
	attrs                []html.Attribute
	host                 int // 0 for stylesheets
	activate             func([]byte) error
}

func (l *Loader) hostID(host ScriptHost) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.hosts[host]
	if !ok {
		id = len(l.hosts) + 1
		l.hosts[host] = id
	}
	return id
}

// active reports whether r needs no further work.
func (l *Loader) active(r resource) bool {
	if !l.doc.HasResource(r.tag, r.attr, r.url) {
		return false
	}
	if r.host == 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.evaluated[hostURL{r.host, r.url}]
}

func (l *Loader) ensure(ctx context.Context, r resource) error {
	if l.active(r) {
		l.registry.set(r.url, Settled)
		l.metrics.ResourceLoad(r.kind, metrics.ResultCached)
		return nil
	}

	key := fmt.Sprintf("%s %d %s", r.kind, r.host, r.url)
	_, err, shared := l.flight.Do(key, func() (any, error) {
		// Another flight may have settled the resource since the check above.
		if l.active(r) {
			return nil, nil
		}

		l.registry.set(r.url, Requested)
		l.log.Debug().Str("kind", r.kind).Str("url", r.url).Msg("fetching resource")

		body, err := l.fetcher.Fetch(ctx, r.url)
		if err != nil {
			l.registry.set(r.url, NotRequested)
			return nil, &LoadError{URL: r.url, Err: err}
		}
		if err := r.activate(body); err != nil {
			l.registry.set(r.url, NotRequested)
			return nil, &LoadError{URL: r.url, Err: fmt.Errorf("activating: %w", err)}
		}

		if r.host != 0 {
			l.mu.Lock()
			l.evaluated[hostURL{r.host, r.url}] = true
			l.mu.Unlock()
		}
		if !l.doc.HasResource(r.tag, r.attr, r.url) {
			l.doc.AppendToHead(r.tag, r.attrs...)
		}
		l.registry.set(r.url, Settled)
		return nil, nil
	})

	switch {
	case err != nil:
		l.metrics.ResourceLoad(r.kind, metrics.ResultFailed)
		l.log.Warn().Err(err).Str("kind", r.kind).Str("url", r.url).Msg("resource load failed")
	case shared:
		l.metrics.ResourceLoad(r.kind, metrics.ResultCached)
	default:
		l.metrics.ResourceLoad(r.kind, metrics.ResultLoaded)
	}
	return err
}
