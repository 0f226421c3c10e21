package msgenhance

import (
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/alnah/go-msgenhance/internal/diagram"
	"github.com/alnah/go-msgenhance/internal/dom"
	"github.com/alnah/go-msgenhance/internal/loader"
	"github.com/alnah/go-msgenhance/internal/mathx"
	"github.com/alnah/go-msgenhance/internal/settings"
)

// Message is the payload the host hands to the hook.
type Message struct {
	// Content is HTML already rendered from markdown.
	Content string
}

// HookResult reports whether the message was enhanced. Content is only
// meaningful when Success is true.
type HookResult struct {
	Success bool
	Content string
}

// Document is the live document that enhanced messages are attached to.
type Document = dom.Document

// NewDocument creates an empty document.
func NewDocument() *Document {
	return dom.New()
}

// ParseDocument parses a full HTML document.
func ParseDocument(r io.Reader) (*Document, error) {
	return dom.Parse(r)
}

// Settings are the per-message feature switches.
type Settings = settings.Settings

// SettingsSource provides the raw settings object on every message.
type SettingsSource = settings.Source

// StaticSettings serves a fixed settings object.
func StaticSettings(m map[string]any) SettingsSource {
	return settings.StaticSource(m)
}

// FileSettings reads settings from a YAML file on every message.
func FileSettings(path string) SettingsSource {
	return settings.FileSource{Path: path}
}

// RedisSettings reads settings from a Redis hash. An empty key uses
// the default "msgenhance:settings".
func RedisSettings(client redis.UniversalClient, key string) SettingsSource {
	return settings.NewRedisSource(client, key)
}

// Fetcher retrieves the bytes behind a resource URL.
type Fetcher = loader.Fetcher

// MathEngine renders one TeX formula to HTML.
type MathEngine = mathx.Engine

// DiagramEngine renders diagram source to SVG markup.
type DiagramEngine = diagram.Engine

// MathBackend selects the math renderer.
type MathBackend int

// Math backends.
const (
	// MathBackendKatex runs KaTeX in an embedded JavaScript runtime.
	MathBackendKatex MathBackend = iota
	// MathBackendMathML converts TeX to MathML in pure Go. It needs no assets.
	MathBackendMathML
)

func (b MathBackend) String() string {
	switch b {
	case MathBackendKatex:
		return "katex"
	case MathBackendMathML:
		return "mathml"
	default:
		return "unknown"
	}
}

// ParseMathBackend maps a backend name to its MathBackend.
func ParseMathBackend(name string) (MathBackend, bool) {
	switch strings.ToLower(name) {
	case "katex", "":
		return MathBackendKatex, true
	case "mathml":
		return MathBackendMathML, true
	default:
		return 0, false
	}
}

// DefaultAssetBase is the URL prefix plugin assets are served under.
const DefaultAssetBase = "/plugins/msgenhance"

// DefaultGrammars are the extra languages loaded when enabled.
var DefaultGrammars = []string{"dotenv", "gomod"}

// Option configures an Enhancer.
type Option func(*Enhancer)

// enhancerConfig holds internal configuration for Enhancer.
type enhancerConfig struct {
	assetBase    string
	assetPath    string
	workers      int
	renderDelay  time.Duration
	mathBackend  MathBackend
	mathEngine   MathEngine
	diagramEng   DiagramEngine
	grammars     []string
	registerer   prometheus.Registerer
	browserLimit time.Duration
}

// WithLogger sets the logger shared by every component.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Enhancer) {
		e.log = log
	}
}

// WithDocument sets the document messages are attached to.
// Panics if doc is nil.
func WithDocument(doc *Document) Option {
	if doc == nil {
		panic("msgenhance: WithDocument document must not be nil")
	}
	return func(e *Enhancer) {
		e.doc = doc
	}
}

// WithSettingsSource sets where settings are read from on every message.
// Without it every feature is enabled.
func WithSettingsSource(src SettingsSource) Option {
	return func(e *Enhancer) {
		e.settings = src
	}
}

// WithAssetBase sets the URL prefix of plugin assets.
// Panics if base is empty.
func WithAssetBase(base string) Option {
	if base == "" {
		panic("msgenhance: WithAssetBase base must not be empty")
	}
	return func(e *Enhancer) {
		e.cfg.assetBase = strings.TrimRight(base, "/")
	}
}

// WithAssetPath serves local asset URLs from dir, falling back to the
// embedded assets for names dir does not hold.
func WithAssetPath(dir string) Option {
	return func(e *Enhancer) {
		e.cfg.assetPath = dir
	}
}

// WithFetcher replaces the default fetcher, which serves URLs under the
// asset base from local assets and everything else over HTTP.
// Panics if f is nil.
func WithFetcher(f Fetcher) Option {
	if f == nil {
		panic("msgenhance: WithFetcher fetcher must not be nil")
	}
	return func(e *Enhancer) {
		e.fetcher = f
	}
}

// WithWorkers sets the number of diagram render workers.
// Zero picks a size from GOMAXPROCS. Panics if n is negative.
func WithWorkers(n int) Option {
	if n < 0 {
		panic("msgenhance: WithWorkers count must not be negative")
	}
	return func(e *Enhancer) {
		e.cfg.workers = n
	}
}

// WithRenderDelay sets the delay before each diagram render task runs.
// Panics if d is negative.
func WithRenderDelay(d time.Duration) Option {
	if d < 0 {
		panic("msgenhance: WithRenderDelay duration must not be negative")
	}
	return func(e *Enhancer) {
		e.cfg.renderDelay = d
	}
}

// WithBrowserTimeout bounds each call into the diagram browser.
// Panics if d <= 0.
func WithBrowserTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("msgenhance: WithBrowserTimeout duration must be positive")
	}
	return func(e *Enhancer) {
		e.cfg.browserLimit = d
	}
}

// WithMetricsRegisterer registers the enhancer's Prometheus collectors with reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(e *Enhancer) {
		e.cfg.registerer = reg
	}
}

// WithMathBackend selects the math renderer.
// Panics on an unknown backend.
func WithMathBackend(b MathBackend) Option {
	if b != MathBackendKatex && b != MathBackendMathML {
		panic("msgenhance: WithMathBackend unknown backend")
	}
	return func(e *Enhancer) {
		e.cfg.mathBackend = b
	}
}

// WithMathEngine replaces the math renderer with eng. The engine needs
// no assets and is Ready on first use. Panics if eng is nil.
func WithMathEngine(eng MathEngine) Option {
	if eng == nil {
		panic("msgenhance: WithMathEngine engine must not be nil")
	}
	return func(e *Enhancer) {
		e.cfg.mathEngine = eng
	}
}

// WithDiagramEngine replaces the browser-backed Mermaid renderer with eng.
// Panics if eng is nil.
func WithDiagramEngine(eng DiagramEngine) Option {
	if eng == nil {
		panic("msgenhance: WithDiagramEngine engine must not be nil")
	}
	return func(e *Enhancer) {
		e.cfg.diagramEng = eng
	}
}

// WithGrammars sets the extra languages loaded when enabled.
func WithGrammars(langs ...string) Option {
	return func(e *Enhancer) {
		e.cfg.grammars = langs
	}
}
