package msgenhance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/alecthomas/chroma/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-msgenhance/internal/activate"
	"github.com/alnah/go-msgenhance/internal/assets"
	"github.com/alnah/go-msgenhance/internal/browser"
	"github.com/alnah/go-msgenhance/internal/copybutton"
	"github.com/alnah/go-msgenhance/internal/diagram"
	"github.com/alnah/go-msgenhance/internal/highlight"
	"github.com/alnah/go-msgenhance/internal/i18n"
	"github.com/alnah/go-msgenhance/internal/jsrt"
	"github.com/alnah/go-msgenhance/internal/loader"
	"github.com/alnah/go-msgenhance/internal/mathx"
	"github.com/alnah/go-msgenhance/internal/metrics"
	"github.com/alnah/go-msgenhance/internal/pipeline"
	"github.com/alnah/go-msgenhance/internal/settings"
)

// Compile-time interface implementation checks.
var (
	_ loader.ScriptHost  = (*jsrt.Runtime)(nil)
	_ loader.ScriptHost  = (*browser.Host)(nil)
	_ loader.ScriptHost  = (*highlight.GrammarHost)(nil)
	_ mathx.Engine       = (*mathx.KatexEngine)(nil)
	_ mathx.Engine       = (*mathx.MathMLEngine)(nil)
	_ diagram.Engine     = (*diagram.MermaidEngine)(nil)
	_ diagram.Evaluator  = (*browser.Host)(nil)
	_ loader.Document    = (*Document)(nil)
	_ diagram.Document   = (*Document)(nil)
	_ highlight.Document = (*Document)(nil)
)

// maxGrammarLoads bounds concurrent grammar fetches.
const maxGrammarLoads = 4

// grammarRenderer is one extra language and its activator.
type grammarRenderer struct {
	lang    string
	act     *activate.Activator[chroma.Lexer]
	enabled atomic.Bool
}

// Enhancer is the message hook. It owns the renderers, the resource loader
// and the background workers of one document.
// Create with NewEnhancer, call OnMessage per message, and Close when done.
type Enhancer struct {
	cfg      enhancerConfig
	log      zerolog.Logger
	doc      *Document
	settings SettingsSource
	fetcher  Fetcher

	catalog   *i18n.Catalog
	metrics   *metrics.Collector
	loader    *loader.Loader
	renderers *activate.Registry
	sched     *diagram.Scheduler
	browser   *browser.Host

	math     *activate.Activator[mathx.Engine]
	diagrams *activate.Activator[diagram.Engine]
	grammars []*grammarRenderer

	highlighter *highlight.Highlighter
	diagramPass func() *diagram.Transformer

	mu        sync.Mutex
	copy      *copybutton.Installer
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// NewEnhancer creates an Enhancer with default configuration.
// Renderers are not loaded until a message needs them.
// Returns error if the asset path is invalid.
func NewEnhancer(opts ...Option) (*Enhancer, error) {
	e := &Enhancer{
		cfg: enhancerConfig{
			assetBase:   DefaultAssetBase,
			renderDelay: diagram.DefaultRenderDelay,
			grammars:    DefaultGrammars,
		},
		log:     zerolog.Nop(),
		catalog: i18n.New(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.doc == nil {
		e.doc = NewDocument()
	}

	// Operator directory first, embedded assets second.
	resolver, err := assets.NewResolver(e.cfg.assetPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssetPath, err)
	}
	if e.fetcher == nil {
		e.fetcher = loader.NewRoutingFetcher(
			loader.NewHTTPFetcher(http.DefaultClient),
			loader.NewAssetFetcher(e.cfg.assetBase, resolver),
		)
	}

	e.metrics = metrics.New(e.cfg.registerer)
	e.loader = loader.New(e.doc, e.fetcher,
		loader.WithLogger(e.log),
		loader.WithMetrics(e.metrics),
	)
	e.renderers = activate.NewRegistry()
	e.sched = diagram.NewScheduler(diagram.ResolveWorkers(e.cfg.workers),
		diagram.WithSchedulerLogger(e.log),
	)
	e.highlighter = highlight.NewHighlighter(e.doc, e.log)

	e.math = activate.New(e.mathRenderer(), e.loader, e.activateOpts()...)
	e.diagrams = activate.New(e.diagramRenderer(), e.loader, e.activateOpts()...)
	e.renderers.Register(e.math)
	e.renderers.Register(e.diagrams)

	grammarHost := highlight.NewGrammarHost(e.log)
	for _, lang := range e.cfg.grammars {
		g := &grammarRenderer{
			lang: lang,
			act:  activate.New(e.grammarRenderer(grammarHost, lang), e.loader, e.activateOpts()...),
		}
		e.grammars = append(e.grammars, g)
		e.renderers.Register(g.act)
	}

	// One transformer per document keeps container ids unique.
	e.diagramPass = sync.OnceValue(func() *diagram.Transformer {
		eng, _ := e.diagrams.Engine()
		return diagram.New(eng, e.doc, e.sched,
			diagram.WithRenderDelay(e.cfg.renderDelay),
			diagram.WithLogger(e.log),
			diagram.WithMetrics(e.metrics),
		)
	})

	e.log.Debug().
		Str("assetBase", e.cfg.assetBase).
		Str("math", e.mathName()).
		Int("workers", e.sched.Size()).
		Strs("grammars", e.cfg.grammars).
		Msg("enhancer created")
	return e, nil
}

func (e *Enhancer) activateOpts() []activate.Option {
	return []activate.Option{activate.WithLogger(e.log), activate.WithMetrics(e.metrics)}
}

// assetURL returns the URL of a plugin asset.
func (e *Enhancer) assetURL(name string) string {
	return e.cfg.assetBase + "/" + name
}

func (e *Enhancer) mathName() string {
	if e.cfg.mathEngine != nil {
		return "custom"
	}
	return e.cfg.mathBackend.String()
}

func (e *Enhancer) mathRenderer() activate.Renderer[mathx.Engine] {
	if eng := e.cfg.mathEngine; eng != nil {
		return activate.Renderer[mathx.Engine]{
			Name:  "math",
			Build: func(context.Context) (mathx.Engine, error) { return eng, nil },
		}
	}

	if e.cfg.mathBackend == MathBackendMathML {
		return activate.Renderer[mathx.Engine]{
			Name:  "mathml",
			Build: func(context.Context) (mathx.Engine, error) { return mathx.NewMathMLEngine(), nil },
		}
	}

	rt := jsrt.New(jsrt.WithLogger(e.log))
	return activate.Renderer[mathx.Engine]{
		Name:        "katex",
		Stylesheets: []string{e.assetURL(assets.KatexStylesheet)},
		Scripts:     []string{e.assetURL(assets.KatexScript)},
		Host:        rt,
		Entry:       "katex",
		Build:       func(context.Context) (mathx.Engine, error) { return mathx.NewKatexEngine(rt), nil },
	}
}

func (e *Enhancer) diagramRenderer() activate.Renderer[diagram.Engine] {
	if eng := e.cfg.diagramEng; eng != nil {
		return activate.Renderer[diagram.Engine]{
			Name:  "mermaid",
			Build: func(context.Context) (diagram.Engine, error) { return eng, nil },
		}
	}

	hostOpts := []browser.Option{browser.WithLogger(e.log)}
	if e.cfg.browserLimit > 0 {
		hostOpts = append(hostOpts, browser.WithTimeout(e.cfg.browserLimit))
	}
	host := browser.New(hostOpts...)
	e.browser = host
	return activate.Renderer[diagram.Engine]{
		Name:    "mermaid",
		Scripts: []string{e.assetURL(assets.MermaidScript)},
		Host:    host,
		Entry:   "mermaid",
		Configure: func(ctx context.Context, opts activate.Options) error {
			return diagram.ConfigureMermaid(ctx, host, opts.Theme)
		},
		Build: func(context.Context) (diagram.Engine, error) { return diagram.NewMermaidEngine(host), nil },
	}
}

func (e *Enhancer) grammarRenderer(host *highlight.GrammarHost, lang string) activate.Renderer[chroma.Lexer] {
	return activate.Renderer[chroma.Lexer]{
		Name:    "grammar:" + lang,
		Scripts: []string{e.assetURL(assets.GrammarName(lang))},
		Host:    host,
		Entry:   lang,
		Build: func(context.Context) (chroma.Lexer, error) {
			l, ok := host.Lexer(lang)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrGrammarMissing, lang)
			}
			return l, nil
		},
	}
}

// OnMessage enhances one message. It returns Success false, and the host
// keeps its content, when no pass changed anything or the hook failed.
// Copy buttons and grammars act on the document and never change the result.
func (e *Enhancer) OnMessage(ctx context.Context, msg Message) (result HookResult) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Str("panic", fmt.Sprint(r)).Msg("message enhancement aborted")
			e.metrics.Message(metrics.ResultError)
			result = HookResult{}
		}
	}()

	s := settings.Resolve(ctx, e.settings, e.log)
	tr := e.catalog.Translator(s.Language)

	var usedDiagrams bool
	res := pipeline.Chain(ctx, msg.Content,
		pipeline.TransformerFunc(func(ctx context.Context, content string) pipeline.Result {
			return e.mathStep(ctx, content, s, tr)
		}),
		pipeline.TransformerFunc(func(ctx context.Context, content string) pipeline.Result {
			r := e.diagramStep(ctx, content, s, tr)
			usedDiagrams = r.Modified
			return r
		}),
	)

	if s.EnableCopyButton || usedDiagrams {
		e.background("plugin stylesheet", e.ensurePluginStylesheet)
	}
	if s.EnableCopyButton {
		e.initCopyButtons(tr)
	}
	if s.EnableExtraLanguages && len(e.grammars) > 0 {
		e.background("extra grammars", e.loadGrammars)
	}

	if !res.Modified {
		e.metrics.Message(metrics.ResultUnchanged)
		return HookResult{}
	}
	e.metrics.Message(metrics.ResultModified)
	return HookResult{Success: true, Content: res.Content}
}

func (e *Enhancer) mathStep(ctx context.Context, content string, s Settings, tr i18n.Translator) pipeline.Result {
	if !s.EnableKatex || !mayContainMath(content) {
		return pipeline.Unchanged(content)
	}
	if !e.math.Activate(ctx, activate.Options{}) {
		return pipeline.Unchanged(content)
	}
	eng, _ := e.math.Engine()
	t := mathx.New(eng,
		mathx.WithTranslator(tr),
		mathx.WithLogger(e.log),
		mathx.WithMetrics(e.metrics),
	)
	return t.Transform(ctx, content)
}

func (e *Enhancer) diagramStep(ctx context.Context, content string, s Settings, tr i18n.Translator) pipeline.Result {
	if !s.EnableMermaid || !strings.Contains(content, "language-mermaid") {
		return pipeline.Unchanged(content)
	}
	if !e.diagrams.Activate(ctx, activate.Options{Theme: s.MermaidTheme}) {
		return pipeline.Unchanged(content)
	}
	return e.diagramPass().TransformWith(ctx, content, tr)
}

// mayContainMath reports whether content holds any math opening delimiter.
func mayContainMath(content string) bool {
	return strings.Contains(content, "$") ||
		strings.Contains(content, `\[`) ||
		strings.Contains(content, `\(`)
}

// background runs fn on the scheduler so Wait and Close account for it.
func (e *Enhancer) background(what string, fn func(ctx context.Context)) {
	if !e.sched.Schedule(0, fn) {
		e.log.Debug().Str("task", what).Msg("enhancer closed, task skipped")
	}
}

func (e *Enhancer) ensurePluginStylesheet(ctx context.Context) {
	if err := e.loader.EnsureStylesheet(ctx, e.assetURL(assets.PluginStylesheet)); err != nil {
		e.log.Warn().Err(err).Msg("plugin stylesheet not linked")
	}
}

// initCopyButtons starts the installer on first use. Labels use the
// language of the message that enabled it.
func (e *Enhancer) initCopyButtons(tr i18n.Translator) {
	e.mu.Lock()
	if e.closed || e.copy != nil {
		e.mu.Unlock()
		return
	}
	e.copy = copybutton.New(e.doc, tr, e.log)
	installer := e.copy
	e.mu.Unlock()

	n := installer.Init()
	e.log.Debug().Int("blocks", n).Msg("copy buttons installed")
}

// loadGrammars activates every extra language not yet enabled and
// highlights the matching code blocks.
func (e *Enhancer) loadGrammars(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(maxGrammarLoads)

	for _, gr := range e.grammars {
		if gr.enabled.Load() {
			continue
		}
		g.Go(func() error {
			if !gr.act.Activate(ctx, activate.Options{}) {
				return nil
			}
			lexer, _ := gr.act.Engine()
			if gr.enabled.CompareAndSwap(false, true) {
				n := e.highlighter.Enable(gr.lang, lexer)
				e.log.Debug().Str("grammar", gr.lang).Int("blocks", n).Msg("grammar enabled")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Document returns the document messages are attached to.
func (e *Enhancer) Document() *Document {
	return e.doc
}

// RendererStates reports the lifecycle state of every renderer by name.
func (e *Enhancer) RendererStates() map[string]string {
	states := e.renderers.States()
	out := make(map[string]string, len(states))
	for name, s := range states {
		out[name] = s.String()
	}
	return out
}

// WriteHighlightCSS writes the stylesheet for highlighted extra languages.
func (e *Enhancer) WriteHighlightCSS(w io.Writer) error {
	return e.highlighter.WriteCSS(w)
}

// Wait blocks until every scheduled diagram render and background load
// has finished.
func (e *Enhancer) Wait() {
	e.sched.Wait()
}

// Close waits for scheduled work, stops observing the document and shuts
// the diagram browser down. It is safe to call more than once.
func (e *Enhancer) Close() error {
	e.closeOnce.Do(func() {
		e.sched.Close()
		e.highlighter.Close()

		e.mu.Lock()
		e.closed = true
		installer := e.copy
		e.mu.Unlock()
		if installer != nil {
			installer.Close()
		}

		if e.browser != nil {
			e.closeErr = e.browser.Close()
		}
	})
	return e.closeErr
}
