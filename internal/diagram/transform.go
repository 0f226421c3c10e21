package diagram

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/alnah/go-msgenhance/internal/i18n"
	"github.com/alnah/go-msgenhance/internal/metrics"
	"github.com/alnah/go-msgenhance/internal/pipeline"
)

// DefaultRenderDelay lets the placeholder reach the document before its task runs.
const DefaultRenderDelay = 100 * time.Millisecond

// Container status classes.
const (
	ClassContainer = "mermaid-container"
	ClassLoading   = "mermaid-loading"
	ClassRendered  = "mermaid-rendered"
	ClassError     = "mermaid-error"
)

// mermaidBlock matches an upstream-rendered Mermaid code block.
var mermaidBlock = regexp.MustCompile(`(?s)<pre[^>]*>\s*<code[^>]*\bclass="[^"]*\blanguage-mermaid\b[^"]*"[^>]*>(.*?)</code>\s*</pre>`)

// Engine renders diagram source to SVG markup. id is the DOM id the
// engine may give its render target.
type Engine interface {
	Render(ctx context.Context, id, source string) (string, error)
}

// Document is the part of the live document render tasks mutate.
type Document interface {
	Exists(id string) bool
	SetInnerHTML(id, fragment string) error
	ReplaceClass(id, from, to string) error
}

// Job is one diagram waiting to be rendered.
type Job struct {
	ID          int64
	Source      string
	ContainerID string
}

// RenderTarget is the id handed to the engine for this job.
func (j Job) RenderTarget() string {
	return j.ContainerID + "-svg"
}

// Transformer replaces Mermaid blocks with placeholders and schedules
// their rendering. One Transformer serves one document.
type Transformer struct {
	engine  Engine
	doc     Document
	sched   *Scheduler
	delay   time.Duration
	now     func() time.Time
	counter atomic.Int64
	policy  *bluemonday.Policy
	tr      i18n.Translator
	log     zerolog.Logger
	metrics *metrics.Collector
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithRenderDelay sets the delay before each render task runs.
// Panics if d is negative.
func WithRenderDelay(d time.Duration) Option {
	if d < 0 {
		panic("diagram: render delay must not be negative")
	}
	return func(t *Transformer) {
		t.delay = d
	}
}

// WithTranslator sets the default translator for labels.
func WithTranslator(tr i18n.Translator) Option {
	return func(t *Transformer) {
		t.tr = tr
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(t *Transformer) {
		t.log = log
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(t *Transformer) {
		t.metrics = m
	}
}

// WithClock replaces time.Now for container ids.
func WithClock(now func() time.Time) Option {
	return func(t *Transformer) {
		t.now = now
	}
}

// New creates a Transformer that renders with engine into doc, running
// tasks on sched.
func New(engine Engine, doc Document, sched *Scheduler, opts ...Option) *Transformer {
	t := &Transformer{
		engine: engine,
		doc:    doc,
		sched:  sched,
		delay:  DefaultRenderDelay,
		now:    time.Now,
		policy: bluemonday.StrictPolicy(),
		tr:     i18n.New().Translator("en"),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ pipeline.Transformer = (*Transformer)(nil)

// Transform uses the default translator.
func (t *Transformer) Transform(ctx context.Context, content string) pipeline.Result {
	return t.TransformWith(ctx, content, t.tr)
}

// TransformWith replaces every Mermaid block in content with a loading
// placeholder labelled through tr, and schedules one render task per block.
// It returns before any diagram is rendered.
func (t *Transformer) TransformWith(ctx context.Context, content string, tr i18n.Translator) pipeline.Result {
	if !mermaidBlock.MatchString(content) {
		return pipeline.Unchanged(content)
	}

	var jobs []Job
	out := mermaidBlock.ReplaceAllStringFunc(content, func(block string) string {
		job := t.newJob(mermaidBlock.FindStringSubmatch(block)[1])
		jobs = append(jobs, job)
		return placeholder(job.ContainerID, tr.Translate(i18n.KeyDiagramLoading))
	})

	for _, job := range jobs {
		if !t.sched.Schedule(t.delay, func(ctx context.Context) { t.render(ctx, job, tr) }) {
			t.log.Warn().Str("container", job.ContainerID).Msg("scheduler closed, diagram left loading")
		}
	}
	return pipeline.Result{Content: out, Modified: true}
}

func (t *Transformer) newJob(encoded string) Job {
	n := t.counter.Add(1)
	return Job{
		ID:          n,
		Source:      DecodeSource(encoded),
		ContainerID: "mermaid-" + strconv.FormatInt(t.now().UnixMilli(), 10) + "-" + strconv.FormatInt(n, 10),
	}
}

func placeholder(id, loading string) string {
	return `<div class="` + ClassContainer + " " + ClassLoading + `" id="` + id + `">` +
		`<div class="mermaid-loading-indicator">` + EncodeSource(loading) + `</div></div>`
}

// render is the deferred task for one job.
func (t *Transformer) render(ctx context.Context, job Job, tr i18n.Translator) {
	log := t.log.With().Str("container", job.ContainerID).Logger()

	if !t.doc.Exists(job.ContainerID) {
		t.metrics.Diagram(metrics.ResultDropped)
		log.Debug().Msg("container gone, diagram dropped")
		return
	}

	start := time.Now()
	svg, err := t.engine.Render(ctx, job.RenderTarget(), job.Source)
	t.metrics.DiagramDuration(time.Since(start))

	if err == nil {
		err = t.fill(job.ContainerID, svg, ClassRendered)
		if err == nil {
			t.metrics.Diagram(metrics.ResultRendered)
			return
		}
	}

	t.metrics.Diagram(metrics.ResultError)
	log.Warn().Err(err).Msg("diagram failed to render")
	if err := t.fill(job.ContainerID, t.errorPanel(job, err, tr), ClassError); err != nil {
		log.Debug().Err(err).Msg("error panel not attached")
	}
}

func (t *Transformer) fill(id, markup, status string) error {
	if err := t.doc.SetInnerHTML(id, markup); err != nil {
		return fmt.Errorf("filling container: %w", err)
	}
	return t.doc.ReplaceClass(id, ClassLoading, status)
}

func (t *Transformer) errorPanel(job Job, err error, tr i18n.Translator) string {
	msg := err.Error()
	var diagErr *DiagramError
	if errors.As(err, &diagErr) {
		msg = diagErr.Message
	}

	return `<div class="mermaid-error-panel">` +
		`<div class="mermaid-error-title">` + EncodeSource(tr.Translate(i18n.KeyDiagramError)) + `</div>` +
		`<pre class="mermaid-error-message">` + t.policy.Sanitize(msg) + `</pre>` +
		`<pre class="mermaid-error-source"><code>` + EncodeSource(job.Source) + `</code></pre>` +
		`</div>`
}
