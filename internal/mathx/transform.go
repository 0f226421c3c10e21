package mathx

import (
	"context"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/alnah/go-msgenhance/internal/i18n"
	"github.com/alnah/go-msgenhance/internal/metrics"
	"github.com/alnah/go-msgenhance/internal/pipeline"
)

// Placeholders wrap the index of a protected span. They use Private Use
// Area characters, which neither TeX delimiters nor HTML markup contain.
const (
	protectStart = "\uE000"
	protectEnd   = "\uE001"
)

// Precompiled patterns.
var (
	displayDollar  = regexp.MustCompile(`(?s)\$\$(.+?)\$\$`)
	displayBracket = regexp.MustCompile(`(?s)\\\[(.+?)\\\]`)
	inlineParen    = regexp.MustCompile(`(?s)\\\((.+?)\\\)`)

	// Code elements are hidden from every pass.
	codeElement = regexp.MustCompile(`(?is)<pre\b.*?</pre>|<code\b.*?</code>`)

	protected = regexp.MustCompile(protectStart + `(\d+)` + protectEnd)

	numericSpan = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// escapeRaw hides delimiters inside error markers from later scans.
var escapeRaw = strings.NewReplacer("$", "&#36;", `\`, "&#92;")

// Transformer replaces math spans with engine markup.
type Transformer struct {
	engine  Engine
	tr      i18n.Translator
	log     zerolog.Logger
	metrics *metrics.Collector
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithTranslator sets the translator for the error label.
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

// New creates a Transformer rendering with engine.
func New(engine Engine, opts ...Option) *Transformer {
	t := &Transformer{
		engine: engine,
		tr:     i18n.New().Translator("en"),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ pipeline.Transformer = (*Transformer)(nil)

// pass holds the state of one Transform call.
type pass struct {
	t        *Transformer
	ctx      context.Context
	spans    []string
	modified bool
}

// protect stores s and returns its placeholder.
func (p *pass) protect(s string) string {
	p.spans = append(p.spans, s)
	return protectStart + strconv.Itoa(len(p.spans)-1) + protectEnd
}

// Transform renders every math span in content.
func (t *Transformer) Transform(ctx context.Context, content string) pipeline.Result {
	if !strings.ContainsAny(content, `$\`) {
		return pipeline.Unchanged(content)
	}

	p := &pass{t: t, ctx: ctx}

	// Code is protected without marking the content modified.
	work := codeElement.ReplaceAllStringFunc(content, p.protect)

	work = p.replaceAll(displayDollar, work, true)
	work = p.replaceAll(displayBracket, work, true)
	work = p.inlineDollar(work)
	work = p.replaceAll(inlineParen, work, false)

	if !p.modified {
		return pipeline.Unchanged(content)
	}
	return pipeline.Result{Content: p.restore(work), Modified: true}
}

func (p *pass) replaceAll(re *regexp.Regexp, s string, display bool) string {
	return re.ReplaceAllStringFunc(s, func(match string) string {
		tex := re.FindStringSubmatch(match)[1]
		if strings.TrimSpace(tex) == "" {
			return match
		}
		return p.protect(p.render(match, tex, display))
	})
}

// inlineDollar replaces $...$ spans. Go regexps have no lookaround, so
// the adjacency rules are checked by hand.
func (p *pass) inlineDollar(s string) string {
	var b strings.Builder
	last := 0

	for i := 0; i < len(s); i++ {
		if s[i] != '$' || (i > 0 && s[i-1] == '$') || i+1 >= len(s) || s[i+1] == '$' {
			continue
		}

		end := closingDollar(s, i+1)
		if end < 0 {
			continue
		}

		tex := s[i+1 : end]
		if numericSpan.MatchString(tex) {
			// A currency amount keeps its closing $, which must not open a new span.
			p.t.metrics.Formula(metrics.ResultSkipped)
			i = end
			continue
		}
		if !tightlyDelimited(tex) {
			p.t.metrics.Formula(metrics.ResultSkipped)
			continue
		}

		b.WriteString(s[last:i])
		b.WriteString(p.protect(p.render(s[i:end+1], tex, false)))
		last = end + 1
		i = end
	}

	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

// closingDollar returns the index of the first $ after from on the same
// line, or -1 if there is none or it is followed by another $.
func closingDollar(s string, from int) int {
	for j := from; j < len(s); j++ {
		switch s[j] {
		case '\n':
			return -1
		case '$':
			if j+1 < len(s) && s[j+1] == '$' {
				return -1
			}
			return j
		}
	}
	return -1
}

// tightlyDelimited reports whether tex neither starts nor ends with
// whitespace. "$5 and $x$" then renders only x, and "$ x $" stays text.
func tightlyDelimited(tex string) bool {
	return tex != "" && strings.TrimSpace(tex) == tex
}

// render returns engine markup for tex, or an error marker carrying raw.
func (p *pass) render(raw, tex string, display bool) string {
	p.modified = true

	out, err := p.t.engine.Render(p.ctx, html.UnescapeString(tex), display)
	if err != nil {
		p.t.metrics.Formula(metrics.ResultError)
		p.t.log.Debug().Err(err).Str("tex", tex).Msg("formula failed to render")
		return p.t.errorMarker(raw, err, display)
	}

	p.t.metrics.Formula(metrics.ResultRendered)
	if display {
		return `<div class="math-block">` + out + `</div>`
	}
	return out
}

func (t *Transformer) errorMarker(raw string, err error, display bool) string {
	title := html.EscapeString(t.tr.Translate(i18n.KeyMathError) + ": " + message(err))
	body := escapeRaw.Replace(raw)
	if display {
		return `<div class="math-block math-error" title="` + title + `">` + body + `</div>`
	}
	return `<span class="math-error" title="` + title + `">` + body + `</span>`
}

// restore substitutes protected spans back. Spans may themselves contain
// placeholders of earlier spans, so substitution repeats until none remain.
func (p *pass) restore(s string) string {
	for i := 0; i <= len(p.spans) && strings.Contains(s, protectStart); i++ {
		s = protected.ReplaceAllStringFunc(s, func(m string) string {
			idx, err := strconv.Atoi(m[len(protectStart) : len(m)-len(protectEnd)])
			if err != nil || idx >= len(p.spans) {
				return m
			}
			return p.spans[idx]
		})
	}
	return s
}
