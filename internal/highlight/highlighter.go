package highlight

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/alnah/go-msgenhance/internal/dom"
)

// Markers set on highlighted blocks.
const (
	chromaClass     = "chroma"
	highlightedAttr = "data-highlighted"
)

// Document is the part of *dom.Document the highlighter uses.
type Document interface {
	Update(fn func(root *html.Node))
	Observe(fn dom.Observer) (cancel func())
}

// Highlighter highlights code.language-<lang> blocks for enabled languages,
// both those already in the document and those attached later.
type Highlighter struct {
	doc       Document
	formatter *chromahtml.Formatter
	style     *chroma.Style
	log       zerolog.Logger

	watch  sync.Once
	cancel func()

	mu      sync.Mutex
	enabled map[string]chroma.Lexer
}

// NewHighlighter creates a Highlighter for doc.
func NewHighlighter(doc Document, log zerolog.Logger) *Highlighter {
	return &Highlighter{
		doc: doc,
		formatter: chromahtml.New(
			chromahtml.WithClasses(true),
			chromahtml.PreventSurroundingPre(true),
		),
		style:   styles.Get("github"),
		log:     log,
		enabled: make(map[string]chroma.Lexer),
	}
}

// Enable highlights existing lang blocks with lexer and starts watching
// the document for new ones. It returns the number of blocks highlighted.
func (h *Highlighter) Enable(lang string, lexer chroma.Lexer) int {
	h.mu.Lock()
	h.enabled[lang] = lexer
	h.mu.Unlock()

	// Observers run under the document lock and take h.mu, so h.mu must not
	// be held while registering.
	h.watch.Do(func() {
		h.cancel = h.doc.Observe(func(n *html.Node) { h.highlightTree(n) })
	})

	var count int
	h.doc.Update(func(root *html.Node) {
		count = h.highlightTree(root)
	})
	return count
}

// Close stops watching the document. A closed Highlighter keeps
// highlighting on Enable but no longer sees new blocks.
func (h *Highlighter) Close() {
	h.watch.Do(func() {})
	if h.cancel != nil {
		h.cancel()
	}
}

// WriteCSS writes the token stylesheet matching the generated classes.
func (h *Highlighter) WriteCSS(w io.Writer) error {
	return h.formatter.WriteCSS(w, h.style)
}

// highlightTree runs with the document lock held.
func (h *Highlighter) highlightTree(root *html.Node) int {
	var count int
	dom.Walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "code" {
			return true
		}
		pre := n.Parent
		if pre == nil || pre.Type != html.ElementNode || pre.Data != "pre" {
			return false
		}
		if _, done := dom.Attr(pre, highlightedAttr); done {
			return false
		}

		lang := codeLanguage(n)
		lexer := h.lexerFor(lang)
		if lexer == nil {
			return false
		}
		if err := h.highlight(pre, n, lexer, lang); err != nil {
			h.log.Debug().Err(err).Str("grammar", lang).Msg("code block not highlighted")
			return false
		}
		count++
		return false
	})
	return count
}

func (h *Highlighter) lexerFor(lang string) chroma.Lexer {
	if lang == "" {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enabled[lang]
}

func (h *Highlighter) highlight(pre, code *html.Node, lexer chroma.Lexer, lang string) error {
	it, err := lexer.Tokenise(nil, dom.Text(code))
	if err != nil {
		return fmt.Errorf("tokenising: %w", err)
	}

	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, h.style, it); err != nil {
		return fmt.Errorf("formatting: %w", err)
	}
	nodes, err := html.ParseFragment(&buf, code)
	if err != nil {
		return fmt.Errorf("parsing highlighted code: %w", err)
	}

	for c := code.FirstChild; c != nil; c = code.FirstChild {
		code.RemoveChild(c)
	}
	for _, c := range nodes {
		code.AppendChild(c)
	}

	if !dom.HasClass(pre, chromaClass) {
		classes, _ := dom.Attr(pre, "class")
		dom.SetAttr(pre, "class", strings.TrimSpace(classes+" "+chromaClass))
	}
	dom.SetAttr(pre, highlightedAttr, lang)
	return nil
}

// codeLanguage returns the <lang> of a language-<lang> class.
func codeLanguage(code *html.Node) string {
	classes, _ := dom.Attr(code, "class")
	for _, c := range strings.Fields(classes) {
		if lang, ok := strings.CutPrefix(c, "language-"); ok {
			return lang
		}
	}
	return ""
}
