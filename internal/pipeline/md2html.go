package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// ErrHTMLConversion indicates HTML conversion failed.
var ErrHTMLConversion = errors.New("HTML conversion failed")

// HTMLConverter abstracts Markdown to HTML conversion.
type HTMLConverter interface {
	ToHTML(ctx context.Context, content string) (string, error)
}

// GoldmarkConverter converts Markdown to a message HTML fragment using
// goldmark (pure Go). Math spans reach the output as written; fenced blocks
// in languages chroma does not know stay plain code.language-<lang> blocks.
type GoldmarkConverter struct {
	md  goldmark.Markdown
	pre MarkdownPreprocessor
}

// NewGoldmarkConverter creates a GoldmarkConverter with GFM extensions and syntax highlighting.
func NewGoldmarkConverter() *GoldmarkConverter {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,      // Tables, strikethrough, autolinks, task lists
			extension.Footnote, // [^1] footnotes
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true), // CSS classes for smaller HTML and external stylesheet control
				),
				highlighting.WithWrapperRenderer(plainCodeWrapper),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(), // Chat messages keep their line breaks
			html.WithXHTML(),
			// WithUnsafe is not used: math survives through placeholders.
		),
	)
	return &GoldmarkConverter{md: md, pre: &CommonMarkPreprocessor{}}
}

// ToHTML converts Markdown content to an HTML fragment.
// Supports context cancellation via goroutine + select pattern since
// Goldmark doesn't natively support context.
func (c *GoldmarkConverter) ToHTML(ctx context.Context, content string) (string, error) {
	// Fast path: check context before starting
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type result struct {
		html string
		err  error
	}

	done := make(chan result, 1)

	go func() {
		prepared, spans := ProtectMath(c.pre.PreprocessMarkdown(ctx, content))

		var buf bytes.Buffer
		if err := c.md.Convert([]byte(prepared), &buf); err != nil {
			done <- result{err: fmt.Errorf("%w: %v", ErrHTMLConversion, err)}
			return
		}
		done <- result{html: spans.Restore(buf.String())}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.html, r.err
	}
}

// plainCodeWrapper writes <pre><code class="language-<lang>"> around fenced
// blocks chroma did not highlight, which is the markup the diagram pass and
// runtime grammars look for.
func plainCodeWrapper(w util.BufWriter, ctx highlighting.CodeBlockContext, entering bool) {
	if ctx.Highlighted() {
		return
	}
	if !entering {
		_, _ = w.WriteString("</code></pre>\n")
		return
	}

	_, _ = w.WriteString("<pre><code")
	if lang, ok := ctx.Language(); ok {
		if name := strings.TrimSpace(strings.ToLower(string(lang))); name != "" {
			_, _ = w.WriteString(` class="language-`)
			_, _ = w.Write(util.EscapeHTML([]byte(name)))
			_, _ = w.WriteString(`"`)
		}
	}
	_, _ = w.WriteString(">")
}

// Compile-time interface check.
var _ HTMLConverter = (*GoldmarkConverter)(nil)
