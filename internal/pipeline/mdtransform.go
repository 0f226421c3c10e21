package pipeline

import (
	"context"
	"html"
	"regexp"
	"strconv"
	"strings"
)

// Math placeholders use Unicode Private Use Area characters.
// These are guaranteed to not conflict with any standard characters
// and will pass through Goldmark unchanged (no WithUnsafe needed).
const (
	MathStartPlaceholder = "\uE000" // U+E000: Private Use Area start
	MathEndPlaceholder   = "\uE001" // U+E001: Private Use Area end
)

// Precompiled regex patterns for performance.
var (
	// Line ending normalization
	crlfOrCR = regexp.MustCompile(`\r\n?`)

	// Compress multiple blank lines to max 2
	multipleBlankLines = regexp.MustCompile(`\n{3,}`)

	// Code that Markdown keeps verbatim: fences and inline code spans.
	markdownCode = regexp.MustCompile("(?ms)^[ \t]*```.*?^[ \t]*```[^\n]*$|^[ \t]*~~~.*?^[ \t]*~~~[^\n]*$|`[^`\n]+`")

	// Math spans in the four delimiter forms, display forms first.
	mathSpan = regexp.MustCompile(`(?s)\$\$.+?\$\$|\\\[.+?\\\]|\\\(.+?\\\)|\$[^$\n]+\$`)

	// A protected display span alone in a paragraph.
	wrappedPlaceholder = regexp.MustCompile(`<p>` + MathStartPlaceholder + `(\d+)` + MathEndPlaceholder + `</p>`)
	placeholder        = regexp.MustCompile(MathStartPlaceholder + `(\d+)` + MathEndPlaceholder)
)

// MarkdownPreprocessor defines the contract for markdown preprocessing.
type MarkdownPreprocessor interface {
	PreprocessMarkdown(ctx context.Context, content string) string
}

// CommonMarkPreprocessor applies transformations before CommonMark conversion.
type CommonMarkPreprocessor struct{}

// PreprocessMarkdown applies all transformations to prepare Markdown for conversion.
func (p *CommonMarkPreprocessor) PreprocessMarkdown(ctx context.Context, content string) string {
	// Check for cancellation before processing
	if ctx.Err() != nil {
		return content
	}

	content = normalizeLineEndings(content)
	content = compressBlankLines(content)
	return content
}

// normalizeLineEndings converts \r\n and \r to \n.
func normalizeLineEndings(content string) string {
	return crlfOrCR.ReplaceAllString(content, "\n")
}

// compressBlankLines limits consecutive blank lines to 2 maximum.
func compressBlankLines(content string) string {
	return multipleBlankLines.ReplaceAllString(content, "\n\n")
}

// MathSpans holds the math spans taken out of Markdown by ProtectMath.
type MathSpans struct {
	spans []string
}

// ProtectMath replaces math spans outside code with placeholders so that
// Markdown emphasis, escapes and hard wraps leave them alone. Restore puts
// them back after conversion.
func ProtectMath(content string) (string, *MathSpans) {
	s := &MathSpans{}
	if !strings.ContainsAny(content, `$\`) {
		return content, s
	}

	var b strings.Builder
	last := 0
	for _, loc := range markdownCode.FindAllStringIndex(content, -1) {
		b.WriteString(s.protect(content[last:loc[0]]))
		b.WriteString(content[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(s.protect(content[last:]))
	return b.String(), s
}

func (s *MathSpans) protect(text string) string {
	return mathSpan.ReplaceAllStringFunc(text, func(span string) string {
		s.spans = append(s.spans, span)
		return MathStartPlaceholder + strconv.Itoa(len(s.spans)-1) + MathEndPlaceholder
	})
}

// Len returns the number of protected spans.
func (s *MathSpans) Len() int {
	return len(s.spans)
}

// Restore substitutes the protected spans back into converted HTML,
// escaped as text. A display span that makes up a whole paragraph replaces
// the paragraph.
func (s *MathSpans) Restore(htmlContent string) string {
	if len(s.spans) == 0 {
		return htmlContent
	}

	htmlContent = wrappedPlaceholder.ReplaceAllStringFunc(htmlContent, func(m string) string {
		span, ok := s.lookup(wrappedPlaceholder.FindStringSubmatch(m)[1])
		if !ok {
			return m
		}
		escaped := html.EscapeString(span)
		if isDisplay(span) {
			return escaped
		}
		return "<p>" + escaped + "</p>"
	})
	return placeholder.ReplaceAllStringFunc(htmlContent, func(m string) string {
		span, ok := s.lookup(placeholder.FindStringSubmatch(m)[1])
		if !ok {
			return m
		}
		return html.EscapeString(span)
	})
}

func (s *MathSpans) lookup(index string) (string, bool) {
	i, err := strconv.Atoi(index)
	if err != nil || i < 0 || i >= len(s.spans) {
		return "", false
	}
	return s.spans[i], true
}

func isDisplay(span string) bool {
	return strings.HasPrefix(span, "$$") || strings.HasPrefix(span, `\[`)
}
