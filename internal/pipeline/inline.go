package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrInlineStylesheet indicates a linked stylesheet could not be inlined.
var ErrInlineStylesheet = errors.New("stylesheet inlining failed")

// ResourceFetcher returns the body of a resource URL.
type ResourceFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// CSSInjector defines the contract for CSS injection into HTML.
type CSSInjector interface {
	InjectCSS(ctx context.Context, htmlContent, cssContent string) string
}

// CSSInjection injects CSS as a <style> block into HTML content.
type CSSInjection struct{}

// InjectCSS inserts a <style> block into HTML content.
// Tries </head> first, then <body>, then prepends to the HTML.
// CSS content is sanitized to prevent injection attacks.
func (s *CSSInjection) InjectCSS(ctx context.Context, htmlContent, cssContent string) string {
	if cssContent == "" {
		return htmlContent
	}

	if ctx.Err() != nil {
		return htmlContent
	}

	styleBlock := "<style>" + sanitizeCSS(cssContent) + "</style>"
	lowerHTML := strings.ToLower(htmlContent)

	if idx := strings.Index(lowerHTML, "</head>"); idx != -1 {
		return htmlContent[:idx] + styleBlock + htmlContent[idx:]
	}

	if idx := strings.Index(lowerHTML, "<body"); idx != -1 {
		closeIdx := strings.Index(htmlContent[idx:], ">")
		if closeIdx != -1 {
			insertPos := idx + closeIdx + 1
			return htmlContent[:insertPos] + styleBlock + htmlContent[insertPos:]
		}
	}

	return styleBlock + htmlContent
}

// sanitizeCSS escapes sequences that could break out of a <style> block.
func sanitizeCSS(css string) string {
	return strings.ReplaceAll(css, "</", `<\/`)
}

// Standalone turns a live document into a self-contained file: each linked
// stylesheet becomes a <style> block and external scripts are dropped, since
// their output is already part of the document.
type Standalone struct {
	fetcher ResourceFetcher
}

// NewStandalone creates a Standalone that reads stylesheets through f.
func NewStandalone(f ResourceFetcher) *Standalone {
	return &Standalone{fetcher: f}
}

// Inline rewrites htmlContent. The first stylesheet that cannot be fetched
// aborts with ErrInlineStylesheet.
func (s *Standalone) Inline(ctx context.Context, htmlContent string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	doc, isFragment, err := parseHTML(htmlContent)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInlineStylesheet, err)
	}

	var links, scripts []*html.Node
	collect(doc, func(n *html.Node) {
		switch {
		case n.DataAtom == atom.Link && attr(n, "rel") == "stylesheet" && attr(n, "href") != "":
			links = append(links, n)
		case n.DataAtom == atom.Script && attr(n, "src") != "":
			scripts = append(scripts, n)
		}
	})

	for _, link := range links {
		href := attr(link, "href")
		css, err := s.fetcher.Fetch(ctx, href)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrInlineStylesheet, href, err)
		}
		style := &html.Node{Type: html.ElementNode, DataAtom: atom.Style, Data: "style"}
		style.AppendChild(&html.Node{Type: html.TextNode, Data: sanitizeCSS(string(css))})
		link.Parent.InsertBefore(style, link)
		link.Parent.RemoveChild(link)
	}
	for _, script := range scripts {
		script.Parent.RemoveChild(script)
	}

	return renderHTML(doc, isFragment)
}

func collect(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
