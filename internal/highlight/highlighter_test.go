package highlight

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/alnah/go-msgenhance/internal/dom"
)

func dotenvLexer(t *testing.T) *GrammarHost {
	t.Helper()
	h := NewGrammarHost(zerolog.Nop())
	if err := h.Evaluate(context.Background(), "dotenv.xml", loadGrammar(t, "dotenv")); err != nil {
		t.Fatalf("Evaluate() unexpected error: %v", err)
	}
	return h
}

func TestHighlighter_Enable(t *testing.T) {
	t.Parallel()

	doc := dom.New()
	_ = doc.AppendHTML(`<pre id="a"><code class="language-dotenv"># db
DB_HOST=localhost</code></pre><pre id="b"><code class="language-python">x = 1</code></pre>`)

	host := dotenvLexer(t)
	lexer, _ := host.Lexer("dotenv")

	hl := NewHighlighter(doc, zerolog.Nop())
	defer hl.Close()

	if got := hl.Enable("dotenv", lexer); got != 1 {
		t.Errorf("Enable() = %d, want 1", got)
	}

	inner, _ := doc.InnerHTML("a")
	for _, want := range []string{`class="c1"`, `class="nv"`, "DB_HOST", "localhost"} {
		if !strings.Contains(inner, want) {
			t.Errorf("highlighted block = %q, should contain %q", inner, want)
		}
	}
	if class, _ := doc.Class("a"); class != "chroma" {
		t.Errorf("Class(a) = %q, want chroma", class)
	}

	untouched, _ := doc.InnerHTML("b")
	if untouched != `<code class="language-python">x = 1</code>` {
		t.Errorf("other language block changed: %q", untouched)
	}
}

func TestHighlighter_EnableIsIdempotent(t *testing.T) {
	t.Parallel()

	doc := dom.New()
	_ = doc.AppendHTML(`<pre id="a" class="wide"><code class="language-env">A=1</code></pre>`)

	lexer, _ := dotenvLexer(t).Lexer("env")
	hl := NewHighlighter(doc, zerolog.Nop())
	defer hl.Close()

	first := hl.Enable("env", lexer)
	before, _ := doc.InnerHTML("a")
	second := hl.Enable("env", lexer)
	after, _ := doc.InnerHTML("a")

	if first != 1 || second != 0 {
		t.Errorf("Enable() counts = %d, %d, want 1, 0", first, second)
	}
	if before != after {
		t.Errorf("second Enable() changed block:\n%s\n%s", before, after)
	}
	if class, _ := doc.Class("a"); class != "wide chroma" {
		t.Errorf("Class(a) = %q, want %q", class, "wide chroma")
	}
}

func TestHighlighter_WatchesNewBlocks(t *testing.T) {
	t.Parallel()

	doc := dom.New()
	lexer, _ := dotenvLexer(t).Lexer("dotenv")
	hl := NewHighlighter(doc, zerolog.Nop())

	hl.Enable("dotenv", lexer)
	_ = doc.AppendHTML(`<div><pre id="late"><code class="language-dotenv">export KEY=1</code></pre></div>`)

	inner, _ := doc.InnerHTML("late")
	if !strings.Contains(inner, `class="k"`) {
		t.Errorf("late block = %q, want keyword token", inner)
	}

	hl.Close()
	_ = doc.AppendHTML(`<pre id="closed"><code class="language-dotenv">KEY=1</code></pre>`)
	inner, _ = doc.InnerHTML("closed")
	if strings.Contains(inner, "<span") {
		t.Errorf("block highlighted after Close: %q", inner)
	}
}

func TestHighlighter_WriteCSS(t *testing.T) {
	t.Parallel()

	hl := NewHighlighter(dom.New(), zerolog.Nop())
	var buf strings.Builder
	if err := hl.WriteCSS(&buf); err != nil {
		t.Fatalf("WriteCSS() unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), ".chroma") {
		t.Errorf("WriteCSS() = %q, should style .chroma", buf.String())
	}
}

func TestCodeLanguage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		class string
		want  string
	}{
		{name: "single class", class: "language-go", want: "go"},
		{name: "among others", class: "hljs language-dotenv wrap", want: "dotenv"},
		{name: "no language", class: "plain", want: ""},
		{name: "empty", class: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			doc := dom.New()
			_ = doc.AppendHTML(`<code id="c" class="` + tt.class + `"></code>`)
			var got string
			doc.Update(func(root *html.Node) {
				got = codeLanguage(dom.FindByID(root, "c"))
			})
			if got != tt.want {
				t.Errorf("codeLanguage(%q) = %q, want %q", tt.class, got, tt.want)
			}
		})
	}
}
