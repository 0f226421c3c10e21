package mathx

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	treeblood "github.com/wyatt915/goldmark-treeblood"
	"github.com/yuin/goldmark"
)

// MathMLEngine converts TeX to MathML without any external assets.
type MathMLEngine struct {
	md goldmark.Markdown
}

// NewMathMLEngine creates a MathMLEngine.
func NewMathMLEngine() *MathMLEngine {
	return &MathMLEngine{
		md: goldmark.New(goldmark.WithExtensions(treeblood.MathML())),
	}
}

// Render returns a <math> element for tex.
func (e *MathMLEngine) Render(ctx context.Context, tex string, display bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// The converter sees markdown: keep the expression on one line so it
	// stays a single inline math node.
	tex = strings.Join(strings.Fields(tex), " ")
	delim := "$"
	if display {
		delim = "$$"
	}

	var buf bytes.Buffer
	if err := e.md.Convert([]byte(delim+tex+delim), &buf); err != nil {
		return "", &FormulaError{TeX: tex, Display: display, Err: err}
	}

	out := strings.TrimSpace(buf.String())
	out = strings.TrimPrefix(out, "<p>")
	out = strings.TrimSuffix(out, "</p>")
	if !strings.Contains(out, "<math") {
		return "", &FormulaError{TeX: tex, Display: display, Err: fmt.Errorf("%w: no math element", ErrUnexpectedOutput)}
	}
	return out, nil
}
