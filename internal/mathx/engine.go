package mathx

import (
	"context"
	"errors"
	"fmt"

	"github.com/alnah/go-msgenhance/internal/jsrt"
)

// ErrUnexpectedOutput indicates the engine returned something other than markup.
var ErrUnexpectedOutput = errors.New("math engine returned non-string output")

// Engine renders one TeX expression to HTML.
type Engine interface {
	Render(ctx context.Context, tex string, display bool) (string, error)
}

// FormulaError is a TeX expression the engine rejected.
type FormulaError struct {
	TeX     string
	Display bool
	Err     error
}

func (e *FormulaError) Error() string {
	return message(e.Err)
}

func (e *FormulaError) Unwrap() error {
	return e.Err
}

// message extracts the text shown to users from an engine error.
func message(err error) string {
	var scriptErr *jsrt.ScriptError
	if errors.As(err, &scriptErr) {
		return scriptErr.Message
	}
	return err.Error()
}

// Caller is the part of *jsrt.Runtime the KaTeX engine needs.
type Caller interface {
	Call(ctx context.Context, path string, args ...any) (any, error)
}

// KatexEngine renders with katex.renderToString.
type KatexEngine struct {
	rt Caller
}

// NewKatexEngine creates an engine over a runtime that has evaluated katex.min.js.
func NewKatexEngine(rt Caller) *KatexEngine {
	return &KatexEngine{rt: rt}
}

// Render returns KaTeX HTML+MathML markup for tex.
func (e *KatexEngine) Render(ctx context.Context, tex string, display bool) (string, error) {
	out, err := e.rt.Call(ctx, "katex.renderToString", tex, map[string]any{
		"displayMode":  display,
		"throwOnError": true,
		"output":       "htmlAndMathml",
	})
	if err != nil {
		return "", &FormulaError{TeX: tex, Display: display, Err: err}
	}
	s, ok := out.(string)
	if !ok {
		return "", &FormulaError{TeX: tex, Display: display, Err: fmt.Errorf("%w: %T", ErrUnexpectedOutput, out)}
	}
	return s, nil
}

// Compile-time interface checks.
var (
	_ Engine = (*KatexEngine)(nil)
	_ Engine = (*MathMLEngine)(nil)
	_ Caller = (*jsrt.Runtime)(nil)
)
