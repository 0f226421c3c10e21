package diagram

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ysmood/gson"

	"github.com/alnah/go-msgenhance/internal/browser"
)

// DiagramError is a diagram the engine rejected.
type DiagramError struct {
	Message string
}

func (e *DiagramError) Error() string {
	return e.Message
}

// Evaluator runs JavaScript in a page with Mermaid loaded.
type Evaluator interface {
	Eval(ctx context.Context, js string, args ...any) (gson.JSON, error)
}

var _ Evaluator = (*browser.Host)(nil)

// initializeJS applies the one-time global Mermaid configuration.
const initializeJS = `(theme) => {
	window.mermaid.initialize({
		startOnLoad: false,
		theme: theme,
		securityLevel: "strict",
		fontFamily: "inherit"
	});
	return true;
}`

// renderJS renders one diagram. Failures are returned as data so parse
// errors reach the caller as plain messages. Mermaid leaves a scratch
// element behind on failure; it is removed here.
const renderJS = `async (id, src) => {
	try {
		const out = await window.mermaid.render(id, src);
		return JSON.stringify({ svg: out.svg });
	} catch (e) {
		const scratch = document.getElementById("d" + id);
		if (scratch) { scratch.remove(); }
		return JSON.stringify({ error: String((e && e.message) || e) });
	}
}`

// ConfigureMermaid runs mermaid.initialize with theme.
func ConfigureMermaid(ctx context.Context, ev Evaluator, theme string) error {
	if theme == "" {
		theme = "default"
	}
	if _, err := ev.Eval(ctx, initializeJS, theme); err != nil {
		return fmt.Errorf("initializing mermaid: %w", err)
	}
	return nil
}

// MermaidEngine renders through mermaid.render in a browser page.
type MermaidEngine struct {
	ev Evaluator
}

// NewMermaidEngine creates an engine over a page where Mermaid is loaded
// and configured.
func NewMermaidEngine(ev Evaluator) *MermaidEngine {
	return &MermaidEngine{ev: ev}
}

var _ Engine = (*MermaidEngine)(nil)

type renderOutput struct {
	SVG   string `json:"svg"`
	Error string `json:"error"`
}

// Render returns SVG markup, or a *DiagramError for invalid source.
func (e *MermaidEngine) Render(ctx context.Context, id, source string) (string, error) {
	res, err := e.ev.Eval(ctx, renderJS, id, source)
	if err != nil {
		return "", err
	}

	var out renderOutput
	if err := json.Unmarshal([]byte(res.Str()), &out); err != nil {
		return "", fmt.Errorf("decoding render output: %w", err)
	}
	if out.Error != "" {
		return "", &DiagramError{Message: out.Error}
	}
	return out.SVG, nil
}
