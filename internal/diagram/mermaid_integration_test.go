//go:build integration

package diagram

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alnah/go-msgenhance/internal/browser"
)

// TestMermaidEngine_Integration needs MERMAID_JS pointing at mermaid.min.js.
func TestMermaidEngine_Integration(t *testing.T) {
	path := os.Getenv("MERMAID_JS")
	if path == "" {
		t.Skip("MERMAID_JS not set")
	}
	src, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading mermaid: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	host := browser.New()
	t.Cleanup(func() { _ = host.Close() })

	if err := host.Evaluate(ctx, path, src); err != nil {
		t.Fatalf("Evaluate() unexpected error: %v", err)
	}
	if err := ConfigureMermaid(ctx, host, "dark"); err != nil {
		t.Fatalf("ConfigureMermaid() unexpected error: %v", err)
	}
	engine := NewMermaidEngine(host)

	svg, err := engine.Render(ctx, "it-1-svg", "graph TD\n  A --> B")
	if err != nil {
		t.Fatalf("Render() unexpected error: %v", err)
	}
	if !strings.Contains(svg, "<svg") {
		t.Errorf("Render() = %q, want svg markup", svg[:min(80, len(svg))])
	}

	_, err = engine.Render(ctx, "it-2-svg", "graph TD\n  A -->")
	var diagErr *DiagramError
	if !errors.As(err, &diagErr) {
		t.Errorf("Render(invalid) error = %v, want *DiagramError", err)
	}
}
