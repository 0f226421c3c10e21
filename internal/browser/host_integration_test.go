//go:build integration

package browser

import (
	"context"
	"errors"
	"testing"
	"time"
)

const testTimeout = 30 * time.Second

func TestHost_Integration(t *testing.T) {
	h := New(WithTimeout(testTimeout))
	t.Cleanup(func() { _ = h.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	t.Run("evaluate defines window global", func(t *testing.T) {
		src := `window.lib = { render: (id, s) => Promise.resolve("<svg id='" + id + "'>" + s + "</svg>") };`
		if err := h.Evaluate(ctx, "lib.js", []byte(src)); err != nil {
			t.Fatalf("Evaluate() unexpected error: %v", err)
		}
		if !h.Has("lib") {
			t.Error("Has(lib) = false after evaluation")
		}
	})

	t.Run("eval awaits promises", func(t *testing.T) {
		res, err := h.Eval(ctx, `(id, s) => window.lib.render(id, s)`, "d1", "x")
		if err != nil {
			t.Fatalf("Eval() unexpected error: %v", err)
		}
		if got, want := res.Str(), "<svg id='d1'>x</svg>"; got != want {
			t.Errorf("Eval() = %q, want %q", got, want)
		}
	})

	t.Run("thrown error", func(t *testing.T) {
		_, err := h.Eval(ctx, `() => { throw new Error("bad diagram"); }`)
		if !errors.Is(err, ErrEval) {
			t.Errorf("Eval() error = %v, want %v", err, ErrEval)
		}
	})
}
