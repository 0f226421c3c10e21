package browser

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHost_BeforeLaunch(t *testing.T) {
	t.Parallel()

	h := New()
	if h.Has("mermaid") {
		t.Error("Has() = true on a host that never started")
	}
	if err := h.Close(); err != nil {
		t.Errorf("Close() unexpected error: %v", err)
	}
}

func TestHost_CanceledContextSkipsLaunch(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := New()
	if err := h.Evaluate(ctx, "x.js", []byte("var x = 1;")); !errors.Is(err, context.Canceled) {
		t.Errorf("Evaluate() error = %v, want %v", err, context.Canceled)
	}
	if _, err := h.Eval(ctx, "() => 1"); !errors.Is(err, context.Canceled) {
		t.Errorf("Eval() error = %v, want %v", err, context.Canceled)
	}
	if h.browser != nil {
		t.Error("browser launched despite canceled context")
	}
}

func TestHost_ClosedRejectsWork(t *testing.T) {
	t.Parallel()

	h := New()
	_ = h.Close()

	err := h.Evaluate(context.Background(), "x.js", []byte("var x = 1;"))
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Evaluate() after Close error = %v, want %v", err, ErrClosed)
	}
}

func TestWithTimeout_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("WithTimeout(0) did not panic")
		}
	}()
	_ = WithTimeout(0)
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	h := New(WithTimeout(5 * time.Second))
	if h.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", h.timeout)
	}
}
