package activate

import (
	"context"
	"strings"
	"testing"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	l, _, r, _ := newKatexFixture()
	katex := New(r, l)
	grammar := New(Renderer[string]{
		Name:  "grammar:dotenv",
		Build: func(context.Context) (string, error) { return "dotenv", nil },
	}, l)

	reg := NewRegistry()
	reg.Register(katex)
	reg.Register(grammar)

	if got := strings.Join(reg.Names(), ","); got != "grammar:dotenv,katex" {
		t.Errorf("Names() = %q", got)
	}

	katex.Activate(context.Background(), Options{})
	states := reg.States()
	if states["katex"] != Ready || states["grammar:dotenv"] != Unloaded {
		t.Errorf("States() = %v", states)
	}

	if a, ok := reg.Lookup("katex"); !ok || a.State() != Ready {
		t.Errorf("Lookup(katex) = %v, %v", a, ok)
	}
	if _, ok := reg.Lookup("mermaid"); ok {
		t.Error("Lookup(mermaid) found an unregistered renderer")
	}

	reg.Reset()
	if got := katex.State(); got != Unloaded {
		t.Errorf("State() after Reset = %v, want %v", got, Unloaded)
	}
	if _, ok := katex.Engine(); ok {
		t.Error("Engine() ok after Reset")
	}
}
