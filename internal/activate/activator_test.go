package activate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/alnah/go-msgenhance/internal/loader"
)

// mockLoader records requests and fails the URLs in fail.
type mockLoader struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
	host  *mockHost
}

func (m *mockLoader) EnsureStylesheet(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "css "+url)
	if m.fail[url] {
		return &loader.LoadError{URL: url, Err: errors.New("404")}
	}
	return nil
}

func (m *mockLoader) EnsureScript(ctx context.Context, url string, host loader.ScriptHost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "js "+url)
	if m.fail[url] {
		return &loader.LoadError{URL: url, Err: errors.New("404")}
	}
	if m.host != nil {
		m.host.define(url)
	}
	return nil
}

func (m *mockLoader) requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// mockHost defines the global named in defines[url] when url is loaded.
type mockHost struct {
	mu      sync.Mutex
	defines map[string]string
	globals map[string]bool
}

func (h *mockHost) Evaluate(ctx context.Context, url string, source []byte) error { return nil }

func (h *mockHost) Has(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.globals[name]
}

func (h *mockHost) define(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if name, ok := h.defines[url]; ok {
		h.globals[name] = true
	}
}

type fakeEngine struct{ id int }

func newKatexFixture() (*mockLoader, *mockHost, Renderer[*fakeEngine], *int) {
	host := &mockHost{
		defines: map[string]string{"/p/katex.min.js": "katex"},
		globals: map[string]bool{},
	}
	l := &mockLoader{fail: map[string]bool{}, host: host}
	builds := 0
	r := Renderer[*fakeEngine]{
		Name:        "katex",
		Stylesheets: []string{"/p/katex.min.css"},
		Scripts:     []string{"/p/katex.min.js"},
		Host:        host,
		Entry:       "katex",
		Build: func(context.Context) (*fakeEngine, error) {
			builds++
			return &fakeEngine{id: builds}, nil
		},
	}
	return l, host, r, &builds
}

func TestActivate_Success(t *testing.T) {
	t.Parallel()

	l, _, r, builds := newKatexFixture()
	a := New(r, l)

	if _, ok := a.Engine(); ok {
		t.Fatal("Engine() ok before activation")
	}

	if !a.Activate(context.Background(), Options{}) {
		t.Fatal("Activate() = false, want true")
	}
	if got := a.State(); got != Ready {
		t.Errorf("State() = %v, want %v", got, Ready)
	}

	want := "css /p/katex.min.css,js /p/katex.min.js"
	if got := strings.Join(l.requests(), ","); got != want {
		t.Errorf("requests = %q, want %q", got, want)
	}

	engine, ok := a.Engine()
	if !ok || engine.id != 1 {
		t.Errorf("Engine() = %v, %v; want engine #1, true", engine, ok)
	}

	// Ready renderers are not reloaded.
	if !a.Activate(context.Background(), Options{}) {
		t.Error("second Activate() = false")
	}
	if len(l.requests()) != 2 || *builds != 1 {
		t.Errorf("second activation reloaded: requests=%v builds=%d", l.requests(), *builds)
	}
}

func TestActivate_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(l *mockLoader, h *mockHost, r *Renderer[*fakeEngine])
	}{
		{
			name: "stylesheet fails",
			modify: func(l *mockLoader, h *mockHost, r *Renderer[*fakeEngine]) {
				l.fail["/p/katex.min.css"] = true
			},
		},
		{
			name: "script fails",
			modify: func(l *mockLoader, h *mockHost, r *Renderer[*fakeEngine]) {
				l.fail["/p/katex.min.js"] = true
			},
		},
		{
			name: "entry point missing",
			modify: func(l *mockLoader, h *mockHost, r *Renderer[*fakeEngine]) {
				h.defines = map[string]string{}
			},
		},
		{
			name: "configure fails",
			modify: func(l *mockLoader, h *mockHost, r *Renderer[*fakeEngine]) {
				r.Configure = func(context.Context, Options) error { return errors.New("bad config") }
			},
		},
		{
			name: "build fails",
			modify: func(l *mockLoader, h *mockHost, r *Renderer[*fakeEngine]) {
				r.Build = func(context.Context) (*fakeEngine, error) { return nil, errors.New("no engine") }
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l, h, r, _ := newKatexFixture()
			tt.modify(l, h, &r)
			a := New(r, l)

			if a.Activate(context.Background(), Options{}) {
				t.Fatal("Activate() = true, want false")
			}
			if got := a.State(); got != Failed {
				t.Errorf("State() = %v, want %v", got, Failed)
			}
			if _, ok := a.Engine(); ok {
				t.Error("Engine() ok after failed activation")
			}
		})
	}
}

func TestActivate_RetriesAfterFailure(t *testing.T) {
	t.Parallel()

	l, _, r, _ := newKatexFixture()
	l.fail["/p/katex.min.js"] = true
	a := New(r, l)

	if a.Activate(context.Background(), Options{}) {
		t.Fatal("first Activate() = true, want false")
	}

	l.mu.Lock()
	delete(l.fail, "/p/katex.min.js")
	l.mu.Unlock()

	if !a.Activate(context.Background(), Options{}) {
		t.Fatal("retry Activate() = false, want true")
	}
}

func TestActivate_ThemeFirstWriterWins(t *testing.T) {
	t.Parallel()

	host := &mockHost{
		defines: map[string]string{"/p/mermaid.min.js": "mermaid"},
		globals: map[string]bool{},
	}
	l := &mockLoader{fail: map[string]bool{}, host: host}

	var configured []string
	a := New(Renderer[string]{
		Name:    "mermaid",
		Scripts: []string{"/p/mermaid.min.js"},
		Host:    host,
		Entry:   "mermaid",
		Configure: func(_ context.Context, opts Options) error {
			configured = append(configured, opts.Theme)
			return nil
		},
		Build: func(context.Context) (string, error) { return "engine", nil },
	}, l)

	for _, theme := range []string{"dark", "forest", "dark"} {
		if !a.Activate(context.Background(), Options{Theme: theme}) {
			t.Fatalf("Activate(%q) = false", theme)
		}
	}

	if len(configured) != 1 || configured[0] != "dark" {
		t.Errorf("configured = %v, want [dark]", configured)
	}
	if got := a.ConfiguredTheme(); got != "dark" {
		t.Errorf("ConfiguredTheme() = %q, want %q", got, "dark")
	}
}

func TestActivate_NoResources(t *testing.T) {
	t.Parallel()

	a := New(Renderer[int]{
		Name:  "builtin",
		Build: func(context.Context) (int, error) { return 7, nil },
	}, &mockLoader{})

	if !a.Activate(context.Background(), Options{}) {
		t.Fatal("Activate() = false for a renderer without resources")
	}
	if got, _ := a.Engine(); got != 7 {
		t.Errorf("Engine() = %d, want 7", got)
	}
}

func TestActivate_Concurrent(t *testing.T) {
	t.Parallel()

	l, _, r, builds := newKatexFixture()
	a := New(r, l)

	var wg sync.WaitGroup
	results := make([]bool, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = a.Activate(context.Background(), Options{})
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		if !ok {
			t.Errorf("caller %d: Activate() = false", i)
		}
	}
	if *builds != 1 {
		t.Errorf("builds = %d, want 1", *builds)
	}
}

func TestNew_PanicsWithoutBuild(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("New() without Build did not panic")
		}
	}()
	New(Renderer[int]{Name: "x"}, &mockLoader{})
}

func TestStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  string
	}{
		{Unloaded, "unloaded"},
		{Loading, "loading"},
		{Ready, "ready"},
		{Failed, "failed"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
