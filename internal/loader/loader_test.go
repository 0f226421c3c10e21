package loader

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/net/html"

	"github.com/alnah/go-msgenhance/internal/dom"
)

var errNetwork = errors.New("network down")

// mockFetcher serves fixed bodies and counts fetches per URL.
type mockFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	fail   map[string]error
	calls  map[string]int
	gate   chan struct{} // when set, Fetch blocks until closed
}

func newMockFetcher(bodies map[string]string) *mockFetcher {
	return &mockFetcher{bodies: bodies, fail: map[string]error{}, calls: map[string]int{}}
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	m.calls[url]++
	gate := m.gate
	err := m.fail[url]
	body, ok := m.bodies[url]
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("404")
	}
	return []byte(body), nil
}

func (m *mockFetcher) count(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[url]
}

// mockHost records evaluated scripts.
type mockHost struct {
	mu        sync.Mutex
	evaluated []string
	globals   map[string]bool
	err       error
}

func (h *mockHost) Evaluate(ctx context.Context, url string, source []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.evaluated = append(h.evaluated, string(source))
	return nil
}

func (h *mockHost) Has(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.globals[name]
}

func TestEnsureStylesheet(t *testing.T) {
	t.Parallel()

	const url = "/plugins/msgenhance/katex.min.css"
	doc := dom.New()
	fetcher := newMockFetcher(map[string]string{url: ".katex{}"})
	l := New(doc, fetcher)

	for i := 0; i < 3; i++ {
		if err := l.EnsureStylesheet(context.Background(), url); err != nil {
			t.Fatalf("EnsureStylesheet() call %d error = %v", i, err)
		}
	}

	if got := fetcher.count(url); got != 1 {
		t.Errorf("fetch count = %d, want 1", got)
	}
	if !doc.HasResource("link", "href", url) {
		t.Error("stylesheet not linked from head")
	}
	if got := l.Registry().State(url); got != Settled {
		t.Errorf("State() = %v, want %v", got, Settled)
	}
}

func TestEnsureScript(t *testing.T) {
	t.Parallel()

	const url = "/plugins/msgenhance/katex.min.js"
	doc := dom.New()
	fetcher := newMockFetcher(map[string]string{url: "var katex = {};"})
	host := &mockHost{}
	l := New(doc, fetcher)

	if err := l.EnsureScript(context.Background(), url, host); err != nil {
		t.Fatalf("EnsureScript() error = %v", err)
	}
	if err := l.EnsureScript(context.Background(), url, host); err != nil {
		t.Fatalf("second EnsureScript() error = %v", err)
	}

	if len(host.evaluated) != 1 || host.evaluated[0] != "var katex = {};" {
		t.Errorf("evaluated = %v, want the script once", host.evaluated)
	}
	if !doc.HasResource("script", "src", url) {
		t.Error("script not referenced from head")
	}
}

func TestEnsureStylesheet_ExistingElement(t *testing.T) {
	t.Parallel()

	const url = "/plugins/msgenhance/katex.min.css"
	doc := dom.New()
	doc.AppendToHead("link", html.Attribute{Key: "rel", Val: "stylesheet"}, html.Attribute{Key: "href", Val: url})
	fetcher := newMockFetcher(nil)
	l := New(doc, fetcher)

	if err := l.EnsureStylesheet(context.Background(), url); err != nil {
		t.Fatalf("EnsureStylesheet() error = %v", err)
	}
	if got := fetcher.count(url); got != 0 {
		t.Errorf("fetch count = %d, want 0 for a stylesheet already linked", got)
	}
}

func TestEnsureScript_PreseededElement(t *testing.T) {
	t.Parallel()

	const url = "/plugins/msgenhance/katex.min.js"
	doc, err := dom.Parse(strings.NewReader(
		`<html><head><script src="` + url + `"></script></head><body></body></html>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	fetcher := newMockFetcher(map[string]string{url: "var katex = {};"})
	l := New(doc, fetcher)

	first, second := &mockHost{}, &mockHost{}
	for _, host := range []*mockHost{first, first, second} {
		if err := l.EnsureScript(context.Background(), url, host); err != nil {
			t.Fatalf("EnsureScript() error = %v", err)
		}
	}

	if len(first.evaluated) != 1 {
		t.Errorf("first host evaluated %d times, want 1", len(first.evaluated))
	}
	if len(second.evaluated) != 1 {
		t.Errorf("second host evaluated %d times, want 1", len(second.evaluated))
	}
	if got := fetcher.count(url); got != 2 {
		t.Errorf("fetch count = %d, want one per host", got)
	}

	out, _ := doc.Render()
	if refs := strings.Count(out, url); refs != 1 {
		t.Errorf("script referenced %d times in head, want 1", refs)
	}
}

func TestEnsure_Failures(t *testing.T) {
	t.Parallel()

	const url = "/plugins/msgenhance/katex.min.js"
	errSyntax := errors.New("SyntaxError")

	tests := []struct {
		name    string
		fetch   error
		host    *mockHost
		wantErr error
	}{
		{
			name:    "fetch failure",
			fetch:   errNetwork,
			host:    &mockHost{},
			wantErr: errNetwork,
		},
		{
			name:    "evaluation failure",
			host:    &mockHost{err: errSyntax},
			wantErr: errSyntax,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			doc := dom.New()
			fetcher := newMockFetcher(map[string]string{url: "x"})
			if tt.fetch != nil {
				fetcher.fail[url] = tt.fetch
			}
			l := New(doc, fetcher)

			err := l.EnsureScript(context.Background(), url, tt.host)

			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("EnsureScript() error = %v, want *LoadError", err)
			}
			if loadErr.URL != url {
				t.Errorf("LoadError.URL = %q, want %q", loadErr.URL, url)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("EnsureScript() error = %v, want wrapping %v", err, tt.wantErr)
			}
			if doc.HasResource("script", "src", url) {
				t.Error("failed script must not be referenced from head")
			}
			if got := l.Registry().State(url); got != NotRequested {
				t.Errorf("State() = %v, want %v after failure", got, NotRequested)
			}
		})
	}
}

func TestEnsure_NoNegativeCaching(t *testing.T) {
	t.Parallel()

	const url = "/plugins/msgenhance/katex.min.css"
	doc := dom.New()
	fetcher := newMockFetcher(map[string]string{url: ".k{}"})
	fetcher.fail[url] = errNetwork
	l := New(doc, fetcher)

	if err := l.EnsureStylesheet(context.Background(), url); err == nil {
		t.Fatal("first EnsureStylesheet() should fail")
	}

	fetcher.mu.Lock()
	delete(fetcher.fail, url)
	fetcher.mu.Unlock()

	if err := l.EnsureStylesheet(context.Background(), url); err != nil {
		t.Fatalf("retry EnsureStylesheet() error = %v", err)
	}
	if got := fetcher.count(url); got != 2 {
		t.Errorf("fetch count = %d, want 2", got)
	}
}

func TestEnsureScript_NilHost(t *testing.T) {
	t.Parallel()

	l := New(dom.New(), newMockFetcher(nil))
	err := l.EnsureScript(context.Background(), "/x.js", nil)
	if !errors.Is(err, ErrNilHost) {
		t.Errorf("EnsureScript(nil host) error = %v, want %v", err, ErrNilHost)
	}
}

func TestEnsureScript_ConcurrentFirstLoad(t *testing.T) {
	t.Parallel()

	const url = "/plugins/msgenhance/mermaid.min.js"
	doc := dom.New()
	fetcher := newMockFetcher(map[string]string{url: "var mermaid = {};"})
	fetcher.gate = make(chan struct{})
	host := &mockHost{}
	l := New(doc, fetcher)

	const callers = 8
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.EnsureScript(context.Background(), url, host); err != nil {
				failures.Add(1)
			}
		}()
	}

	// Wait until the first fetch is in flight, then release it.
	for fetcher.count(url) == 0 {
		runtime.Gosched()
	}
	close(fetcher.gate)
	wg.Wait()

	if failures.Load() != 0 {
		t.Errorf("%d callers failed", failures.Load())
	}
	if got := fetcher.count(url); got != 1 {
		t.Errorf("fetch count = %d, want 1", got)
	}
	if len(host.evaluated) != 1 {
		t.Errorf("evaluated %d times, want 1", len(host.evaluated))
	}

	out, _ := doc.Render()
	if scripts := strings.Count(out, url); scripts != 1 {
		t.Errorf("script referenced %d times in head, want 1", scripts)
	}
}
