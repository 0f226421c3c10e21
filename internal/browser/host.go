// Package browser provides a headless Chrome page as a script host, for
// bundles such as Mermaid that need real layout to produce output.
//
// The browser is launched lazily on first use and kept for the life of the
// Host. Rod downloads Chromium on first run if none is found; set
// ROD_BROWSER_BIN to use a pre-installed binary.
package browser

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
	"github.com/ysmood/gson"

	"github.com/alnah/go-msgenhance/internal/process"
)

// DefaultTimeout bounds a single browser operation when the caller's
// context has no deadline.
const DefaultTimeout = 30 * time.Second

// blankPage is the document scripts are injected into.
const blankPage = `<!DOCTYPE html><html><head><meta charset="utf-8"></head><body></body></html>`

// Host is a single headless page shared by every script it evaluates.
// It is safe for concurrent use; operations on the page are serialized.
type Host struct {
	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	timeout  time.Duration
	closed   bool
	log      zerolog.Logger
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(h *Host) {
		h.log = log
	}
}

// WithTimeout sets the per-operation timeout.
// Panics if d is not positive.
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("browser: timeout must be positive")
	}
	return func(h *Host) {
		h.timeout = d
	}
}

// New creates a Host. No browser is started until the first evaluation.
func New(opts ...Option) *Host {
	h := &Host{timeout: DefaultTimeout, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ensurePage lazily launches the browser and opens the blank page.
// Must be called with h.mu held.
func (h *Host) ensurePage() error {
	if h.closed {
		return ErrClosed
	}
	if h.page != nil {
		return nil
	}

	l := launcher.New().Headless(true)
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}
	// Containers and CI runners cannot use the Chrome sandbox.
	if os.Getenv("CI") == "true" || os.Getenv("ROD_BROWSER_BIN") != "" {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		l.Kill()
		return fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	if err := page.SetDocumentContent(blankPage); err != nil {
		_ = b.Close()
		l.Kill()
		return fmt.Errorf("%w: %v", ErrPageCreate, err)
	}

	h.launcher, h.browser, h.page = l, b, page
	h.log.Debug().Int("pid", l.PID()).Msg("browser started")
	return nil
}

// scoped returns the page bound to ctx, falling back to the host timeout
// when ctx has no deadline. Must be called with h.mu held.
func (h *Host) scoped(ctx context.Context) *rod.Page {
	if _, ok := ctx.Deadline(); ok {
		return h.page.Context(ctx)
	}
	return h.page.Context(ctx).Timeout(h.timeout)
}

// Evaluate injects source as an inline script tag. url is only used in errors.
func (h *Host) Evaluate(ctx context.Context, url string, source []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.ensurePage(); err != nil {
		return err
	}
	if err := h.scoped(ctx).AddScriptTag("", string(source)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrScriptLoad, url, err)
	}
	return nil
}

// Has reports whether name is defined and non-null on window.
// It returns false if the browser has not been started.
func (h *Host) Has(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.page == nil || h.closed {
		return false
	}
	res, err := h.page.Timeout(h.timeout).Eval(`(n) => window[n] !== undefined && window[n] !== null`, name)
	if err != nil {
		return false
	}
	return res.Value.Bool()
}

// Eval runs a JavaScript function expression with args and returns its
// JSON-encoded result. Promises are awaited.
func (h *Host) Eval(ctx context.Context, js string, args ...any) (gson.JSON, error) {
	if err := ctx.Err(); err != nil {
		return gson.JSON{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.ensurePage(); err != nil {
		return gson.JSON{}, err
	}
	res, err := h.scoped(ctx).Eval(js, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return gson.JSON{}, ctxErr
		}
		return gson.JSON{}, fmt.Errorf("%w: %v", ErrEval, err)
	}
	return res.Value, nil
}

// Close shuts the browser down and kills its process tree. The Host cannot
// be reused afterwards.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	if h.browser == nil {
		return nil
	}

	err := h.browser.Close()
	pid := h.launcher.PID()
	process.KillTree(pid)
	h.launcher.Kill()
	h.log.Debug().Int("pid", pid).Msg("browser stopped")

	h.launcher, h.browser, h.page = nil, nil, nil
	return err
}
