// Package jsrt is an embedded JavaScript environment for browser bundles
// that only need a global scope, such as KaTeX.
//
// A Runtime wraps a single goja VM. goja runtimes are not goroutine-safe, so
// every entry point takes the runtime lock; callers that need parallel
// evaluation create one Runtime per worker.
package jsrt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"
)

// ErrNotFunction indicates Call was given a path that does not resolve to a function.
var ErrNotFunction = errors.New("not a function")

// ScriptError is an exception thrown by script code.
type ScriptError struct {
	// Message is the thrown error's message property, or its string form.
	Message string
	Err     error
}

func (e *ScriptError) Error() string {
	return e.Message
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// Runtime is a goroutine-safe global script environment.
type Runtime struct {
	mu  sync.Mutex
	vm  *goja.Runtime
	log zerolog.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger routes console.* output to log.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Runtime) {
		r.log = log
	}
}

// New creates a Runtime with the browser globals UMD bundles look for:
// window and self alias the global object, console writes to the logger,
// and document is a stub whose elements accept attributes and ignore them.
func New(opts ...Option) *Runtime {
	r := &Runtime{vm: goja.New(), log: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	r.installGlobals()
	return r
}

func (r *Runtime) installGlobals() {
	vm := r.vm
	global := vm.GlobalObject()
	_ = vm.Set("window", global)
	_ = vm.Set("self", global)

	console := vm.NewObject()
	logTo := func(level zerolog.Level) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = a.String()
			}
			r.log.WithLevel(level).Str("source", "console").Msg(strings.Join(parts, " "))
			return goja.Undefined()
		}
	}
	_ = console.Set("log", logTo(zerolog.DebugLevel))
	_ = console.Set("info", logTo(zerolog.InfoLevel))
	_ = console.Set("warn", logTo(zerolog.WarnLevel))
	_ = console.Set("error", logTo(zerolog.ErrorLevel))
	_ = vm.Set("console", console)

	document := vm.NewObject()
	_ = document.Set("createElement", func(call goja.FunctionCall) goja.Value {
		elem := vm.NewObject()
		_ = elem.Set("setAttribute", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
		_ = elem.Set("appendChild", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
		_ = elem.Set("style", vm.NewObject())
		return elem
	})
	_ = document.Set("head", vm.NewObject())
	_ = vm.Set("document", document)
}

// Evaluate runs source in the global scope. url names the script in stack traces.
func (r *Runtime) Evaluate(ctx context.Context, url string, source []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prog, err := goja.Compile(url, string(source), false)
	if err != nil {
		return fmt.Errorf("compiling %s: %w", url, err)
	}

	_, err = r.interruptible(ctx, func() (goja.Value, error) {
		return r.vm.RunProgram(prog)
	})
	return err
}

// Has reports whether name is defined and non-null in the global scope.
func (r *Runtime) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.vm.Get(name)
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}

// Call invokes the function at a dotted path, such as "katex.renderToString",
// with the receiver set to the object that owns it. Go arguments are
// converted with goja's ToValue; the result is exported back to Go.
func (r *Runtime) Call(ctx context.Context, path string, args ...any) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	this, fn, err := r.lookup(path)
	if err != nil {
		return nil, err
	}

	jsArgs := make([]goja.Value, len(args))
	for i, a := range args {
		jsArgs[i] = r.vm.ToValue(a)
	}

	val, err := r.interruptible(ctx, func() (goja.Value, error) {
		return fn(this, jsArgs...)
	})
	if err != nil {
		return nil, err
	}
	return val.Export(), nil
}

func (r *Runtime) lookup(path string) (goja.Value, goja.Callable, error) {
	var this goja.Value = r.vm.GlobalObject()
	var cur goja.Value = this

	for _, name := range strings.Split(path, ".") {
		obj, ok := cur.(*goja.Object)
		if !ok || obj == nil {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFunction, path)
		}
		this = obj
		cur = obj.Get(name)
		if cur == nil || goja.IsUndefined(cur) || goja.IsNull(cur) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFunction, path)
		}
	}

	fn, ok := goja.AssertFunction(cur)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFunction, path)
	}
	return this, fn, nil
}

// interruptible runs fn, interrupting the VM if ctx ends first.
// Must be called with r.mu held.
func (r *Runtime) interruptible(ctx context.Context, fn func() (goja.Value, error)) (goja.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	watcher := make(chan struct{})
	go func() {
		defer close(watcher)
		select {
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := fn()

	close(done)
	<-watcher
	r.vm.ClearInterrupt()

	if err != nil {
		return nil, translate(err)
	}
	return val, nil
}

// translate maps goja errors to context errors and ScriptErrors.
func translate(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return cause
		}
		return context.Canceled
	}

	var exc *goja.Exception
	if errors.As(err, &exc) {
		return &ScriptError{Message: exceptionMessage(exc), Err: err}
	}
	return err
}

func exceptionMessage(exc *goja.Exception) string {
	if obj, ok := exc.Value().(*goja.Object); ok && obj != nil {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return msg.String()
		}
	}
	if v := exc.Value(); v != nil {
		return v.String()
	}
	return exc.Error()
}
