package pipeline

import "context"

// Result is the outcome of one transformation pass. Transformers never
// modify their input; Modified reports whether Content differs from it.
type Result struct {
	Content  string
	Modified bool
}

// Unchanged returns a Result carrying content as is.
func Unchanged(content string) Result {
	return Result{Content: content}
}

// Transformer rewrites message HTML.
type Transformer interface {
	Transform(ctx context.Context, content string) Result
}

// TransformerFunc adapts a function to Transformer.
type TransformerFunc func(ctx context.Context, content string) Result

// Transform calls f(ctx, content).
func (f TransformerFunc) Transform(ctx context.Context, content string) Result {
	return f(ctx, content)
}

// Chain applies transformers in order, feeding each the previous output.
// The result is Modified if any step modified its input.
func Chain(ctx context.Context, content string, steps ...Transformer) Result {
	out := Unchanged(content)
	for _, step := range steps {
		if ctx.Err() != nil {
			break
		}
		r := step.Transform(ctx, out.Content)
		if r.Modified {
			out = Result{Content: r.Content, Modified: true}
		}
	}
	return out
}
