package runnable

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Func adapts a plain function to the Runnable contract. Batch runs items
// sequentially (there is no unit-level batching to preserve), ABatch fans
// out under the configured concurrency bound, and Stream yields the single
// invocation result as a one-chunk sequence. Transform applies the function
// to every input chunk.
type Func[I, O any] struct {
	name string
	fn   func(ctx context.Context, input I, config *Config) (O, error)
}

// NewFunc wraps fn as a Runnable.
func NewFunc[I, O any](name string, fn func(ctx context.Context, input I, config *Config) (O, error)) *Func[I, O] {
	return &Func[I, O]{name: name, fn: fn}
}

func (f *Func[I, O]) Name() string { return f.name }

func (f *Func[I, O]) Invoke(ctx context.Context, input I, config *Config) (O, error) {
	return f.fn(ctx, input, config)
}

func (f *Func[I, O]) AInvoke(ctx context.Context, input I, config *Config) *Future[O] {
	return GoFuture(func() (O, error) { return f.Invoke(ctx, input, config) })
}

func (f *Func[I, O]) Batch(ctx context.Context, inputs []I, configs []*Config, opts BatchOptions) ([]Result[O], error) {
	cfgs, err := ConfigList(configs, len(inputs))
	if err != nil {
		return nil, err
	}
	results := make([]Result[O], len(inputs))
	for i, input := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := f.Invoke(ctx, input, cfgs[i])
		if err != nil && !opts.ReturnExceptions {
			return nil, err
		}
		results[i] = Result[O]{Value: v, Err: err}
	}
	return results, nil
}

func (f *Func[I, O]) ABatch(ctx context.Context, inputs []I, configs []*Config, opts BatchOptions) ([]Result[O], error) {
	cfgs, err := ConfigList(configs, len(inputs))
	if err != nil {
		return nil, err
	}
	results := make([]Result[O], len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	if len(cfgs) > 0 && EnsureConfig(cfgs[0]).MaxConcurrency > 0 {
		g.SetLimit(cfgs[0].MaxConcurrency)
	}
	for i, input := range inputs {
		g.Go(func() error {
			v, err := f.Invoke(gctx, input, cfgs[i])
			if err != nil && !opts.ReturnExceptions {
				return err
			}
			results[i] = Result[O]{Value: v, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (f *Func[I, O]) Stream(ctx context.Context, input I, config *Config) (*Stream[O], error) {
	v, err := f.Invoke(ctx, input, config)
	if err != nil {
		return nil, err
	}
	return StreamOf(v), nil
}

func (f *Func[I, O]) Transform(ctx context.Context, input *Stream[I], config *Config) (*Stream[O], error) {
	return MapStream(input, func(chunk I) (O, error) {
		return f.Invoke(ctx, chunk, config)
	}), nil
}

func (f *Func[I, O]) ConfigSpecs() []FieldSpec { return nil }

var _ Runnable[string, string] = (*Func[string, string])(nil)
