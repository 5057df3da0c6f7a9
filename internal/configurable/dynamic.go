package configurable

import (
	"context"
	"reflect"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/billvsme/langchain/internal/eventbus"
	"github.com/billvsme/langchain/internal/events"
	"github.com/billvsme/langchain/internal/runid"
	"github.com/billvsme/langchain/internal/runnable"
)

// Resolver produces the concrete unit to delegate to for one call. Prepare
// must be pure: it never mutates resolver state, never blocks and never
// caches its result.
type Resolver[I, O any] interface {
	Prepare(config *runnable.Config) (runnable.Runnable[I, O], error)
}

// dynamic implements every execution method of the Runnable contract on
// top of a prepare function. Fields and Alternatives embed it and add
// their own ConfigSpecs.
type dynamic[I, O any] struct {
	kind    string
	bound   runnable.Runnable[I, O]
	prepare func(*runnable.Config) (runnable.Runnable[I, O], error)
}

// Bound returns the wrapped unit.
func (d *dynamic[I, O]) Bound() runnable.Runnable[I, O] { return d.bound }

func (d *dynamic[I, O]) Invoke(ctx context.Context, input I, config *runnable.Config) (O, error) {
	target, err := d.prepare(config)
	if err != nil {
		var zero O
		return zero, err
	}
	ctx, _ = runid.NewContext(ctx)
	c := runnable.EnsureConfig(config)
	start := time.Now()
	eventbus.Publish(ctx, events.RunStart{Kind: d.kind, RunName: c.RunName, Tags: c.Tags})
	out, err := target.Invoke(ctx, input, config)
	eventbus.Publish(ctx, events.RunFinish{Kind: d.kind, RunName: c.RunName, Err: err, Duration: time.Since(start)})
	return out, err
}

func (d *dynamic[I, O]) AInvoke(ctx context.Context, input I, config *runnable.Config) *runnable.Future[O] {
	target, err := d.prepare(config)
	if err != nil {
		return runnable.FailedFuture[O](err)
	}
	ctx, _ = runid.NewContext(ctx)
	c := runnable.EnsureConfig(config)
	start := time.Now()
	eventbus.Publish(ctx, events.RunStart{Kind: d.kind, RunName: c.RunName, Tags: c.Tags, Async: true})
	inner := target.AInvoke(ctx, input, config)
	return runnable.GoFuture(func() (O, error) {
		out, err := inner.Wait(context.Background())
		eventbus.Publish(ctx, events.RunFinish{Kind: d.kind, RunName: c.RunName, Err: err, Duration: time.Since(start)})
		return out, err
	})
}

func (d *dynamic[I, O]) Batch(ctx context.Context, inputs []I, configs []*runnable.Config, opts runnable.BatchOptions) ([]runnable.Result[O], error) {
	if len(inputs) == 0 {
		return []runnable.Result[O]{}, nil
	}
	cfgs, prepared, prepErrs, allBound, err := d.prepareAll(inputs, configs, opts)
	if err != nil {
		return nil, err
	}

	ctx, _ = runid.NewContext(ctx)
	first := runnable.EnsureConfig(cfgs[0])
	start := time.Now()
	eventbus.Publish(ctx, events.BatchStart{Kind: d.kind, RunName: first.RunName, Size: len(inputs), FastPath: allBound})

	var results []runnable.Result[O]
	if allBound {
		results, err = d.bound.Batch(ctx, inputs, configs, opts)
	} else {
		results, err = d.runPool(ctx, prepared, prepErrs, inputs, cfgs, opts)
	}
	eventbus.Publish(ctx, events.BatchFinish{
		Kind:     d.kind,
		RunName:  first.RunName,
		Size:     len(inputs),
		Failures: countFailures(results),
		Err:      err,
		Duration: time.Since(start),
	})
	return results, err
}

func (d *dynamic[I, O]) ABatch(ctx context.Context, inputs []I, configs []*runnable.Config, opts runnable.BatchOptions) ([]runnable.Result[O], error) {
	if len(inputs) == 0 {
		return []runnable.Result[O]{}, nil
	}
	cfgs, prepared, prepErrs, allBound, err := d.prepareAll(inputs, configs, opts)
	if err != nil {
		return nil, err
	}

	ctx, _ = runid.NewContext(ctx)
	first := runnable.EnsureConfig(cfgs[0])
	start := time.Now()
	eventbus.Publish(ctx, events.BatchStart{Kind: d.kind, RunName: first.RunName, Size: len(inputs), FastPath: allBound, Async: true})

	var results []runnable.Result[O]
	if allBound {
		results, err = d.bound.ABatch(ctx, inputs, configs, opts)
	} else {
		results, err = d.gather(ctx, prepared, prepErrs, inputs, cfgs, opts)
	}
	eventbus.Publish(ctx, events.BatchFinish{
		Kind:     d.kind,
		RunName:  first.RunName,
		Size:     len(inputs),
		Failures: countFailures(results),
		Err:      err,
		Duration: time.Since(start),
	})
	return results, err
}

func (d *dynamic[I, O]) Stream(ctx context.Context, input I, config *runnable.Config) (*runnable.Stream[O], error) {
	target, err := d.prepare(config)
	if err != nil {
		return nil, err
	}
	ctx, _ = runid.NewContext(ctx)
	c := runnable.EnsureConfig(config)
	start := time.Now()
	eventbus.Publish(ctx, events.StreamStart{Kind: d.kind, RunName: c.RunName})

	inner, err := target.Stream(ctx, input, config)
	if err != nil {
		eventbus.Publish(ctx, events.StreamFinish{Kind: d.kind, RunName: c.RunName, Err: err, Duration: time.Since(start)})
		return nil, err
	}

	chunks := 0
	finished := false
	finish := func(err error) {
		if finished {
			return
		}
		finished = true
		eventbus.Publish(ctx, events.StreamFinish{
			Kind:     d.kind,
			RunName:  c.RunName,
			Chunks:   chunks,
			Err:      err,
			Duration: time.Since(start),
		})
	}
	out := runnable.StreamFunc(func() (O, bool, error) {
		if !inner.Next() {
			finish(inner.Err())
			var zero O
			return zero, false, inner.Err()
		}
		chunks++
		return inner.Current(), true, nil
	})
	return out.OnClose(func() error {
		err := inner.Close()
		finish(inner.Err())
		return err
	}), nil
}

func (d *dynamic[I, O]) Transform(ctx context.Context, input *runnable.Stream[I], config *runnable.Config) (*runnable.Stream[O], error) {
	target, err := d.prepare(config)
	if err != nil {
		return nil, err
	}
	return target.Transform(ctx, input, config)
}

// prepareAll broadcasts configs and resolves one unit per input. A
// resolution failure aborts unless opts.ReturnExceptions is set, in which
// case it is recorded as that item's error. allBound reports whether every
// resolution returned the bound unit by identity.
func (d *dynamic[I, O]) prepareAll(inputs []I, configs []*runnable.Config, opts runnable.BatchOptions) (cfgs []*runnable.Config, prepared []runnable.Runnable[I, O], prepErrs []error, allBound bool, err error) {
	cfgs, err = runnable.ConfigList(configs, len(inputs))
	if err != nil {
		return nil, nil, nil, false, err
	}
	prepared = make([]runnable.Runnable[I, O], len(inputs))
	prepErrs = make([]error, len(inputs))
	allBound = true
	for i, c := range cfgs {
		p, perr := d.prepare(c)
		if perr != nil {
			if !opts.ReturnExceptions {
				return nil, nil, nil, false, perr
			}
			prepErrs[i] = perr
			allBound = false
			continue
		}
		prepared[i] = p
		if !identical(p, d.bound) {
			allBound = false
		}
	}
	return cfgs, prepared, prepErrs, allBound, nil
}

// runPool executes the fallback path for Batch on a worker pool scoped to
// the call. Pool size comes from the first config's MaxConcurrency, else
// the number of CPUs. Without ReturnExceptions the first failure cancels
// the pool context and wins; items not yet started are skipped, items in
// flight see the cancelled context and their results are discarded.
func (d *dynamic[I, O]) runPool(ctx context.Context, prepared []runnable.Runnable[I, O], prepErrs []error, inputs []I, cfgs []*runnable.Config, opts runnable.BatchOptions) ([]runnable.Result[O], error) {
	results := make([]runnable.Result[O], len(inputs))
	invokeOne := func(ctx context.Context, i int) runnable.Result[O] {
		if prepErrs[i] != nil {
			var zero O
			return runnable.Result[O]{Value: zero, Err: prepErrs[i]}
		}
		v, err := prepared[i].Invoke(ctx, inputs[i], cfgs[i])
		return runnable.Result[O]{Value: v, Err: err}
	}

	// A single input does not need a pool.
	if len(inputs) == 1 {
		r := invokeOne(ctx, 0)
		if r.Err != nil && !opts.ReturnExceptions {
			return nil, r.Err
		}
		results[0] = r
		return results, nil
	}

	workers := runnable.EnsureConfig(cfgs[0]).MaxConcurrency
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(inputs) {
		workers = len(inputs)
	}

	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	idxCh := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idxCh {
				if !opts.ReturnExceptions && poolCtx.Err() != nil {
					continue
				}
				r := invokeOne(poolCtx, i)
				results[i] = r
				if r.Err != nil && !opts.ReturnExceptions {
					once.Do(func() {
						firstErr = r.Err
						cancel()
					})
				}
			}
		}()
	}
	for i := range inputs {
		idxCh <- i
	}
	close(idxCh)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// gather executes the fallback path for ABatch: every item is scheduled
// concurrently through the resolved unit's AInvoke, bounded by the first
// config's MaxConcurrency (unbounded when absent).
func (d *dynamic[I, O]) gather(ctx context.Context, prepared []runnable.Runnable[I, O], prepErrs []error, inputs []I, cfgs []*runnable.Config, opts runnable.BatchOptions) ([]runnable.Result[O], error) {
	results := make([]runnable.Result[O], len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	if limit := runnable.EnsureConfig(cfgs[0]).MaxConcurrency; limit > 0 {
		g.SetLimit(limit)
	}
	for i := range inputs {
		g.Go(func() error {
			if prepErrs[i] != nil {
				results[i] = runnable.Result[O]{Err: prepErrs[i]}
				return nil
			}
			v, err := prepared[i].AInvoke(gctx, inputs[i], cfgs[i]).Wait(gctx)
			if err != nil && !opts.ReturnExceptions {
				return err
			}
			results[i] = runnable.Result[O]{Value: v, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// identical reports whether two units are the same value. Pointer units
// compare by pointer; non-comparable values are never identical.
func identical[I, O any](a, b runnable.Runnable[I, O]) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Kind() == reflect.Pointer && rb.Kind() == reflect.Pointer {
		return ra.Pointer() == rb.Pointer()
	}
	if ra.Type() != rb.Type() || !ra.Type().Comparable() {
		return false
	}
	return ra.Interface() == rb.Interface()
}

func countFailures[O any](results []runnable.Result[O]) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
