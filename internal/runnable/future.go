package runnable

import "context"

// Future is the handle returned by AInvoke. It is resolved exactly once and
// may be awaited by multiple goroutines.
type Future[O any] struct {
	done  chan struct{}
	value O
	err   error
}

// GoFuture runs fn on a new goroutine and returns its Future.
func GoFuture[O any](fn func() (O, error)) *Future[O] {
	f := &Future[O]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.value, f.err = fn()
	}()
	return f
}

// ResolvedFuture returns an already-resolved Future.
func ResolvedFuture[O any](value O, err error) *Future[O] {
	f := &Future[O]{done: make(chan struct{}), value: value, err: err}
	close(f.done)
	return f
}

// FailedFuture returns an already-failed Future.
func FailedFuture[O any](err error) *Future[O] {
	var zero O
	return ResolvedFuture(zero, err)
}

// Wait blocks until the Future resolves or ctx is done, whichever happens
// first. The underlying work is not cancelled by an abandoned Wait.
func (f *Future[O]) Wait(ctx context.Context) (O, error) {
	select {
	case <-ctx.Done():
		var zero O
		return zero, ctx.Err()
	case <-f.done:
		return f.value, f.err
	}
}
