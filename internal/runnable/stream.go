package runnable

// Stream is a lazy, single-pass sequence of output chunks. Usage follows
// the rows-scanning pattern:
//
//	for s.Next() {
//	    use(s.Current())
//	}
//	if err := s.Err(); err != nil { ... }
//
// A Stream is not restartable and not safe for concurrent use. Whether it
// is finite is up to its producer.
type Stream[O any] struct {
	pull    func() (O, bool, error)
	closeFn func() error

	cur    O
	err    error
	closed bool
}

// StreamFunc builds a Stream from a pull function. pull returns the next
// chunk and true, or false when the sequence ends (with a non-nil error on
// failure).
func StreamFunc[O any](pull func() (O, bool, error)) *Stream[O] {
	return &Stream[O]{pull: pull}
}

// NewStream builds a Stream from a pull function and a close hook.
func NewStream[O any](pull func() (O, bool, error), closeFn func() error) *Stream[O] {
	return StreamFunc(pull).OnClose(closeFn)
}

// StreamOf returns a finite Stream over the given items.
func StreamOf[O any](items ...O) *Stream[O] {
	i := 0
	return StreamFunc(func() (O, bool, error) {
		if i >= len(items) {
			var zero O
			return zero, false, nil
		}
		v := items[i]
		i++
		return v, true, nil
	})
}

// OnClose attaches a close hook, e.g. to release a network stream. It
// returns the receiver.
func (s *Stream[O]) OnClose(fn func() error) *Stream[O] {
	s.closeFn = fn
	return s
}

// Next advances the stream. It returns false at the end of the sequence or
// on error; check Err afterwards.
func (s *Stream[O]) Next() bool {
	if s.closed || s.err != nil {
		return false
	}
	v, ok, err := s.pull()
	if err != nil {
		s.err = err
		return false
	}
	if !ok {
		return false
	}
	s.cur = v
	return true
}

// Current returns the chunk produced by the last successful Next.
func (s *Stream[O]) Current() O { return s.cur }

// Err returns the error that terminated the stream, if any.
func (s *Stream[O]) Err() error { return s.err }

// Close releases any resources held by the producer. It is safe to call
// more than once.
func (s *Stream[O]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closeFn != nil {
		return s.closeFn()
	}
	return nil
}

// Collect drains the stream into a slice, closing it afterwards.
func Collect[O any](s *Stream[O]) ([]O, error) {
	defer s.Close()
	var out []O
	for s.Next() {
		out = append(out, s.Current())
	}
	return out, s.Err()
}

// MapStream derives a stream by applying fn to every chunk of in. The
// derived stream closes in when it is closed or exhausted.
func MapStream[I, O any](in *Stream[I], fn func(I) (O, error)) *Stream[O] {
	out := StreamFunc(func() (O, bool, error) {
		if !in.Next() {
			var zero O
			return zero, false, in.Err()
		}
		v, err := fn(in.Current())
		if err != nil {
			var zero O
			return zero, false, err
		}
		return v, true, nil
	})
	return out.OnClose(in.Close)
}
