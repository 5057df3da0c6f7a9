package runnable

import "context"

// Runnable is a unit of computation that can be invoked, batched and
// streamed. All methods accept a per-call *Config which may be nil.
//
// Batch and ABatch return one Result per input, in input order. When
// opts.ReturnExceptions is false the first failure aborts the call and is
// returned as the error instead.
type Runnable[I, O any] interface {
	// Invoke runs the unit once on the caller's goroutine.
	Invoke(ctx context.Context, input I, config *Config) (O, error)

	// AInvoke runs the unit on a background goroutine and returns a Future
	// for the result.
	AInvoke(ctx context.Context, input I, config *Config) *Future[O]

	// Batch runs the unit over inputs with one config per input (see
	// ConfigList for broadcasting) using call-scoped parallel workers.
	Batch(ctx context.Context, inputs []I, configs []*Config, opts BatchOptions) ([]Result[O], error)

	// ABatch is the cooperative analog of Batch: every input is scheduled
	// concurrently, bounded by the first config's MaxConcurrency.
	ABatch(ctx context.Context, inputs []I, configs []*Config, opts BatchOptions) ([]Result[O], error)

	// Stream produces a lazy, single-pass sequence of output chunks.
	Stream(ctx context.Context, input I, config *Config) (*Stream[O], error)

	// Transform applies the unit to a streamed input sequence.
	Transform(ctx context.Context, input *Stream[I], config *Config) (*Stream[O], error)

	// ConfigSpecs lists every configurable axis this unit exposes,
	// transitively through any wrapping.
	ConfigSpecs() []FieldSpec
}

// Rebuildable is the capability a unit must provide to have its
// constructor-level fields overridden at call time. It replaces ambient
// reflection: the unit itself knows its field set and how to clone itself.
type Rebuildable[I, O any] interface {
	Runnable[I, O]

	// Fields returns the unit's current constructor-level field values,
	// keyed by internal field name.
	Fields() map[string]any

	// Rebuild returns a new unit of the same concrete kind, built from the
	// current field set with the given fields replaced. The receiver is not
	// modified.
	Rebuild(overrides map[string]any) (Runnable[I, O], error)
}

// FieldDecl is a unit's own declaration of one of its fields, used to
// default the description and annotation of a FieldSpec when its author
// omitted them.
type FieldDecl struct {
	Description string
	Annotation  string
}

// FieldDeclarer optionally accompanies Rebuildable.
type FieldDeclarer interface {
	FieldDecl(name string) (FieldDecl, bool)
}

// HasConfigurableFields is implemented by units that can absorb additional
// field declarations into a single wrapper layer instead of stacking.
type HasConfigurableFields[I, O any] interface {
	ConfigurableFields(fields map[string]ConfigurableField) (Runnable[I, O], error)
}
