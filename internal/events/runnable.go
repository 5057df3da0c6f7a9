// Package events declares the lifecycle events published while runnables
// execute. Subscribers (see the otel package) correlate start/finish pairs
// through the run ID stored in the context.
package events

import "time"

// RunStart is emitted before a single invocation is delegated.
type RunStart struct {
	Kind    string // wrapper kind, e.g. "configurable_fields"
	RunName string
	Tags    []string
	Async   bool // AInvoke rather than Invoke
}

// RunFinish is emitted after a single invocation returns.
type RunFinish struct {
	Kind     string
	RunName  string
	Err      error
	Duration time.Duration
}

// BatchStart is emitted before a batched call executes.
type BatchStart struct {
	Kind     string
	RunName  string
	Size     int
	FastPath bool // the whole batch was delegated to the bound unit
	Async    bool // cooperative (ABatch) rather than pooled (Batch)
}

// BatchFinish is emitted after a batched call completes.
type BatchFinish struct {
	Kind     string
	RunName  string
	Size     int
	Failures int
	Err      error
	Duration time.Duration
}

// StreamStart is emitted when a streaming call is delegated.
type StreamStart struct {
	Kind    string
	RunName string
}

// StreamFinish is emitted when a delegated stream is closed or exhausted.
type StreamFinish struct {
	Kind     string
	RunName  string
	Chunks   int
	Err      error
	Duration time.Duration
}
