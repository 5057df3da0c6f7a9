// Package runnable defines the contract shared by every composable unit of
// computation in this module, plus the per-call configuration object and the
// small value types (futures, streams, batch results) the contract is
// expressed with.
//
// # Contract
//
// A Runnable[I, O] supports five execution shapes:
//
//   - Invoke: one input, one output, on the caller's goroutine.
//   - AInvoke: one input, resolved on a background goroutine, awaited
//     through a Future.
//   - Batch / ABatch: many inputs with per-input configurations, results
//     returned positionally. Batch schedules on a bounded worker pool scoped
//     to the call; ABatch launches one goroutine per input gated by the
//     first configuration's MaxConcurrency.
//   - Stream / Transform: lazy single-pass output sequences. A Stream is
//     pull-based and context-aware, so it serves both the synchronous and
//     asynchronous roles.
//
// Implementations must be safe for concurrent use: a Runnable is a
// read-only template that many callers share.
//
// # Per-call configuration
//
// Config travels with every call and is never stored by a unit. Its
// Configurable mapping carries values addressed to configurable wrappers
// (see the configurable package); keys a given wrapper does not recognize
// are left for other layers and never cause an error.
//
// # Capabilities
//
// Optional interfaces refine what a unit can do:
//
//   - Rebuildable: expose the current constructor-level field set and
//     produce a new unit of the same kind with some fields replaced.
//   - FieldDeclarer: describe those fields for spec listings.
//   - HasConfigurableFields: flatten stacked field configuration instead of
//     nesting wrapper layers.
package runnable
