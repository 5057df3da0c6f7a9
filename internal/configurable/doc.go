// Package configurable lets a bound runnable be reparameterized at call
// time by the caller-supplied Config, without mutating the bound unit and
// without the caller knowing its concrete construction.
//
// # Resolution model
//
// Every wrapper in this package follows the same two-step contract: first a
// Resolver turns the per-call Config into the concrete unit to use for that
// call, then the wrapper delegates the actual execution to that unit. Two
// resolvers exist:
//
//   - Fields rebuilds the bound unit with a subset of its constructor-level
//     fields replaced by values from Config.Configurable, using the unit's
//     own Rebuildable capability.
//   - Alternatives swaps the bound unit wholesale for one of several
//     pre-registered units, selected by a single discriminator value.
//
// Resolution is a pure function of resolver state and Config: equal configs
// yield equivalent units, resolver state is never mutated by a call, and
// the resolved unit is never cached or shared across calls with different
// configs. When the config carries none of the declared keys, resolution
// returns the bound unit itself, by identity.
//
// Keys in Config.Configurable that a resolver does not recognize are
// silently ignored; one config object may carry keys addressed to several
// wrapper layers. A selector value that matches no registered alternative
// is a fatal resolution error and is never retried.
//
// # Dispatch
//
// Single invocations resolve once and delegate with the same input and
// config. Batched invocations resolve once per input (after broadcasting a
// single config when needed) and then take one of two routes:
//
//   - Fast path: if every resolution returned the bound unit by identity,
//     the entire call is delegated to the bound unit's own batch primitive,
//     preserving whatever batching optimization it implements.
//   - Fallback: each (unit, input, config) triple is executed independently
//     and results are collected in input order. Batch uses a worker pool
//     scoped to the call; ABatch schedules all items cooperatively, bounded
//     by the first config's MaxConcurrency.
//
// With BatchOptions.ReturnExceptions set, a per-item failure (including a
// resolution failure) is captured in that item's Result; otherwise the
// first failure aborts the call. In-flight siblings are not cancelled
// beyond context cancellation; they run to completion and their results are
// discarded.
//
// Streaming resolves once for the whole call, not per chunk, and delegates
// the entire stream to the resolved unit.
//
// # Composition
//
// WithFields and its analogs return new wrapper values rather than
// mutating in place, so a configured wrapper can be used as a shared,
// read-mostly template by many concurrent callers.
package configurable
