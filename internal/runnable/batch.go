package runnable

// BatchOptions controls error collection for Batch and ABatch.
type BatchOptions struct {
	// ReturnExceptions captures a per-item failure in that item's Result
	// instead of aborting the whole call.
	ReturnExceptions bool
}

// Result is one positional outcome of a batched call.
type Result[O any] struct {
	Value O
	Err   error
}

// Values unwraps results into plain values. It returns the first error
// encountered, in input order, together with the values gathered so far.
func Values[O any](results []Result[O]) ([]O, error) {
	out := make([]O, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			return out, r.Err
		}
		out = append(out, r.Value)
	}
	return out, nil
}
