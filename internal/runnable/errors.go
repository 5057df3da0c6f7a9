package runnable

import "errors"

var (
	// ErrConfigLengthMismatch indicates a config list whose length matches
	// neither 1 nor the number of inputs.
	ErrConfigLengthMismatch = errors.New("runnable: config list length mismatch")

	// ErrNotRebuildable indicates a unit that does not expose the
	// Rebuildable capability where one is required.
	ErrNotRebuildable = errors.New("runnable: unit is not rebuildable")

	// ErrUnknownField indicates a rebuild override naming a field the unit
	// does not have.
	ErrUnknownField = errors.New("runnable: unknown field")
)
