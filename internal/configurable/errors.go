package configurable

import "errors"

var (
	// ErrUnknownAlternative indicates a selector value that matches no
	// registered alternative. Resolution fails fatally; it is never
	// retried.
	ErrUnknownAlternative = errors.New("configurable: unknown alternative")
)
