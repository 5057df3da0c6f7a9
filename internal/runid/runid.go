// Package runid stores a per-call run identifier in the context. Each
// dispatch through a configurable wrapper gets its own ID, which event
// subscribers use to pair start and finish events.
package runid

import (
	"context"

	"github.com/google/uuid"
)

type key struct{}

// NewContext returns a copy of parent carrying a freshly generated run ID,
// along with the ID itself.
func NewContext(parent context.Context) (context.Context, uuid.UUID) {
	id := uuid.New()
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the run ID from ctx.
func FromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(key{}).(uuid.UUID)
	return id, ok
}
