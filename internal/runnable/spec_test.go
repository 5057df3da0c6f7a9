package runnable

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUniqueSpecs_FirstWinsPreservingOrder(t *testing.T) {
	specs := []FieldSpec{
		{ID: "temp", Name: "Temperature", Default: 0.7},
		{ID: "model", Name: "Model"},
		{ID: "temp", Name: "Shadowed", Default: 0.1},
		{ID: "top_p", Name: "Top-P"},
	}
	want := []FieldSpec{
		{ID: "temp", Name: "Temperature", Default: 0.7},
		{ID: "model", Name: "Model"},
		{ID: "top_p", Name: "Top-P"},
	}
	if diff := cmp.Diff(want, UniqueSpecs(specs)); diff != "" {
		t.Fatalf("unexpected specs (-want +got):\n%s", diff)
	}
}

func TestUniqueSpecs_Empty(t *testing.T) {
	if got := UniqueSpecs(nil); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}
