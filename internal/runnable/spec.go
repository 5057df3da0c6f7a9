package runnable

// FieldSpec describes one configurable axis as surfaced to callers: the key
// to use in Config.Configurable, human-readable naming, an optional type
// annotation and the current default value.
type FieldSpec struct {
	// ID is the globally unique key for this axis in Config.Configurable.
	ID          string
	Name        string
	Description string
	// Annotation is a free-form type hint, e.g. "float64" or an
	// enumeration like `"fast" | "slow" | "default"`.
	Annotation string
	Default    any
}

// ConfigurableField is the author-side declaration of a configurable axis.
// Description and Annotation may be left empty to inherit the bound unit's
// own declaration of the field.
type ConfigurableField struct {
	ID          string
	Name        string
	Description string
	Annotation  string
}

// UniqueSpecs deduplicates specs by ID, keeping the first occurrence of
// each and preserving order.
func UniqueSpecs(specs []FieldSpec) []FieldSpec {
	seen := make(map[string]struct{}, len(specs))
	out := make([]FieldSpec, 0, len(specs))
	for _, s := range specs {
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out
}
