package configurable

import (
	"fmt"
	"sort"

	"github.com/billvsme/langchain/internal/runnable"
)

// Fields reparameterizes the bound unit by rebuilding it with some of its
// constructor-level fields replaced at call time. The field map is keyed by
// the unit's internal field name; the ConfigurableField carries the public
// spec ID callers use in Config.Configurable.
type Fields[I, O any] struct {
	dynamic[I, O]
	fields map[string]runnable.ConfigurableField
}

var _ runnable.Runnable[string, string] = (*Fields[string, string])(nil)
var _ Resolver[string, string] = (*Fields[string, string])(nil)

// WithConfigurableFields wraps bound so the declared fields can be
// overridden per call. bound must implement Rebuildable.
func WithConfigurableFields[I, O any](bound runnable.Runnable[I, O], fields map[string]runnable.ConfigurableField) (*Fields[I, O], error) {
	if _, ok := bound.(runnable.Rebuildable[I, O]); !ok {
		return nil, fmt.Errorf("%w: %T", runnable.ErrNotRebuildable, bound)
	}
	f := &Fields[I, O]{fields: cloneFieldMap(fields)}
	f.dynamic = dynamic[I, O]{kind: "configurable_fields", bound: bound, prepare: f.Prepare}
	return f, nil
}

// ConfigSpecs lists the declared fields. Description and annotation fall
// back to the bound unit's own declaration of the field, and the default is
// the bound unit's current value for it. Output is ordered by internal
// field name.
func (f *Fields[I, O]) ConfigSpecs() []runnable.FieldSpec {
	values := f.bound.(runnable.Rebuildable[I, O]).Fields()
	declarer, _ := f.bound.(runnable.FieldDeclarer)

	names := make([]string, 0, len(f.fields))
	for name := range f.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]runnable.FieldSpec, 0, len(names))
	for _, name := range names {
		cf := f.fields[name]
		spec := runnable.FieldSpec{
			ID:          cf.ID,
			Name:        cf.Name,
			Description: cf.Description,
			Annotation:  cf.Annotation,
			Default:     values[name],
		}
		if declarer != nil {
			if decl, ok := declarer.FieldDecl(name); ok {
				if spec.Description == "" {
					spec.Description = decl.Description
				}
				if spec.Annotation == "" {
					spec.Annotation = decl.Annotation
				}
			}
		}
		specs = append(specs, spec)
	}
	return specs
}

// WithFields merges additional field declarations into this wrapper,
// returning a new one over the same bound unit. New declarations win on
// key collision. Composition is flattened: the result is a single wrapper
// layer, never a stack.
func (f *Fields[I, O]) WithFields(overrides map[string]runnable.ConfigurableField) (*Fields[I, O], error) {
	merged := cloneFieldMap(f.fields)
	for name, cf := range overrides {
		merged[name] = cf
	}
	return WithConfigurableFields(f.bound, merged)
}

// ConfigurableFields implements the flattening capability.
func (f *Fields[I, O]) ConfigurableFields(fields map[string]runnable.ConfigurableField) (runnable.Runnable[I, O], error) {
	return f.WithFields(fields)
}

// Prepare collects the configurable entries whose key matches a declared
// spec ID, translates them to internal field names and rebuilds the bound
// unit with them. With no matching entries the bound unit is returned by
// identity. Unrecognized keys are ignored; they may belong to another
// layer.
func (f *Fields[I, O]) Prepare(config *runnable.Config) (runnable.Runnable[I, O], error) {
	cfg := runnable.EnsureConfig(config)
	if len(cfg.Configurable) == 0 {
		return f.bound, nil
	}
	nameByID := make(map[string]string, len(f.fields))
	for name, cf := range f.fields {
		nameByID[cf.ID] = name
	}
	overrides := make(map[string]any)
	for k, v := range cfg.Configurable {
		if name, ok := nameByID[k]; ok {
			overrides[name] = v
		}
	}
	if len(overrides) == 0 {
		return f.bound, nil
	}
	return f.bound.(runnable.Rebuildable[I, O]).Rebuild(overrides)
}

func cloneFieldMap(m map[string]runnable.ConfigurableField) map[string]runnable.ConfigurableField {
	out := make(map[string]runnable.ConfigurableField, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
