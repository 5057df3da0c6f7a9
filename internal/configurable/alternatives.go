package configurable

import (
	"fmt"
	"sort"
	"strings"

	"github.com/billvsme/langchain/internal/runnable"
)

// DefaultKey is the selector value that resolves to the bound unit.
const DefaultKey = "default"

// Alternatives swaps the bound unit wholesale for one of several
// pre-registered units, selected by the value of a single discriminator
// field in Config.Configurable.
type Alternatives[I, O any] struct {
	dynamic[I, O]
	which        runnable.ConfigurableField
	alternatives map[string]runnable.Runnable[I, O]
}

var _ runnable.Runnable[string, string] = (*Alternatives[string, string])(nil)
var _ Resolver[string, string] = (*Alternatives[string, string])(nil)

// WithConfigurableAlternatives wraps bound as the "default" choice among
// the given alternatives, selectable per call through the which field.
func WithConfigurableAlternatives[I, O any](which runnable.ConfigurableField, bound runnable.Runnable[I, O], alternatives map[string]runnable.Runnable[I, O]) *Alternatives[I, O] {
	alts := make(map[string]runnable.Runnable[I, O], len(alternatives))
	for k, v := range alternatives {
		alts[k] = v
	}
	a := &Alternatives[I, O]{which: which, alternatives: alts}
	a.dynamic = dynamic[I, O]{kind: "configurable_alternatives", bound: bound, prepare: a.Prepare}
	return a
}

// Keys returns the registered alternative keys in sorted order.
func (a *Alternatives[I, O]) Keys() []string {
	keys := make([]string, 0, len(a.alternatives))
	for k := range a.alternatives {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ConfigSpecs lists, in order: the selector itself (annotated with its
// full value space, defaulting to DefaultKey), the bound unit's own specs,
// then every alternative's specs. The recursion makes every reachable
// configuration axis discoverable up front even though only one branch
// executes per call. A visited set keeps the walk finite when selectors
// reference each other.
func (a *Alternatives[I, O]) ConfigSpecs() []runnable.FieldSpec {
	return a.configSpecs(map[specSource]bool{})
}

// specSource is the internal recursion hook: selectors pass the visited
// set along so a cycle among them terminates.
type specSource interface {
	configSpecs(visited map[specSource]bool) []runnable.FieldSpec
}

func branchSpecs[I, O any](u runnable.Runnable[I, O], visited map[specSource]bool) []runnable.FieldSpec {
	if s, ok := u.(specSource); ok {
		if visited[s] {
			return nil
		}
		return s.configSpecs(visited)
	}
	return u.ConfigSpecs()
}

func (a *Alternatives[I, O]) configSpecs(visited map[specSource]bool) []runnable.FieldSpec {
	visited[a] = true
	keys := a.Keys()

	annotation := a.which.Annotation
	if annotation == "" {
		quoted := make([]string, 0, len(keys)+1)
		for _, k := range keys {
			quoted = append(quoted, fmt.Sprintf("%q", k))
		}
		quoted = append(quoted, fmt.Sprintf("%q", DefaultKey))
		annotation = strings.Join(quoted, " | ")
	}

	specs := []runnable.FieldSpec{{
		ID:          a.which.ID,
		Name:        a.which.Name,
		Description: a.which.Description,
		Annotation:  annotation,
		Default:     DefaultKey,
	}}
	specs = append(specs, branchSpecs(a.bound, visited)...)
	for _, k := range keys {
		specs = append(specs, branchSpecs(a.alternatives[k], visited)...)
	}
	return specs
}

// WithFields applies the field declarations to the default branch only,
// leaving every alternative's pre-set configuration untouched.
func (a *Alternatives[I, O]) WithFields(fields map[string]runnable.ConfigurableField) (*Alternatives[I, O], error) {
	var (
		bound runnable.Runnable[I, O]
		err   error
	)
	if hcf, ok := a.bound.(runnable.HasConfigurableFields[I, O]); ok {
		bound, err = hcf.ConfigurableFields(fields)
	} else {
		bound, err = WithConfigurableFields(a.bound, fields)
	}
	if err != nil {
		return nil, err
	}
	return WithConfigurableAlternatives(a.which, bound, a.alternatives), nil
}

// ConfigurableFields implements the flattening capability for nesting
// under another selector.
func (a *Alternatives[I, O]) ConfigurableFields(fields map[string]runnable.ConfigurableField) (runnable.Runnable[I, O], error) {
	return a.WithFields(fields)
}

// Prepare reads the selector value. Absent, empty or DefaultKey resolves
// to the bound unit; a registered key resolves to that exact alternative,
// used as registered with no overrides applied on top; anything else fails
// with ErrUnknownAlternative.
func (a *Alternatives[I, O]) Prepare(config *runnable.Config) (runnable.Runnable[I, O], error) {
	v, ok := runnable.EnsureConfig(config).Value(a.which.ID)
	if !ok || v == nil {
		return a.bound, nil
	}
	which, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownAlternative, v)
	}
	if which == "" || which == DefaultKey {
		return a.bound, nil
	}
	if alt, ok := a.alternatives[which]; ok {
		return alt, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAlternative, which)
}
