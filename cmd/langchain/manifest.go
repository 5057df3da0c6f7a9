package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/billvsme/langchain/internal/configurable"
	"github.com/billvsme/langchain/internal/remote"
	"github.com/billvsme/langchain/internal/runnable"
	"google.golang.org/protobuf/types/known/structpb"
)

// Manifest declares a configurable chain of remote units. The "default"
// unit is the bound one; every other unit becomes a selectable
// alternative. Declared fields surface the units' rebuildable fields
// (endpoint, timeout) as configurable axes.
type Manifest struct {
	Selector *AxisSpec           `yaml:"selector"`
	Units    map[string]UnitSpec `yaml:"units"`
	Fields   map[string]AxisSpec `yaml:"fields"`
}

// AxisSpec names one configurable axis.
type AxisSpec struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Annotation  string `yaml:"annotation"`
}

// UnitSpec declares one remote unit.
type UnitSpec struct {
	Endpoint string `yaml:"endpoint"`
	Timeout  string `yaml:"timeout"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Units) == 0 {
		return nil, fmt.Errorf("manifest: no units declared")
	}
	if _, ok := m.Units[configurable.DefaultKey]; !ok {
		return nil, fmt.Errorf("manifest: a %q unit is required", configurable.DefaultKey)
	}
	if len(m.Units) > 1 && m.Selector == nil {
		return nil, fmt.Errorf("manifest: a selector is required when alternatives are declared")
	}
	if m.Selector != nil && m.Selector.ID == "" {
		return nil, fmt.Errorf("manifest: selector id is required")
	}
	for name, u := range m.Units {
		if u.Endpoint == "" {
			return nil, fmt.Errorf("manifest: unit %q has no endpoint", name)
		}
		if u.Timeout != "" {
			if _, err := time.ParseDuration(u.Timeout); err != nil {
				return nil, fmt.Errorf("manifest: unit %q: %w", name, err)
			}
		}
	}
	return &m, nil
}

// Chain is the built runnable with the transports behind it.
type Chain struct {
	runnable.Runnable[*structpb.Struct, *structpb.Struct]

	units []*remote.Unit
}

// Close releases the transports of every built unit.
func (c *Chain) Close() error {
	var first error
	for _, u := range c.units {
		if err := u.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// BuildChain materializes the manifest into remote units and wraps them
// with the declared configurable layers. On failure the units built so
// far are closed.
func BuildChain(m *Manifest, trOpts ...remote.Option) (retc *Chain, reterr error) {
	c := &Chain{}
	defer func() {
		if reterr != nil {
			c.Close()
		}
	}()
	buildUnit := func(name string) (*remote.Unit, error) {
		spec := m.Units[name]
		opts := []remote.UnitOption{remote.WithTransportOptions(trOpts...)}
		if spec.Timeout != "" {
			d, _ := time.ParseDuration(spec.Timeout)
			opts = append(opts, remote.WithTimeout(d))
		}
		u, err := remote.NewUnit(spec.Endpoint, opts...)
		if err != nil {
			return nil, fmt.Errorf("unit %q: %w", name, err)
		}
		c.units = append(c.units, u)
		return u, nil
	}

	def, err := buildUnit(configurable.DefaultKey)
	if err != nil {
		return nil, err
	}

	var chain runnable.Runnable[*structpb.Struct, *structpb.Struct] = def
	if len(m.Fields) > 0 {
		fields := make(map[string]runnable.ConfigurableField, len(m.Fields))
		for name, f := range m.Fields {
			fields[name] = runnable.ConfigurableField{
				ID:          f.ID,
				Name:        f.Name,
				Description: f.Description,
				Annotation:  f.Annotation,
			}
		}
		wrapped, err := configurable.WithConfigurableFields(chain, fields)
		if err != nil {
			return nil, err
		}
		chain = wrapped
	}

	if len(m.Units) > 1 {
		if m.Selector == nil {
			return nil, fmt.Errorf("manifest: a selector is required when alternatives are declared")
		}
		alts := make(map[string]runnable.Runnable[*structpb.Struct, *structpb.Struct], len(m.Units)-1)
		for name := range m.Units {
			if name == configurable.DefaultKey {
				continue
			}
			u, err := buildUnit(name)
			if err != nil {
				return nil, err
			}
			alts[name] = u
		}
		chain = configurable.WithConfigurableAlternatives(runnable.ConfigurableField{
			ID:          m.Selector.ID,
			Name:        m.Selector.Name,
			Description: m.Selector.Description,
			Annotation:  m.Selector.Annotation,
		}, chain, alts)
	}

	c.Runnable = chain
	return c, nil
}
