package runnable

import "fmt"

// Config is the per-call configuration object. It is supplied by the caller
// on each invocation and never persisted by any unit. A nil *Config is
// valid everywhere and means "no configuration".
type Config struct {
	// RunName labels this call in events and traces.
	RunName string

	// Tags and Metadata are attached to lifecycle events for this call.
	Tags     []string
	Metadata map[string]any

	// Configurable carries values for configurable axes, keyed by FieldSpec
	// ID. Keys not recognized by a given wrapper are ignored by it; they may
	// be addressed to another layer.
	Configurable map[string]any

	// MaxConcurrency bounds parallel work for batched execution. Zero or
	// negative means unbounded (or a scheduler-chosen default).
	MaxConcurrency int
}

// EnsureConfig returns cfg, or an empty Config when cfg is nil.
func EnsureConfig(cfg *Config) *Config {
	if cfg == nil {
		return &Config{}
	}
	return cfg
}

// Value looks up a configurable entry. Safe on a nil receiver.
func (c *Config) Value(id string) (any, bool) {
	if c == nil || c.Configurable == nil {
		return nil, false
	}
	v, ok := c.Configurable[id]
	return v, ok
}

// Copy returns a shallow copy with its own Configurable, Tags and Metadata
// containers, so the copy can be patched without aliasing the original.
func (c *Config) Copy() *Config {
	if c == nil {
		return &Config{}
	}
	out := &Config{
		RunName:        c.RunName,
		MaxConcurrency: c.MaxConcurrency,
	}
	if len(c.Tags) > 0 {
		out.Tags = append([]string(nil), c.Tags...)
	}
	if len(c.Metadata) > 0 {
		out.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	if len(c.Configurable) > 0 {
		out.Configurable = make(map[string]any, len(c.Configurable))
		for k, v := range c.Configurable {
			out.Configurable[k] = v
		}
	}
	return out
}

// PatchConfig overlays patch on base without mutating either. Scalar
// fields from patch win when set; Tags concatenate; Metadata and
// Configurable merge with patch entries winning.
func PatchConfig(base, patch *Config) *Config {
	out := base.Copy()
	if patch == nil {
		return out
	}
	if patch.RunName != "" {
		out.RunName = patch.RunName
	}
	if patch.MaxConcurrency != 0 {
		out.MaxConcurrency = patch.MaxConcurrency
	}
	out.Tags = append(out.Tags, patch.Tags...)
	if len(patch.Metadata) > 0 {
		if out.Metadata == nil {
			out.Metadata = make(map[string]any, len(patch.Metadata))
		}
		for k, v := range patch.Metadata {
			out.Metadata[k] = v
		}
	}
	if len(patch.Configurable) > 0 {
		if out.Configurable == nil {
			out.Configurable = make(map[string]any, len(patch.Configurable))
		}
		for k, v := range patch.Configurable {
			out.Configurable[k] = v
		}
	}
	return out
}

// ConfigList broadcasts configs to exactly n entries: nil or empty yields n
// nil configs, a single config is replicated, and a list must already have
// length n.
func ConfigList(configs []*Config, n int) ([]*Config, error) {
	switch len(configs) {
	case 0:
		return make([]*Config, n), nil
	case 1:
		out := make([]*Config, n)
		for i := range out {
			out[i] = configs[0]
		}
		return out, nil
	case n:
		return configs, nil
	default:
		return nil, fmt.Errorf("%w: got %d configs for %d inputs", ErrConfigLengthMismatch, len(configs), n)
	}
}
