package runnable

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigList(t *testing.T) {
	a := &Config{RunName: "a"}
	b := &Config{RunName: "b"}

	t.Run("nil broadcasts to nils", func(t *testing.T) {
		out, err := ConfigList(nil, 3)
		require.NoError(t, err)
		require.Len(t, out, 3)
		for _, c := range out {
			assert.Nil(t, c)
		}
	})

	t.Run("single replicates", func(t *testing.T) {
		out, err := ConfigList([]*Config{a}, 3)
		require.NoError(t, err)
		require.Len(t, out, 3)
		for _, c := range out {
			assert.Same(t, a, c)
		}
	})

	t.Run("matching length passes through", func(t *testing.T) {
		in := []*Config{a, b}
		out, err := ConfigList(in, 2)
		require.NoError(t, err)
		assert.Same(t, a, out[0])
		assert.Same(t, b, out[1])
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := ConfigList([]*Config{a, b}, 3)
		require.ErrorIs(t, err, ErrConfigLengthMismatch)
	})
}

func TestConfigValue_NilSafe(t *testing.T) {
	var c *Config
	_, ok := c.Value("x")
	assert.False(t, ok)

	c = &Config{}
	_, ok = c.Value("x")
	assert.False(t, ok)

	c = &Config{Configurable: map[string]any{"x": 1}}
	v, ok := c.Value("x")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestConfigCopy_DoesNotAlias(t *testing.T) {
	orig := &Config{
		RunName:        "run",
		Tags:           []string{"t1"},
		Metadata:       map[string]any{"k": "v"},
		Configurable:   map[string]any{"temp": 0.5},
		MaxConcurrency: 4,
	}
	cp := orig.Copy()
	cp.Tags[0] = "changed"
	cp.Metadata["k"] = "changed"
	cp.Configurable["temp"] = 0.9

	want := &Config{
		RunName:        "run",
		Tags:           []string{"t1"},
		Metadata:       map[string]any{"k": "v"},
		Configurable:   map[string]any{"temp": 0.5},
		MaxConcurrency: 4,
	}
	if diff := cmp.Diff(want, orig); diff != "" {
		t.Fatalf("original mutated through copy (-want +got):\n%s", diff)
	}
}

func TestPatchConfig(t *testing.T) {
	base := &Config{
		RunName:      "base",
		Tags:         []string{"a"},
		Configurable: map[string]any{"temp": 0.5, "model": "x"},
	}
	patch := &Config{
		Tags:           []string{"b"},
		Configurable:   map[string]any{"temp": 0.9},
		MaxConcurrency: 4,
	}
	out := PatchConfig(base, patch)
	assert.Equal(t, "base", out.RunName, "unset patch fields keep base values")
	assert.Equal(t, []string{"a", "b"}, out.Tags)
	assert.Equal(t, 0.9, out.Configurable["temp"])
	assert.Equal(t, "x", out.Configurable["model"])
	assert.Equal(t, 4, out.MaxConcurrency)

	// Neither input is mutated.
	assert.Equal(t, 0.5, base.Configurable["temp"])
	assert.Equal(t, []string{"a"}, base.Tags)

	out = PatchConfig(nil, patch)
	assert.Equal(t, []string{"b"}, out.Tags)

	out = PatchConfig(base, nil)
	assert.Equal(t, "base", out.RunName)
}

func TestConfigCopy_Nil(t *testing.T) {
	var c *Config
	cp := c.Copy()
	require.NotNil(t, cp)
	assert.Empty(t, cp.RunName)
}
