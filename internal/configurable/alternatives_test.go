package configurable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billvsme/langchain/internal/runnable"
)

func selector() runnable.ConfigurableField {
	return runnable.ConfigurableField{ID: "model", Name: "Model"}
}

func cfgWith(key, value string) *runnable.Config {
	return &runnable.Config{Configurable: map[string]any{key: value}}
}

func TestAlternatives_Prepare(t *testing.T) {
	a := newMockUnit("fast", 0.1, "a")
	b := newMockUnit("slow", 0.9, "b")
	c := newMockUnit("default", 0.5, "c")
	alt := WithConfigurableAlternatives[string, string](selector(), c,
		map[string]runnable.Runnable[string, string]{"fast": a, "slow": b})

	got, err := alt.Prepare(cfgWith("model", "fast"))
	require.NoError(t, err)
	require.Same(t, a, got)

	got, err = alt.Prepare(nil)
	require.NoError(t, err)
	require.Same(t, c, got)

	got, err = alt.Prepare(cfgWith("model", ""))
	require.NoError(t, err)
	require.Same(t, c, got)

	got, err = alt.Prepare(cfgWith("model", DefaultKey))
	require.NoError(t, err)
	require.Same(t, c, got)

	// Keys addressed to other layers are not this resolver's business.
	got, err = alt.Prepare(cfgWith("someone_elses_key", "fast"))
	require.NoError(t, err)
	require.Same(t, c, got)

	_, err = alt.Prepare(cfgWith("model", "bogus"))
	require.ErrorIs(t, err, ErrUnknownAlternative)
	assert.ErrorContains(t, err, "bogus")
}

func TestAlternatives_SelectedAlternativeIsUsedAsRegistered(t *testing.T) {
	a := newMockUnit("fast", 0.1, "a")
	c := newMockUnit("default", 0.5, "c")
	alt := WithConfigurableAlternatives[string, string](selector(), c,
		map[string]runnable.Runnable[string, string]{"fast": a})

	// The override key targets the default branch's wrapper; selecting an
	// alternative must not apply it on top.
	fielded, err := alt.WithFields(tempField())
	require.NoError(t, err)

	cfg := &runnable.Config{Configurable: map[string]any{
		"model":             "fast",
		"model_temperature": 0.99,
	}}
	out, err := fielded.Invoke(context.Background(), "x", cfg)
	require.NoError(t, err)
	assert.Equal(t, "fast(temp=0.1,model=a) x", out)
}

func TestAlternatives_ConfigSpecs(t *testing.T) {
	a := newMockUnit("fast", 0.1, "a")
	b := newMockUnit("slow", 0.9, "b")
	bound, err := WithConfigurableFields[string, string](newMockUnit("default", 0.5, "c"), tempField())
	require.NoError(t, err)

	fieldedSlow, err := WithConfigurableFields[string, string](b, map[string]runnable.ConfigurableField{
		"model": {ID: "slow_model", Name: "Slow model"},
	})
	require.NoError(t, err)

	alt := WithConfigurableAlternatives[string, string](selector(), bound,
		map[string]runnable.Runnable[string, string]{"fast": a, "slow": fieldedSlow})

	specs := alt.ConfigSpecs()
	// 1 selector + 1 from the bound wrapper + 0 from "fast" + 1 from "slow".
	require.Len(t, specs, 3)

	assert.Equal(t, "model", specs[0].ID)
	assert.Equal(t, DefaultKey, specs[0].Default)
	assert.Equal(t, `"fast" | "slow" | "default"`, specs[0].Annotation)
	assert.Equal(t, "model_temperature", specs[1].ID)
	assert.Equal(t, "slow_model", specs[2].ID)
}

func TestAlternatives_ConfigSpecs_SkipsDirectSelfReference(t *testing.T) {
	c := newMockUnit("default", 0.5, "c")
	alt := WithConfigurableAlternatives[string, string](selector(), c, nil)
	alt.alternatives["self"] = alt

	specs := alt.ConfigSpecs()
	require.Len(t, specs, 1)
	assert.Equal(t, `"self" | "default"`, specs[0].Annotation)
}

func TestAlternatives_ConfigSpecs_TerminatesOnMutualReference(t *testing.T) {
	a := WithConfigurableAlternatives[string, string](selector(), newMockUnit("default", 0.5, "c"), nil)
	b := WithConfigurableAlternatives[string, string](
		runnable.ConfigurableField{ID: "host"}, newMockUnit("default", 0.5, "d"), nil)
	a.alternatives["other"] = b
	b.alternatives["other"] = a

	specs := a.ConfigSpecs()
	// One selector spec per wrapper; the cycle is walked once.
	require.Len(t, specs, 2)
	assert.Equal(t, "model", specs[0].ID)
	assert.Equal(t, "host", specs[1].ID)
}

func TestAlternatives_WithFields_LeavesAlternativesUntouched(t *testing.T) {
	a := newMockUnit("fast", 0.1, "a")
	c := newMockUnit("default", 0.5, "c")
	alt := WithConfigurableAlternatives[string, string](selector(), c,
		map[string]runnable.Runnable[string, string]{"fast": a})

	fielded, err := alt.WithFields(tempField())
	require.NoError(t, err)

	got, err := fielded.Prepare(cfgWith("model", "fast"))
	require.NoError(t, err)
	require.Same(t, a, got, "alternatives keep their registered configuration")

	got, err = fielded.Prepare(nil)
	require.NoError(t, err)
	_, ok := got.(*Fields[string, string])
	require.True(t, ok, "default branch gained the field wrapper")

	// The original selector value is unchanged.
	got, err = alt.Prepare(nil)
	require.NoError(t, err)
	require.Same(t, c, got)
}
