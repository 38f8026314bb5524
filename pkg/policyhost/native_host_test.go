package policyhost

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativeHost_AllowsWhenExpressionTrue(t *testing.T) {
	h, err := NewNativeHost()
	require.NoError(t, err)
	require.NoError(t, h.LoadPolicy("max-cost", `double(order["cost"]) <= double(treaty["budget"])`))

	out, err := h.Evaluate(context.Background(), "max-cost", PolicyInput{
		Treaty: map[string]any{"budget": 10.0},
		Order:  map[string]any{"cost": 5.0},
	})
	require.NoError(t, err)
	assert.True(t, out.Allow)
}

func TestNativeHost_RejectsWhenExpressionFalse(t *testing.T) {
	h, err := NewNativeHost()
	require.NoError(t, err)
	require.NoError(t, h.LoadPolicy("max-cost", `double(order["cost"]) <= double(treaty["budget"])`))

	out, err := h.Evaluate(context.Background(), "max-cost", PolicyInput{
		Treaty: map[string]any{"budget": 1.0},
		Order:  map[string]any{"cost": 5.0},
	})
	require.NoError(t, err)
	assert.False(t, out.Allow)
	assert.NotEmpty(t, out.Reason)
}

func TestNativeHost_UnknownPolicyIsHardReject(t *testing.T) {
	h, err := NewNativeHost()
	require.NoError(t, err)

	_, err = h.Evaluate(context.Background(), "does-not-exist", PolicyInput{})
	assert.ErrorIs(t, err, ErrPolicyNotFound)
}

func TestNativeHost_NonBoolResultIsHardReject(t *testing.T) {
	h, err := NewNativeHost()
	require.NoError(t, err)
	require.NoError(t, h.LoadPolicy("bad", `order["cost"]`))

	out, err := h.Evaluate(context.Background(), "bad", PolicyInput{Order: map[string]any{"cost": 5.0}})
	require.NoError(t, err)
	assert.False(t, out.Allow)
}

func TestNativeHost_CompileErrorRejectsLoad(t *testing.T) {
	h, err := NewNativeHost()
	require.NoError(t, err)

	err = h.LoadPolicy("broken", `this is not valid cel (((`)
	assert.Error(t, err)
}

func TestNativeHost_DefinitionsReturnsLoadedSources(t *testing.T) {
	h, err := NewNativeHost()
	require.NoError(t, err)
	require.NoError(t, h.LoadPolicy("p1", `true`))

	defs := h.Definitions()
	assert.Equal(t, "true", defs["p1"])
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, BackendNative, b)

	b, err = ParseBackend("wasm")
	require.NoError(t, err)
	assert.Equal(t, BackendWASM, b)

	_, err = ParseBackend("garbage")
	assert.Error(t, err)
}
