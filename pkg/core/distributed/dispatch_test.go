package distributed

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshgrad/meshgrad/backends"
)

func TestInterceptUnregistered(t *testing.T) {
	engine, comm := single(t)
	it := NewInterceptor(nil)
	w := wrap(t, engine, comm, []float32{1, -2, 3}, 3)

	out, err := it.Intercept("neg", []any{w}, nil)
	require.NoError(t, err)
	negated, ok := out.(*Tensor)
	require.True(t, ok)
	require.Equal(t, []float32{-1, 2, -3}, flatOf(t, negated))
	require.True(t, negated.IsActivation())
	require.True(t, negated.IsGathered())
}

func TestInterceptBinary(t *testing.T) {
	engine, comm := single(t)
	it := NewInterceptor(nil)
	a := wrap(t, engine, comm, []float32{1, 2}, 2)
	b := wrap(t, engine, comm, []float32{10, 20}, 2)

	out, err := it.Intercept("add", []any{a, b}, nil)
	require.NoError(t, err)
	require.Equal(t, []float32{11, 22}, flatOf(t, out.(*Tensor)))

	// Mixing wrapped and native arguments works: only wrapped ones are
	// unwrapped.
	out, err = it.Intercept("add", []any{a, mustFlat(t, engine, []float32{5, 5}, 2)}, nil)
	require.NoError(t, err)
	require.Equal(t, []float32{6, 7}, flatOf(t, out.(*Tensor)))
}

func TestInterceptMultiResult(t *testing.T) {
	engine, comm := single(t)
	it := NewInterceptor(nil)
	w := wrap(t, engine, comm, ramp(8), 2, 4)

	out, err := it.Intercept("chunk2", []any{w}, map[string]any{"axis": 1})
	require.NoError(t, err)
	parts, ok := out.([]any)
	require.True(t, ok)
	require.Len(t, parts, 2)
	require.Equal(t, []float32{0, 1, 4, 5}, flatOf(t, parts[0].(*Tensor)))
	require.Equal(t, []float32{2, 3, 6, 7}, flatOf(t, parts[1].(*Tensor)))
}

func TestInterceptRegistered(t *testing.T) {
	engine, comm := single(t)
	registry := NewRegistry()
	sentinel := "custom result"
	var gotTypes []reflect.Type
	var gotArgs []any
	var gotKwargs map[string]any
	registry.Register("fancy", func(argTypes []reflect.Type, args []any, kwargs map[string]any, rewrap RewrapFunc) (any, error) {
		require.Nil(t, rewrap)
		gotTypes = argTypes
		gotArgs = args
		gotKwargs = kwargs
		return sentinel, nil
	})
	it := NewInterceptor(registry)
	w := wrap(t, engine, comm, []float32{1}, 1)

	out, err := it.Intercept("fancy", []any{7, w}, map[string]any{"alpha": 0.5})
	require.NoError(t, err)
	require.Equal(t, sentinel, out)
	require.Equal(t, []reflect.Type{reflect.TypeOf(7), reflect.TypeOf(w)}, gotTypes)
	// The handler sees the original arguments, wrapped tensors included.
	require.Same(t, w, gotArgs[1].(*Tensor))
	require.Equal(t, 0.5, gotKwargs["alpha"])

	// A wrapped tensor only among the keyword arguments still dispatches.
	out, err = it.Intercept("fancy", []any{1, 2}, map[string]any{"weight": w})
	require.NoError(t, err)
	require.Equal(t, sentinel, out)
}

func TestInterceptRegisteredShadowsNative(t *testing.T) {
	engine, comm := single(t)
	registry := NewRegistry()
	registry.Register("neg", func(argTypes []reflect.Type, args []any, kwargs map[string]any, rewrap RewrapFunc) (any, error) {
		return "shadowed", nil
	})
	it := NewInterceptor(registry)
	w := wrap(t, engine, comm, []float32{1, 2}, 2)

	out, err := it.Intercept("neg", []any{w}, nil)
	require.NoError(t, err)
	require.Equal(t, "shadowed", out)
}

func TestInterceptNoWrappedArg(t *testing.T) {
	it := NewInterceptor(nil)
	require.Panics(t, func() { it.Intercept("neg", []any{1.0}, nil) })
	require.Panics(t, func() { it.Intercept("neg", nil, map[string]any{"alpha": 1}) })
}

func TestInterceptUnknownOp(t *testing.T) {
	engine, comm := single(t)
	it := NewInterceptor(nil)
	w := wrap(t, engine, comm, []float32{1}, 1)

	_, err := it.Intercept("matmul", []any{w}, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, backends.ErrNotImplemented)
}

func TestInterceptNativeError(t *testing.T) {
	engine, comm := single(t)
	it := NewInterceptor(nil)
	a := wrap(t, engine, comm, []float32{1, 2}, 2)
	b := wrap(t, engine, comm, []float32{1, 2, 3}, 3)

	_, err := it.Intercept("add", []any{a, b}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), `operation "add"`)
}

func TestRegistryLastWins(t *testing.T) {
	registry := NewRegistry()
	handler := func(result any) Handler {
		return func([]reflect.Type, []any, map[string]any, RewrapFunc) (any, error) {
			return result, nil
		}
	}
	registry.Register("op", handler("first"))
	registry.Register("op", handler("second"))

	h, ok := registry.Lookup("op")
	require.True(t, ok)
	out, err := h(nil, nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "second", out)

	_, ok = registry.Lookup("other")
	require.False(t, ok)
}

func TestRewrap(t *testing.T) {
	engine, comm := single(t)
	w := wrap(t, engine, comm, []float32{1}, 1)

	require.Nil(t, w.Rewrap(nil))
	require.Equal(t, 42, w.Rewrap(42))

	native := mustFlat(t, engine, []float32{5}, 1)
	out := w.Rewrap([]any{native, "tag"})
	list, ok := out.([]any)
	require.True(t, ok)
	rewrapped, ok := list[0].(*Tensor)
	require.True(t, ok)
	require.Equal(t, []float32{5}, flatOf(t, rewrapped))
	require.Equal(t, "tag", list[1])
}
