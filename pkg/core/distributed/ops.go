package distributed

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/meshgrad/meshgrad/backends"
)

// wrapResult wraps a native operation result, inheriting this tensor's
// engine and communicator. Results start over as unsharded activations with
// no layout spec.
func (t *Tensor) wrapResult(native backends.Tensor) *Tensor {
	return &Tensor{
		dims:         append([]int{}, native.Shape().Dimensions...),
		dtype:        native.DType(),
		device:       native.Device(),
		pinned:       native.Pinned(),
		requiresGrad: native.RequiresGrad(),
		category:     NonModelData,
		engine:       t.engine,
		comm:         t.comm,
		payload:      native,
	}
}

// Add returns the elementwise sum as a new wrapped tensor. The operand may
// be another wrapped tensor or a native tensor.
func (t *Tensor) Add(other any) (*Tensor, error) {
	var o backends.Tensor
	switch v := other.(type) {
	case *Tensor:
		o = v.Native()
	case backends.Tensor:
		o = v
	default:
		return nil, errors.Errorf("unsupported operand type for +: %T", other)
	}
	out, err := t.Native().Add(o)
	if err != nil {
		return nil, err
	}
	return t.wrapResult(out), nil
}

// Div returns the elementwise quotient as a new wrapped tensor. The
// divisor may be a wrapped tensor, a native tensor or a Go number.
func (t *Tensor) Div(other any) (*Tensor, error) {
	operand := other
	if w, ok := other.(*Tensor); ok {
		operand = w.Native()
	}
	out, err := t.Native().Div(operand)
	if err != nil {
		return nil, err
	}
	return t.wrapResult(out), nil
}

// Index returns the sub-tensor at index i of the first dimension, with that
// dimension dropped.
func (t *Tensor) Index(i int) (*Tensor, error) {
	out, err := t.Native().Select(0, i)
	if err != nil {
		return nil, err
	}
	return t.wrapResult(out), nil
}

// NormalInit fills the storage in place with draws from Normal(mean,
// stddev), materializing it first if needed.
func (t *Tensor) NormalInit(mean, stddev float64) error {
	return t.Native().NormalInit(mean, stddev)
}

// Backward runs reverse-mode gradient accumulation from this tensor. The
// seed gradient may be a wrapped tensor, a native tensor, or nil for
// single-element tensors.
func (t *Tensor) Backward(grad any) error {
	var g backends.Tensor
	switch v := grad.(type) {
	case nil:
	case *Tensor:
		g = v.Native()
	case backends.Tensor:
		g = v
	default:
		return errors.Errorf("unsupported gradient type %T", grad)
	}
	return t.Native().Backward(g)
}

// Grad returns the gradient accumulated on the storage, rewrapped, or nil
// when there is none.
func (t *Tensor) Grad() *Tensor {
	if t.payload == nil {
		return nil
	}
	g := t.payload.Grad()
	if g == nil {
		return nil
	}
	return t.wrapResult(g)
}

// Attr resolves name on the native tensor's attribute surface,
// materializing the storage first. Unknown names are fatal. A callable
// attribute comes back wrapped: its tensor arguments are unwrapped before
// the native call and tensor results rewrapped after; plain values are
// returned as is.
func (t *Tensor) Attr(name string) any {
	attr, ok := t.Native().Attr(name)
	if !ok {
		exceptions.Panicf("distributed: tensors of engine %q have no attribute %q", t.engine.Name(), name)
	}
	fn, ok := attr.(backends.Func)
	if !ok {
		return attr
	}
	return backends.Func(func(args []any, kwargs map[string]any) (any, error) {
		out, err := fn(unwrapArgs(args), unwrapKwargs(kwargs))
		if err != nil {
			return nil, err
		}
		return t.Rewrap(out), nil
	})
}
