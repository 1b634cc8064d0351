// Copyright 2023-2026 The meshgrad Authors. SPDX-License-Identifier: Apache-2.0

package dense

import (
	"fmt"
	"reflect"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/meshgrad/meshgrad/backends"
	"github.com/meshgrad/meshgrad/pkg/core/shapes"
)

// Tensor implements backends.Tensor with contiguous flat storage.
//
// Tensors are not safe for concurrent mutation. The autograd fields (grad and
// the recorded backward node) belong to the goroutine that builds and walks
// the graph.
type Tensor struct {
	engine *Engine
	shape  shapes.Shape

	// flat is always a slice of the dtype's Go type, len == shape.Size().
	flat any

	device backends.DeviceNum
	pinned bool

	requiresGrad bool
	grad         *Tensor
	node         *node
}

// Compile-time check that dense.Tensor implements backends.Tensor.
var _ backends.Tensor = &Tensor{}

// newResult builds a gradient-free tensor holding an op result.
func newResult(engine *Engine, shape shapes.Shape, flat any, device backends.DeviceNum) *Tensor {
	return &Tensor{engine: engine, shape: shape, flat: flat, device: device}
}

// asDense converts an interface tensor to the concrete type.
func asDense(x backends.Tensor) (*Tensor, error) {
	t, ok := x.(*Tensor)
	if !ok {
		return nil, errors.Errorf("dense engine can only operate on its own tensors, got %T", x)
	}
	return t, nil
}

// sameEngine verifies both operands belong to the same engine instance.
func (t *Tensor) sameEngine(o *Tensor) error {
	if t.engine != o.engine {
		return errors.Errorf("tensors belong to different dense engines")
	}
	return nil
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the elements.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Device holding the storage. Always 0 for the dense engine.
func (t *Tensor) Device() backends.DeviceNum { return t.device }

// Size is the number of elements.
func (t *Tensor) Size() int { return t.shape.Size() }

// Pinned reports the page-locked flag. The dense engine carries it as
// metadata only.
func (t *Tensor) Pinned() bool { return t.pinned }

// RequiresGrad reports whether gradients are accumulated for this tensor.
func (t *Tensor) RequiresGrad() bool { return t.requiresGrad }

// SetRequiresGrad changes gradient tracking. It panics on autograd-interior
// nodes: only leaf flags can be changed.
func (t *Tensor) SetRequiresGrad(value bool) {
	if t.node != nil {
		exceptions.Panicf("dense: requires_grad can only be changed on leaf tensors, this one records %q", t.node.name)
	}
	t.requiresGrad = value
}

// Grad returns the accumulated gradient, or nil when there is none.
func (t *Tensor) Grad() backends.Tensor {
	if t.grad == nil {
		return nil
	}
	return t.grad
}

// GradDense returns the accumulated gradient as a concrete tensor, or nil.
func (t *Tensor) GradDense() *Tensor { return t.grad }

// detach returns a leaf tensor sharing t's storage, with no grad tracking.
func (t *Tensor) detach() *Tensor {
	return &Tensor{
		engine: t.engine,
		shape:  t.shape.Clone(),
		flat:   t.flat,
		device: t.device,
		pinned: t.pinned,
	}
}

// Detach returns a leaf tensor sharing this tensor's storage, with no
// gradient tracking. In-place changes to either tensor are visible in both.
func (t *Tensor) Detach() backends.Tensor { return t.detach() }

// IsContiguous always reports true: dense storage is always a row-major block.
func (t *Tensor) IsContiguous() bool { return true }

// Contiguous returns the tensor itself.
func (t *Tensor) Contiguous() backends.Tensor { return t }

// clone returns a copy of the tensor's data. Gradients flow through
// unchanged.
func (t *Tensor) clone() *Tensor {
	out := newResult(t.engine, t.shape.Clone(), cloneFlat(t.flat), t.device)
	return attach(out, []*Tensor{t}, "clone", func(g *Tensor) ([]*Tensor, error) {
		return []*Tensor{g}, nil
	})
}

// Equal reports whether the other tensor has the same dtype, dimensions and
// contents. Tensors from other engines are never equal.
func (t *Tensor) Equal(other backends.Tensor) bool {
	o, ok := other.(*Tensor)
	if !ok {
		return false
	}
	return t.shape.Equal(o.shape) && reflect.DeepEqual(t.flat, o.flat)
}

// String implements fmt.Stringer with a short description, not the data.
func (t *Tensor) String() string {
	return fmt.Sprintf("dense.Tensor%s", t.shape)
}

// Flat returns the underlying storage slice. Mutating it bypasses autograd;
// callers should only do so on leaf tensors.
func (t *Tensor) Flat() any { return t.flat }

// FromFlat builds a tensor on device 0 from a flat slice and dimensions,
// copying the data.
func (e *Engine) FromFlat(flat any, dimensions ...int) (backends.Tensor, error) {
	v := reflect.ValueOf(flat)
	if v.Kind() != reflect.Slice {
		return nil, errors.Errorf("dense: FromFlat requires a flat slice, got %T", flat)
	}
	dtype := dtypes.FromGoType(v.Type().Elem())
	if dtype == dtypes.InvalidDType || !supportedDType(dtype) {
		return nil, errors.Errorf("dense: FromFlat got a slice of unsupported element type %s", v.Type().Elem())
	}
	shape := shapes.Make(dtype, dimensions...)
	if shape.Size() != v.Len() {
		return nil, errors.Errorf("dense: FromFlat got %d elements for shape %s, which needs %d", v.Len(), shape, shape.Size())
	}
	return newResult(e, shape, cloneFlat(flat), 0), nil
}
