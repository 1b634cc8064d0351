package backends

import (
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/meshgrad/meshgrad/pkg/core/shapes"
)

// Tensor is a native tensor handle owned by an Engine.
//
// Tensors carry their own autograd state: operations on tensors that require
// gradients record backward functions, and Backward propagates a seed
// gradient back to the leaves. Methods that can fail on data (shape
// mismatches, bad operands) return errors; methods whose misuse is an API
// contract violation (SetRequiresGrad on an interior node) panic.
type Tensor interface {
	// Shape of the tensor. Modifying the returned Dimensions is undefined.
	Shape() shapes.Shape

	// DType of the elements, same as Shape().DType.
	DType() dtypes.DType

	// Device holding the storage.
	Device() DeviceNum

	// Size is the number of elements, same as Shape().Size().
	Size() int

	// Pinned reports whether the storage is page-locked host memory.
	Pinned() bool

	// RequiresGrad reports whether gradients are accumulated for this tensor.
	RequiresGrad() bool

	// SetRequiresGrad changes gradient tracking. Only valid on leaf tensors
	// (no recorded backward function); it panics on autograd-interior nodes.
	SetRequiresGrad(bool)

	// Grad returns the accumulated gradient, or nil when there is none.
	Grad() Tensor

	// Detach returns a leaf tensor sharing this tensor's storage, with no
	// gradient tracking.
	Detach() Tensor

	// IsContiguous reports whether the storage is a dense row-major block.
	IsContiguous() bool

	// Contiguous returns a contiguous tensor with the same contents; itself
	// when already contiguous.
	Contiguous() Tensor

	// Narrow returns the [start, start+length) slice of the tensor along the
	// given axis (negative axes count from the end).
	Narrow(axis, start, length int) (Tensor, error)

	// Select returns the sub-tensor at the given index along the axis,
	// removing that axis from the result's shape.
	Select(axis, index int) (Tensor, error)

	// Add returns the elementwise sum with another tensor of the same shape.
	Add(other Tensor) (Tensor, error)

	// Mul returns the elementwise product with another tensor of the same shape.
	Mul(other Tensor) (Tensor, error)

	// Div returns the elementwise quotient. The operand may be a Tensor of
	// the same shape or a Go number (float64, float32, int, int32, int64);
	// other operand types return an error.
	Div(other any) (Tensor, error)

	// Equal reports whether the other tensor has the same dtype, dimensions
	// and bit-identical contents.
	Equal(other Tensor) bool

	// Backward runs reverse-mode accumulation from this tensor, adding
	// gradients into the leaves that require them. A nil seed gradient is
	// allowed only for single-element tensors (implicit ones).
	Backward(grad Tensor) error

	// NormalInit fills the tensor in place with samples from
	// Normal(mean, stddev). Only float dtypes; others return an error.
	NormalInit(mean, stddev float64) error

	// Attr resolves a name on the tensor's dynamic attribute surface: the
	// second result is false when the attribute doesn't exist. Callable
	// attributes are returned as a Func.
	Attr(name string) (any, bool)
}
