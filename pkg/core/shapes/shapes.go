// Package shapes defines Shape, the description of a tensor's dimensions and
// data type, along with the axis arithmetic shared by everything in meshgrad
// that slices, concatenates or partitions tensors along axes.
//
// A Shape does not hold data: it describes the layout of data. The element
// type enumeration (DType) comes from github.com/gomlx/gopjrt/dtypes and is
// dot-imported here, so shapes.Make(dtypes.Float32, 2, 3) describes a 2x3
// tensor of float32, printed as "(Float32)[2 3]".
//
// Zero-sized shapes (some axis with dimension 0) are valid: they describe
// tensors with no elements, used as storage placeholders.
package shapes

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gopjrt/dtypes"
)

// Shape represents the shape of a tensor: its element type and the dimension
// of each axis.
//
// Use Make to create one. The zero value is invalid (Ok() == false).
type Shape struct {
	DType      DType
	Dimensions []int
}

// Make returns a Shape with the given element type and dimensions.
// Dimensions must be non-negative; a 0 dimension makes a valid zero-sized
// shape. It panics on negative dimensions.
func Make(dtype DType, dimensions ...int) Shape {
	s := Shape{DType: dtype, Dimensions: slices.Clone(dimensions)}
	for _, dim := range dimensions {
		if dim < 0 {
			exceptions.Panicf("shapes.Make(%s): cannot create a shape with a negative dimension", s)
		}
	}
	return s
}

// Scalar returns a rank-0 shape for the given Go type.
func Scalar[T Number]() Shape {
	return Shape{DType: FromGenericsType[T]()}
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: InvalidDType}
}

// Ok returns whether this is a valid shape.
func (s Shape) Ok() bool { return s.DType != InvalidDType }

// Rank of the shape, that is, the number of axes.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape has rank 0.
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// IsZeroSize returns whether any axis has dimension 0, meaning the shape
// holds no elements.
func (s Shape) IsZeroSize() bool {
	for _, dim := range s.Dimensions {
		if dim == 0 {
			return true
		}
	}
	return false
}

// Dim returns the dimension of the given axis. The axis can be negative, in
// which case it counts from the end, so Dim(-1) is the last axis. It panics
// for an out-of-bounds axis.
func (s Shape) Dim(axis int) int {
	return s.Dimensions[AdjustAxis(axis, s.Rank())]
}

// Size returns the number of elements described by the shape, the product of
// all dimensions. A scalar has size 1.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Memory returns the bytes needed to store an array of this shape.
func (s Shape) Memory() uintptr {
	return s.DType.Memory() * uintptr(s.Size())
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() Shape {
	return Shape{DType: s.DType, Dimensions: slices.Clone(s.Dimensions)}
}

// Shape returns a shallow copy of itself. It implements the HasShape interface.
func (s Shape) Shape() Shape { return s }

// Equal compares dtype and dimensions.
func (s Shape) Equal(s2 Shape) bool {
	return s.DType == s2.DType && slices.Equal(s.Dimensions, s2.Dimensions)
}

// EqualDimensions compares dimensions only; dtypes may differ.
func (s Shape) EqualDimensions(s2 Shape) bool {
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// String implements fmt.Stringer, pretty-printing the shape as
// "(DType)[dim0 dim1 ...]", or "(DType)" for scalars.
func (s Shape) String() string {
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	return fmt.Sprintf("(%s)%v", s.DType, s.Dimensions)
}

// AdjustAxis normalizes an axis that may be negative (counting from the end)
// to the range [0, rank). It panics when the axis is out-of-bounds for the
// rank.
func AdjustAxis(axis, rank int) int {
	adjusted := axis
	if adjusted < 0 {
		adjusted += rank
	}
	if adjusted < 0 || adjusted >= rank {
		exceptions.Panicf("axis %d is out-of-bounds for rank %d", axis, rank)
	}
	return adjusted
}

// ExactDiv returns total/parts, requiring the division to be exact: it panics
// when parts is not positive or when total is not a multiple of parts. The
// partitioning code uses it to split axes across process groups, where a
// remainder has no valid owner.
func ExactDiv(total, parts int) int {
	if parts <= 0 {
		exceptions.Panicf("shapes.ExactDiv: cannot divide %d into %d parts", total, parts)
	}
	if total%parts != 0 {
		exceptions.Panicf("shapes.ExactDiv: %d is not divisible by %d (remainder %d)", total, parts, total%parts)
	}
	return total / parts
}
