// Copyright 2023-2026 The meshgrad Authors. SPDX-License-Identifier: Apache-2.0

package dense

import (
	"math"

	"github.com/pkg/errors"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"

	"github.com/meshgrad/meshgrad/internal/workerspool"
	"github.com/meshgrad/meshgrad/pkg/support/xslices"
)

// minParallelChunk is the number of elements below which a kernel chunk is
// not worth a goroutine.
const minParallelChunk = 4096

func binFloatKernel[T constraints.Float](pool *workerspool.Pool, op string, a, b, out []T) error {
	var fn func(x, y T) T
	switch op {
	case "add":
		fn = func(x, y T) T { return x + y }
	case "mul":
		fn = func(x, y T) T { return x * y }
	case "div":
		fn = func(x, y T) T { return x / y }
	default:
		return errors.Errorf("dense: unknown binary op %q", op)
	}
	pool.Range(len(out), minParallelChunk, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = fn(a[i], b[i])
		}
	})
	return nil
}

func binIntKernel[T constraints.Signed](pool *workerspool.Pool, op string, a, b, out []T) error {
	var fn func(x, y T) T
	switch op {
	case "add":
		fn = func(x, y T) T { return x + y }
	case "mul":
		fn = func(x, y T) T { return x * y }
	default:
		return errors.Errorf("dense: binary op %q is not supported for integer dtypes", op)
	}
	pool.Range(len(out), minParallelChunk, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = fn(a[i], b[i])
		}
	})
	return nil
}

func binF16Kernel(pool *workerspool.Pool, op string, a, b, out []float16.Float16) error {
	var fn func(x, y float32) float32
	switch op {
	case "add":
		fn = func(x, y float32) float32 { return x + y }
	case "mul":
		fn = func(x, y float32) float32 { return x * y }
	case "div":
		fn = func(x, y float32) float32 { return x / y }
	default:
		return errors.Errorf("dense: unknown binary op %q", op)
	}
	pool.Range(len(out), minParallelChunk, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = float16.Fromfloat32(fn(a[i].Float32(), b[i].Float32()))
		}
	})
	return nil
}

// binFlat runs the binary op elementwise over same-dtype flats of equal
// length, writing into out.
func binFlat(pool *workerspool.Pool, op string, a, b, out any) error {
	switch av := a.(type) {
	case []float32:
		return binFloatKernel(pool, op, av, b.([]float32), out.([]float32))
	case []float64:
		return binFloatKernel(pool, op, av, b.([]float64), out.([]float64))
	case []int32:
		return binIntKernel(pool, op, av, b.([]int32), out.([]int32))
	case []int64:
		return binIntKernel(pool, op, av, b.([]int64), out.([]int64))
	case []float16.Float16:
		return binF16Kernel(pool, op, av, b.([]float16.Float16), out.([]float16.Float16))
	}
	return errors.Errorf("dense: unsupported flat type %T", a)
}

func unFloatKernel[T constraints.Float](pool *workerspool.Pool, op string, a, out []T) error {
	var fn func(x T) T
	switch op {
	case "neg":
		fn = func(x T) T { return -x }
	case "exp":
		fn = func(x T) T { return T(math.Exp(float64(x))) }
	default:
		return errors.Errorf("dense: unknown unary op %q", op)
	}
	pool.Range(len(out), minParallelChunk, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = fn(a[i])
		}
	})
	return nil
}

func unIntKernel[T constraints.Signed](pool *workerspool.Pool, op string, a, out []T) error {
	var fn func(x T) T
	switch op {
	case "neg":
		fn = func(x T) T { return -x }
	default:
		return errors.Errorf("dense: unary op %q is not supported for integer dtypes", op)
	}
	pool.Range(len(out), minParallelChunk, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = fn(a[i])
		}
	})
	return nil
}

func unF16Kernel(pool *workerspool.Pool, op string, a, out []float16.Float16) error {
	var fn func(x float32) float32
	switch op {
	case "neg":
		fn = func(x float32) float32 { return -x }
	case "exp":
		fn = func(x float32) float32 { return float32(math.Exp(float64(x))) }
	default:
		return errors.Errorf("dense: unknown unary op %q", op)
	}
	pool.Range(len(out), minParallelChunk, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = float16.Fromfloat32(fn(a[i].Float32()))
		}
	})
	return nil
}

// unFlat runs the unary op elementwise, writing into out.
func unFlat(pool *workerspool.Pool, op string, a, out any) error {
	switch av := a.(type) {
	case []float32:
		return unFloatKernel(pool, op, av, out.([]float32))
	case []float64:
		return unFloatKernel(pool, op, av, out.([]float64))
	case []int32:
		return unIntKernel(pool, op, av, out.([]int32))
	case []int64:
		return unIntKernel(pool, op, av, out.([]int64))
	case []float16.Float16:
		return unF16Kernel(pool, op, av, out.([]float16.Float16))
	}
	return errors.Errorf("dense: unsupported flat type %T", a)
}

// scaleFlat writes a[i]*factor into out. Float dtypes only.
func scaleFlat(pool *workerspool.Pool, a, out any, factor float64) error {
	switch av := a.(type) {
	case []float32:
		f := float32(factor)
		o := out.([]float32)
		pool.Range(len(o), minParallelChunk, func(start, end int) {
			for i := start; i < end; i++ {
				o[i] = av[i] * f
			}
		})
	case []float64:
		o := out.([]float64)
		pool.Range(len(o), minParallelChunk, func(start, end int) {
			for i := start; i < end; i++ {
				o[i] = av[i] * factor
			}
		})
	case []float16.Float16:
		f := float32(factor)
		o := out.([]float16.Float16)
		pool.Range(len(o), minParallelChunk, func(start, end int) {
			for i := start; i < end; i++ {
				o[i] = float16.Fromfloat32(av[i].Float32() * f)
			}
		})
	default:
		return errors.Errorf("dense: scaling is not supported for flat type %T", a)
	}
	return nil
}

// sumFlat reduces the flat slice to a single value of the same dtype, stored
// in out (a 1-element flat). Accumulation is sequential: float16 accumulates
// in float32, the rest in their own type.
func sumFlat(a, out any) error {
	switch av := a.(type) {
	case []float32:
		var acc float32
		for _, v := range av {
			acc += v
		}
		out.([]float32)[0] = acc
	case []float64:
		var acc float64
		for _, v := range av {
			acc += v
		}
		out.([]float64)[0] = acc
	case []int32:
		var acc int32
		for _, v := range av {
			acc += v
		}
		out.([]int32)[0] = acc
	case []int64:
		var acc int64
		for _, v := range av {
			acc += v
		}
		out.([]int64)[0] = acc
	case []float16.Float16:
		var acc float32
		for _, v := range av {
			acc += v.Float32()
		}
		out.([]float16.Float16)[0] = float16.Fromfloat32(acc)
	default:
		return errors.Errorf("dense: unsupported flat type %T", a)
	}
	return nil
}

// fillFlat sets every element to the given value, converting to the flat's
// dtype.
func fillFlat(flat any, value float64) {
	switch s := flat.(type) {
	case []float32:
		xslices.FillSlice(s, float32(value))
	case []float64:
		xslices.FillSlice(s, value)
	case []int32:
		xslices.FillSlice(s, int32(value))
	case []int64:
		xslices.FillSlice(s, int64(value))
	case []float16.Float16:
		xslices.FillSlice(s, float16.Fromfloat32(float32(value)))
	default:
		panic("dense: unsupported flat type")
	}
}

func transpose2DKernel[T any](a, out []T, rows, cols int) {
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[c*rows+r] = a[r*cols+c]
		}
	}
}

// transpose2DFlat writes the transpose of a rows x cols flat into out.
func transpose2DFlat(a, out any, rows, cols int) error {
	switch av := a.(type) {
	case []float32:
		transpose2DKernel(av, out.([]float32), rows, cols)
	case []float64:
		transpose2DKernel(av, out.([]float64), rows, cols)
	case []int32:
		transpose2DKernel(av, out.([]int32), rows, cols)
	case []int64:
		transpose2DKernel(av, out.([]int64), rows, cols)
	case []float16.Float16:
		transpose2DKernel(av, out.([]float16.Float16), rows, cols)
	default:
		return errors.Errorf("dense: unsupported flat type %T", a)
	}
	return nil
}
