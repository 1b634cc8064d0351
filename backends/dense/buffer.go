// Copyright 2023-2026 The meshgrad Authors. SPDX-License-Identifier: Apache-2.0

package dense

import (
	"reflect"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// supportedDType reports whether the dense engine stores the dtype.
func supportedDType(dtype dtypes.DType) bool {
	switch dtype {
	case dtypes.Float16, dtypes.Float32, dtypes.Float64, dtypes.Int32, dtypes.Int64:
		return true
	}
	return false
}

// newFlat allocates a zero-initialized flat slice of the dtype's Go type.
func newFlat(dtype dtypes.DType, size int) (any, error) {
	if !supportedDType(dtype) {
		return nil, errors.Errorf("dense: dtype %s is not supported (supported: Float16, Float32, Float64, Int32, Int64)", dtype)
	}
	return reflect.MakeSlice(reflect.SliceOf(dtype.GoType()), size, size).Interface(), nil
}

// cloneFlat returns a copy of the flat slice.
func cloneFlat(flat any) any {
	src := reflect.ValueOf(flat)
	dst := reflect.MakeSlice(src.Type(), src.Len(), src.Len())
	reflect.Copy(dst, src)
	return dst.Interface()
}

// copyRange copies n elements from src[srcOff:] into dst[dstOff:]. Both flats
// must hold the same dtype.
func copyRange(dst any, dstOff int, src any, srcOff, n int) {
	if n == 0 {
		return
	}
	dstV := reflect.ValueOf(dst)
	srcV := reflect.ValueOf(src)
	reflect.Copy(dstV.Slice(dstOff, dstOff+n), srcV.Slice(srcOff, srcOff+n))
}

// loadFloat reads element i of the flat slice as a float64. Only valid for
// flats of supported dtypes.
func loadFloat(flat any, i int) float64 {
	switch s := flat.(type) {
	case []float32:
		return float64(s[i])
	case []float64:
		return s[i]
	case []int32:
		return float64(s[i])
	case []int64:
		return float64(s[i])
	case []float16.Float16:
		return float64(s[i].Float32())
	}
	panic("dense: unsupported flat type") // unreachable after newFlat validation
}

// storeFloat writes a float64 into element i of the flat slice, converting to
// the flat's dtype.
func storeFloat(flat any, i int, value float64) {
	switch s := flat.(type) {
	case []float32:
		s[i] = float32(value)
	case []float64:
		s[i] = value
	case []int32:
		s[i] = int32(value)
	case []int64:
		s[i] = int64(value)
	case []float16.Float16:
		s[i] = float16.Fromfloat32(float32(value))
	default:
		panic("dense: unsupported flat type")
	}
}

// scalarToFloat converts a Go number operand to float64. The second result is
// false for non-numeric types.
func scalarToFloat(operand any) (float64, bool) {
	switch v := operand.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
