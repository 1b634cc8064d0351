// Copyright 2023-2026 The meshgrad Authors. SPDX-License-Identifier: Apache-2.0

// Package notimplemented implements backends.Engine and backends.Tensor
// values that fail every operation with a "not implemented" error.
//
// Embed them to build partial engines or test doubles: override only the
// methods your test reaches, and the rest fail loudly instead of silently
// misbehaving. Methods that return errors go through the overridable ErrFn
// hook; methods without an error result panic; plain getters return zero
// values so embedders can print and compare stubs safely.
package notimplemented

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/meshgrad/meshgrad/backends"
	"github.com/meshgrad/meshgrad/pkg/core/shapes"
)

// NotImplementedError is returned by every method.
//
// It doesn't contain a stack, attach one with errors.Wrapf(NotImplementedError, "...")
// when using it.
var NotImplementedError = backends.ErrNotImplemented

// Engine is a dummy engine that can be embedded to create mock engines.
type Engine struct {
	// ErrFn is called to generate the error returned, if not nil.
	// Otherwise NotImplementedError is returned directly.
	ErrFn func(method string) error
}

var _ backends.Engine = Engine{}

func (e Engine) baseErrFn(method string) error {
	if e.ErrFn == nil {
		return NotImplementedError
	}
	return e.ErrFn(method)
}

// Name returns the short name of the engine.
func (e Engine) Name() string { return "notimplemented" }

// String returns the same as Name.
func (e Engine) String() string { return e.Name() }

// Description is a longer description of the engine.
func (e Engine) Description() string {
	return "Not Implemented Engine (mock engine for testing)"
}

// NumDevices returns 1 as the number of devices available.
func (e Engine) NumDevices() backends.DeviceNum { return 1 }

func (e Engine) Empty(shape shapes.Shape, opts backends.AllocOptions) (backends.Tensor, error) {
	return nil, e.baseErrFn("Empty")
}

func (e Engine) FromFlat(flat any, dimensions ...int) (backends.Tensor, error) {
	return nil, e.baseErrFn("FromFlat")
}

func (e Engine) Concat(axis int, inputs ...backends.Tensor) (backends.Tensor, error) {
	return nil, e.baseErrFn("Concat")
}

// Op always reports the operation as unknown.
func (e Engine) Op(name string) (backends.Op, bool) { return backends.Op{}, false }

// Tensor is a dummy native tensor that can be embedded to create mocks.
type Tensor struct {
	// ErrFn is called to generate the error returned, if not nil.
	// Otherwise NotImplementedError is returned directly.
	ErrFn func(method string) error
}

var _ backends.Tensor = Tensor{}

func (t Tensor) baseErrFn(method string) error {
	if t.ErrFn == nil {
		return NotImplementedError
	}
	return t.ErrFn(method)
}

func (t Tensor) Shape() shapes.Shape { return shapes.Invalid() }

func (t Tensor) DType() dtypes.DType { return dtypes.InvalidDType }

func (t Tensor) Device() backends.DeviceNum { return 0 }

func (t Tensor) Size() int { return 0 }

func (t Tensor) Pinned() bool { return false }

func (t Tensor) RequiresGrad() bool { return false }

func (t Tensor) SetRequiresGrad(bool) {
	exceptions.Panicf("not implemented: Tensor.SetRequiresGrad")
}

func (t Tensor) Grad() backends.Tensor { return nil }

func (t Tensor) Detach() backends.Tensor {
	exceptions.Panicf("not implemented: Tensor.Detach")
	return nil
}

func (t Tensor) IsContiguous() bool { return true }

func (t Tensor) Contiguous() backends.Tensor {
	exceptions.Panicf("not implemented: Tensor.Contiguous")
	return nil
}

func (t Tensor) Narrow(axis, start, length int) (backends.Tensor, error) {
	return nil, t.baseErrFn("Narrow")
}

func (t Tensor) Select(axis, index int) (backends.Tensor, error) {
	return nil, t.baseErrFn("Select")
}

func (t Tensor) Add(other backends.Tensor) (backends.Tensor, error) {
	return nil, t.baseErrFn("Add")
}

func (t Tensor) Mul(other backends.Tensor) (backends.Tensor, error) {
	return nil, t.baseErrFn("Mul")
}

func (t Tensor) Div(other any) (backends.Tensor, error) {
	return nil, t.baseErrFn("Div")
}

func (t Tensor) Equal(other backends.Tensor) bool { return false }

func (t Tensor) Backward(grad backends.Tensor) error {
	return t.baseErrFn("Backward")
}

func (t Tensor) NormalInit(mean, stddev float64) error {
	return t.baseErrFn("NormalInit")
}

// Attr reports every attribute as missing.
func (t Tensor) Attr(name string) (any, bool) { return nil, false }
