// Copyright 2023-2026 The meshgrad Authors. SPDX-License-Identifier: Apache-2.0

package dense

import (
	"github.com/pkg/errors"

	"github.com/meshgrad/meshgrad/backends"
)

// noArgs rejects any arguments for callables that take none.
func noArgs(name string, args []any, kwargs map[string]any) error {
	if len(args) > 0 {
		return errors.Errorf("dense: %s() takes no arguments, got %d", name, len(args))
	}
	return noKwargs(name, kwargs)
}

// Attr resolves tensor attributes by name. Value attributes return their
// current value, method attributes return a backends.Func bound to the
// tensor. The second result is false for unknown names.
func (t *Tensor) Attr(name string) (any, bool) {
	switch name {
	case "shape":
		return t.shape.Clone(), true
	case "dtype":
		return t.DType(), true
	case "ndim":
		return t.shape.Rank(), true
	case "device":
		return t.device, true
	case "requires_grad":
		return t.requiresGrad, true

	case "clone":
		return backends.Func(func(args []any, kwargs map[string]any) (any, error) {
			if err := noArgs(name, args, kwargs); err != nil {
				return nil, err
			}
			return t.clone(), nil
		}), true
	case "detach":
		return backends.Func(func(args []any, kwargs map[string]any) (any, error) {
			if err := noArgs(name, args, kwargs); err != nil {
				return nil, err
			}
			return t.detach(), nil
		}), true
	case "neg":
		return backends.Func(func(args []any, kwargs map[string]any) (any, error) {
			if err := noArgs(name, args, kwargs); err != nil {
				return nil, err
			}
			return t.neg()
		}), true
	case "sum":
		return backends.Func(func(args []any, kwargs map[string]any) (any, error) {
			if err := noArgs(name, args, kwargs); err != nil {
				return nil, err
			}
			return t.sum()
		}), true
	case "mul":
		return backends.Func(func(args []any, kwargs map[string]any) (any, error) {
			if err := noKwargs(name, kwargs); err != nil {
				return nil, err
			}
			ins, err := opArgs(name, args, 1)
			if err != nil {
				return nil, err
			}
			return t.Mul(ins[0])
		}), true
	case "t":
		return backends.Func(func(args []any, kwargs map[string]any) (any, error) {
			if err := noArgs(name, args, kwargs); err != nil {
				return nil, err
			}
			return t.transpose2D()
		}), true
	case "numel":
		return backends.Func(func(args []any, kwargs map[string]any) (any, error) {
			if err := noArgs(name, args, kwargs); err != nil {
				return nil, err
			}
			return t.Size(), nil
		}), true
	case "is_floating_point":
		return backends.Func(func(args []any, kwargs map[string]any) (any, error) {
			if err := noArgs(name, args, kwargs); err != nil {
				return nil, err
			}
			return t.DType().IsFloat(), nil
		}), true
	case "fill_":
		return backends.Func(func(args []any, kwargs map[string]any) (any, error) {
			if err := noKwargs(name, kwargs); err != nil {
				return nil, err
			}
			if len(args) != 1 {
				return nil, errors.Errorf("dense: fill_() takes 1 argument, got %d", len(args))
			}
			value, ok := scalarToFloat(args[0])
			if !ok {
				return nil, errors.Errorf("dense: fill_() requires a Go number, got %T", args[0])
			}
			if t.requiresGrad {
				return nil, errors.Errorf("dense: fill_() on a tensor that requires gradients")
			}
			fillFlat(t.flat, value)
			return t, nil
		}), true
	}
	return nil, false
}
