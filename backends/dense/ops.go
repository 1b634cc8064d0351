// Copyright 2023-2026 The meshgrad Authors. SPDX-License-Identifier: Apache-2.0

package dense

import (
	"github.com/pkg/errors"

	"github.com/meshgrad/meshgrad/backends"
)

// opArgs validates the argument count and converts every positional argument
// to a concrete dense tensor.
func opArgs(name string, args []any, n int) ([]*Tensor, error) {
	if len(args) != n {
		return nil, errors.Errorf("dense: op %q takes %d argument(s), got %d", name, n, len(args))
	}
	ins := make([]*Tensor, n)
	for i, arg := range args {
		bt, ok := arg.(backends.Tensor)
		if !ok {
			return nil, errors.Errorf("dense: op %q argument #%d must be a tensor, got %T", name, i, arg)
		}
		t, err := asDense(bt)
		if err != nil {
			return nil, err
		}
		ins[i] = t
	}
	return ins, nil
}

// noKwargs rejects any keyword arguments for ops that take none.
func noKwargs(name string, kwargs map[string]any) error {
	for key := range kwargs {
		return errors.Errorf("dense: op %q got an unexpected keyword argument %q", name, key)
	}
	return nil
}

// Op looks up a named operation on the engine. The distributed layer resolves
// operator calls through this table.
func (e *Engine) Op(name string) (backends.Op, bool) {
	var call backends.Func
	switch name {
	case "neg":
		call = func(args []any, kwargs map[string]any) (any, error) {
			if err := noKwargs(name, kwargs); err != nil {
				return nil, err
			}
			ins, err := opArgs(name, args, 1)
			if err != nil {
				return nil, err
			}
			return ins[0].neg()
		}
	case "exp":
		call = func(args []any, kwargs map[string]any) (any, error) {
			if err := noKwargs(name, kwargs); err != nil {
				return nil, err
			}
			ins, err := opArgs(name, args, 1)
			if err != nil {
				return nil, err
			}
			return ins[0].exp()
		}
	case "sum":
		call = func(args []any, kwargs map[string]any) (any, error) {
			if err := noKwargs(name, kwargs); err != nil {
				return nil, err
			}
			ins, err := opArgs(name, args, 1)
			if err != nil {
				return nil, err
			}
			return ins[0].sum()
		}
	case "mean":
		call = func(args []any, kwargs map[string]any) (any, error) {
			if err := noKwargs(name, kwargs); err != nil {
				return nil, err
			}
			ins, err := opArgs(name, args, 1)
			if err != nil {
				return nil, err
			}
			return ins[0].mean()
		}
	case "add":
		call = func(args []any, kwargs map[string]any) (any, error) {
			if err := noKwargs(name, kwargs); err != nil {
				return nil, err
			}
			ins, err := opArgs(name, args, 2)
			if err != nil {
				return nil, err
			}
			return ins[0].Add(ins[1])
		}
	case "mul":
		call = func(args []any, kwargs map[string]any) (any, error) {
			if err := noKwargs(name, kwargs); err != nil {
				return nil, err
			}
			ins, err := opArgs(name, args, 2)
			if err != nil {
				return nil, err
			}
			return ins[0].Mul(ins[1])
		}
	case "div":
		call = func(args []any, kwargs map[string]any) (any, error) {
			if err := noKwargs(name, kwargs); err != nil {
				return nil, err
			}
			if len(args) != 2 {
				return nil, errors.Errorf("dense: op %q takes 2 arguments, got %d", name, len(args))
			}
			ins, err := opArgs(name, args[:1], 1)
			if err != nil {
				return nil, err
			}
			return ins[0].Div(args[1])
		}
	case "chunk2":
		// Splits a tensor into two equal halves along an axis, the one
		// multi-result op of the engine.
		call = func(args []any, kwargs map[string]any) (any, error) {
			axis := 0
			for key, value := range kwargs {
				if key != "axis" {
					return nil, errors.Errorf("dense: op %q got an unexpected keyword argument %q", name, key)
				}
				a, ok := value.(int)
				if !ok {
					return nil, errors.Errorf("dense: op %q axis must be an int, got %T", name, value)
				}
				axis = a
			}
			ins, err := opArgs(name, args, 1)
			if err != nil {
				return nil, err
			}
			t := ins[0]
			adjusted, err := adjustAxis(axis, t.Shape().Rank())
			if err != nil {
				return nil, err
			}
			dim := t.Shape().Dimensions[adjusted]
			if dim%2 != 0 {
				return nil, errors.Errorf("dense: op %q cannot split axis %d of extent %d in half", name, axis, dim)
			}
			half := dim / 2
			lo, err := t.Narrow(adjusted, 0, half)
			if err != nil {
				return nil, err
			}
			hi, err := t.Narrow(adjusted, half, half)
			if err != nil {
				return nil, err
			}
			return []any{lo, hi}, nil
		}
	default:
		return backends.Op{}, false
	}
	return backends.Op{Name: name, Call: call}, true
}
