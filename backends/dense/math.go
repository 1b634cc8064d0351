// Copyright 2023-2026 The meshgrad Authors. SPDX-License-Identifier: Apache-2.0

package dense

import (
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"

	"github.com/meshgrad/meshgrad/backends"
	"github.com/meshgrad/meshgrad/pkg/core/shapes"
)

// Raw ops compute results without recording backward functions. The public
// ops call them for the forward pass and the backward closures call them for
// gradient arithmetic, so backward passes never extend the autograd graph.

func (t *Tensor) binRaw(op string, o *Tensor) (*Tensor, error) {
	if err := t.sameEngine(o); err != nil {
		return nil, err
	}
	// No broadcasting: operands must match exactly.
	if !t.shape.Equal(o.shape) {
		return nil, errors.Errorf("dense: %s requires equal shapes, got %s and %s", op, t.shape, o.shape)
	}
	flat, err := newFlat(t.shape.DType, t.Size())
	if err != nil {
		return nil, err
	}
	if err = binFlat(t.engine.pool, op, t.flat, o.flat, flat); err != nil {
		return nil, err
	}
	return newResult(t.engine, t.shape.Clone(), flat, t.device), nil
}

func (t *Tensor) addRaw(o *Tensor) (*Tensor, error) { return t.binRaw("add", o) }
func (t *Tensor) mulRaw(o *Tensor) (*Tensor, error) { return t.binRaw("mul", o) }
func (t *Tensor) divRaw(o *Tensor) (*Tensor, error) { return t.binRaw("div", o) }

func (t *Tensor) unRaw(op string) (*Tensor, error) {
	flat, err := newFlat(t.shape.DType, t.Size())
	if err != nil {
		return nil, err
	}
	if err = unFlat(t.engine.pool, op, t.flat, flat); err != nil {
		return nil, err
	}
	return newResult(t.engine, t.shape.Clone(), flat, t.device), nil
}

func (t *Tensor) negRaw() (*Tensor, error) { return t.unRaw("neg") }
func (t *Tensor) expRaw() (*Tensor, error) { return t.unRaw("exp") }

func (t *Tensor) scaleRaw(factor float64) (*Tensor, error) {
	if !t.DType().IsFloat() {
		return nil, errors.Errorf("dense: scaling requires a float dtype, got %s", t.DType())
	}
	flat, err := newFlat(t.shape.DType, t.Size())
	if err != nil {
		return nil, err
	}
	if err = scaleFlat(t.engine.pool, t.flat, flat, factor); err != nil {
		return nil, err
	}
	return newResult(t.engine, t.shape.Clone(), flat, t.device), nil
}

func (t *Tensor) sumRaw() (*Tensor, error) {
	flat, err := newFlat(t.shape.DType, 1)
	if err != nil {
		return nil, err
	}
	if err = sumFlat(t.flat, flat); err != nil {
		return nil, err
	}
	return newResult(t.engine, shapes.Make(t.shape.DType), flat, t.device), nil
}

// fullLike returns an untracked tensor of t's shape filled with value.
func fullLike(t *Tensor, value float64) *Tensor {
	flat := must.M1(newFlat(t.shape.DType, t.Size()))
	fillFlat(flat, value)
	return newResult(t.engine, t.shape.Clone(), flat, t.device)
}

// onesLike returns an untracked tensor of t's shape filled with ones.
func onesLike(t *Tensor) *Tensor { return fullLike(t, 1) }

// Add returns the elementwise sum. Gradients flow to both operands
// unchanged.
func (t *Tensor) Add(other backends.Tensor) (backends.Tensor, error) {
	o, err := asDense(other)
	if err != nil {
		return nil, err
	}
	out, err := t.addRaw(o)
	if err != nil {
		return nil, err
	}
	return attach(out, []*Tensor{t, o}, "add", func(g *Tensor) ([]*Tensor, error) {
		return []*Tensor{g, g}, nil
	}), nil
}

// Mul returns the elementwise product.
func (t *Tensor) Mul(other backends.Tensor) (backends.Tensor, error) {
	o, err := asDense(other)
	if err != nil {
		return nil, err
	}
	out, err := t.mulRaw(o)
	if err != nil {
		return nil, err
	}
	a, b := t.detach(), o.detach()
	return attach(out, []*Tensor{t, o}, "mul", func(g *Tensor) ([]*Tensor, error) {
		ga, err := g.mulRaw(b)
		if err != nil {
			return nil, err
		}
		gb, err := g.mulRaw(a)
		if err != nil {
			return nil, err
		}
		return []*Tensor{ga, gb}, nil
	}), nil
}

// Div returns the elementwise quotient by a tensor of the same shape or a Go
// number. Only float dtypes divide.
func (t *Tensor) Div(operand any) (backends.Tensor, error) {
	if !t.DType().IsFloat() {
		return nil, errors.Errorf("dense: division requires a float dtype, got %s", t.DType())
	}
	if other, ok := operand.(backends.Tensor); ok {
		o, err := asDense(other)
		if err != nil {
			return nil, err
		}
		out, err := t.divRaw(o)
		if err != nil {
			return nil, err
		}
		a, b := t.detach(), o.detach()
		return attach(out, []*Tensor{t, o}, "div", func(g *Tensor) ([]*Tensor, error) {
			ga, err := g.divRaw(b)
			if err != nil {
				return nil, err
			}
			// d(a/b)/db = -a/b².
			bb, err := b.mulRaw(b)
			if err != nil {
				return nil, err
			}
			gb, err := g.mulRaw(a)
			if err != nil {
				return nil, err
			}
			if gb, err = gb.divRaw(bb); err != nil {
				return nil, err
			}
			if gb, err = gb.negRaw(); err != nil {
				return nil, err
			}
			return []*Tensor{ga, gb}, nil
		}), nil
	}
	s, ok := scalarToFloat(operand)
	if !ok {
		return nil, errors.Errorf("dense: Div operand must be a Tensor or a Go number, got %T", operand)
	}
	out, err := t.scaleRaw(1 / s)
	if err != nil {
		return nil, err
	}
	return attach(out, []*Tensor{t}, "div", func(g *Tensor) ([]*Tensor, error) {
		ga, err := g.scaleRaw(1 / s)
		if err != nil {
			return nil, err
		}
		return []*Tensor{ga}, nil
	}), nil
}

// neg returns the elementwise negation.
func (t *Tensor) neg() (*Tensor, error) {
	out, err := t.negRaw()
	if err != nil {
		return nil, err
	}
	return attach(out, []*Tensor{t}, "neg", func(g *Tensor) ([]*Tensor, error) {
		ga, err := g.negRaw()
		if err != nil {
			return nil, err
		}
		return []*Tensor{ga}, nil
	}), nil
}

// exp returns the elementwise exponential.
func (t *Tensor) exp() (*Tensor, error) {
	out, err := t.expRaw()
	if err != nil {
		return nil, err
	}
	saved := out.detach()
	return attach(out, []*Tensor{t}, "exp", func(g *Tensor) ([]*Tensor, error) {
		ga, err := g.mulRaw(saved)
		if err != nil {
			return nil, err
		}
		return []*Tensor{ga}, nil
	}), nil
}

// sum reduces all elements to a scalar tensor.
func (t *Tensor) sum() (*Tensor, error) {
	out, err := t.sumRaw()
	if err != nil {
		return nil, err
	}
	return attach(out, []*Tensor{t}, "sum", func(g *Tensor) ([]*Tensor, error) {
		// Broadcast the scalar gradient back over the input.
		return []*Tensor{fullLike(t, loadFloat(g.flat, 0))}, nil
	}), nil
}

// mean reduces all elements to their scalar average. Float dtypes only.
func (t *Tensor) mean() (*Tensor, error) {
	if !t.DType().IsFloat() {
		return nil, errors.Errorf("dense: mean requires a float dtype, got %s", t.DType())
	}
	if t.Size() == 0 {
		return nil, errors.Errorf("dense: mean of an empty tensor")
	}
	n := float64(t.Size())
	s, err := t.sumRaw()
	if err != nil {
		return nil, err
	}
	out, err := s.scaleRaw(1 / n)
	if err != nil {
		return nil, err
	}
	return attach(out, []*Tensor{t}, "mean", func(g *Tensor) ([]*Tensor, error) {
		return []*Tensor{fullLike(t, loadFloat(g.flat, 0)/n)}, nil
	}), nil
}

func (t *Tensor) transpose2DRaw() (*Tensor, error) {
	if t.shape.Rank() != 2 {
		return nil, errors.Errorf("dense: transpose requires a rank-2 tensor, got %s", t.shape)
	}
	rows, cols := t.shape.Dimensions[0], t.shape.Dimensions[1]
	flat, err := newFlat(t.shape.DType, t.Size())
	if err != nil {
		return nil, err
	}
	if err = transpose2DFlat(t.flat, flat, rows, cols); err != nil {
		return nil, err
	}
	return newResult(t.engine, shapes.Make(t.shape.DType, cols, rows), flat, t.device), nil
}

// transpose2D returns the matrix transpose of a rank-2 tensor.
func (t *Tensor) transpose2D() (*Tensor, error) {
	out, err := t.transpose2DRaw()
	if err != nil {
		return nil, err
	}
	return attach(out, []*Tensor{t}, "t", func(g *Tensor) ([]*Tensor, error) {
		ga, err := g.transpose2DRaw()
		if err != nil {
			return nil, err
		}
		return []*Tensor{ga}, nil
	}), nil
}
