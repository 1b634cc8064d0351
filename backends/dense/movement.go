// Copyright 2023-2026 The meshgrad Authors. SPDX-License-Identifier: Apache-2.0

package dense

import (
	"github.com/pkg/errors"

	"github.com/meshgrad/meshgrad/backends"
	"github.com/meshgrad/meshgrad/pkg/core/shapes"
)

// adjustAxis resolves a possibly-negative axis against a rank, returning an
// error instead of panicking so tensor methods can propagate it.
func adjustAxis(axis, rank int) (int, error) {
	adjusted := axis
	if adjusted < 0 {
		adjusted += rank
	}
	if adjusted < 0 || adjusted >= rank {
		return 0, errors.Errorf("dense: axis %d out of range for rank %d", axis, rank)
	}
	return adjusted, nil
}

// narrowBlocks splits dims around axis into (outer, mid, inner) block sizes:
// outer blocks of mid rows of inner contiguous elements each.
func narrowBlocks(dims []int, axis int) (outer, mid, inner int) {
	outer, mid, inner = 1, dims[axis], 1
	for _, d := range dims[:axis] {
		outer *= d
	}
	for _, d := range dims[axis+1:] {
		inner *= d
	}
	return
}

// narrowRaw copies the [start, start+length) window along axis into a fresh
// untracked tensor. The axis may be negative.
func (t *Tensor) narrowRaw(axis, start, length int) (*Tensor, error) {
	adjusted, err := adjustAxis(axis, t.shape.Rank())
	if err != nil {
		return nil, err
	}
	dims := t.shape.Dimensions
	if start < 0 || length < 0 || start+length > dims[adjusted] {
		return nil, errors.Errorf("dense: narrow window [%d, %d+%d) out of range for axis %d of %s",
			start, start, length, axis, t.shape)
	}
	outer, mid, inner := narrowBlocks(dims, adjusted)
	outDims := append([]int{}, dims...)
	outDims[adjusted] = length
	outShape := shapes.Make(t.shape.DType, outDims...)
	flat, err := newFlat(t.shape.DType, outShape.Size())
	if err != nil {
		return nil, err
	}
	for o := 0; o < outer; o++ {
		copyRange(flat, o*length*inner, t.flat, (o*mid+start)*inner, length*inner)
	}
	return newResult(t.engine, outShape, flat, t.device), nil
}

// scatterWindow copies a narrowed gradient back into the matching window of a
// zero tensor shaped like the narrow input.
func (t *Tensor) scatterWindow(g *Tensor, axis, start, length int) (*Tensor, error) {
	outer, mid, inner := narrowBlocks(t.shape.Dimensions, axis)
	flat, err := newFlat(t.shape.DType, t.Size())
	if err != nil {
		return nil, err
	}
	for o := 0; o < outer; o++ {
		copyRange(flat, (o*mid+start)*inner, g.flat, o*length*inner, length*inner)
	}
	return newResult(t.engine, t.shape.Clone(), flat, t.device), nil
}

// Narrow returns the [start, start+length) slice along axis as a new tensor.
// The result owns its storage. Gradients scatter back into the window,
// zero elsewhere.
func (t *Tensor) Narrow(axis, start, length int) (backends.Tensor, error) {
	adjusted, err := adjustAxis(axis, t.shape.Rank())
	if err != nil {
		return nil, err
	}
	out, err := t.narrowRaw(adjusted, start, length)
	if err != nil {
		return nil, err
	}
	return attach(out, []*Tensor{t}, "narrow", func(g *Tensor) ([]*Tensor, error) {
		ga, err := t.scatterWindow(g, adjusted, start, length)
		if err != nil {
			return nil, err
		}
		return []*Tensor{ga}, nil
	}), nil
}

// Select returns the sub-tensor at index along axis, dropping that axis from
// the shape.
func (t *Tensor) Select(axis, index int) (backends.Tensor, error) {
	adjusted, err := adjustAxis(axis, t.shape.Rank())
	if err != nil {
		return nil, err
	}
	out, err := t.narrowRaw(adjusted, index, 1)
	if err != nil {
		return nil, err
	}
	dims := t.shape.Dimensions
	outDims := append(append([]int{}, dims[:adjusted]...), dims[adjusted+1:]...)
	out.shape = shapes.Make(t.shape.DType, outDims...)
	return attach(out, []*Tensor{t}, "select", func(g *Tensor) ([]*Tensor, error) {
		ga, err := t.scatterWindow(g, adjusted, index, 1)
		if err != nil {
			return nil, err
		}
		return []*Tensor{ga}, nil
	}), nil
}

// Concat concatenates the inputs along axis into one tensor. All inputs must
// share dtype and every dimension except the concatenation axis. Gradients
// narrow back into one slice per input.
func (e *Engine) Concat(axis int, inputs ...backends.Tensor) (backends.Tensor, error) {
	if len(inputs) == 0 {
		return nil, errors.Errorf("dense: Concat requires at least one input")
	}
	ins := make([]*Tensor, len(inputs))
	for i, in := range inputs {
		t, err := asDense(in)
		if err != nil {
			return nil, err
		}
		if t.engine != e {
			return nil, errors.Errorf("dense: Concat input #%d belongs to a different engine", i)
		}
		ins[i] = t
	}
	first := ins[0].shape
	adjusted, err := adjustAxis(axis, first.Rank())
	if err != nil {
		return nil, err
	}
	total := 0
	for i, in := range ins {
		if in.shape.DType != first.DType || in.shape.Rank() != first.Rank() {
			return nil, errors.Errorf("dense: Concat input #%d has shape %s, incompatible with %s", i, in.shape, first)
		}
		for axisIdx, d := range in.shape.Dimensions {
			if axisIdx != adjusted && d != first.Dimensions[axisIdx] {
				return nil, errors.Errorf("dense: Concat input #%d has shape %s, mismatching %s on axis %d", i, in.shape, first, axisIdx)
			}
		}
		total += in.shape.Dimensions[adjusted]
	}
	outDims := append([]int{}, first.Dimensions...)
	outDims[adjusted] = total
	outShape := shapes.Make(first.DType, outDims...)
	flat, err := newFlat(first.DType, outShape.Size())
	if err != nil {
		return nil, err
	}

	outer, _, inner := narrowBlocks(outDims, adjusted)
	offsets := make([]int, len(ins))
	off := 0
	for i, in := range ins {
		offsets[i] = off
		mid := in.shape.Dimensions[adjusted]
		for o := 0; o < outer; o++ {
			copyRange(flat, (o*total+off)*inner, in.flat, o*mid*inner, mid*inner)
		}
		off += mid
	}

	out := newResult(e, outShape, flat, ins[0].device)
	return attach(out, ins, "concat", func(g *Tensor) ([]*Tensor, error) {
		grads := make([]*Tensor, len(ins))
		for i, in := range ins {
			ga, err := g.narrowRaw(adjusted, offsets[i], in.shape.Dimensions[adjusted])
			if err != nil {
				return nil, err
			}
			grads[i] = ga
		}
		return grads, nil
	}), nil
}
