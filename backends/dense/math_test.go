// Copyright 2023-2026 The meshgrad Authors. SPDX-License-Identifier: Apache-2.0

package dense

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdd(t *testing.T) {
	a := leaf(t, []float32{1, 2, 3}, 3)
	b := leaf(t, []float32{10, 20, 30}, 3)
	out, err := a.Add(b)
	require.NoError(t, err)
	require.Equal(t, []float32{11, 22, 33}, out.(*Tensor).flat.([]float32))

	require.NoError(t, out.Backward(mk(t, []float32{1, 1, 1}, 3)))
	require.Equal(t, []float32{1, 1, 1}, a.grad.flat.([]float32))
	require.Equal(t, []float32{1, 1, 1}, b.grad.flat.([]float32))
}

func TestAddErrors(t *testing.T) {
	a := mk(t, []float32{1, 2}, 2)
	b := mk(t, []float32{1, 2, 3}, 3)
	_, err := a.Add(b)
	require.ErrorContains(t, err, "equal shapes")

	c := mk(t, []int32{1, 2}, 2)
	_, err = a.Add(c)
	require.ErrorContains(t, err, "equal shapes")

	other := New("seed=1").(*Engine)
	d, err := other.FromFlat([]float32{1, 2}, 2)
	require.NoError(t, err)
	_, err = a.Add(d)
	require.ErrorContains(t, err, "different dense engines")
}

func TestMul(t *testing.T) {
	a := leaf(t, []float32{1, 2, 3}, 3)
	b := leaf(t, []float32{4, 5, 6}, 3)
	out, err := a.Mul(b)
	require.NoError(t, err)
	require.Equal(t, []float32{4, 10, 18}, out.(*Tensor).flat.([]float32))

	require.NoError(t, out.Backward(mk(t, []float32{1, 1, 1}, 3)))
	require.Equal(t, []float32{4, 5, 6}, a.grad.flat.([]float32))
	require.Equal(t, []float32{1, 2, 3}, b.grad.flat.([]float32))
}

func TestMulInt(t *testing.T) {
	a := mk(t, []int32{2, 3}, 2)
	b := mk(t, []int32{5, 7}, 2)
	out, err := a.Mul(b)
	require.NoError(t, err)
	require.Equal(t, []int32{10, 21}, out.(*Tensor).flat.([]int32))
}

func TestDivTensor(t *testing.T) {
	a := leaf(t, []float32{8, 6}, 2)
	b := leaf(t, []float32{2, 4}, 2)
	out, err := a.Div(b)
	require.NoError(t, err)
	require.Equal(t, []float32{4, 1.5}, out.(*Tensor).flat.([]float32))

	require.NoError(t, out.Backward(mk(t, []float32{1, 1}, 2)))
	require.Equal(t, []float32{0.5, 0.25}, a.grad.flat.([]float32))
	require.Equal(t, []float32{-2, -0.375}, b.grad.flat.([]float32))
}

func TestDivScalar(t *testing.T) {
	a := leaf(t, []float32{8, 6}, 2)
	out, err := a.Div(4)
	require.NoError(t, err)
	require.Equal(t, []float32{2, 1.5}, out.(*Tensor).flat.([]float32))

	require.NoError(t, out.Backward(mk(t, []float32{1, 1}, 2)))
	require.Equal(t, []float32{0.25, 0.25}, a.grad.flat.([]float32))
}

func TestDivErrors(t *testing.T) {
	a := mk(t, []int32{8, 6}, 2)
	_, err := a.Div(2)
	require.ErrorContains(t, err, "float dtype")

	b := mk(t, []float32{1, 2}, 2)
	_, err = b.Div("two")
	require.ErrorContains(t, err, "Go number")
}

func TestSumBackward(t *testing.T) {
	a := leaf(t, []float32{1, 2, 3}, 3)
	s, err := a.sum()
	require.NoError(t, err)
	require.Equal(t, []float32{6}, s.flat.([]float32))

	// Scalar result, so a nil seed means an implicit gradient of ones.
	require.NoError(t, s.Backward(nil))
	require.Equal(t, []float32{1, 1, 1}, a.grad.flat.([]float32))
}

func TestMeanBackward(t *testing.T) {
	a := leaf(t, []float32{2, 4, 6, 8}, 4)
	m, err := a.mean()
	require.NoError(t, err)
	require.Equal(t, []float32{5}, m.flat.([]float32))

	require.NoError(t, m.Backward(nil))
	require.Equal(t, []float32{0.25, 0.25, 0.25, 0.25}, a.grad.flat.([]float32))
}

func TestExpBackward(t *testing.T) {
	a := leaf(t, []float32{0, 1}, 2)
	out, err := a.exp()
	require.NoError(t, err)
	e := float32(math.E)
	require.InDeltaSlice(t, []float32{1, e}, out.flat.([]float32), 1e-6)

	require.NoError(t, out.Backward(mk(t, []float32{1, 1}, 2)))
	require.InDeltaSlice(t, []float32{1, e}, a.grad.flat.([]float32), 1e-6)
}

func TestNegBackward(t *testing.T) {
	a := leaf(t, []float32{1, -2}, 2)
	out, err := a.neg()
	require.NoError(t, err)
	require.Equal(t, []float32{-1, 2}, out.flat.([]float32))

	require.NoError(t, out.Backward(mk(t, []float32{1, 1}, 2)))
	require.Equal(t, []float32{-1, -1}, a.grad.flat.([]float32))
}

func TestChainedBackward(t *testing.T) {
	a := leaf(t, []float32{2}, 1)
	b := leaf(t, []float32{3}, 1)
	c, err := a.Add(b)
	require.NoError(t, err)
	d, err := c.(*Tensor).Mul(a)
	require.NoError(t, err)
	require.Equal(t, []float32{10}, d.(*Tensor).flat.([]float32))

	// d = (a+b)*a, so dd/da = 2a+b = 7 and dd/db = a = 2.
	require.NoError(t, d.Backward(nil))
	require.Equal(t, []float32{7}, a.grad.flat.([]float32))
	require.Equal(t, []float32{2}, b.grad.flat.([]float32))
}

func TestGradAccumulates(t *testing.T) {
	a := leaf(t, []float32{1, 2}, 2)
	b := mk(t, []float32{5, 5}, 2)
	out, err := a.Add(b)
	require.NoError(t, err)
	seed := mk(t, []float32{1, 1}, 2)
	require.NoError(t, out.Backward(seed))
	require.NoError(t, out.Backward(seed))
	require.Equal(t, []float32{2, 2}, a.grad.flat.([]float32))
	require.Nil(t, b.Grad())
}

func TestBackwardErrors(t *testing.T) {
	plain := mk(t, []float32{1, 2}, 2)
	require.ErrorContains(t, plain.Backward(nil), "does not require gradients")

	a := leaf(t, []float32{1, 2}, 2)
	require.ErrorContains(t, a.Backward(nil), "single-element")
	require.ErrorContains(t, a.Backward(mk(t, []float32{1}, 1)), "doesn't match")
}

func TestCloneIsIndependent(t *testing.T) {
	a := leaf(t, []float32{1, 2}, 2)
	c := a.clone()
	c.flat.([]float32)[0] = 9
	require.Equal(t, []float32{1, 2}, a.flat.([]float32))

	// Gradients still flow through the copy.
	require.NoError(t, c.Backward(mk(t, []float32{3, 3}, 2)))
	require.Equal(t, []float32{3, 3}, a.grad.flat.([]float32))
}

func TestTranspose2D(t *testing.T) {
	a := leaf(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	out, err := a.transpose2D()
	require.NoError(t, err)
	require.Equal(t, []int{3, 2}, out.Shape().Dimensions)
	require.Equal(t, []float32{1, 4, 2, 5, 3, 6}, out.flat.([]float32))

	require.NoError(t, out.Backward(mk(t, []float32{1, 2, 3, 4, 5, 6}, 3, 2)))
	require.Equal(t, []float32{1, 3, 5, 2, 4, 6}, a.grad.flat.([]float32))

	v := mk(t, []float32{1, 2, 3}, 3)
	_, err = v.transpose2D()
	require.ErrorContains(t, err, "rank-2")
}

func TestFloat16Arithmetic(t *testing.T) {
	a := mk(t, f16s(1, 2, 3), 3)
	b := mk(t, f16s(4, 5, 6), 3)
	out, err := a.Add(b)
	require.NoError(t, err)
	require.Equal(t, f16s(5, 7, 9), out.(*Tensor).flat)

	prod, err := a.Mul(b)
	require.NoError(t, err)
	require.Equal(t, f16s(4, 10, 18), prod.(*Tensor).flat)
}
