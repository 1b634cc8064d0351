// Copyright 2023-2026 The meshgrad Authors. SPDX-License-Identifier: Apache-2.0

package dense

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalInit(t *testing.T) {
	const n = 10000
	tn := mk(t, make([]float64, n), n)
	require.NoError(t, tn.NormalInit(0.5, 2))

	flat := tn.flat.([]float64)
	var sum float64
	for _, v := range flat {
		sum += v
	}
	mean := sum / n
	var sq float64
	for _, v := range flat {
		sq += (v - mean) * (v - mean)
	}
	stddev := math.Sqrt(sq / n)
	require.InDelta(t, 0.5, mean, 0.1)
	require.InDelta(t, 2.0, stddev, 0.1)
}

func TestNormalInitDeterministic(t *testing.T) {
	e1 := newEngine(7, 1)
	e2 := newEngine(7, 1)
	a, err := e1.FromFlat(make([]float32, 16), 16)
	require.NoError(t, err)
	b, err := e2.FromFlat(make([]float32, 16), 16)
	require.NoError(t, err)
	require.NoError(t, a.NormalInit(0, 1))
	require.NoError(t, b.NormalInit(0, 1))
	require.Equal(t, a.(*Tensor).flat, b.(*Tensor).flat)
}

func TestNormalInitZeroStddev(t *testing.T) {
	tn := mk(t, make([]float32, 4), 4)
	require.NoError(t, tn.NormalInit(3, 0))
	require.Equal(t, []float32{3, 3, 3, 3}, tn.flat.([]float32))
}

func TestNormalInitErrors(t *testing.T) {
	require.ErrorContains(t, mk(t, []int32{0}, 1).NormalInit(0, 1), "float dtype")
	require.ErrorContains(t, mk(t, []float32{0}, 1).NormalInit(0, -1), "negative stddev")

	a := leaf(t, []float32{1}, 1)
	b := leaf(t, []float32{2}, 1)
	sum, err := a.Add(b)
	require.NoError(t, err)
	require.ErrorContains(t, sum.NormalInit(0, 1), "in place")
}
