// Copyright 2023-2026 The meshgrad Authors. SPDX-License-Identifier: Apache-2.0

package xslices

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFillSlice(t *testing.T) {
	s := make([]float32, 7)
	FillSlice(s, 3)
	for ii, v := range s {
		assert.Equalf(t, float32(3), v, "element %d doesn't match", ii)
	}
	FillSlice([]int{}, 1) // Empty slices are a no-op.
}

func TestSliceWithValue(t *testing.T) {
	s := SliceWithValue(5, "x")
	assert.Len(t, s, 5)
	for ii, v := range s {
		assert.Equalf(t, "x", v, "element %d doesn't match", ii)
	}
}
