// Copyright 2023-2026 The meshgrad Authors. SPDX-License-Identifier: Apache-2.0

package _default_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshgrad/meshgrad/backends"
	_ "github.com/meshgrad/meshgrad/backends/default"
)

func TestDefaultEngine(t *testing.T) {
	engine := backends.New()
	require.NotNil(t, engine)
	require.Equal(t, "dense", engine.Name())
}

func TestEnvSelection(t *testing.T) {
	t.Setenv(backends.MESHGRAD_BACKEND, "dense:seed=1")
	require.Equal(t, "dense", backends.New().Name())
}
