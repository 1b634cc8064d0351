// Copyright 2023-2026 The meshgrad Authors. SPDX-License-Identifier: Apache-2.0

// Package _default includes the default engine, namely dense.
//
// To use it simply include:
//
//	import _ "github.com/meshgrad/meshgrad/backends/default"
package _default

import (
	_ "github.com/meshgrad/meshgrad/backends/dense"
)
