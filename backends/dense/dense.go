// Copyright 2023-2026 The meshgrad Authors. SPDX-License-Identifier: Apache-2.0

// Package dense implements a simple, portable pure-Go tensor engine for
// meshgrad.
//
// Storage is always a contiguous row-major flat slice of the dtype's Go type
// ([]float32, []float64, []int32, []int64 or []float16.Float16). Slicing
// operations copy, so every tensor is contiguous. Operations on tensors that
// require gradients record backward functions; Tensor.Backward runs
// reverse-mode accumulation into the leaves.
//
// It only implements the dtypes and operations the distributed layer needs;
// it is a reference engine, not a fast one, though elementwise kernels do run
// chunked on a worker pool.
package dense

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"github.com/meshgrad/meshgrad/backends"
	"github.com/meshgrad/meshgrad/internal/workerspool"
	"github.com/meshgrad/meshgrad/pkg/core/shapes"
)

// EngineName to be used in MESHGRAD_BACKEND to specify this engine.
const EngineName = "dense"

// Registers New() as the constructor for the "dense" engine.
func init() {
	backends.Register(EngineName, New)
}

// New constructs a dense Engine from a configuration string of comma-separated
// key=value pairs. Supported keys: "seed" (RNG seed, default time-based) and
// "workers" (kernel parallelism, default runtime.NumCPU()). It panics on
// malformed configurations.
func New(config string) backends.Engine {
	seed := uint64(time.Now().UnixNano())
	workers := 0
	if config != "" {
		for _, pair := range strings.Split(config, ",") {
			key, value, found := strings.Cut(pair, "=")
			if !found {
				exceptions.Panicf("dense: config entry %q is not a key=value pair (full config %q)", pair, config)
			}
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				exceptions.Panicf("dense: config %s=%q is not a number: %v", key, value, err)
			}
			switch key {
			case "seed":
				seed = uint64(n)
			case "workers":
				workers = int(n)
			default:
				exceptions.Panicf("dense: unknown config key %q (full config %q)", key, config)
			}
		}
	}
	return newEngine(seed, workers)
}

func newEngine(seed uint64, workers int) *Engine {
	return &Engine{
		rng:  rand.New(rand.NewSource(seed)),
		pool: workerspool.New(workers),
	}
}

// Engine implements the backends.Engine interface with pure-Go storage.
type Engine struct {
	rng   *rand.Rand
	rngMu sync.Mutex
	pool  *workerspool.Pool
}

// Compile-time check that dense.Engine implements backends.Engine.
var _ backends.Engine = &Engine{}

// Name returns the short name of the engine.
func (e *Engine) Name() string { return EngineName }

// String implements fmt.Stringer.
func (e *Engine) String() string { return EngineName }

// Description is a longer description of the engine for pretty-printing.
func (e *Engine) Description() string {
	return "Dense Pure-Go Reference Engine"
}

// NumDevices returns 1: the dense engine is host-memory only.
func (e *Engine) NumDevices() backends.DeviceNum { return 1 }

// Empty allocates a zero-initialized tensor of the given shape.
func (e *Engine) Empty(shape shapes.Shape, opts backends.AllocOptions) (backends.Tensor, error) {
	if !shape.Ok() {
		return nil, errors.Errorf("dense: cannot allocate an invalid shape")
	}
	if opts.Device < 0 || opts.Device >= e.NumDevices() {
		return nil, errors.Errorf("dense: device %d out of range, engine has %d device(s)", opts.Device, e.NumDevices())
	}
	flat, err := newFlat(shape.DType, shape.Size())
	if err != nil {
		return nil, err
	}
	t := &Tensor{
		engine:       e,
		shape:        shape.Clone(),
		flat:         flat,
		device:       opts.Device,
		pinned:       opts.Pinned,
		requiresGrad: opts.RequiresGrad,
	}
	return t, nil
}
