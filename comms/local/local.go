// Copyright 2023-2026 The meshgrad Authors. SPDX-License-Identifier: Apache-2.0

// Package local implements comms.Communicator for a single OS process:
// every rank of the world is a goroutine sharing one World.
//
// It exists for tests and single-host simulation. All parallel modes map to
// the same flat group of ranks, and collectives rendezvous in memory instead
// of over a transport. Collectives wire into the dense engine's autograd, so
// the world only moves dense tensors.
package local

import (
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/meshgrad/meshgrad/backends"
	"github.com/meshgrad/meshgrad/backends/dense"
	"github.com/meshgrad/meshgrad/comms"
)

// World coordinates an in-process group of ranks. One World is shared by all
// the rank goroutines; each gets its own handle from Comm.
type World struct {
	engine *dense.Engine
	size   int

	mu     sync.Mutex
	rounds map[roundKey]*round
}

// NewWorld creates an in-process world of the given size, allocating
// collective results on the given engine. Panics on size < 1.
func NewWorld(engine *dense.Engine, size int) *World {
	if size < 1 {
		exceptions.Panicf("local: world size must be >= 1, got %d", size)
	}
	return &World{
		engine: engine,
		size:   size,
		rounds: make(map[roundKey]*round),
	}
}

// Size is the number of ranks in the world.
func (w *World) Size() int { return w.size }

// Comm returns the communicator handle for one rank. Panics on a rank
// outside [0, Size()).
func (w *World) Comm(rank int) *Comm {
	if rank < 0 || rank >= w.size {
		exceptions.Panicf("local: rank %d out of range for a world of size %d", rank, w.size)
	}
	return &Comm{
		world: w,
		rank:  rank,
		seq:   make(map[comms.ParallelMode]uint64),
	}
}

// Comm is one rank's view of the world. A Comm pairs collective calls with
// the other ranks' calls by arrival order per mode, so each rank must issue
// its collectives from a single goroutine, in program order.
type Comm struct {
	world *World
	rank  int

	mu  sync.Mutex
	seq map[comms.ParallelMode]uint64
}

// Compile-time check that local.Comm implements comms.Communicator.
var _ comms.Communicator = &Comm{}

// WorldSize of the mode's group. Every mode maps to the same flat group in
// the local world.
func (c *Comm) WorldSize(mode comms.ParallelMode) int { return c.world.size }

// LocalRank of this handle in the mode's group.
func (c *Comm) LocalRank(mode comms.ParallelMode) int { return c.rank }

// nextSeq numbers this rank's collective calls per mode. Ranks running the
// same program issue the same sequence, which is what pairs their rounds.
func (c *Comm) nextSeq(mode comms.ParallelMode) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.seq[mode]
	c.seq[mode]++
	return s
}

// asDense rejects tensors from other engines.
func asDense(t backends.Tensor) (*dense.Tensor, error) {
	dt, ok := t.(*dense.Tensor)
	if !ok {
		return nil, errors.Errorf("local: collectives require dense tensors, got %T", t)
	}
	return dt, nil
}

// adjustAxis resolves a possibly-negative axis against a rank.
func adjustAxis(axis, rank int) (int, error) {
	adjusted := axis
	if adjusted < 0 {
		adjusted += rank
	}
	if adjusted < 0 || adjusted >= rank {
		return 0, errors.Errorf("local: axis %d out of range for rank %d", axis, rank)
	}
	return adjusted, nil
}

// GatherForwardSplitBackward concatenates every rank's tensor in rank order
// along axis; its backward narrows the gradient back down to this rank's
// window. Blocks until all ranks join.
func (c *Comm) GatherForwardSplitBackward(t backends.Tensor, mode comms.ParallelMode, axis int) (backends.Tensor, error) {
	dt, err := asDense(t)
	if err != nil {
		return nil, err
	}
	adjusted, err := adjustAxis(axis, dt.Shape().Rank())
	if err != nil {
		return nil, err
	}
	part := dt.Detach().Contiguous().(*dense.Tensor)
	full, err := c.world.allGather(c.rank, mode, c.nextSeq(mode), part, adjusted)
	if err != nil {
		return nil, err
	}
	chunk := dt.Shape().Dimensions[adjusted]
	offset := c.rank * chunk
	out := dense.AttachBackward(full, []*dense.Tensor{dt}, "all-gather", func(g *dense.Tensor) ([]*dense.Tensor, error) {
		gn, err := g.Narrow(adjusted, offset, chunk)
		if err != nil {
			return nil, err
		}
		return []*dense.Tensor{gn.(*dense.Tensor)}, nil
	})
	return out, nil
}

// SplitForwardGatherBackward slices this rank's window of t along axis; its
// backward all-gathers the per-rank gradients back into the full gradient,
// so it blocks inside the backward pass until all ranks reach it.
func (c *Comm) SplitForwardGatherBackward(t backends.Tensor, mode comms.ParallelMode, axis int) (backends.Tensor, error) {
	dt, err := asDense(t)
	if err != nil {
		return nil, err
	}
	adjusted, err := adjustAxis(axis, dt.Shape().Rank())
	if err != nil {
		return nil, err
	}
	extent := dt.Shape().Dimensions[adjusted]
	if extent%c.world.size != 0 {
		return nil, errors.Errorf("local: axis %d extent %d does not divide evenly over %d ranks", axis, extent, c.world.size)
	}
	chunk := extent / c.world.size
	slice, err := dt.Detach().Narrow(adjusted, c.rank*chunk, chunk)
	if err != nil {
		return nil, err
	}
	out := dense.AttachBackward(slice.(*dense.Tensor), []*dense.Tensor{dt}, "split", func(g *dense.Tensor) ([]*dense.Tensor, error) {
		part := g.Detach().Contiguous().(*dense.Tensor)
		full, err := c.world.allGather(c.rank, mode, c.nextSeq(mode), part, adjusted)
		if err != nil {
			return nil, err
		}
		return []*dense.Tensor{full}, nil
	})
	return out, nil
}
