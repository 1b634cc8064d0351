// Copyright 2023-2026 The meshgrad Authors. SPDX-License-Identifier: Apache-2.0

package local

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/meshgrad/meshgrad/backends"
	"github.com/meshgrad/meshgrad/backends/dense"
	"github.com/meshgrad/meshgrad/comms"
)

// roundKey pairs the collective calls of the ranks: the n-th call on a mode
// joins the n-th round of that mode.
type roundKey struct {
	mode comms.ParallelMode
	seq  uint64
}

// round is one all-gather rendezvous. Ranks deposit their parts under the
// world lock; the last arrival concatenates and releases the waiters by
// closing done. A round is removed from the world's map when complete, so
// the map only holds rounds in flight.
type round struct {
	id      string
	axis    int
	parts   []*dense.Tensor
	arrived int
	done    chan struct{}

	// full and err are written before done is closed and only read after.
	full *dense.Tensor
	err  error
}

// allGather blocks until every rank has contributed a part for the
// (mode, seq) round, then returns this rank's own copy of the concatenation
// in rank order along axis.
func (w *World) allGather(rank int, mode comms.ParallelMode, seq uint64, part *dense.Tensor, axis int) (*dense.Tensor, error) {
	key := roundKey{mode: mode, seq: seq}
	w.mu.Lock()
	r := w.rounds[key]
	if r == nil {
		r = &round{
			id:    uuid.NewString(),
			axis:  axis,
			parts: make([]*dense.Tensor, w.size),
			done:  make(chan struct{}),
		}
		w.rounds[key] = r
	}
	if r.parts[rank] != nil {
		w.mu.Unlock()
		return nil, errors.Errorf("local: rank %d joined all-gather round %s twice", rank, r.id)
	}
	if axis != r.axis && r.err == nil {
		r.err = errors.Errorf("local: all-gather round %s: rank %d wants axis %d but the round started with axis %d",
			r.id, rank, axis, r.axis)
	}
	r.parts[rank] = part
	r.arrived++
	last := r.arrived == w.size
	if last {
		delete(w.rounds, key)
	}
	w.mu.Unlock()

	klog.V(2).Infof("local: rank %d joined all-gather round %s (%s #%d, axis %d, %s)",
		rank, r.id, mode, seq, axis, part.Shape())
	if last {
		r.finish(w.engine)
		close(r.done)
	} else {
		<-r.done
	}
	if r.err != nil {
		return nil, r.err
	}

	// Each rank gets an independent copy so a later in-place write on one
	// rank cannot leak into another.
	out, err := w.engine.FromFlat(r.full.Flat(), r.full.Shape().Dimensions...)
	if err != nil {
		return nil, err
	}
	return out.(*dense.Tensor), nil
}

// finish validates the parts and concatenates them. Runs on the last
// arriving rank's goroutine, before done is closed.
func (r *round) finish(engine *dense.Engine) {
	if r.err != nil {
		return
	}
	first := r.parts[0].Shape()
	ins := make([]backends.Tensor, len(r.parts))
	for i, p := range r.parts {
		if !p.Shape().Equal(first) {
			r.err = errors.Errorf("local: all-gather round %s: rank %d contributed shape %s, rank 0 contributed %s",
				r.id, i, p.Shape(), first)
			return
		}
		ins[i] = p
	}
	out, err := engine.Concat(r.axis, ins...)
	if err != nil {
		r.err = errors.WithMessagef(err, "all-gather round %s", r.id)
		return
	}
	r.full = out.(*dense.Tensor)
}
