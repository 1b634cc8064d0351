// Copyright 2023-2026 The meshgrad Authors. SPDX-License-Identifier: Apache-2.0

package dense

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// NormalInit fills the tensor in place with samples from Normal(mean, stddev)
// drawn from the engine's seeded RNG. Only leaf float tensors can be
// initialized.
func (t *Tensor) NormalInit(mean, stddev float64) error {
	if t.node != nil {
		return errors.Errorf("dense: cannot initialize a tensor computed from others in place (records %q)", t.node.name)
	}
	if !t.DType().IsFloat() {
		return errors.Errorf("dense: normal initialization requires a float dtype, got %s", t.DType())
	}
	if stddev < 0 {
		return errors.Errorf("dense: normal initialization with negative stddev %g", stddev)
	}
	if stddev == 0 {
		fillFlat(t.flat, mean)
		return nil
	}

	// The engine RNG is shared; sample under its lock for reproducibility.
	t.engine.rngMu.Lock()
	defer t.engine.rngMu.Unlock()
	dist := distuv.Normal{Mu: mean, Sigma: stddev, Src: t.engine.rng}
	for i := 0; i < t.Size(); i++ {
		storeFloat(t.flat, i, dist.Rand())
	}
	return nil
}
