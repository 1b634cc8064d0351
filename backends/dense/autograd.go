// Copyright 2023-2026 The meshgrad Authors. SPDX-License-Identifier: Apache-2.0

package dense

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/meshgrad/meshgrad/backends"
)

// node records how an autograd-interior tensor was produced: the input
// tensors and a backward function mapping the output gradient to one gradient
// per input (nil entries for inputs that don't need one).
type node struct {
	name     string
	inputs   []*Tensor
	backward func(grad *Tensor) ([]*Tensor, error)
}

// attach links out to inputs with the given backward function, when any input
// requires gradients; otherwise out is left a plain leaf. Returns out.
func attach(out *Tensor, inputs []*Tensor, name string, backward func(grad *Tensor) ([]*Tensor, error)) *Tensor {
	tracked := false
	for _, in := range inputs {
		if in.requiresGrad {
			tracked = true
			break
		}
	}
	if !tracked {
		return out
	}
	out.requiresGrad = true
	out.node = &node{name: name, inputs: inputs, backward: backward}
	return out
}

// AttachBackward links a computed result to its inputs with a custom backward
// function, making out a differentiable function of inputs. The backward
// function receives the gradient with respect to out and returns one gradient
// per input, aligned with the inputs slice; nil entries mean no gradient for
// that input. It is only called for results that end up tracked.
//
// The communications layer uses this to make collectives differentiable: the
// forward result is computed out-of-graph and linked back to the local
// contribution here.
//
// out must be an untracked tensor (freshly computed, no recorded node); it is
// returned for convenience.
func AttachBackward(out *Tensor, inputs []*Tensor, name string, backward func(grad *Tensor) ([]*Tensor, error)) *Tensor {
	if out.node != nil {
		exceptions.Panicf("dense: AttachBackward(%q): output already records %q", name, out.node.name)
	}
	return attach(out, inputs, name, backward)
}

// topoSort returns the tensors reachable from root through backward nodes in
// topological order: inputs before the tensors computed from them.
func topoSort(root *Tensor) []*Tensor {
	var order []*Tensor
	visited := make(map[*Tensor]bool)
	var visit func(t *Tensor)
	visit = func(t *Tensor) {
		if visited[t] {
			return
		}
		visited[t] = true
		if t.node != nil {
			for _, in := range t.node.inputs {
				visit(in)
			}
		}
		order = append(order, t)
	}
	visit(root)
	return order
}

// Backward runs reverse-mode accumulation from t: every leaf tensor in t's
// autograd graph that requires gradients gets the gradient of t (seeded with
// grad) added into its Grad().
//
// A nil grad is allowed only for single-element tensors, where it means an
// implicit gradient of ones. Repeated calls keep accumulating, like the
// engine's in-graph accumulation does.
func (t *Tensor) Backward(grad backends.Tensor) error {
	if !t.requiresGrad {
		return errors.Errorf("dense: tensor does not require gradients and has no backward function")
	}
	var seed *Tensor
	if grad == nil {
		if t.Size() != 1 {
			return errors.Errorf("dense: gradient can only be implicitly created for single-element tensors, got shape %s", t.shape)
		}
		seed = onesLike(t)
	} else {
		var err error
		seed, err = asDense(grad)
		if err != nil {
			return err
		}
		if !seed.shape.Equal(t.shape) {
			return errors.Errorf("dense: gradient shape %s doesn't match tensor shape %s", seed.shape, t.shape)
		}
	}

	order := topoSort(t)
	grads := make(map[*Tensor]*Tensor, len(order))
	grads[t] = seed
	for i := len(order) - 1; i >= 0; i-- {
		cur := order[i]
		g := grads[cur]
		if g == nil {
			continue
		}
		if cur.node == nil {
			if cur.requiresGrad {
				sum, err := accumulate(cur.grad, g)
				if err != nil {
					return errors.WithMessagef(err, "accumulating into a leaf")
				}
				cur.grad = sum
			}
			continue
		}
		inGrads, err := cur.node.backward(g)
		if err != nil {
			return errors.WithMessagef(err, "backward of %q", cur.node.name)
		}
		if len(inGrads) != len(cur.node.inputs) {
			return errors.Errorf("dense: backward of %q returned %d gradients for %d inputs", cur.node.name, len(inGrads), len(cur.node.inputs))
		}
		for j, in := range cur.node.inputs {
			if inGrads[j] == nil || !in.requiresGrad {
				continue
			}
			sum, err := accumulate(grads[in], inGrads[j])
			if err != nil {
				return errors.WithMessagef(err, "accumulating gradient of %q input #%d", cur.node.name, j)
			}
			grads[in] = sum
		}
	}
	return nil
}

// accumulate returns existing+add without mutating either; a nil existing
// returns add unchanged. Gradient arithmetic is raw: it never extends the
// autograd graph.
func accumulate(existing, add *Tensor) (*Tensor, error) {
	if existing == nil {
		return add, nil
	}
	return existing.addRaw(add)
}
