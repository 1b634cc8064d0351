// Package distributed implements a distributed-aware wrapped tensor: a
// native engine tensor plus lazy materialization, a 1-D shard/gather state
// machine over a process group, and an interception layer that lets numeric
// operations run transparently on wrapped values.
//
// - Tensor: the wrapped tensor. It owns identity (shape, dtype, device,
// gradient flag), lazily materialized storage and layout metadata (a
// TensorSpec plus the current ShardPattern).
// - TensorSpec / ParallelAction: declarative partition layout, keyed by
// ComputePattern.
// - Interceptor / Registry: operation dispatch, either to registered custom
// handlers or through unwrap-invoke-rewrap over the native engine.
package distributed

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"k8s.io/klog/v2"

	"github.com/meshgrad/meshgrad/backends"
	"github.com/meshgrad/meshgrad/comms"
	"github.com/meshgrad/meshgrad/pkg/core/shapes"
)

// Tensor wraps a native engine tensor with distribution state.
//
// A Tensor is single-owner: one goroutine builds it, shards it, gathers it.
// The distribution happens across processes (ranks), not across goroutines
// sharing one value; every rank owns the wrapped tensor for its own shard.
type Tensor struct {
	// dims is the logical shape. It tracks the local storage shape except in
	// the deferred-allocation and released-storage states, where no storage
	// exists yet.
	dims   []int
	dtype  dtypes.DType
	device backends.DeviceNum
	pinned bool

	requiresGrad bool
	category     Category

	engine backends.Engine
	comm   comms.Communicator

	// payload is the native tensor; nil means not yet materialized.
	payload backends.Tensor

	spec    TensorSpec
	pattern ShardPattern
}

// New creates a wrapped tensor without allocating storage; the first access
// to the native payload materializes it. The tensor starts as an unsharded
// activation (NonModelData) on device 0; use the With chain to change that
// before materialization.
func New(engine backends.Engine, comm comms.Communicator, dtype dtypes.DType, dims ...int) *Tensor {
	if engine == nil || comm == nil {
		exceptions.Panicf("distributed: New requires an engine and a communicator")
	}
	for _, d := range dims {
		if d < 0 {
			exceptions.Panicf("distributed: negative dimension in %v", dims)
		}
	}
	return &Tensor{
		dims:   append([]int{}, dims...),
		dtype:  dtype,
		engine: engine,
		comm:   comm,
	}
}

// FromNative wraps an existing native tensor, taking over its shape, dtype,
// device, pinning and gradient flag. With savePayload the native tensor
// becomes the wrapped tensor's storage; without it the storage is dropped
// and re-materialized lazily (zero-initialized) on next access.
func FromNative(engine backends.Engine, comm comms.Communicator, native backends.Tensor, savePayload bool, category Category) *Tensor {
	if engine == nil || comm == nil || native == nil {
		exceptions.Panicf("distributed: FromNative requires an engine, a communicator and a native tensor")
	}
	t := &Tensor{
		dims:         append([]int{}, native.Shape().Dimensions...),
		dtype:        native.DType(),
		device:       native.Device(),
		pinned:       native.Pinned(),
		requiresGrad: native.RequiresGrad(),
		category:     category,
		engine:       engine,
		comm:         comm,
	}
	if savePayload {
		t.payload = native
	}
	return t
}

func (t *Tensor) mustBeUnmaterialized(what string) {
	if t.payload != nil {
		exceptions.Panicf("distributed: %s must be set before the storage materializes", what)
	}
}

// WithDevice sets the allocation device. Panics after materialization.
func (t *Tensor) WithDevice(device backends.DeviceNum) *Tensor {
	t.mustBeUnmaterialized("the device")
	t.device = device
	return t
}

// WithPinned sets the page-locked allocation flag. Panics after
// materialization.
func (t *Tensor) WithPinned(pinned bool) *Tensor {
	t.mustBeUnmaterialized("pinning")
	t.pinned = pinned
	return t
}

// WithRequiresGrad sets the gradient flag. Panics after materialization.
func (t *Tensor) WithRequiresGrad(requiresGrad bool) *Tensor {
	t.mustBeUnmaterialized("the gradient flag")
	t.requiresGrad = requiresGrad
	return t
}

// WithCategory sets the data category. Panics after materialization.
func (t *Tensor) WithCategory(category Category) *Tensor {
	t.mustBeUnmaterialized("the category")
	t.category = category
	return t
}

// WithSpec sets the layout spec without sharding, for use in construction
// chains. SetSpec shards on demand.
func (t *Tensor) WithSpec(spec TensorSpec) *Tensor {
	t.spec = spec
	return t
}

// Shape is the logical shape. In the released-storage state this can be
// ahead of the (missing) storage; everywhere else the two agree.
func (t *Tensor) Shape() shapes.Shape { return shapes.Make(t.dtype, t.dims...) }

// Dims returns a copy of the logical dimensions.
func (t *Tensor) Dims() []int { return append([]int{}, t.dims...) }

// DType of the elements.
func (t *Tensor) DType() dtypes.DType { return t.dtype }

// Device the storage is (or will be) allocated on.
func (t *Tensor) Device() backends.DeviceNum { return t.device }

// Pinned reports whether storage is (or will be) page-locked.
func (t *Tensor) Pinned() bool { return t.pinned }

// RequiresGrad reports whether the tensor participates in gradient
// accumulation.
func (t *Tensor) RequiresGrad() bool { return t.requiresGrad }

// Category of the tensor's data.
func (t *Tensor) Category() Category { return t.category }

// Spec returns the current layout spec.
func (t *Tensor) Spec() TensorSpec { return t.spec }

// Pattern returns the current physical partition state.
func (t *Tensor) Pattern() ShardPattern { return t.pattern }

// Numel is the number of elements of the logical shape.
func (t *Tensor) Numel() int {
	n := 1
	for _, d := range t.dims {
		n *= d
	}
	return n
}

// Rank is the number of dimensions.
func (t *Tensor) Rank() int { return len(t.dims) }

// IsGathered reports whether the storage holds the full logical tensor
// (true from construction until the first successful Shard).
func (t *Tensor) IsGathered() bool { return t.pattern == Unsharded }

// HasSpec reports whether a layout spec with at least one partition action
// is set.
func (t *Tensor) HasSpec() bool { return t.spec.NumActions() > 0 }

// IsActivation reports whether the tensor holds transient (NonModelData)
// values.
func (t *Tensor) IsActivation() bool { return t.category == NonModelData }

// IsMaterialized reports whether native storage currently exists.
func (t *Tensor) IsMaterialized() bool { return t.payload != nil }

// String implements fmt.Stringer with a short description, not the data.
func (t *Tensor) String() string {
	return fmt.Sprintf("distributed.Tensor<%s %s %s>", t.Shape(), t.pattern, t.category)
}

// Native returns the underlying native tensor, allocating it on first
// access. Once materialized the same payload is returned until the storage
// is released or replaced by Shard/Gather. Allocation failures are fatal.
func (t *Tensor) Native() backends.Tensor {
	if t.payload != nil {
		return t.payload
	}
	shape := t.Shape()
	native, err := t.engine.Empty(shape, backends.AllocOptions{
		Device:       t.device,
		Pinned:       t.pinned,
		RequiresGrad: t.requiresGrad,
	})
	if err != nil {
		exceptions.Panicf("distributed: materializing %s failed: %v", shape, err)
	}
	klog.V(1).Infof("distributed: materialized %s on %q (%s)",
		shape, t.engine.Name(), humanize.IBytes(uint64(shape.Memory())))
	t.payload = native
	return t.payload
}

// ReleaseStorage drops the native storage. With saveShape the logical
// dimensions survive and the next access reallocates them; without it the
// tensor resets to a single zero-length dimension.
func (t *Tensor) ReleaseStorage(saveShape bool) {
	if !saveShape {
		t.dims = []int{0}
	}
	t.payload = nil
}

// SetSpec stores a new layout spec; with shard set, the tensor is
// immediately re-partitioned under it.
func (t *Tensor) SetSpec(spec TensorSpec, shard bool) {
	t.spec = spec
	if shard {
		t.Shard()
	}
}

// Shard transitions the tensor into the partitioned state its layout spec
// declares: this rank keeps only its contiguous slice of the storage. A
// tensor that is already sharded is gathered first, so the new partition
// always derives from the full tensor. An uneven division panics before any
// state changes.
//
// Panics on a spec without exactly one partition action and on compute
// patterns with no sharding rule.
func (t *Tensor) Shard() {
	if t.pattern != Unsharded {
		// Restore the full tensor before partitioning it differently.
		t.Gather()
	}
	switch n := t.spec.NumActions(); {
	case n == 0:
		exceptions.Panicf("distributed: sharding %s requires a layout spec with a partition action", t)
	case n > 1:
		exceptions.Panicf("distributed: layout specs with %d partition actions are not supported, declare exactly one", n)
	}
	action := t.spec.actions[0]
	switch action.Pattern {
	case RowParallelLinear, ColumnParallelEmbedding:
		// These patterns store the weight transposed relative to its use,
		// so the parallel dimension is the last one.
		t.shardAlong(action, -1, ColumnSharded)
	case ColumnParallelLinear, RowParallelEmbedding:
		t.shardAlong(action, 0, RowSharded)
	default:
		exceptions.Panicf("distributed: sharding for compute pattern %s is not implemented", action.Pattern)
	}
}

// shardAlong replaces the storage with this rank's slice along axis. The
// slice is detached from the full tensor's autograd graph and becomes an
// independent leaf; the requires-grad flag carries over to it.
func (t *Tensor) shardAlong(action ParallelAction, axis int, pattern ShardPattern) {
	worldSize := t.comm.WorldSize(action.Mode)
	rank := t.comm.LocalRank(action.Mode)
	adjusted := shapes.AdjustAxis(axis, len(t.dims))
	chunk := shapes.ExactDiv(t.dims[adjusted], worldSize)

	slice, err := t.Native().Narrow(adjusted, rank*chunk, chunk)
	if err != nil {
		exceptions.Panicf("distributed: sharding %s along axis %d failed: %v", t, axis, err)
	}
	local := slice.Detach().Contiguous()
	local.SetRequiresGrad(t.requiresGrad)
	t.payload = local
	t.dims = append([]int{}, local.Shape().Dimensions...)
	t.pattern = pattern
}

// Gather reconstructs the full tensor from the ranks' shards: rank-order
// concatenation along the sharded dimension on the forward pass, the
// reverse split on the backward pass. The collective runs on the process
// group of the spec's DataParallel action when one is declared, otherwise
// on the group of the action the tensor was sharded under.
//
// Only sharded activation tensors can be gathered; anything else panics.
func (t *Tensor) Gather() {
	if !t.IsActivation() {
		exceptions.Panicf("distributed: only activation tensors can be gathered, %s holds %s", t, t.category)
	}
	if t.IsGathered() {
		exceptions.Panicf("distributed: gathering %s: the tensor is not sharded", t)
	}
	if t.spec.NumActions() == 0 {
		exceptions.Panicf("distributed: gathering %s without a layout spec", t)
	}
	action, ok := t.spec.ActionFor(DataParallel)
	if !ok {
		action = t.spec.actions[0]
	}
	axis := 0
	if t.pattern == ColumnSharded {
		axis = -1
	}
	full, err := t.comm.GatherForwardSplitBackward(t.Native(), action.Mode, axis)
	if err != nil {
		exceptions.Panicf("distributed: gathering %s failed: %v", t, err)
	}
	t.payload = full
	t.dims = append([]int{}, full.Shape().Dimensions...)
	t.pattern = Unsharded
}
