// Package comms defines the process-group and collective-communication
// surface consumed by the distributed tensor layer.
//
// The distributed layer never talks to a transport directly: it receives a
// Communicator and asks it for group geometry (WorldSize, LocalRank) and for
// the two differentiable collectives that move shards around. Implementations
// decide what a "process" is; comms/local runs every rank as a goroutine of
// one OS process, which is enough for tests and single-host simulation.
package comms

import (
	"github.com/meshgrad/meshgrad/backends"
)

// ParallelMode identifies a process subgroup used in collective operations.
// A process typically belongs to several groups at once (the global group,
// its data-parallel group, its tensor-parallel group); collectives name the
// group they run on.
type ParallelMode int

//go:generate go tool enumer -type ParallelMode -output=gen_parallelmode_enumer.go comms.go

const (
	// Global is the group of every process in the job.
	Global ParallelMode = iota

	// Data is the data-parallel group: ranks that hold replicas of the same
	// model shard and exchange gradients.
	Data

	// Pipeline is the pipeline-parallel group: ranks that hold successive
	// stages of the model.
	Pipeline

	// Tensor1D is the 1-D tensor-parallel group: ranks that hold slices of
	// the same parameter along one dimension.
	Tensor1D
)

// Group resolves the calling process's placement inside a parallel mode's
// process group.
type Group interface {
	// WorldSize is the number of participants in the mode's group.
	WorldSize(mode ParallelMode) int

	// LocalRank is the caller's rank in [0, WorldSize) inside the mode's
	// group.
	LocalRank(mode ParallelMode) int
}

// Collective performs the synchronous collectives of the distributed tensor
// layer. Both are differentiable: each direction's backward pass is the other
// direction's forward pass, run on the gradient.
//
// Calls block until every rank of the mode's group has joined the matching
// call. All ranks of a group must invoke collectives in the same order with
// the same mode and axis; implementations detect shape disagreements but not
// reordering.
type Collective interface {
	// GatherForwardSplitBackward reconstructs the full tensor from per-rank
	// shards: forward concatenates every rank's tensor in rank order along
	// axis, backward narrows the gradient back down to the caller's window.
	// Every rank receives the same full tensor. Negative axes count from the
	// end.
	GatherForwardSplitBackward(t backends.Tensor, mode ParallelMode, axis int) (backends.Tensor, error)

	// SplitForwardGatherBackward is the inverse: forward slices the caller's
	// rank window out of t along axis (the extent must divide evenly by the
	// group's world size), backward all-gathers the per-rank gradients back
	// into a full gradient.
	SplitForwardGatherBackward(t backends.Tensor, mode ParallelMode, axis int) (backends.Tensor, error)
}

// Communicator is the full communication surface a rank needs: group
// geometry plus collectives.
type Communicator interface {
	Group
	Collective
}
