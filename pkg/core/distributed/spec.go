package distributed

import (
	"github.com/meshgrad/meshgrad/comms"
)

// Category distinguishes persistent model parameters from transient
// activations. It is set at construction and never changes; gathering is only
// valid for activations, whose full value is cheap to reconstruct and drop.
type Category int

//go:generate go tool enumer -type Category -output=gen_category_enumer.go spec.go

const (
	// NonModelData marks activations and other transient values. It is the
	// default category.
	NonModelData Category = iota

	// ModelData marks persistent parameters (weights, embeddings).
	ModelData
)

// ComputePattern names the parallel strategy a partition action serves. The
// pattern decides which dimension of the tensor is sharded: weight layouts
// for linear and embedding layers are transposed relative to each other, so
// "column parallel" does not always mean the last storage dimension.
type ComputePattern int

//go:generate go tool enumer -type ComputePattern -output=gen_computepattern_enumer.go spec.go

const (
	// DataParallel replicates the tensor and is the group gather runs on.
	DataParallel ComputePattern = iota

	// RowParallelLinear splits a linear layer's weight by input rows. The
	// stored weight is transposed relative to its use, so its storage is
	// sharded along the last dimension.
	RowParallelLinear

	// ColumnParallelLinear splits a linear layer's weight by output columns,
	// sharding storage along the first dimension.
	ColumnParallelLinear

	// RowParallelEmbedding splits an embedding table by rows (vocabulary),
	// sharding storage along the first dimension.
	RowParallelEmbedding

	// ColumnParallelEmbedding splits an embedding table by columns (feature
	// dimension), sharding storage along the last dimension.
	ColumnParallelEmbedding
)

// ShardPattern is the current physical partition state of a tensor's
// storage.
type ShardPattern int

//go:generate go tool enumer -type ShardPattern -output=gen_shardpattern_enumer.go spec.go

const (
	// Unsharded means the storage holds the full logical tensor.
	Unsharded ShardPattern = iota

	// RowSharded means the storage holds this rank's slice along the first
	// dimension.
	RowSharded

	// ColumnSharded means the storage holds this rank's slice along the last
	// dimension.
	ColumnSharded
)

// ParallelAction declares one partition action of a TensorSpec: the compute
// pattern it serves and the process group that performs it.
type ParallelAction struct {
	Pattern ComputePattern
	Mode    comms.ParallelMode
}

// TensorSpec declares how a tensor should be partitioned. The zero value
// declares no partitioning.
//
// A spec holds zero or more partition actions keyed by compute pattern.
// Sharding currently handles specs with exactly one action; gather
// additionally looks up the DataParallel action for its process group.
type TensorSpec struct {
	actions []ParallelAction
}

// NewTensorSpec builds a spec from partition actions.
func NewTensorSpec(actions ...ParallelAction) TensorSpec {
	return TensorSpec{actions: append([]ParallelAction{}, actions...)}
}

// NumActions is the number of declared partition actions.
func (s TensorSpec) NumActions() int { return len(s.actions) }

// Actions returns the declared partition actions in declaration order.
func (s TensorSpec) Actions() []ParallelAction {
	return append([]ParallelAction{}, s.actions...)
}

// ActionFor returns the first declared action with the given compute
// pattern. The second result is false when the spec declares none.
func (s TensorSpec) ActionFor(pattern ComputePattern) (ParallelAction, bool) {
	for _, a := range s.actions {
		if a.Pattern == pattern {
			return a, true
		}
	}
	return ParallelAction{}, false
}
