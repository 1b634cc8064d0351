package distributed

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshgrad/meshgrad/comms"
)

func TestTensorSpec(t *testing.T) {
	var zero TensorSpec
	require.Equal(t, 0, zero.NumActions())
	require.Empty(t, zero.Actions())
	_, ok := zero.ActionFor(DataParallel)
	require.False(t, ok)

	spec := NewTensorSpec(
		ParallelAction{Pattern: ColumnParallelLinear, Mode: comms.Tensor1D},
		ParallelAction{Pattern: DataParallel, Mode: comms.Data},
	)
	require.Equal(t, 2, spec.NumActions())
	action, ok := spec.ActionFor(DataParallel)
	require.True(t, ok)
	require.Equal(t, comms.Data, action.Mode)
	_, ok = spec.ActionFor(RowParallelLinear)
	require.False(t, ok)
}

func TestTensorSpecCopies(t *testing.T) {
	actions := []ParallelAction{{Pattern: ColumnParallelLinear, Mode: comms.Tensor1D}}
	spec := NewTensorSpec(actions...)

	// Neither the constructor argument nor the accessor result alias the
	// spec's own list.
	actions[0].Pattern = DataParallel
	_, ok := spec.ActionFor(ColumnParallelLinear)
	require.True(t, ok)

	got := spec.Actions()
	got[0].Pattern = DataParallel
	_, ok = spec.ActionFor(ColumnParallelLinear)
	require.True(t, ok)
}

func TestEnumStrings(t *testing.T) {
	require.Equal(t, "Unsharded", Unsharded.String())
	require.Equal(t, "RowSharded", RowSharded.String())
	require.Equal(t, "NonModelData", NonModelData.String())
	require.Equal(t, "ColumnParallelEmbedding", ColumnParallelEmbedding.String())

	pattern, err := ComputePatternString("RowParallelLinear")
	require.NoError(t, err)
	require.Equal(t, RowParallelLinear, pattern)
	_, err = ComputePatternString("Bogus")
	require.Error(t, err)
}
