package distributed

import (
	"sync"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"

	"github.com/meshgrad/meshgrad/backends"
	"github.com/meshgrad/meshgrad/backends/dense"
	"github.com/meshgrad/meshgrad/comms"
	"github.com/meshgrad/meshgrad/comms/local"
	"github.com/meshgrad/meshgrad/pkg/core/shapes"
	"github.com/meshgrad/meshgrad/pkg/support/xslices"
)

func init() {
	klog.InitFlags(nil)
}

// testWorld returns a dense engine plus an in-process world of the given
// size.
func testWorld(t *testing.T, size int) (*dense.Engine, *local.World) {
	t.Helper()
	engine, ok := dense.New("seed=42,workers=2").(*dense.Engine)
	require.True(t, ok)
	return engine, local.NewWorld(engine, size)
}

// single returns an engine and the communicator of a one-rank world, for
// tests with no cross-rank traffic.
func single(t *testing.T) (*dense.Engine, comms.Communicator) {
	engine, world := testWorld(t, 1)
	return engine, world.Comm(0)
}

// wrap builds a materialized wrapped tensor from flat float32 data.
func wrap(t *testing.T, engine *dense.Engine, comm comms.Communicator, flat []float32, dims ...int) *Tensor {
	t.Helper()
	native, err := engine.FromFlat(flat, dims...)
	require.NoError(t, err)
	return FromNative(engine, comm, native, true, NonModelData)
}

// flatOf reads the flat float32 storage of a wrapped tensor.
func flatOf(t *testing.T, w *Tensor) []float32 {
	t.Helper()
	require.True(t, w.IsMaterialized())
	return w.Native().(*dense.Tensor).Flat().([]float32)
}

func ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i)
	}
	return out
}

// spec1D builds a spec with one action per pattern, all on the Tensor1D
// group.
func spec1D(patterns ...ComputePattern) TensorSpec {
	actions := make([]ParallelAction, len(patterns))
	for i, p := range patterns {
		actions[i] = ParallelAction{Pattern: p, Mode: comms.Tensor1D}
	}
	return NewTensorSpec(actions...)
}

func TestNewDeferred(t *testing.T) {
	engine, comm := single(t)
	w := New(engine, comm, dtypes.Float32, 2, 3)
	require.False(t, w.IsMaterialized())
	require.Equal(t, shapes.Make(dtypes.Float32, 2, 3), w.Shape())
	require.Equal(t, []int{2, 3}, w.Dims())
	require.Equal(t, 6, w.Numel())
	require.Equal(t, 2, w.Rank())
	require.True(t, w.IsGathered())
	require.False(t, w.HasSpec())
	require.True(t, w.IsActivation())
	require.Equal(t, Unsharded, w.Pattern())

	native := w.Native()
	require.True(t, w.IsMaterialized())
	require.Equal(t, []float32{0, 0, 0, 0, 0, 0}, native.(*dense.Tensor).Flat().([]float32))
	require.True(t, native == w.Native())
}

func TestNewPanics(t *testing.T) {
	engine, comm := single(t)
	require.Panics(t, func() { New(nil, comm, dtypes.Float32, 2) })
	require.Panics(t, func() { New(engine, nil, dtypes.Float32, 2) })
	require.Panics(t, func() { New(engine, comm, dtypes.Float32, 2, -1) })
}

func TestWithChain(t *testing.T) {
	engine, comm := single(t)
	w := New(engine, comm, dtypes.Float32, 4).
		WithRequiresGrad(true).
		WithCategory(ModelData)
	require.True(t, w.RequiresGrad())
	require.Equal(t, ModelData, w.Category())
	require.False(t, w.IsActivation())

	require.True(t, w.Native().RequiresGrad())
	require.Panics(t, func() { w.WithRequiresGrad(false) })
	require.Panics(t, func() { w.WithDevice(0) })
	require.Panics(t, func() { w.WithPinned(true) })
	require.Panics(t, func() { w.WithCategory(NonModelData) })
}

func TestFromNative(t *testing.T) {
	engine, comm := single(t)
	native, err := engine.FromFlat([]float32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)

	kept := FromNative(engine, comm, native, true, ModelData)
	require.True(t, kept.IsMaterialized())
	require.True(t, kept.Native() == native)
	require.Equal(t, ModelData, kept.Category())
	require.Equal(t, []int{2, 2}, kept.Dims())
	require.Equal(t, dtypes.Float32, kept.DType())

	// Without savePayload the shape survives but the values don't: the next
	// access allocates fresh zeroed storage.
	dropped := FromNative(engine, comm, native, false, NonModelData)
	require.False(t, dropped.IsMaterialized())
	require.Equal(t, []int{2, 2}, dropped.Dims())
	require.Equal(t, []float32{0, 0, 0, 0}, dropped.Native().(*dense.Tensor).Flat().([]float32))
}

func TestReleaseStorage(t *testing.T) {
	engine, comm := single(t)
	w := wrap(t, engine, comm, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	w.ReleaseStorage(true)
	require.False(t, w.IsMaterialized())
	require.Equal(t, []int{2, 3}, w.Dims())
	require.Equal(t, []float32{0, 0, 0, 0, 0, 0}, w.Native().(*dense.Tensor).Flat().([]float32))

	w.ReleaseStorage(false)
	require.False(t, w.IsMaterialized())
	require.Equal(t, []int{0}, w.Dims())
	require.Equal(t, 0, w.Numel())
}

func TestShardPatterns(t *testing.T) {
	rowHalf := func(rank int) []float32 {
		return ramp(24)[rank*12 : (rank+1)*12]
	}
	colHalf := func(rank int) []float32 {
		out := make([]float32, 0, 12)
		for r := 0; r < 4; r++ {
			for c := 0; c < 3; c++ {
				out = append(out, float32(r*6+rank*3+c))
			}
		}
		return out
	}
	cases := []struct {
		pattern ComputePattern
		want    ShardPattern
		dims    []int
		flat    func(rank int) []float32
	}{
		{ColumnParallelLinear, RowSharded, []int{2, 6}, rowHalf},
		{RowParallelEmbedding, RowSharded, []int{2, 6}, rowHalf},
		{RowParallelLinear, ColumnSharded, []int{4, 3}, colHalf},
		{ColumnParallelEmbedding, ColumnSharded, []int{4, 3}, colHalf},
	}
	engine, world := testWorld(t, 2)
	for _, test := range cases {
		t.Run(test.pattern.String(), func(t *testing.T) {
			// Sharding is rank-local (no collective), so the ranks can run
			// sequentially.
			for rank := 0; rank < 2; rank++ {
				w := wrap(t, engine, world.Comm(rank), ramp(24), 4, 6)
				w.SetSpec(spec1D(test.pattern), true)
				require.Equal(t, test.want, w.Pattern())
				require.False(t, w.IsGathered())
				require.True(t, w.HasSpec())
				require.Equal(t, test.dims, w.Dims())
				require.Equal(t, test.flat(rank), flatOf(t, w))
			}
		})
	}
}

func TestShardKeepsGradFlag(t *testing.T) {
	engine, world := testWorld(t, 2)
	native, err := engine.FromFlat(ramp(8), 4, 2)
	require.NoError(t, err)
	native.SetRequiresGrad(true)
	w := FromNative(engine, world.Comm(0), native, true, ModelData)
	w.SetSpec(spec1D(ColumnParallelLinear), true)

	require.True(t, w.RequiresGrad())
	require.True(t, w.Native().RequiresGrad())
	// The shard is a new leaf, not a view into the original graph.
	require.True(t, w.Native() != native)
	require.Nil(t, w.Native().(*dense.Tensor).GradDense())
}

func TestShardActionCount(t *testing.T) {
	engine, world := testWorld(t, 2)

	noSpec := wrap(t, engine, world.Comm(0), ramp(24), 4, 6)
	require.Panics(t, func() { noSpec.Shard() })

	twoActions := wrap(t, engine, world.Comm(0), ramp(24), 4, 6)
	twoActions.WithSpec(spec1D(ColumnParallelLinear, RowParallelLinear))
	require.Panics(t, func() { twoActions.Shard() })

	unknown := wrap(t, engine, world.Comm(0), ramp(24), 4, 6)
	unknown.WithSpec(spec1D(DataParallel))
	require.Panics(t, func() { unknown.Shard() })
}

func TestShardUnevenNoMutation(t *testing.T) {
	engine, world := testWorld(t, 2)
	w := wrap(t, engine, world.Comm(0), ramp(15), 5, 3)
	w.WithSpec(spec1D(ColumnParallelLinear))
	require.Panics(t, func() { w.Shard() })
	require.Equal(t, Unsharded, w.Pattern())
	require.True(t, w.IsGathered())
	require.Equal(t, []int{5, 3}, w.Dims())
	require.Equal(t, ramp(15), flatOf(t, w))

	// The division check runs before allocation, so a deferred tensor stays
	// deferred.
	deferred := New(engine, world.Comm(0), dtypes.Float32, 5, 3).WithSpec(spec1D(ColumnParallelLinear))
	require.Panics(t, func() { deferred.Shard() })
	require.False(t, deferred.IsMaterialized())
}

func TestGatherRoundTrip(t *testing.T) {
	for _, pattern := range []ComputePattern{ColumnParallelLinear, RowParallelLinear} {
		t.Run(pattern.String(), func(t *testing.T) {
			engine, world := testWorld(t, 2)
			ws := make([]*Tensor, 2)
			for rank := range ws {
				ws[rank] = wrap(t, engine, world.Comm(rank), ramp(24), 4, 6)
				ws[rank].SetSpec(spec1D(pattern), true)
			}

			var wg sync.WaitGroup
			for _, w := range ws {
				wg.Add(1)
				go func(w *Tensor) {
					defer wg.Done()
					w.Gather()
				}(w)
			}
			wg.Wait()

			for _, w := range ws {
				require.True(t, w.IsGathered())
				require.Equal(t, Unsharded, w.Pattern())
				require.Equal(t, []int{4, 6}, w.Dims())
				require.Equal(t, ramp(24), flatOf(t, w))
			}
		})
	}
}

func TestReshardMatchesDirectShard(t *testing.T) {
	engine, world := testWorld(t, 2)
	specRow := spec1D(ColumnParallelLinear)
	specCol := spec1D(RowParallelLinear)

	ws := make([]*Tensor, 2)
	for rank := range ws {
		ws[rank] = wrap(t, engine, world.Comm(rank), ramp(24), 4, 6)
		ws[rank].SetSpec(specRow, true)
	}

	// Re-sharding gathers first, which needs all ranks in the collective.
	var wg sync.WaitGroup
	for _, w := range ws {
		wg.Add(1)
		go func(w *Tensor) {
			defer wg.Done()
			w.SetSpec(specCol, true)
		}(w)
	}
	wg.Wait()

	for rank, w := range ws {
		direct := wrap(t, engine, world.Comm(rank), ramp(24), 4, 6)
		direct.SetSpec(specCol, true)
		require.Equal(t, ColumnSharded, w.Pattern())
		require.Equal(t, direct.Dims(), w.Dims())
		require.Equal(t, flatOf(t, direct), flatOf(t, w))
	}
}

func TestGatherPreconditions(t *testing.T) {
	engine, world := testWorld(t, 2)

	// ModelData fails the activation check no matter the shard state.
	param := FromNative(engine, world.Comm(0), mustFlat(t, engine, ramp(24), 4, 6), true, ModelData)
	param.SetSpec(spec1D(ColumnParallelLinear), true)
	require.Panics(t, func() { param.Gather() })
	unshardedParam := FromNative(engine, world.Comm(0), mustFlat(t, engine, ramp(4), 4), true, ModelData)
	require.Panics(t, func() { unshardedParam.Gather() })

	// An unsharded activation has nothing to gather.
	activation := wrap(t, engine, world.Comm(0), ramp(4), 4)
	require.Panics(t, func() { activation.Gather() })

	// A sharded activation whose spec was cleared cannot pick a process
	// group.
	cleared := wrap(t, engine, world.Comm(0), ramp(24), 4, 6)
	cleared.SetSpec(spec1D(ColumnParallelLinear), true)
	cleared.WithSpec(NewTensorSpec())
	require.Panics(t, func() { cleared.Gather() })
}

func mustFlat(t *testing.T, engine *dense.Engine, flat []float32, dims ...int) backends.Tensor {
	t.Helper()
	native, err := engine.FromFlat(flat, dims...)
	require.NoError(t, err)
	return native
}

func TestAdd(t *testing.T) {
	engine, comm := single(t)
	ones := wrap(t, engine, comm, xslices.SliceWithValue(6, float32(1)), 2, 3)
	twos := wrap(t, engine, comm, xslices.SliceWithValue(6, float32(2)), 2, 3)

	sum, err := ones.Add(twos)
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, sum.Dims())
	require.Equal(t, xslices.SliceWithValue(6, float32(3)), flatOf(t, sum))
	require.True(t, sum.IsActivation())
	require.True(t, sum.IsGathered())
	require.False(t, sum.HasSpec())

	sum2, err := ones.Add(mustFlat(t, engine, []float32{1, 1, 1, 1, 1, 1}, 2, 3))
	require.NoError(t, err)
	require.Equal(t, []float32{2, 2, 2, 2, 2, 2}, flatOf(t, sum2))
}

func TestAddTypeError(t *testing.T) {
	engine, comm := single(t)
	ones := wrap(t, engine, comm, []float32{1, 1}, 2)
	_, err := ones.Add("not a tensor")
	require.Error(t, err)
	require.Contains(t, err.Error(), "string")
}

func TestDiv(t *testing.T) {
	engine, comm := single(t)
	a := wrap(t, engine, comm, []float32{8, 6}, 2)
	b := wrap(t, engine, comm, []float32{2, 3}, 2)

	q, err := a.Div(b)
	require.NoError(t, err)
	require.Equal(t, []float32{4, 2}, flatOf(t, q))

	half, err := a.Div(2.0)
	require.NoError(t, err)
	require.Equal(t, []float32{4, 3}, flatOf(t, half))

	_, err = a.Div("not a divisor")
	require.Error(t, err)
}

func TestIndex(t *testing.T) {
	engine, comm := single(t)
	w := wrap(t, engine, comm, ramp(6), 2, 3)

	row, err := w.Index(1)
	require.NoError(t, err)
	require.Equal(t, []int{3}, row.Dims())
	require.Equal(t, []float32{3, 4, 5}, flatOf(t, row))

	_, err = w.Index(5)
	require.Error(t, err)
}

func TestBackwardThroughWrapper(t *testing.T) {
	engine, comm := single(t)
	native := mustFlat(t, engine, []float32{1, 2, 3}, 3)
	native.SetRequiresGrad(true)
	w := FromNative(engine, comm, native, true, ModelData)
	other := wrap(t, engine, comm, []float32{10, 20, 30}, 3)

	sum, err := w.Add(other)
	require.NoError(t, err)
	out, err := sum.Attr("sum").(backends.Func)(nil, nil)
	require.NoError(t, err)
	total := out.(*Tensor)
	require.NoError(t, total.Backward(nil))

	grad := w.Grad()
	require.NotNil(t, grad)
	require.Equal(t, []float32{1, 1, 1}, flatOf(t, grad))
	require.Nil(t, other.Grad())

	require.Error(t, total.Backward(42))
}

func TestNormalInit(t *testing.T) {
	engine, comm := single(t)
	w := New(engine, comm, dtypes.Float32, 4)
	require.NoError(t, w.NormalInit(1, 0))
	require.Equal(t, []float32{1, 1, 1, 1}, flatOf(t, w))

	ints := New(engine, comm, dtypes.Int32, 4)
	require.Error(t, ints.NormalInit(0, 1))
}

func TestAttrValues(t *testing.T) {
	engine, comm := single(t)
	w := wrap(t, engine, comm, ramp(6), 2, 3)
	require.Equal(t, shapes.Make(dtypes.Float32, 2, 3), w.Attr("shape"))
	require.Equal(t, dtypes.Float32, w.Attr("dtype"))
	require.Equal(t, 2, w.Attr("ndim"))
	require.Panics(t, func() { w.Attr("no_such_attribute") })
}

func TestAttrMaterializes(t *testing.T) {
	engine, comm := single(t)
	w := New(engine, comm, dtypes.Float32, 2, 2)
	require.False(t, w.IsMaterialized())
	require.Equal(t, 2, w.Attr("ndim"))
	require.True(t, w.IsMaterialized())
}

func TestAttrCallableRewraps(t *testing.T) {
	engine, comm := single(t)
	w := wrap(t, engine, comm, []float32{1, -2}, 2)

	neg := w.Attr("neg").(backends.Func)
	out, err := neg(nil, nil)
	require.NoError(t, err)
	negated, ok := out.(*Tensor)
	require.True(t, ok)
	require.Equal(t, []float32{-1, 2}, flatOf(t, negated))

	// Wrapped arguments are unwrapped before the native call.
	mul := w.Attr("mul").(backends.Func)
	out, err = mul([]any{wrap(t, engine, comm, []float32{3, 4}, 2)}, nil)
	require.NoError(t, err)
	require.Equal(t, []float32{3, -8}, flatOf(t, out.(*Tensor)))

	// Non-tensor results pass through unchanged.
	numel := w.Attr("numel").(backends.Func)
	out, err = numel(nil, nil)
	require.NoError(t, err)
	require.Equal(t, 2, out)

	_, err = neg([]any{1}, nil)
	require.Error(t, err)
}

func TestString(t *testing.T) {
	engine, comm := single(t)
	w := New(engine, comm, dtypes.Float32, 2, 3)
	require.Equal(t, "distributed.Tensor<(Float32)[2 3] Unsharded NonModelData>", w.String())
}
