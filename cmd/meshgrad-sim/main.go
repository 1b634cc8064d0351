// meshgrad-sim runs an in-process simulation of meshgrad's 1-D tensor
// partitioning: it shards a model weight and an activation across a set of
// local ranks, drives a few steps of wrapped arithmetic through the dispatch
// interceptor on every rank, round-trips the activation through
// gather/re-shard collectives each step, and prints a per-rank report.
//
// Useful to eyeball the shard/gather lifecycle without a multi-process setup:
//
//	meshgrad-sim -ranks=4 -steps=50 -rows=512 -cols=768 -pattern=RowParallelLinear
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/meshgrad/meshgrad/backends/dense"
	"github.com/meshgrad/meshgrad/comms"
	"github.com/meshgrad/meshgrad/comms/local"
	"github.com/meshgrad/meshgrad/pkg/core/distributed"
)

var (
	flagRanks = flag.Int("ranks", 2, "Number of simulated ranks in the process group.")
	flagSteps = flag.Int("steps", 20, "Number of simulated steps per rank. Each step runs wrapped "+
		"arithmetic on the local activation shard and then a full gather/re-shard round trip.")
	flagRows = flag.Int("rows", 256, "First dimension of the simulated weight and activation.")
	flagCols = flag.Int("cols", 512, "Second dimension of the simulated weight and activation.")
	flagPattern = flag.String("pattern", "ColumnParallelLinear", "Compute pattern used to shard the weight: one of "+
		strings.Join(distributed.ComputePatternStrings(), ", ")+".")
	flagEngine = flag.String("engine", "seed=42", "Configuration for the dense engine, comma-separated key=value pairs.")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)

	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)
)

func newPlainTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row < 0 {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagRanks < 1 || *flagSteps < 1 {
		klog.Errorf("-ranks and -steps must be at least 1. See 'meshgrad-sim -help'.")
		os.Exit(1)
	}
	if *flagRows < 1 || *flagCols < 1 {
		klog.Errorf("-rows and -cols must be at least 1. See 'meshgrad-sim -help'.")
		os.Exit(1)
	}
	pattern := must.M1(distributed.ComputePatternString(*flagPattern))
	if pattern == distributed.DataParallel {
		klog.Errorf("-pattern=DataParallel does not shard; pick one of the tensor-parallel patterns.")
		os.Exit(1)
	}
	extent := *flagRows
	if pattern == distributed.RowParallelLinear || pattern == distributed.ColumnParallelEmbedding {
		extent = *flagCols
	}
	if extent%*flagRanks != 0 {
		klog.Errorf("The sharded dimension (%d) must divide evenly by -ranks=%d.", extent, *flagRanks)
		os.Exit(1)
	}
	run(pattern)
}

// rankReport is what each simulated rank hands back for the final tables.
type rankReport struct {
	weightDims     []int
	weightBytes    uint64
	activationMean float32
}

func run(pattern distributed.ComputePattern) {
	engine := dense.New(*flagEngine).(*dense.Engine)
	world := local.NewWorld(engine, *flagRanks)
	spec := distributed.NewTensorSpec(distributed.ParallelAction{
		Pattern: pattern,
		Mode:    comms.Tensor1D,
	})
	interceptor := distributed.NewInterceptor(nil)

	rows, cols, steps := *flagRows, *flagCols, *flagSteps
	full := make([]float32, rows*cols)
	for i := range full {
		full[i] = float32(i%101) / 100
	}

	bar := progressbar.NewOptions(steps,
		progressbar.OptionSetDescription("simulating"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("steps"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
	)

	start := time.Now()
	reports := make([]rankReport, world.Size())
	var wg sync.WaitGroup
	for rank := 0; rank < world.Size(); rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			reports[rank] = simulateRank(engine, world.Comm(rank), interceptor, spec, full, rows, cols, steps, func() {
				if rank == 0 {
					_ = bar.Add(1)
				}
			})
		}(rank)
	}
	wg.Wait()
	_ = bar.Finish()
	elapsed := time.Since(start)

	fmt.Println()
	fmt.Println(titleStyle.Render("meshgrad simulation"))
	config := newPlainTable(false)
	config.Row("engine", engine.Description())
	config.Row("ranks", humanize.Comma(int64(world.Size())))
	config.Row("steps", humanize.Comma(int64(steps)))
	config.Row("weight", fmt.Sprintf("%dx%d float32", rows, cols))
	config.Row("pattern", pattern.String())
	config.Row("elapsed", elapsed.Round(time.Millisecond).String())
	config.Row("rate", fmt.Sprintf("%.0f steps/s", float64(steps*world.Size())/elapsed.Seconds()))
	fmt.Println(config.Render())

	perRank := newPlainTable(true)
	perRank.Headers("Rank", "Weight Shard", "Shard Bytes", "Activation Mean")
	for rank, report := range reports {
		perRank.Row(
			humanize.Comma(int64(rank)),
			fmt.Sprintf("%v", report.weightDims),
			humanize.IBytes(report.weightBytes),
			fmt.Sprintf("%.4f", report.activationMean),
		)
	}
	fmt.Println(perRank.Render())
}

// simulateRank is the per-rank body: shard the weight, then per step run
// (act+act)/2 through the interceptor, take its mean, and round-trip the
// activation through gather and re-shard. All ranks must run it
// concurrently, the collectives block until the whole group arrives.
func simulateRank(engine *dense.Engine, comm comms.Communicator, interceptor *distributed.Interceptor,
	spec distributed.TensorSpec, full []float32, rows, cols, steps int, onStep func()) rankReport {

	weight := distributed.FromNative(engine, comm,
		must.M1(engine.FromFlat(full, rows, cols)), true, distributed.ModelData)
	weight.SetSpec(spec, true)

	activation := distributed.FromNative(engine, comm,
		must.M1(engine.FromFlat(full, rows, cols)), true, distributed.NonModelData)
	activation.SetSpec(spec, true)

	var mean float32
	for step := 0; step < steps; step++ {
		doubled := must.M1(interceptor.Intercept("add", []any{activation, activation}, nil))
		halved := must.M1(interceptor.Intercept("div", []any{doubled, 2.0}, nil))
		loss := must.M1(interceptor.Intercept("mean", []any{halved}, nil))
		mean = loss.(*distributed.Tensor).Native().(*dense.Tensor).Flat().([]float32)[0]

		activation.Gather()
		activation.SetSpec(spec, true)
		onStep()
	}

	return rankReport{
		weightDims:     weight.Dims(),
		weightBytes:    uint64(weight.Shape().Memory()),
		activationMean: mean,
	}
}
