// Package backends defines the interface a native tensor engine needs to
// implement to back meshgrad's distributed tensors, and a registry to select
// among implementations.
//
// An engine owns storage, arithmetic, autograd and the dynamic operation
// table of its tensors. The distributed wrapper (pkg/core/distributed) never
// touches data directly: it goes through these interfaces.
//
// Engines that don't implement every method can embed the stubs from
// github.com/meshgrad/meshgrad/backends/notimplemented and still serve
// callers that don't reach the missing parts.
package backends

import (
	"os"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/meshgrad/meshgrad/pkg/core/shapes"
)

// ErrNotImplemented indicates an engine doesn't implement an operation.
//
// It doesn't carry a stack; attach one with errors.Wrapf(ErrNotImplemented, "...")
// when returning it.
var ErrNotImplemented = errors.New("not implemented")

// DeviceNum identifies which device holds a tensor's storage. It is up to the
// engine to interpret it, but it should be between 0 and Engine.NumDevices.
type DeviceNum int

// AllocOptions describes the placement and gradient flags of a fresh tensor.
// The zero value means device 0, not pinned, no gradient tracking.
type AllocOptions struct {
	Device       DeviceNum
	Pinned       bool
	RequiresGrad bool
}

// Func is the uniform calling convention for dynamically-dispatched native
// operations: positional arguments plus keyword arguments, returning a single
// value (which may itself be a []any for multi-output operations).
type Func func(args []any, kwargs map[string]any) (any, error)

// Op identifies a native operation of an engine together with its
// implementation. Values are obtained from Engine.Op and passed to the
// dispatch interceptor.
type Op struct {
	Name string
	Call Func
}

// Engine is the API a native tensor engine implements.
type Engine interface {
	// Name returns the short name the engine was registered under. E.g.: "dense".
	Name() string

	// Description is a longer description of the engine for pretty-printing.
	Description() string

	// NumDevices returns the number of devices available for this engine.
	NumDevices() DeviceNum

	// Empty allocates a zero-initialized tensor of the given shape.
	Empty(shape shapes.Shape, opts AllocOptions) (Tensor, error)

	// FromFlat builds a tensor on device 0 from a flat slice ([]float32,
	// []float64, []int32, []int64 or []float16.Float16) and dimensions.
	// The flat data is copied.
	FromFlat(flat any, dimensions ...int) (Tensor, error)

	// Concat concatenates the inputs along the given axis, which may be
	// negative. All inputs must share dtype and the remaining dimensions.
	Concat(axis int, inputs ...Tensor) (Tensor, error)

	// Op looks up a native operation by name in the engine's dynamic
	// operation table.
	Op(name string) (Op, bool)
}

// Constructor takes a config string (optionally empty) and returns an Engine.
// Constructors panic (with an exception) on malformed configs.
type Constructor func(config string) Engine

var (
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register an engine under the given name with its constructor. The last
// registration of a name wins.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// DefaultConfig is the engine configuration to use when MESHGRAD_BACKEND is
// not set. See NewWithConfig for the format.
var DefaultConfig string

// MESHGRAD_BACKEND is the environment variable with the default engine
// configuration.
//
// The format of the config is "<engine_name>:<engine_configuration>".
// "<engine_name>" is a registered engine (e.g.: "dense") and
// "<engine_configuration>" is engine specific (e.g.: for dense,
// "seed=42,workers=4").
const MESHGRAD_BACKEND = "MESHGRAD_BACKEND"

// New returns a new default Engine.
//
// The default is:
//
// 1. The environment MESHGRAD_BACKEND is used as a configuration if defined.
// 2. Next the variable DefaultConfig is used as a configuration if defined.
// 3. The first registered engine is used with an empty configuration.
//
// It panics if no engine was registered.
func New() Engine {
	config, found := os.LookupEnv(MESHGRAD_BACKEND)
	if found {
		return NewWithConfig(config)
	}
	if DefaultConfig != "" {
		return NewWithConfig(DefaultConfig)
	}
	return NewWithConfig("")
}

// NewWithConfig creates an Engine from a configuration string formatted as
// "<engine_name>:<engine_configuration>". An empty engine name selects the
// first registered engine.
func NewWithConfig(config string) Engine {
	if len(registeredConstructors) == 0 {
		exceptions.Panicf(`no registered engines for meshgrad -- maybe import the default one with import _ "github.com/meshgrad/meshgrad/backends/dense"?`)
	}
	engineName := firstRegistered
	engineConfig := config
	if idx := strings.Index(config, ":"); idx != -1 {
		engineName = config[:idx]
		engineConfig = config[idx+1:]
	}
	constructor, found := registeredConstructors[engineName]
	if !found {
		exceptions.Panicf("can't find engine %q for configuration %q given", engineName, config)
	}
	return constructor(engineConfig)
}
