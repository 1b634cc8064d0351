package distributed

import (
	"reflect"
	"sort"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/meshgrad/meshgrad/backends"
)

// Handler is a custom implementation of a named operation. It receives the
// dynamic types of the positional arguments, the arguments and keyword
// arguments as given (wrapped tensors not unwrapped), and the rewrap
// context, and its result is returned to the caller unmodified.
//
// The interceptor itself always passes a nil rewrap; the parameter exists
// for handlers that forward to other dispatch layers.
type Handler func(argTypes []reflect.Type, args []any, kwargs map[string]any, rewrap RewrapFunc) (any, error)

// RewrapFunc converts a native operation result into wrapped form.
type RewrapFunc func(result any) any

// Registry maps operation names to custom handlers. Register during
// initialization; dispatch-time lookups are read-only and need no locking.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds name to handler, replacing any previous binding.
func (r *Registry) Register(name string, handler Handler) {
	r.handlers[name] = handler
}

// Lookup returns the handler bound to name, if any.
func (r *Registry) Lookup(name string) (Handler, bool) {
	handler, ok := r.handlers[name]
	return handler, ok
}

// Interceptor routes operations invoked with wrapped-tensor arguments.
// Registered operations go to their custom handler; everything else is
// unwrapped, run on the native engine and rewrapped.
type Interceptor struct {
	registry *Registry
}

// NewInterceptor returns an interceptor over registry; nil behaves as an
// empty registry.
func NewInterceptor(registry *Registry) *Interceptor {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Interceptor{registry: registry}
}

// Intercept invokes opName with the given arguments, at least one of which
// must be a wrapped tensor (dispatch is only ever reached from a wrapped
// operand, so none being present is fatal).
//
// Unregistered operations the engine does not implement return
// backends.ErrNotImplemented.
func (it *Interceptor) Intercept(opName string, args []any, kwargs map[string]any) (any, error) {
	wrapped := firstWrapped(args, kwargs)
	if wrapped == nil {
		exceptions.Panicf("distributed: operation %q dispatched without a wrapped tensor argument", opName)
	}
	if handler, ok := it.registry.Lookup(opName); ok {
		argTypes := make([]reflect.Type, len(args))
		for i, arg := range args {
			argTypes[i] = reflect.TypeOf(arg)
		}
		return handler(argTypes, args, kwargs, nil)
	}
	op, ok := wrapped.engine.Op(opName)
	if !ok {
		return nil, errors.Wrapf(backends.ErrNotImplemented, "operation %q on engine %q", opName, wrapped.engine.Name())
	}
	result, err := op.Call(unwrapArgs(args), unwrapKwargs(kwargs))
	if err != nil {
		return nil, errors.WithMessagef(err, "operation %q", opName)
	}
	return wrapped.Rewrap(result), nil
}

// firstWrapped returns the first wrapped tensor among the positional
// arguments, then among the keyword values in sorted key order.
func firstWrapped(args []any, kwargs map[string]any) *Tensor {
	for _, arg := range args {
		if w, ok := arg.(*Tensor); ok {
			return w
		}
	}
	keys := make([]string, 0, len(kwargs))
	for key := range kwargs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if w, ok := kwargs[key].(*Tensor); ok {
			return w
		}
	}
	return nil
}

// unwrapArgs replaces wrapped tensors with their native payloads,
// materializing them as needed; other arguments pass through.
func unwrapArgs(args []any) []any {
	if args == nil {
		return nil
	}
	out := make([]any, len(args))
	for i, arg := range args {
		if w, ok := arg.(*Tensor); ok {
			out[i] = w.Native()
		} else {
			out[i] = arg
		}
	}
	return out
}

func unwrapKwargs(kwargs map[string]any) map[string]any {
	if kwargs == nil {
		return nil
	}
	out := make(map[string]any, len(kwargs))
	for key, value := range kwargs {
		if w, ok := value.(*Tensor); ok {
			out[key] = w.Native()
		} else {
			out[key] = value
		}
	}
	return out
}

// Rewrap converts a native dispatch result into wrapped form: nil stays
// nil, a native tensor is wrapped, a result list is converted elementwise,
// anything else passes through unchanged.
func (t *Tensor) Rewrap(result any) any {
	switch v := result.(type) {
	case nil:
		return nil
	case backends.Tensor:
		return t.wrapResult(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			if native, ok := item.(backends.Tensor); ok {
				out[i] = t.wrapResult(native)
			} else {
				out[i] = item
			}
		}
		return out
	}
	return result
}
