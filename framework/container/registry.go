package container

import (
	"fmt"
	"maps"
	"reflect"
	"sync"
)

// Constructor builds a value from a runtime-determined argument list.
type Constructor func(args ...any) (any, error)

// Type is how the builder instantiates one registered type. New handles any
// arity; New0, New1 and New2 are optional fixed-arity constructors tried
// first when the resolved argument count matches.
type Type struct {
	New  Constructor
	New0 func() (any, error)
	New1 func(a any) (any, error)
	New2 func(a, b any) (any, error)

	// Factories are named alternatives to construction, selected by
	// Descriptor.Factory.
	Factories map[string]Constructor
}

// Registry maps type names and function names to Go code. It is filled by
// the host at startup and shared by every container built from it.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Type
	funcs map[string]Callable
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]*Type),
		funcs: make(map[string]Callable),
	}
}

// Register adds or replaces a type.
//
//	reg.Register("Engine", container.Type{
//	    New0: func() (any, error) { return &Engine{}, nil },
//	})
func (r *Registry) Register(name string, t Type) error {
	if name == "" {
		return fmt.Errorf("registry: empty type name")
	}
	if t.New == nil && t.New0 == nil && t.New1 == nil && t.New2 == nil && len(t.Factories) == 0 {
		return fmt.Errorf("registry: type %s has neither constructors nor factories", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[name] = &t
	return nil
}

// RegisterConstructor registers a Go function as the generic constructor of
// a type, keeping factories already registered for it.
//
//	reg.RegisterConstructor("Widget", NewWidget) // func(*Engine, *Painter, string) *Widget
func (r *Registry) RegisterConstructor(name string, fn any) error {
	ctor, err := Wrap(fn)
	if err != nil {
		return fmt.Errorf("registry: constructor for %s: %w", name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.copyOf(name)
	t.New = ctor
	r.types[name] = t
	return nil
}

// RegisterFactory registers fn as factory on a type. The type does not
// need a constructor when it is only ever built by its factories.
func (r *Registry) RegisterFactory(typeName, factory string, fn any) error {
	ctor, err := Wrap(fn)
	if err != nil {
		return fmt.Errorf("registry: factory %s::%s: %w", typeName, factory, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.copyOf(typeName)
	factories := make(map[string]Constructor, len(t.Factories)+1)
	maps.Copy(factories, t.Factories)
	factories[factory] = ctor
	t.Factories = factories
	r.types[typeName] = t
	return nil
}

// copyOf returns a fresh copy of a registered type. Types handed out by
// lookup are never mutated afterwards. The caller holds the write lock.
func (r *Registry) copyOf(name string) *Type {
	t := &Type{}
	if old, ok := r.types[name]; ok {
		*t = *old
	}
	return t
}

// RegisterFunc registers a registry-level function. Such functions serve as
// factories of descriptors without a Type and as filters or listeners named
// by a plain token.
func (r *Registry) RegisterFunc(name string, fn any) error {
	c, ok := asCallable(fn)
	if !ok {
		return fmt.Errorf("registry: %s: %T is not callable", name, fn)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = c
	return nil
}

// HasType reports whether a type is registered.
func (r *Registry) HasType(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[name]
	return ok
}

func (r *Registry) lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

func (r *Registry) function(name string) (Callable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.funcs[name]
	return c, ok
}

// factory returns typeName::factory, or the registry-level function factory
// when typeName is empty.
func (r *Registry) factory(typeName, factory string) (Constructor, error) {
	if typeName == "" {
		c, ok := r.function(factory)
		if !ok {
			return nil, &MissingTypeError{Factory: factory}
		}
		return c.Call, nil
	}
	t, ok := r.lookup(typeName)
	if !ok {
		return nil, &MissingTypeError{Type: typeName, Factory: factory}
	}
	ctor, ok := t.Factories[factory]
	if !ok || ctor == nil {
		return nil, &MissingTypeError{Type: typeName, Factory: factory}
	}
	return ctor, nil
}

// ── Reflect adapters ──────────────────────────────────────────────────────────

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Wrap adapts any Go function to a Constructor.
//
// Missing trailing arguments are passed as zero values, so a constructor's
// optional parameters take their defaults when optional references are
// absent. Arguments are converted when assignable or numerically
// convertible, Callables are adapted to func parameters, variadic tails are
// collected and a trailing error result is returned as the error.
//
// A Callable adapted to a func type without a trailing error result has no
// way to report failure: the adapted func panics with the callable's error.
// Declare such parameters as func(...) (T, error) when the callable can fail.
func Wrap(fn any) (Constructor, error) {
	if c, ok := fn.(Constructor); ok {
		return c, nil
	}
	if c, ok := fn.(func(args ...any) (any, error)); ok {
		return c, nil
	}
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("%T is not a function", fn)
	}
	t := v.Type()
	if t.NumOut() > 2 || (t.NumOut() == 2 && t.Out(1) != errorType) {
		return nil, fmt.Errorf("%s must return (value) or (value, error)", t)
	}

	return func(args ...any) (any, error) {
		in, err := convertArgs(t, args)
		if err != nil {
			return nil, err
		}
		if t.IsVariadic() {
			return splitResults(t, v.CallSlice(in))
		}
		return splitResults(t, v.Call(in))
	}, nil
}

func convertArgs(t reflect.Type, args []any) ([]reflect.Value, error) {
	fixed := t.NumIn()
	if t.IsVariadic() {
		fixed--
	}
	if len(args) > fixed && !t.IsVariadic() {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", t, fixed, len(args))
	}

	in := make([]reflect.Value, 0, t.NumIn())
	for i := 0; i < fixed; i++ {
		if i >= len(args) {
			in = append(in, reflect.Zero(t.In(i)))
			continue
		}
		v, err := convertValue(args[i], t.In(i))
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in = append(in, v)
	}
	if t.IsVariadic() {
		elem := t.In(fixed).Elem()
		rest := reflect.MakeSlice(t.In(fixed), 0, max(len(args)-fixed, 0))
		for i := fixed; i < len(args); i++ {
			v, err := convertValue(args[i], elem)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			rest = reflect.Append(rest, v)
		}
		in = append(in, rest)
	}
	return in, nil
}

func convertValue(arg any, to reflect.Type) (reflect.Value, error) {
	if arg == nil || IsAbsent(arg) {
		return reflect.Zero(to), nil
	}
	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(to) {
		return v, nil
	}
	if to.Kind() == reflect.Func {
		if c, ok := arg.(Callable); ok {
			return adaptCallable(c, to), nil
		}
	}
	if numeric(v.Kind()) && numeric(to.Kind()) && v.Type().ConvertibleTo(to) {
		return v.Convert(to), nil
	}
	if v.Kind() == to.Kind() && v.Type().ConvertibleTo(to) {
		return v.Convert(to), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", arg, to)
}

func numeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// adaptCallable builds a func of type to that forwards to c. Errors surface
// through a trailing error result when to has one and panic otherwise.
func adaptCallable(c Callable, to reflect.Type) reflect.Value {
	return reflect.MakeFunc(to, func(in []reflect.Value) []reflect.Value {
		args := make([]any, len(in))
		for i, v := range in {
			args[i] = v.Interface()
		}
		result, err := c.Call(args...)

		out := make([]reflect.Value, to.NumOut())
		for i := range out {
			ot := to.Out(i)
			if ot == errorType {
				if err != nil {
					out[i] = reflect.ValueOf(&err).Elem()
				} else {
					out[i] = reflect.Zero(ot)
				}
				continue
			}
			v, cerr := convertValue(result, ot)
			if cerr != nil && err == nil {
				err = cerr
			}
			if cerr != nil {
				v = reflect.Zero(ot)
			}
			out[i] = v
		}
		if err != nil && (to.NumOut() == 0 || to.Out(to.NumOut()-1) != errorType) {
			panic(err)
		}
		return out
	})
}

func splitResults(t reflect.Type, out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if t.Out(0) == errorType {
			if out[0].IsNil() {
				return nil, nil
			}
			return nil, out[0].Interface().(error)
		}
		return out[0].Interface(), nil
	default:
		var err error
		if !out[1].IsNil() {
			err = out[1].Interface().(error)
		}
		return out[0].Interface(), err
	}
}
