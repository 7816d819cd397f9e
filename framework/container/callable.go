package container

import (
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"
)

// Callable is anything the engine can invoke: bound methods, lazy services,
// registry functions, filters and listeners.
type Callable interface {
	Call(args ...any) (any, error)
}

// CallableFunc adapts a plain function to Callable.
type CallableFunc func(args ...any) (any, error)

func (f CallableFunc) Call(args ...any) (any, error) { return f(args...) }

// MethodCaller lets an instance dispatch method calls by name itself instead
// of going through reflection.
type MethodCaller interface {
	CallMethod(method string, args ...any) (any, error)
}

// BoundMethod is an instance paired with one of its method names, the
// result of @service::method.
type BoundMethod struct {
	Target any
	Method string
}

// Call invokes the method with args.
func (b *BoundMethod) Call(args ...any) (any, error) {
	return callMethod(b.Target, b.Method, args...)
}

func (b *BoundMethod) String() string {
	return fmt.Sprintf("%T::%s", b.Target, b.Method)
}

// Lazy is a deferred service, the result of %service or %service::method.
// Nothing is built until Get or Call runs.
type Lazy struct {
	c      *Container
	name   string
	method string
	origin *resolution
}

// Name returns the referenced service name.
func (l *Lazy) Name() string { return l.name }

// Method returns the bound method, if any.
func (l *Lazy) Method() string { return l.method }

// Get resolves the service exactly as @name would at this moment: shared
// services come from the cache, others are built anew.
func (l *Lazy) Get() (any, error) {
	st := newResolution()
	if l.origin != nil {
		st = l.origin.fork()
	}
	return l.c.get(st, l.name)
}

// Call resolves the service and invokes the bound method with args. Without
// a bound method it returns the instance and accepts no arguments.
func (l *Lazy) Call(args ...any) (any, error) {
	instance, err := l.Get()
	if err != nil {
		return nil, err
	}
	if l.method == "" {
		if len(args) > 0 {
			return nil, badConfig(l.name, "lazy reference is not bound to a method")
		}
		return instance, nil
	}
	return callMethod(instance, l.method, args...)
}

func (l *Lazy) String() string {
	return LazyRef{Name: l.name, Method: l.method}.String()
}

// asCallable accepts Callables and Go functions of any signature.
func asCallable(v any) (Callable, bool) {
	switch fn := v.(type) {
	case nil:
		return nil, false
	case Callable:
		return fn, true
	case func(args ...any) (any, error):
		return CallableFunc(fn), true
	}
	if reflect.TypeOf(v).Kind() != reflect.Func {
		return nil, false
	}
	ctor, err := Wrap(v)
	if err != nil {
		return nil, false
	}
	return CallableFunc(ctor), true
}

func callMethod(target any, name string, args ...any) (any, error) {
	if mc, ok := target.(MethodCaller); ok {
		return mc.CallMethod(name, args...)
	}
	m, err := methodOf(target, name)
	if err != nil {
		return nil, err
	}
	fn, err := Wrap(m.Interface())
	if err != nil {
		return nil, fmt.Errorf("method %T.%s: %w", target, name, err)
	}
	return fn(args...)
}

// invokeSetter calls instance.method(value, key), dropping key when the
// method takes a single parameter.
func invokeSetter(instance any, name string, value any, key string) error {
	if mc, ok := instance.(MethodCaller); ok {
		_, err := mc.CallMethod(name, value, key)
		return err
	}
	m, err := methodOf(instance, name)
	if err != nil {
		return err
	}
	args := []any{value, key}
	if t := m.Type(); !t.IsVariadic() && t.NumIn() < len(args) {
		args = args[:t.NumIn()]
	}
	fn, err := Wrap(m.Interface())
	if err != nil {
		return fmt.Errorf("method %T.%s: %w", instance, name, err)
	}
	_, err = fn(args...)
	return err
}

func methodOf(target any, name string) (reflect.Value, error) {
	if target == nil {
		return reflect.Value{}, fmt.Errorf("cannot call %s on a nil instance", name)
	}
	v := reflect.ValueOf(target)
	m := v.MethodByName(name)
	if !m.IsValid() {
		// Descriptors may spell Go methods in lower camel case.
		r, size := utf8.DecodeRuneInString(name)
		m = v.MethodByName(string(unicode.ToUpper(r)) + name[size:])
	}
	if !m.IsValid() {
		return reflect.Value{}, badConfig("", "%T has no method %s", target, name)
	}
	return m, nil
}
