package container

import (
	"slices"
	"sync"
)

type absent struct{}

func (absent) String() string { return "<absent>" }

// Absent is what an optional reference resolves to when its target does not
// exist. Positional lists are truncated at the first Absent entry and keyed
// structures omit it.
var Absent any = absent{}

// IsAbsent reports whether v is the Absent marker.
func IsAbsent(v any) bool {
	_, ok := v.(absent)
	return ok
}

// resolution tracks the services a resolution chain is constructing. Lazy
// values keep a pointer to the chain that created them.
type resolution struct {
	mu    sync.Mutex
	stack []string
}

func newResolution() *resolution {
	return &resolution{}
}

func (r *resolution) enter(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.stack, name) {
		chain := append(slices.Clone(r.stack), name)
		return &CircularDependencyError{Chain: chain}
	}
	r.stack = append(r.stack, name)
	return nil
}

func (r *resolution) leave(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.stack) - 1; i >= 0; i-- {
		if r.stack[i] == name {
			r.stack = slices.Delete(r.stack, i, i+1)
			return
		}
	}
}

// fork starts a chain that still sees everything r is constructing now.
func (r *resolution) fork() *resolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &resolution{stack: slices.Clone(r.stack)}
}

// resolve turns one parsed argument into a value. It may build other
// services through get.
func (c *Container) resolve(st *resolution, arg Argument) (any, error) {
	switch a := arg.(type) {
	case Scalar:
		return a.Value, nil

	case VariableRef:
		if v, ok := c.variable(a.Name); ok {
			return v, nil
		}
		if a.Optional {
			return Absent, nil
		}
		return nil, &UndefinedVariableError{Name: a.Name}

	case ServiceRef:
		if !c.has(a.Name) {
			if a.Optional {
				return Absent, nil
			}
			return nil, &MissingDependencyError{Name: a.Name}
		}
		instance, err := c.get(st, a.Name)
		if err != nil {
			return nil, err
		}
		if a.Method != "" {
			return &BoundMethod{Target: instance, Method: a.Method}, nil
		}
		return instance, nil

	case LazyRef:
		if !c.has(a.Name) {
			if a.Optional {
				return Absent, nil
			}
			return nil, &MissingDependencyError{Name: a.Name}
		}
		return &Lazy{c: c, name: a.Name, method: a.Method, origin: st}, nil

	case GroupRef:
		members := c.currentStore().groups.members(a.Group)
		group := newGroup(len(members))
		for _, m := range members {
			var ref Argument = ServiceRef{Name: m.Name, Method: a.Method}
			if a.Lazy {
				ref = LazyRef{Name: m.Name, Method: a.Method}
			}
			v, err := c.resolve(st, ref)
			if err != nil {
				return nil, err
			}
			group.add(m.Short, v)
		}
		return group, nil

	case ListArg:
		return c.resolveList(st, a)

	case MapArg:
		return c.resolveMap(st, a)

	case nil:
		return nil, nil
	}
	return nil, badConfig("", "unsupported argument %T", arg)
}

// resolveList resolves positionally and stops at the first absent optional
// entry so later slots are not supplied.
func (c *Container) resolveList(st *resolution, list ListArg) ([]any, error) {
	out := make([]any, 0, len(list))
	for _, item := range list {
		v, err := c.resolve(st, item)
		if err != nil {
			return nil, err
		}
		if IsAbsent(v) {
			break
		}
		out = append(out, v)
	}
	return out, nil
}

// resolveMap resolves by key and drops absent optional entries.
func (c *Container) resolveMap(st *resolution, m MapArg) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for _, key := range m.keys() {
		v, err := c.resolve(st, m[key])
		if err != nil {
			return nil, err
		}
		if IsAbsent(v) {
			continue
		}
		out[key] = v
	}
	return out, nil
}

// callable resolves a filter or listener reference. Plain names are looked
// up among registry functions; anything else must resolve to a function,
// a Callable, or a bound method. A nil Callable means an absent optional
// reference.
func (c *Container) callable(st *resolution, arg Argument) (Callable, error) {
	if s, ok := arg.(Scalar); ok {
		name, ok := s.Value.(string)
		if !ok {
			return nil, badConfig("", "%v is not a callable reference", s.Value)
		}
		fn, ok := c.registry.function(name)
		if !ok {
			return nil, &MissingTypeError{Factory: name}
		}
		return fn, nil
	}
	v, err := c.resolve(st, arg)
	if err != nil {
		return nil, err
	}
	if IsAbsent(v) {
		return nil, nil
	}
	fn, ok := asCallable(v)
	if !ok {
		return nil, badConfig("", "%s resolves to %T which is not callable", arg, v)
	}
	return fn, nil
}
