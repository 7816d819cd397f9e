package container

import "strings"

// ParentSuffix marks a descriptor as an abstract template: it can be
// inherited through Descriptor.Parent but never built or grouped.
const ParentSuffix = "-parent"

// Descriptor is the declarative recipe for one service.
type Descriptor struct {
	Name string

	// Type names an entry of the Registry. Optional when Factory names a
	// registry-level function or a parent supplies it.
	Type string

	// Arguments are positional argument tokens. Config is the alternative
	// form: a mapping resolved as one structure and passed as the single
	// argument.
	Arguments []any
	Config    map[string]any

	Factory string

	// Shared defaults to true when nil.
	Shared *bool

	Filters   []string
	Calls     []MethodCall
	Listeners []string

	Parent string
}

// MethodCall is one setter injection: Method is called on the instance with
// the resolved Argument and, when the method accepts it, its own name.
type MethodCall struct {
	Method   string
	Argument any
}

// IsShared reports whether built instances go to the lifecycle cache.
func (d Descriptor) IsShared() bool {
	return d.Shared == nil || *d.Shared
}

// IsAbstract reports whether d is a parent template.
func (d Descriptor) IsAbstract() bool {
	return strings.HasSuffix(d.Name, ParentSuffix)
}

// Bool returns a pointer to b, for Descriptor.Shared literals.
func Bool(b bool) *bool { return &b }

// inherit returns d with every unset setting taken from parent.
func (d Descriptor) inherit(parent *Descriptor) Descriptor {
	if d.Type == "" {
		d.Type = parent.Type
	}
	if d.Factory == "" {
		d.Factory = parent.Factory
	}
	if d.Arguments == nil && d.Config == nil {
		d.Arguments = parent.Arguments
		d.Config = parent.Config
	}
	if d.Shared == nil {
		d.Shared = parent.Shared
	}
	if d.Filters == nil {
		d.Filters = parent.Filters
	}
	if d.Calls == nil {
		d.Calls = parent.Calls
	}
	if d.Listeners == nil {
		d.Listeners = parent.Listeners
	}
	return d
}

// store is an immutable, insertion-ordered descriptor set. A container swaps
// whole stores; it never edits one in place.
type store struct {
	order  []string
	byName map[string]*Descriptor

	// compiled is filled by compileStore for every concrete descriptor.
	compiled map[string]*compiled
	groups   *groupIndex
}

func newStore(descriptors []Descriptor) (*store, error) {
	s := &store{
		order:  make([]string, 0, len(descriptors)),
		byName: make(map[string]*Descriptor, len(descriptors)),
	}
	for i := range descriptors {
		d := descriptors[i]
		if d.Name == "" {
			return nil, badConfig("", "descriptor #%d has no name", i)
		}
		if _, dup := s.byName[d.Name]; dup {
			return nil, badConfig(d.Name, "declared more than once")
		}
		s.order = append(s.order, d.Name)
		s.byName[d.Name] = &d
	}
	return s, nil
}

// with returns a copy of s where d is added, or replaces the descriptor of
// the same name in place.
func (s *store) with(d Descriptor) []Descriptor {
	out := make([]Descriptor, 0, len(s.order)+1)
	replaced := false
	for _, name := range s.order {
		if name == d.Name {
			out = append(out, d)
			replaced = true
			continue
		}
		out = append(out, *s.byName[name])
	}
	if !replaced {
		out = append(out, d)
	}
	return out
}

func (s *store) descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.byName[name])
	}
	return out
}

// flatten applies the parent chain of name.
func (s *store) flatten(name string) (Descriptor, error) {
	d, ok := s.byName[name]
	if !ok {
		return Descriptor{}, &MissingDependencyError{Name: name}
	}
	out := *d
	seen := map[string]bool{name: true}
	for parent := d.Parent; parent != ""; {
		if seen[parent] {
			return Descriptor{}, badConfig(name, "parent chain loops through %s", parent)
		}
		seen[parent] = true
		p, ok := s.byName[parent]
		if !ok {
			return Descriptor{}, badConfig(name, "unknown parent %s", parent)
		}
		out = out.inherit(p)
		parent = p.Parent
	}
	return out, nil
}
