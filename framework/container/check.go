package container

import "errors"

// Check validates descriptors without building anything: structure, parent
// chains, token grammar, non-optional service targets and, when reg is not
// nil, registered types and factories. Names in provided are services the
// host registers as instances. Every problem found is returned, joined.
func Check(reg *Registry, descriptors []Descriptor, provided ...string) error {
	s, err := newStore(descriptors)
	if err != nil {
		return err
	}
	known := map[string]bool{SelfName: true}
	for _, name := range provided {
		known[name] = true
	}

	var errs []error
	for _, name := range s.order {
		if s.byName[name].IsAbstract() {
			continue
		}
		d, err := s.flatten(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cd, err := compile(d)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		errs = append(errs, checkTypes(reg, cd)...)
		for _, arg := range cd.references() {
			if err := checkTarget(s, known, arg); err != nil {
				errs = append(errs, &BuildError{Service: name, Err: err})
			}
		}
	}
	return errors.Join(errs...)
}

func checkTypes(reg *Registry, d *compiled) []error {
	if reg == nil {
		return nil
	}
	wrap := func(err error) []error { return []error{&BuildError{Service: d.Name, Err: err}} }
	if d.Factory != "" {
		if _, err := reg.factory(d.Type, d.Factory); err != nil {
			return wrap(err)
		}
		return nil
	}
	if !reg.HasType(d.Type) {
		return wrap(&MissingTypeError{Type: d.Type})
	}
	return nil
}

func checkTarget(s *store, known map[string]bool, arg Argument) error {
	var name string
	switch a := arg.(type) {
	case ServiceRef:
		if a.Optional {
			return nil
		}
		name = a.Name
	case LazyRef:
		if a.Optional {
			return nil
		}
		name = a.Name
	default:
		return nil
	}
	if known[name] {
		return nil
	}
	d, ok := s.byName[name]
	if !ok {
		return &MissingDependencyError{Name: name}
	}
	if d.IsAbstract() {
		return badConfig(name, "parent templates cannot be referenced")
	}
	return nil
}

// references lists every argument of d, nested ones included, in
// declaration order.
func (d *compiled) references() []Argument {
	var out []Argument
	var walk func(Argument)
	walk = func(arg Argument) {
		switch a := arg.(type) {
		case ListArg:
			for _, item := range a {
				walk(item)
			}
		case MapArg:
			for _, key := range a.keys() {
				walk(a[key])
			}
		default:
			out = append(out, arg)
		}
	}
	walk(d.args)
	if d.config != nil {
		walk(d.config)
	}
	for _, f := range d.filters {
		walk(f)
	}
	for _, call := range d.calls {
		walk(call.arg)
	}
	for _, l := range d.listeners {
		walk(l)
	}
	return out
}
