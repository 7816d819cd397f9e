package container

import "fmt"

// Construction strategies, reported in debug logs.
const (
	strategyFactory = "factory"
	strategyNoArgs  = "no-args"
	strategyArity   = "fixed-arity"
	strategyGeneric = "generic"
)

// compiled is a flattened descriptor with every token parsed.
type compiled struct {
	Descriptor

	args      ListArg
	config    MapArg
	filters   []Argument
	calls     []compiledCall
	listeners []Argument
}

type compiledCall struct {
	method string
	arg    Argument
}

// compileStore flattens and parses every concrete descriptor of s.
func compileStore(s *store) error {
	s.compiled = make(map[string]*compiled, len(s.order))
	s.groups = newGroupIndex(s)
	for _, name := range s.order {
		if s.byName[name].IsAbstract() {
			continue
		}
		d, err := s.flatten(name)
		if err != nil {
			return err
		}
		cd, err := compile(d)
		if err != nil {
			return err
		}
		s.compiled[name] = cd
	}
	return nil
}

func compile(d Descriptor) (*compiled, error) {
	if d.Type == "" && d.Factory == "" {
		return nil, badConfig(d.Name, "neither type nor factory is set")
	}
	if d.Arguments != nil && d.Config != nil {
		return nil, badConfig(d.Name, "arguments and config are mutually exclusive")
	}

	cd := &compiled{Descriptor: d}
	var err error
	if d.Config != nil {
		arg, err := ParseArgument(d.Config)
		if err != nil {
			return nil, &BuildError{Service: d.Name, Err: err}
		}
		cd.config = arg.(MapArg)
	} else {
		cd.args = make(ListArg, len(d.Arguments))
		for i, raw := range d.Arguments {
			if cd.args[i], err = ParseArgument(raw); err != nil {
				return nil, &BuildError{Service: d.Name, Err: err}
			}
		}
	}
	if cd.filters, err = parseRefs(d.Filters); err != nil {
		return nil, &BuildError{Service: d.Name, Err: err}
	}
	if cd.listeners, err = parseRefs(d.Listeners); err != nil {
		return nil, &BuildError{Service: d.Name, Err: err}
	}
	for _, call := range d.Calls {
		if call.Method == "" {
			return nil, badConfig(d.Name, "method call without a method name")
		}
		arg, err := ParseArgument(call.Argument)
		if err != nil {
			return nil, &BuildError{Service: d.Name, Err: err}
		}
		cd.calls = append(cd.calls, compiledCall{method: call.Method, arg: arg})
	}
	return cd, nil
}

func parseRefs(refs []string) ([]Argument, error) {
	out := make([]Argument, len(refs))
	for i, ref := range refs {
		arg, err := ParseToken(ref)
		if err != nil {
			return nil, err
		}
		out[i] = arg
	}
	return out, nil
}

// construct resolves arguments, runs the filters and instantiates d.
func (c *Container) construct(st *resolution, d *compiled) (any, string, error) {
	var args []any
	if d.config != nil {
		cfg, err := c.resolveMap(st, d.config)
		if err != nil {
			return nil, "", err
		}
		args = []any{cfg}
	} else {
		var err error
		if args, err = c.resolveList(st, d.args); err != nil {
			return nil, "", err
		}
	}

	for _, ref := range d.filters {
		fn, err := c.callable(st, ref)
		if err != nil {
			return nil, "", err
		}
		if fn == nil {
			continue
		}
		out, err := fn.Call(args)
		if err != nil {
			return nil, "", err
		}
		filtered, ok := out.([]any)
		if !ok {
			return nil, "", badConfig(d.Name, "filter %s returned %T, want []any", ref, out)
		}
		args = filtered
	}

	return c.instantiate(d, args)
}

func (c *Container) instantiate(d *compiled, args []any) (any, string, error) {
	if d.Factory != "" {
		factory, err := c.registry.factory(d.Type, d.Factory)
		if err != nil {
			return nil, "", err
		}
		instance, err := factory(args...)
		return instance, strategyFactory, err
	}

	t, ok := c.registry.lookup(d.Type)
	if !ok {
		return nil, "", &MissingTypeError{Type: d.Type}
	}
	switch {
	case len(args) == 0 && t.New0 != nil:
		instance, err := t.New0()
		return instance, strategyNoArgs, err
	case len(args) == 1 && t.New1 != nil:
		instance, err := t.New1(args[0])
		return instance, strategyArity, err
	case len(args) == 2 && t.New2 != nil:
		instance, err := t.New2(args[0], args[1])
		return instance, strategyArity, err
	case t.New != nil:
		instance, err := t.New(args...)
		return instance, strategyGeneric, err
	}
	return nil, "", &MissingTypeError{
		Type:   d.Type,
		Reason: fmt.Sprintf("no constructor accepts %d arguments", len(args)),
	}
}

// initialize runs setter injection then listeners on a fresh instance.
func (c *Container) initialize(st *resolution, d *compiled, instance any) error {
	for _, call := range d.calls {
		v, err := c.resolve(st, call.arg)
		if err != nil {
			return err
		}
		if IsAbsent(v) {
			continue
		}
		if err := invokeSetter(instance, call.method, v, call.method); err != nil {
			return err
		}
	}
	for _, ref := range d.listeners {
		fn, err := c.callable(st, ref)
		if err != nil {
			return err
		}
		if fn == nil {
			continue
		}
		if _, err := fn.Call(instance); err != nil {
			return err
		}
	}
	return nil
}
