package container

// Definer implements the fluent descriptor API.
//
//	err := c.Service("Widget").
//	    Type("Widget").
//	    Args("@Engine", "@Painter", "red").
//	    Shared(false).
//	    Add()
type Definer struct {
	container *Container
	d         Descriptor
}

// Service starts a fluent definition that Add registers on c.
func (c *Container) Service(name string) *Definer {
	return &Definer{container: c, d: Descriptor{Name: name}}
}

// Define starts a detached fluent definition; use Descriptor to collect it.
//
//	descriptors := []container.Descriptor{
//	    container.Define("Engine").Type("Engine").Descriptor(),
//	}
func Define(name string) *Definer {
	return &Definer{d: Descriptor{Name: name}}
}

// Type sets the registry type to instantiate.
func (b *Definer) Type(name string) *Definer {
	b.d.Type = name
	return b
}

// Args appends positional argument tokens.
func (b *Definer) Args(args ...any) *Definer {
	if b.d.Arguments == nil {
		b.d.Arguments = make([]any, 0, len(args))
	}
	b.d.Arguments = append(b.d.Arguments, args...)
	return b
}

// Config sets the single configuration-structure argument.
func (b *Definer) Config(cfg map[string]any) *Definer {
	b.d.Config = cfg
	return b
}

// Factory builds the service through a registered factory.
func (b *Definer) Factory(name string) *Definer {
	b.d.Factory = name
	return b
}

// Shared sets whether the instance is cached.
func (b *Definer) Shared(shared bool) *Definer {
	b.d.Shared = Bool(shared)
	return b
}

// Extends inherits every unset setting from parent.
func (b *Definer) Extends(parent string) *Definer {
	b.d.Parent = parent
	return b
}

// Filter appends pre-construction filters.
func (b *Definer) Filter(refs ...string) *Definer {
	b.d.Filters = append(b.d.Filters, refs...)
	return b
}

// Call appends a setter injection.
func (b *Definer) Call(method string, arg any) *Definer {
	b.d.Calls = append(b.d.Calls, MethodCall{Method: method, Argument: arg})
	return b
}

// Listen appends post-construction listeners.
func (b *Definer) Listen(refs ...string) *Definer {
	b.d.Listeners = append(b.d.Listeners, refs...)
	return b
}

// Descriptor returns the definition built so far.
func (b *Definer) Descriptor() Descriptor {
	return b.d
}

// Add registers the definition on the container that started it.
func (b *Definer) Add() error {
	if b.container == nil {
		return badConfig(b.d.Name, "definition is not attached to a container")
	}
	return b.container.Define(b.d)
}
