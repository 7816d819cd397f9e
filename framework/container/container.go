package container

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// SelfName is the service name under which every container holds itself.
const SelfName = "container"

// entry boxes a cached instance so eviction can compare identities.
type entry struct {
	value any
}

// MissingHandler is consulted when a name is not declared. Returning true
// means it declared the name and the lookup should be retried.
type MissingHandler func(c *Container, name string) bool

// ── Container ─────────────────────────────────────────────────────────────────

// Container is the service resolution engine. It builds services from
// descriptors on demand and keeps shared instances for its whole lifetime.
//
// One container is meant to serve one request or process run. Swapping
// descriptors or setting variables never rebuilds instances already cached;
// a fresh container is the only way to get fresh shared services.
type Container struct {
	mu sync.RWMutex

	registry *Registry
	store    *store

	// service name → shared instance
	instances map[string]*entry

	// runtime variables, a namespace separate from services
	variables map[string]any

	missing []MissingHandler
	log     *zap.Logger
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger used for build diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(c *Container) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMissingHandler installs a handler for undeclared names.
func WithMissingHandler(h MissingHandler) Option {
	return func(c *Container) { c.missing = append(c.missing, h) }
}

// New creates a container over descriptors and initial runtime variables.
// A nil registry is replaced by an empty one.
//
//	c, err := container.New(reg, descriptors, map[string]any{"body": body})
//	widget, err := c.Get("Widget")
func New(registry *Registry, descriptors []Descriptor, variables map[string]any, opts ...Option) (*Container, error) {
	if registry == nil {
		registry = NewRegistry()
	}
	s, err := newStore(descriptors)
	if err != nil {
		return nil, err
	}
	if err := compileStore(s); err != nil {
		return nil, err
	}

	c := &Container{
		registry:  registry,
		store:     s,
		instances: make(map[string]*entry),
		variables: make(map[string]any, len(variables)),
		log:       zap.NewNop(),
	}
	maps.Copy(c.variables, variables)
	for _, opt := range opts {
		opt(c)
	}
	c.instances[SelfName] = &entry{value: c}
	return c, nil
}

// ── Services ──────────────────────────────────────────────────────────────────

// Get returns the service called name, building it on first use. Shared
// services are cached and returned as the identical instance afterwards.
func (c *Container) Get(name string) (any, error) {
	instance, err := c.get(newResolution(), name)
	if err != nil {
		c.log.Warn("service resolution failed", zap.String("service", name), zap.Error(err))
		return nil, err
	}
	return instance, nil
}

func (c *Container) get(st *resolution, name string) (any, error) {
	c.mu.RLock()
	cached, ok := c.instances[name]
	c.mu.RUnlock()
	if ok {
		return cached.value, nil
	}

	d, err := c.descriptor(name)
	if err != nil {
		return nil, err
	}
	if err := st.enter(name); err != nil {
		return nil, err
	}
	constructing := true
	defer func() {
		if constructing {
			st.leave(name)
		}
	}()

	instance, strategy, err := c.construct(st, d)
	if err != nil {
		return nil, &BuildError{Service: name, Err: err}
	}

	var own *entry
	if d.IsShared() {
		c.mu.Lock()
		if winner, ok := c.instances[name]; ok {
			// Built concurrently by another caller; theirs is the instance.
			c.mu.Unlock()
			return winner.value, nil
		}
		own = &entry{value: instance}
		c.instances[name] = own
		c.mu.Unlock()

		// Cached from here on: setters may reference the service itself.
		st.leave(name)
		constructing = false
	}

	if err := c.initialize(st, d, instance); err != nil {
		if own != nil {
			c.evict(name, own)
		}
		return nil, &BuildError{Service: name, Err: err}
	}

	c.log.Debug("service built",
		zap.String("service", name),
		zap.String("type", d.Type),
		zap.String("strategy", strategy),
		zap.Bool("shared", d.IsShared()),
	)
	return instance, nil
}

func (c *Container) evict(name string, e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.instances[name] == e {
		delete(c.instances, name)
	}
}

// descriptor returns the compiled descriptor of a concrete service, giving
// missing handlers one chance to declare it.
func (c *Container) descriptor(name string) (*compiled, error) {
	for attempt := 0; ; attempt++ {
		s := c.currentStore()
		if d, ok := s.compiled[name]; ok {
			return d, nil
		}
		if d, ok := s.byName[name]; ok && d.IsAbstract() {
			return nil, badConfig(name, "parent templates cannot be built")
		}
		if attempt > 0 || !c.fireMissing(name) {
			return nil, &MissingDependencyError{Name: name}
		}
	}
}

func (c *Container) fireMissing(name string) bool {
	c.mu.RLock()
	handlers := c.missing
	c.mu.RUnlock()
	for _, h := range handlers {
		if h(c, name) {
			return true
		}
	}
	return false
}

// has reports whether name can be resolved: cached, or declared concrete.
func (c *Container) has(name string) bool {
	c.mu.RLock()
	_, cached := c.instances[name]
	c.mu.RUnlock()
	if cached {
		return true
	}
	_, err := c.descriptor(name)
	return err == nil
}

// Has reports whether name can be resolved.
func (c *Container) Has(name string) bool {
	return c.has(name)
}

// Resolved reports whether a shared instance of name is cached.
func (c *Container) Resolved(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.instances[name]
	return ok
}

// Instances returns the names of every cached instance, sorted.
func (c *Container) Instances() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.instances))
	for k := range c.instances {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Instance stores a pre-built value as the shared instance of name.
//
//	c.Instance("config", cfg)
func (c *Container) Instance(name string, instance any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances[name] = &entry{value: instance}
}

// Lazy returns a deferred handle on name without building it.
func (c *Container) Lazy(name string) (*Lazy, error) {
	if !c.has(name) {
		return nil, &MissingDependencyError{Name: name}
	}
	return &Lazy{c: c, name: name}, nil
}

// Resolve resolves a single raw argument (a token, a scalar or a nested
// structure) against the container. Optional misses yield Absent.
//
//	handler, err := c.Resolve("@Router::dispatch")
func (c *Container) Resolve(raw any) (any, error) {
	arg, err := ParseArgument(raw)
	if err != nil {
		return nil, err
	}
	return c.resolve(newResolution(), arg)
}

// Call resolves ref as a callable and invokes it with args.
//
//	out, err := c.Call("@Mailer::send", msg)
func (c *Container) Call(ref string, args ...any) (any, error) {
	arg, err := ParseToken(ref)
	if err != nil {
		return nil, err
	}
	fn, err := c.callable(newResolution(), arg)
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return Absent, nil
	}
	return fn.Call(args...)
}

// ── Descriptors ───────────────────────────────────────────────────────────────

// SetDescriptors validates and compiles descriptors, then swaps them in
// atomically. Cached instances are kept.
func (c *Container) SetDescriptors(descriptors []Descriptor) error {
	s, err := newStore(descriptors)
	if err != nil {
		return err
	}
	if err := compileStore(s); err != nil {
		return err
	}
	c.mu.Lock()
	c.store = s
	c.mu.Unlock()
	c.log.Debug("descriptors swapped", zap.Int("count", len(descriptors)))
	return nil
}

// Define adds d, or replaces the descriptor of the same name in place.
func (c *Container) Define(d Descriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := newStore(c.store.with(d))
	if err != nil {
		return err
	}
	if err := compileStore(s); err != nil {
		return err
	}
	c.store = s
	return nil
}

// Descriptors returns a copy of the declared descriptors in order.
func (c *Container) Descriptors() []Descriptor {
	return c.currentStore().descriptors()
}

// Descriptor returns the descriptor of name with its parent chain applied.
func (c *Container) Descriptor(name string) (Descriptor, bool) {
	d, err := c.currentStore().flatten(name)
	return d, err == nil
}

// Names returns the names of concrete services in declaration order.
func (c *Container) Names() []string {
	s := c.currentStore()
	out := make([]string, 0, len(s.compiled))
	for _, name := range s.order {
		if _, ok := s.compiled[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Group returns the members of group in declaration order.
func (c *Container) Group(group string) []GroupMember {
	return append([]GroupMember(nil), c.currentStore().groups.members(group)...)
}

// OnMissing installs a handler for undeclared names.
func (c *Container) OnMissing(h MissingHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.missing = append(c.missing, h)
}

// Registry returns the type registry the container builds from.
func (c *Container) Registry() *Registry { return c.registry }

func (c *Container) currentStore() *store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store
}

// ── Runtime variables ─────────────────────────────────────────────────────────

// GetVariable returns a runtime variable.
func (c *Container) GetVariable(name string) (any, error) {
	if v, ok := c.variable(name); ok {
		return v, nil
	}
	return nil, &UndefinedVariableError{Name: name}
}

// SetVariable inserts or overwrites a runtime variable. Later resolutions see
// the new value; shared instances already built keep the old one.
func (c *Container) SetVariable(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables[name] = value
}

// Variables returns a copy of all runtime variables.
func (c *Container) Variables() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.variables)
}

func (c *Container) variable(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.variables[name]
	return v, ok
}

// ── Generics helper ───────────────────────────────────────────────────────────

// Resolve is a generic helper that calls Get and type-asserts the result.
//
//	widget, err := container.Resolve[*Widget](c, "Widget")
func Resolve[T any](c *Container, name string) (T, error) {
	var zero T
	instance, err := c.Get(name)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("container: Resolve[%T]: [%s] resolved to %T", zero, name, instance)
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on error.
func MustResolve[T any](c *Container, name string) T {
	typed, err := Resolve[T](c, name)
	if err != nil {
		panic(err)
	}
	return typed
}
