package container_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-wiring/framework/container"
)

// ── Lifecycle cache ───────────────────────────────────────────────────────────

func TestGet_SharedReturnsSameInstance(t *testing.T) {
	c := newContainer(t, container.Define("Engine").Type("Engine").Descriptor())

	first := get[*Engine](t, c, "Engine")
	second := get[*Engine](t, c, "Engine")

	assert.Same(t, first, second)
	assert.True(t, c.Resolved("Engine"))
}

func TestGet_NotSharedReturnsDistinctInstances(t *testing.T) {
	c := newContainer(t, container.Define("Echo").Type("Echo").Args("hello").Shared(false).Descriptor())

	first := get[*Echo](t, c, "Echo")
	second := get[*Echo](t, c, "Echo")

	assert.NotSame(t, first, second)
	assert.Equal(t, first, second)
	assert.False(t, c.Resolved("Echo"))
}

func TestGet_ConcurrentCallersShareOneInstance(t *testing.T) {
	c := newContainer(t, container.Define("Engine").Type("Engine").Descriptor())

	const callers = 32
	got := make([]*Engine, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := container.Resolve[*Engine](c, "Engine")
			if err == nil {
				got[i] = e
			}
		}()
	}
	wg.Wait()

	cached := get[*Engine](t, c, "Engine")
	for i, e := range got {
		assert.Same(t, cached, e, "caller %d", i)
	}
}

func TestGet_ContainerResolvesItself(t *testing.T) {
	c := newContainer(t)
	assert.Same(t, c, get[*container.Container](t, c, container.SelfName))
}

func TestInstance_PreseedsCache(t *testing.T) {
	c := newContainer(t, container.Define("Echo").Type("Echo").Args("@config").Descriptor())
	cfg := map[string]string{"env": "testing"}
	c.Instance("config", cfg)

	assert.True(t, c.Has("config"))
	assert.Equal(t, cfg, get[*Echo](t, c, "Echo").Value)
}

// ── Round trip ────────────────────────────────────────────────────────────────

func TestGet_WidgetRoundTrip(t *testing.T) {
	c := newContainer(t,
		container.Define("Engine").Type("Engine").Descriptor(),
		container.Define("Painter").Type("Painter").Descriptor(),
		container.Define("Widget").Type("Widget").Args("@Engine", "@Painter", "red").Descriptor(),
	)

	w := get[*Widget](t, c, "Widget")

	assert.Same(t, get[*Engine](t, c, "Engine"), w.Engine)
	assert.Same(t, get[*Painter](t, c, "Painter"), w.Painter)
	assert.Equal(t, "red", w.Color)
}

func TestGet_LazyBoundMethodThroughFactory(t *testing.T) {
	c := newContainer(t,
		container.Define("H").Type("Doubler").Descriptor(),
		container.Define("G").Type("Gadget").Factory("build").Args("%H::double", 21).Descriptor(),
	)

	g := get[*Gadget](t, c, "G")
	require.IsType(t, &container.Lazy{}, g.Fn)

	out, err := g.Fn.Call(g.N)
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestGet_CallableAdaptedToFuncParameter(t *testing.T) {
	reg := newRegistry(t)
	require.NoError(t, reg.RegisterConstructor("Calc", func(fn func(int) int, n int) int { return fn(n) }))
	c, err := container.New(reg, []container.Descriptor{
		container.Define("H").Type("Doubler").Descriptor(),
		container.Define("Calc").Type("Calc").Args("@H::double", 8).Descriptor(),
	}, nil)
	require.NoError(t, err)

	v, err := c.Get("Calc")
	require.NoError(t, err)
	assert.Equal(t, 16, v)
}

// ── Lazy references ───────────────────────────────────────────────────────────

func TestGet_LazyReferenceDefersConstruction(t *testing.T) {
	c := newContainer(t,
		container.Define("H").Type("Doubler").Descriptor(),
		container.Define("G").Type("Gadget").Factory("build").Args("%H", 1).Descriptor(),
	)

	g := get[*Gadget](t, c, "G")
	assert.False(t, c.Resolved("H"), "lazy target must not be built with its dependent")

	h, err := g.Fn.Call()
	require.NoError(t, err)
	assert.True(t, c.Resolved("H"))
	assert.Same(t, get[*Doubler](t, c, "H"), h)
}

func TestGet_LazyWithoutMethodRejectsArguments(t *testing.T) {
	c := newContainer(t, container.Define("H").Type("Doubler").Descriptor())
	lazy, err := c.Lazy("H")
	require.NoError(t, err)

	_, err = lazy.Call(1)
	assert.ErrorIs(t, err, container.ErrBadConfiguration)
}

func TestGet_LazyUnknownTargetIsMissingDependency(t *testing.T) {
	c := newContainer(t, container.Define("G").Type("Gadget").Factory("build").Args("%Nope", 1).Descriptor())

	_, err := c.Get("G")
	assert.ErrorIs(t, err, container.ErrMissingDependency)
}

func TestGet_LazyBreaksCycles(t *testing.T) {
	c := newContainer(t,
		container.Define("A").Type("Node").Args("%B").Descriptor(),
		container.Define("B").Type("Node").Args("@A").Descriptor(),
	)

	a := get[*Node](t, c, "A")
	lazy := a.Peer.(*container.Lazy)
	b, err := lazy.Get()
	require.NoError(t, err)
	assert.Same(t, a, b.(*Node).Peer)
}

// ── Optional references ───────────────────────────────────────────────────────

func TestGet_OptionalTruncatesPositionalArguments(t *testing.T) {
	c := newContainer(t, container.Define("Options").Type("Options").Args("api", "$?port", "custom").Descriptor())

	o := get[*Options](t, c, "Options")

	assert.Equal(t, "api", o.Name)
	assert.Equal(t, 8080, o.Port)
	assert.Equal(t, "default", o.Label, "slots after an absent optional are not supplied")
}

func TestGet_OptionalPresentIsPassed(t *testing.T) {
	c, err := container.New(newRegistry(t), []container.Descriptor{
		container.Define("Options").Type("Options").Args("api", "$?port", "custom").Descriptor(),
	}, map[string]any{"port": 9000})
	require.NoError(t, err)

	o := get[*Options](t, c, "Options")
	assert.Equal(t, 9000, o.Port)
	assert.Equal(t, "custom", o.Label)
}

func TestGet_OptionalServiceAndLazy(t *testing.T) {
	c := newContainer(t,
		container.Define("A").Type("Node").Args("@?Missing").Descriptor(),
		container.Define("B").Type("Node").Args("%?Missing").Descriptor(),
	)

	assert.Nil(t, get[*Node](t, c, "A").Peer)
	assert.Nil(t, get[*Node](t, c, "B").Peer)
}

func TestGet_OptionalOmittedFromConfig(t *testing.T) {
	c := newContainer(t,
		container.Define("Engine").Type("Engine").Descriptor(),
		container.Define("Settings").Type("Settings").Config(map[string]any{
			"debug":  "$?debug",
			"engine": "@Engine",
			"nested": map[string]any{"x": "@?Nope", "y": []any{1, "$?nope", 3}},
		}).Descriptor(),
	)

	s := get[*Settings](t, c, "Settings")

	assert.NotContains(t, s.Values, "debug")
	assert.Same(t, get[*Engine](t, c, "Engine"), s.Values["engine"])
	assert.Equal(t, map[string]any{"y": []any{1}}, s.Values["nested"])
}

// ── Groups ────────────────────────────────────────────────────────────────────

func groupDescriptors() []container.Descriptor {
	return []container.Descriptor{
		container.Define("A:Group").Type("Named").Args("a").Descriptor(),
		container.Define("B:Group").Type("Named").Args("b").Descriptor(),
		container.Define("Other").Type("Named").Args("other").Descriptor(),
		container.Define("C:Group").Type("Named").Args("c").Descriptor(),
		container.Define("Chain").Type("Chain").Args("@:Group").Descriptor(),
		container.Define("LazyChain").Type("Chain").Args("%:Group::label").Descriptor(),
		container.Define("Empty").Type("Chain").Args("@:Nothing").Descriptor(),
	}
}

func TestGet_GroupExpansionIsOrdered(t *testing.T) {
	c := newContainer(t, groupDescriptors()...)

	// Resolution history must not influence ordering.
	get[*Named](t, c, "C:Group")
	get[*Named](t, c, "A:Group")

	chain := get[*Chain](t, c, "Chain")
	require.Equal(t, 3, chain.Members.Len())
	assert.Equal(t, []string{"A", "B", "C"}, chain.Members.Names())

	b, ok := chain.Members.Get("B")
	require.True(t, ok)
	assert.Same(t, get[*Named](t, c, "B:Group"), b)
}

func TestGet_LazyGroupWithMethod(t *testing.T) {
	c := newContainer(t, groupDescriptors()...)

	chain := get[*Chain](t, c, "LazyChain")
	assert.False(t, c.Resolved("A:Group"))

	var labels []any
	chain.Members.Each(func(name string, v any) bool {
		out, err := v.(container.Callable).Call()
		require.NoError(t, err)
		labels = append(labels, out)
		return true
	})
	assert.Equal(t, []any{"A", "B", "C"}, labels)
}

func TestGet_EmptyGroupIsValid(t *testing.T) {
	c := newContainer(t, groupDescriptors()...)

	chain := get[*Chain](t, c, "Empty")
	assert.Equal(t, 0, chain.Members.Len())
}

func TestGroup_ListsMembers(t *testing.T) {
	c := newContainer(t, groupDescriptors()...)

	assert.Equal(t, []container.GroupMember{
		{Short: "A", Name: "A:Group"},
		{Short: "B", Name: "B:Group"},
		{Short: "C", Name: "C:Group"},
	}, c.Group("Group"))
}

// ── Variables ─────────────────────────────────────────────────────────────────

func TestVariables_SetGet(t *testing.T) {
	c := newContainer(t)

	_, err := c.GetVariable("body")
	assert.ErrorIs(t, err, container.ErrUndefinedVariable)

	c.SetVariable("body", "payload")
	v, err := c.GetVariable("body")
	require.NoError(t, err)
	assert.Equal(t, "payload", v)
}

func TestVariables_CachedServicesKeepOldValue(t *testing.T) {
	c, err := container.New(newRegistry(t), []container.Descriptor{
		container.Define("Echo").Type("Echo").Args("$body").Descriptor(),
		container.Define("Fresh").Type("Echo").Args("$body").Shared(false).Descriptor(),
	}, map[string]any{"body": "first"})
	require.NoError(t, err)

	assert.Equal(t, "first", get[*Echo](t, c, "Echo").Value)

	c.SetVariable("body", "payload")

	assert.Equal(t, "first", get[*Echo](t, c, "Echo").Value)
	assert.Equal(t, "payload", get[*Echo](t, c, "Fresh").Value)
}

func TestGet_UndefinedVariable(t *testing.T) {
	c := newContainer(t, container.Define("Echo").Type("Echo").Args("$body").Descriptor())

	_, err := c.Get("Echo")
	assert.ErrorIs(t, err, container.ErrUndefinedVariable)
}

// ── Errors ────────────────────────────────────────────────────────────────────

func TestGet_MissingDependencyDoesNotCacheDependent(t *testing.T) {
	c := newContainer(t,
		container.Define("Engine").Type("Engine").Descriptor(),
		container.Define("Widget").Type("Widget").Args("@Engine", "@Nope", "red").Descriptor(),
	)

	_, err := c.Get("Widget")
	require.ErrorIs(t, err, container.ErrMissingDependency)
	var missing *container.MissingDependencyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "Nope", missing.Name)
	var build *container.BuildError
	require.ErrorAs(t, err, &build)
	assert.Equal(t, "Widget", build.Service)

	assert.False(t, c.Resolved("Widget"))
}

func TestGet_UnknownService(t *testing.T) {
	c := newContainer(t)

	_, err := c.Get("Nope")
	assert.ErrorIs(t, err, container.ErrMissingDependency)
	assert.False(t, c.Has("Nope"))
}

func TestGet_MissingType(t *testing.T) {
	c := newContainer(t,
		container.Define("Ghost").Type("Ghost").Descriptor(),
		container.Define("NoFactory").Type("Engine").Factory("nope").Descriptor(),
		container.Define("NoFunc").Factory("nope").Descriptor(),
		container.Define("Arity").Type("Gadget").Descriptor(),
	)

	for _, name := range []string{"Ghost", "NoFactory", "NoFunc", "Arity"} {
		_, err := c.Get(name)
		assert.ErrorIs(t, err, container.ErrMissingType, name)
	}
}

func TestNew_RejectsBadDescriptors(t *testing.T) {
	tests := []struct {
		name string
		ds   []container.Descriptor
		want error
	}{
		{"no type", []container.Descriptor{{Name: "X"}}, container.ErrBadConfiguration},
		{"no name", []container.Descriptor{{Type: "Engine"}}, container.ErrBadConfiguration},
		{"duplicate", []container.Descriptor{{Name: "X", Type: "Engine"}, {Name: "X", Type: "Engine"}}, container.ErrBadConfiguration},
		{"args and config", []container.Descriptor{{Name: "X", Type: "Engine", Arguments: []any{1}, Config: map[string]any{}}}, container.ErrBadConfiguration},
		{"bad token", []container.Descriptor{{Name: "X", Type: "Engine", Arguments: []any{"@"}}}, container.ErrInvalidReference},
		{"bad filter", []container.Descriptor{{Name: "X", Type: "Engine", Filters: []string{"$x::y"}}}, container.ErrInvalidReference},
		{"unknown parent", []container.Descriptor{{Name: "X", Parent: "Y-parent"}}, container.ErrBadConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := container.New(newRegistry(t), tt.ds, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGet_CircularDependency(t *testing.T) {
	c := newContainer(t,
		container.Define("Self").Type("Node").Args("@Self").Descriptor(),
		container.Define("A").Type("Node").Args("@B").Descriptor(),
		container.Define("B").Type("Node").Args("@A").Descriptor(),
	)

	_, err := c.Get("Self")
	assert.ErrorIs(t, err, container.ErrCircularDependency)

	_, err = c.Get("A")
	require.ErrorIs(t, err, container.ErrCircularDependency)
	var cycle *container.CircularDependencyError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"A", "B", "A"}, cycle.Chain)
}

func TestGet_LazyInvokedDuringOwnConstructionIsCircular(t *testing.T) {
	reg := newRegistry(t)
	require.NoError(t, reg.RegisterConstructor("Eager", func(l *container.Lazy) (*Node, error) {
		peer, err := l.Get()
		return &Node{Peer: peer}, err
	}))
	c, err := container.New(reg, []container.Descriptor{
		container.Define("Loop").Type("Eager").Args("%Loop").Descriptor(),
	}, nil)
	require.NoError(t, err)

	_, err = c.Get("Loop")
	assert.ErrorIs(t, err, container.ErrCircularDependency)
}

// ── Hooks ─────────────────────────────────────────────────────────────────────

func TestGet_MethodInjectionPassesKey(t *testing.T) {
	c := newContainer(t,
		container.Define("Engine").Type("Engine").Descriptor(),
		container.Define("Node").Type("Node").Args(nil).
			Call("setPeer", "@Engine").
			Call("setColor", "blue").
			Call("setPeer", "@?Nope").
			Descriptor(),
	)

	n := get[*Node](t, c, "Node")

	assert.Same(t, get[*Engine](t, c, "Engine"), n.Peer)
	assert.Equal(t, []string{"setPeer"}, n.Keys, "absent optional setters are skipped")
	assert.Equal(t, "blue", n.Color)
}

func TestGet_SetterInjectionAllowsSharedCycles(t *testing.T) {
	c := newContainer(t,
		container.Define("A").Type("Node").Args(nil).Call("setPeer", "@B").Descriptor(),
		container.Define("B").Type("Node").Args("@A").Descriptor(),
	)

	a := get[*Node](t, c, "A")
	b := get[*Node](t, c, "B")
	assert.Same(t, b, a.Peer)
	assert.Same(t, a, b.Peer)
}

func TestGet_FailedSetterEvictsInstance(t *testing.T) {
	c := newContainer(t,
		container.Define("Node").Type("Node").Args(nil).Call("noSuchMethod", "x").Descriptor(),
	)

	_, err := c.Get("Node")
	assert.ErrorIs(t, err, container.ErrBadConfiguration)
	assert.False(t, c.Resolved("Node"))
}

func TestGet_FiltersRewriteArguments(t *testing.T) {
	c := newContainer(t,
		container.Define("Defaults").Type("Defaults").Descriptor(),
		container.Define("Pair").Type("Pair").Args("left").
			Filter("@Defaults::apply", "upper").
			Descriptor(),
	)

	v, err := c.Get("Pair")
	require.NoError(t, err)
	assert.Equal(t, []string{"LEFT", "FILLED"}, v)
}

func TestGet_ListenersObserveInstance(t *testing.T) {
	c := newContainer(t,
		container.Define("Audit").Type("Audit").Descriptor(),
		container.Define("Echo").Type("Echo").Args("x").Shared(false).Listen("@Audit::record").Descriptor(),
	)

	first := get[*Echo](t, c, "Echo")
	second := get[*Echo](t, c, "Echo")

	audit := get[*Audit](t, c, "Audit")
	assert.Equal(t, []any{first, second}, audit.Seen)
}

func TestGet_ListenerErrorPropagates(t *testing.T) {
	reg := newRegistry(t)
	require.NoError(t, reg.RegisterFunc("reject", func(any) error { return assert.AnError }))
	c, err := container.New(reg, []container.Descriptor{
		container.Define("Engine").Type("Engine").Listen("reject").Descriptor(),
	}, nil)
	require.NoError(t, err)

	_, err = c.Get("Engine")
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, c.Resolved("Engine"))
}

// ── Strategies ────────────────────────────────────────────────────────────────

func TestGet_FixedArityConstructorsPreferred(t *testing.T) {
	reg := container.NewRegistry()
	var used []string
	require.NoError(t, reg.Register("Multi", container.Type{
		New0: func() (any, error) { used = append(used, "0"); return 0, nil },
		New1: func(a any) (any, error) { used = append(used, "1"); return a, nil },
		New2: func(a, b any) (any, error) { used = append(used, "2"); return []any{a, b}, nil },
		New:  func(args ...any) (any, error) { used = append(used, "n"); return args, nil },
	}))
	c, err := container.New(reg, []container.Descriptor{
		container.Define("zero").Type("Multi").Descriptor(),
		container.Define("one").Type("Multi").Args(1).Descriptor(),
		container.Define("two").Type("Multi").Args(1, 2).Descriptor(),
		container.Define("three").Type("Multi").Args(1, 2, 3).Descriptor(),
	}, nil)
	require.NoError(t, err)

	for _, name := range []string{"zero", "one", "two", "three"} {
		_, err := c.Get(name)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"0", "1", "2", "n"}, used)
}

// ── Descriptors ───────────────────────────────────────────────────────────────

func TestGet_ParentInheritance(t *testing.T) {
	c := newContainer(t,
		container.Define("echo-parent").Type("Echo").Args("inherited").Shared(false).Descriptor(),
		container.Define("Plain").Extends("echo-parent").Descriptor(),
		container.Define("Override").Extends("echo-parent").Args("own").Descriptor(),
	)

	plain := get[*Echo](t, c, "Plain")
	assert.Equal(t, "inherited", plain.Value)
	assert.NotSame(t, plain, get[*Echo](t, c, "Plain"), "shared flag is inherited")
	assert.Equal(t, "own", get[*Echo](t, c, "Override").Value)

	_, err := c.Get("echo-parent")
	assert.ErrorIs(t, err, container.ErrBadConfiguration)
	assert.Equal(t, []string{"Plain", "Override"}, c.Names())
}

func TestSetDescriptors_KeepsCache(t *testing.T) {
	c := newContainer(t, container.Define("Echo").Type("Echo").Args("old").Descriptor())
	old := get[*Echo](t, c, "Echo")

	require.NoError(t, c.SetDescriptors([]container.Descriptor{
		container.Define("Echo").Type("Echo").Args("new").Descriptor(),
		container.Define("Other").Type("Echo").Args("new").Descriptor(),
	}))

	assert.Same(t, old, get[*Echo](t, c, "Echo"))
	assert.Equal(t, "new", get[*Echo](t, c, "Other").Value)
}

func TestSetDescriptors_InvalidLeavesStoreUntouched(t *testing.T) {
	c := newContainer(t, container.Define("Echo").Type("Echo").Args("old").Descriptor())

	err := c.SetDescriptors([]container.Descriptor{{Name: "Broken"}})
	require.ErrorIs(t, err, container.ErrBadConfiguration)

	assert.Equal(t, []string{"Echo"}, c.Names())
}

func TestDefiner_AddsAndReplaces(t *testing.T) {
	c := newContainer(t)

	require.NoError(t, c.Service("Echo").Type("Echo").Args("one").Shared(false).Add())
	assert.Equal(t, "one", get[*Echo](t, c, "Echo").Value)

	require.NoError(t, c.Service("Echo").Type("Echo").Args("two").Add())
	assert.Equal(t, "two", get[*Echo](t, c, "Echo").Value)

	err := container.Define("Detached").Type("Echo").Add()
	assert.ErrorIs(t, err, container.ErrBadConfiguration)
}

// ── Resolve / Call ────────────────────────────────────────────────────────────

func TestResolve_Tokens(t *testing.T) {
	c, err := container.New(newRegistry(t), []container.Descriptor{
		container.Define("H").Type("Doubler").Descriptor(),
	}, map[string]any{"n": 5})
	require.NoError(t, err)

	v, err := c.Resolve([]any{"$n", "@?Nope", "ignored"})
	require.NoError(t, err)
	assert.Equal(t, []any{5}, v)

	v, err = c.Resolve("$?missing")
	require.NoError(t, err)
	assert.True(t, container.IsAbsent(v))

	out, err := c.Call("@H::double", 4)
	require.NoError(t, err)
	assert.Equal(t, 8, out)
}
