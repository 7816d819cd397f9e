package container_test

import (
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-wiring/framework/container"
)

// ── fixtures ──────────────────────────────────────────────────────────────────

var builds atomic.Int64

type Engine struct{ ID int64 }

func NewEngine() *Engine { return &Engine{ID: builds.Add(1)} }

type Painter struct{ ID int64 }

func NewPainter() *Painter { return &Painter{ID: builds.Add(1)} }

type Widget struct {
	Engine  *Engine
	Painter *Painter
	Color   string
}

func NewWidget(e *Engine, p *Painter, color string) *Widget {
	return &Widget{Engine: e, Painter: p, Color: color}
}

type Doubler struct{ Built int64 }

func (Doubler) Double(n int) int { return n * 2 }

type Gadget struct {
	Fn container.Callable
	N  int
}

// Options takes optional trailing parameters.
type Options struct {
	Name  string
	Port  int
	Label string
}

func NewOptions(name string, port int, label string) *Options {
	if port == 0 {
		port = 8080
	}
	if label == "" {
		label = "default"
	}
	return &Options{Name: name, Port: port, Label: label}
}

type Settings struct{ Values map[string]any }

func NewSettings(values map[string]any) *Settings { return &Settings{Values: values} }

type Named struct{ Name string }

func NewNamed(name string) *Named { return &Named{Name: name} }

func (n *Named) Label() string { return strings.ToUpper(n.Name) }

type Chain struct{ Members *container.Group }

func NewChain(g *container.Group) *Chain { return &Chain{Members: g} }

type Echo struct{ Value any }

func NewEcho(v any) *Echo { return &Echo{Value: v} }

// Node holds optional peers, set by constructor or by setters.
type Node struct {
	Peer  any
	Keys  []string
	Color string
}

func NewNode(peer any) *Node { return &Node{Peer: peer} }

func (n *Node) SetPeer(peer any, key string) {
	n.Peer = peer
	n.Keys = append(n.Keys, key)
}

func (n *Node) SetColor(color string) { n.Color = color }

type Audit struct{ Seen []any }

func (a *Audit) Record(instance any) { a.Seen = append(a.Seen, instance) }

type Defaults struct{}

// Apply fills a missing second argument.
func (Defaults) Apply(args []any) []any {
	if len(args) < 2 {
		args = append(args, "filled")
	}
	return args
}

// ── helpers ───────────────────────────────────────────────────────────────────

func newRegistry(t *testing.T) *container.Registry {
	t.Helper()
	reg := container.NewRegistry()
	must := func(err error) {
		t.Helper()
		require.NoError(t, err)
	}
	must(reg.RegisterConstructor("Engine", NewEngine))
	must(reg.RegisterConstructor("Painter", NewPainter))
	must(reg.RegisterConstructor("Widget", NewWidget))
	must(reg.RegisterConstructor("Doubler", func() *Doubler { return &Doubler{Built: builds.Add(1)} }))
	must(reg.RegisterFactory("Gadget", "build", func(fn container.Callable, n int) *Gadget {
		return &Gadget{Fn: fn, N: n}
	}))
	must(reg.RegisterConstructor("Options", NewOptions))
	must(reg.RegisterConstructor("Settings", NewSettings))
	must(reg.RegisterConstructor("Named", NewNamed))
	must(reg.RegisterConstructor("Chain", NewChain))
	must(reg.RegisterConstructor("Echo", NewEcho))
	must(reg.RegisterConstructor("Node", NewNode))
	must(reg.RegisterConstructor("Audit", func() *Audit { return &Audit{} }))
	must(reg.RegisterConstructor("Defaults", func() Defaults { return Defaults{} }))
	must(reg.RegisterConstructor("Pair", func(a, b string) []string { return []string{a, b} }))
	must(reg.RegisterFunc("upper", func(args []any) []any {
		out := make([]any, len(args))
		for i, a := range args {
			if s, ok := a.(string); ok {
				a = strings.ToUpper(s)
			}
			out[i] = a
		}
		return out
	}))
	return reg
}

func newContainer(t *testing.T, descriptors ...container.Descriptor) *container.Container {
	t.Helper()
	c, err := container.New(newRegistry(t), descriptors, nil)
	require.NoError(t, err)
	return c
}

func get[T any](t *testing.T, c *container.Container, name string) T {
	t.Helper()
	v, err := container.Resolve[T](c, name)
	require.NoError(t, err)
	return v
}
