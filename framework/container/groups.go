package container

import (
	"strings"
	"sync"
)

// Group is the ordered result of expanding a group reference. Members keep
// the insertion order of their descriptors.
type Group struct {
	names  []string
	values map[string]any
}

func newGroup(size int) *Group {
	return &Group{
		names:  make([]string, 0, size),
		values: make(map[string]any, size),
	}
}

func (g *Group) add(name string, v any) {
	if _, ok := g.values[name]; !ok {
		g.names = append(g.names, name)
	}
	g.values[name] = v
}

// Len returns the number of members.
func (g *Group) Len() int { return len(g.names) }

// Names returns member short names in order.
func (g *Group) Names() []string {
	return append([]string(nil), g.names...)
}

// Get returns the value of one member.
func (g *Group) Get(name string) (any, bool) {
	v, ok := g.values[name]
	return v, ok
}

// Values returns member values in order.
func (g *Group) Values() []any {
	out := make([]any, len(g.names))
	for i, name := range g.names {
		out[i] = g.values[name]
	}
	return out
}

// Each calls fn for every member in order until fn returns false.
func (g *Group) Each(fn func(name string, v any) bool) {
	for _, name := range g.names {
		if !fn(name, g.values[name]) {
			return
		}
	}
}

// Map copies the members into a plain map.
func (g *Group) Map() map[string]any {
	out := make(map[string]any, len(g.values))
	for k, v := range g.values {
		out[k] = v
	}
	return out
}

// GroupMember maps a member short name to its full descriptor name.
type GroupMember struct {
	Short string
	Name  string
}

// groupIndex memoizes group lookups for one store.
type groupIndex struct {
	store *store

	mu      sync.Mutex
	byGroup map[string][]GroupMember
}

func newGroupIndex(s *store) *groupIndex {
	return &groupIndex{store: s, byGroup: make(map[string][]GroupMember)}
}

// members returns every concrete descriptor named "<short>:<group>" in store
// order. An unpopulated group yields nil.
func (idx *groupIndex) members(group string) []GroupMember {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if m, ok := idx.byGroup[group]; ok {
		return m
	}
	suffix := string(groupMark) + group
	var out []GroupMember
	for _, name := range idx.store.order {
		if !strings.HasSuffix(name, suffix) || len(name) == len(suffix) {
			continue
		}
		if idx.store.byName[name].IsAbstract() {
			continue
		}
		out = append(out, GroupMember{Short: strings.TrimSuffix(name, suffix), Name: name})
	}
	idx.byGroup[group] = out
	return out
}
