package bus

import (
	"sort"
	"sync"
)

// Bus is the per-document registry mapping group name to Group. It is the
// entry point for all lookups and the only shared mutable state in the
// system. A Bus is explicitly constructed and owned by the hosting document
// or session context; there is no package-level instance.
type Bus struct {
	mu     sync.Mutex
	groups map[string]*Group
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		groups: make(map[string]*Group),
	}
}

// Group returns the group with the given name, creating and registering an
// empty one on first reference. Idempotent: the same name always yields the
// same Group for the life of the bus. Groups are never deleted.
func (b *Bus) Group(name string) *Group {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.groups[name]
	if !ok {
		g = newGroup(name)
		b.groups[name] = g
	}
	return g
}

// GroupNames returns the names of all groups referenced so far, sorted.
func (b *Bus) GroupNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.groups))
	for name := range b.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
