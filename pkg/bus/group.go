package bus

import "sync"

// Group is a named scope within which variables are shared; it is the unit
// of linking. Group identity is purely nominal: two handles constructed with
// the same group name are linked by definition, with no validation that
// their key universes correspond.
//
// A Group with zero handles is valid and serves reads: its selection is
// empty and its filter unconstrained.
type Group struct {
	name string

	// mu guards the variable map, every variable's state and the filter
	// aggregator, so a publish plus its subscriber snapshot is one
	// critical section. Groups are independent; no lock spans two.
	mu        sync.Mutex
	variables map[string]*Variable
	agg       *aggregator
}

func newGroup(name string) *Group {
	return &Group{
		name:      name,
		variables: make(map[string]*Variable),
		agg:       newAggregator(),
	}
}

// Name returns the group's name.
func (g *Group) Name() string {
	return g.name
}

// Var returns the named variable, creating it on first access.
func (g *Group) Var(name string) *Variable {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.varLocked(name)
}

func (g *Group) varLocked(name string) *Variable {
	v, ok := g.variables[name]
	if !ok {
		v = &Variable{group: g, name: name}
		g.variables[name] = v
	}
	return v
}

// VarNames returns the names of all variables created so far, sorted.
func (g *Group) VarNames() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make(KeySet, len(g.variables))
	for name := range g.variables {
		names.Add(Key(name))
	}
	return names.Strings()
}

// Selection returns the group's current selection, or an empty set if no
// selection was ever published.
func (g *Group) Selection() KeySet {
	if ks := asKeySet(g.Var(VarSelection).Get()); ks != nil {
		return ks.Clone()
	}
	return NewKeySet()
}

// Filter returns the group's effective filter. The second result is false
// when no filter contribution is active; the first result is then nil and
// every key should be treated as visible.
func (g *Group) Filter() (KeySet, bool) {
	ks := asKeySet(g.Var(VarFilter).Get())
	if ks == nil {
		return nil, false
	}
	return ks.Clone(), true
}

// republishFilter recomputes the effective filter and publishes it on the
// group's filter variable if it changed. Called after any contribution or
// membership change, outside the group lock.
func (g *Group) republishFilter() {
	g.mu.Lock()
	eff, active := g.agg.effective()
	fv := g.varLocked(VarFilter)
	cur := asKeySet(fv.lastQueuedLocked())

	if !active && cur == nil {
		g.mu.Unlock()
		return
	}
	if active && cur != nil && cur.Equal(eff) {
		g.mu.Unlock()
		return
	}
	// Enqueue under the same lock as the recompute so concurrent
	// recomputes stay totally ordered on the filter variable; a stale
	// effective set can never be published after a fresher one.
	// setLocked releases the lock.
	if active {
		fv.setLocked(eff)
	} else {
		fv.setLocked(nil)
	}
}

// asKeySet interprets a variable value as a KeySet. Unset values, explicit
// nils and foreign value types all read as nil (no keys / no constraint).
func asKeySet(value any) KeySet {
	ks, ok := value.(KeySet)
	if !ok {
		return nil
	}
	return ks
}
