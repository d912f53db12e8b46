package bus

// aggregator tracks per-handle filter contributions for one group and
// computes the group-wide effective filter. All methods are called with the
// owning Group's mutex held.
type aggregator struct {
	// contributions maps handle id to its asserted visible-key set. A
	// handle with no entry asserts no constraint; an entry holding an
	// empty set asserts "zero rows pass". The two are distinct states.
	contributions map[string]KeySet

	// universes maps handle id to that handle's full key universe.
	universes map[string]KeySet

	// universe is the ref-counted union of live handles' universes.
	// Counting handles shared keys across group-linked datasets.
	universe map[Key]int
}

func newAggregator() *aggregator {
	return &aggregator{
		contributions: make(map[string]KeySet),
		universes:     make(map[string]KeySet),
		universe:      make(map[Key]int),
	}
}

// register adds a handle's key universe to the group.
func (a *aggregator) register(id string, keys []Key) {
	u := NewKeySet(keys...)
	a.universes[id] = u
	for k := range u {
		a.universe[k]++
	}
}

// deregister removes a handle's universe and retracts its contribution.
func (a *aggregator) deregister(id string) {
	u, ok := a.universes[id]
	if !ok {
		return
	}
	delete(a.universes, id)
	delete(a.contributions, id)
	for k := range u {
		if a.universe[k]--; a.universe[k] <= 0 {
			delete(a.universe, k)
		}
	}
}

// setContribution records or replaces a handle's filter assertion.
func (a *aggregator) setContribution(id string, keys KeySet) {
	a.contributions[id] = keys
}

// clearContribution retracts a handle's filter assertion, returning the
// handle to the "no constraint" state.
func (a *aggregator) clearContribution(id string) {
	delete(a.contributions, id)
}

// effective computes the group-wide visible-key set. The second result is
// false when zero contributions are active, in which case no filter applies
// at all; that is distinct from an empty (zero rows visible) result.
//
// Because group-linked handles may have disjoint key universes, the
// computation runs over the union of live universes: each active
// contribution excludes exactly (its own universe minus its asserted keys),
// and a key outside a handle's universe is not excluded by that handle. For
// the common case of handles sharing one universe this reduces to plain set
// intersection of the asserted subsets.
func (a *aggregator) effective() (KeySet, bool) {
	if len(a.contributions) == 0 {
		return nil, false
	}
	eff := make(KeySet, len(a.universe))
	for k := range a.universe {
		eff[k] = struct{}{}
	}
	for id, asserted := range a.contributions {
		for k := range a.universes[id] {
			if !asserted.Has(k) {
				delete(eff, k)
			}
		}
	}
	return eff, true
}
