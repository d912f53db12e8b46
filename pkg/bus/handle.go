package bus

import (
	"github.com/google/uuid"
)

// Handle binds one dataset instance's key sequence to one group. It is the
// object widget adapters talk to: publish and read selection, contribute to
// and read the effective filter, and Dispose on unmount. A Handle is owned
// by the component that created it and is not shared across owners; only its
// group name and keys are conceptually shared, mediated by the bus.
type Handle struct {
	id    string
	group *Group
	keys  []Key

	// Guarded by group.mu.
	disposed bool
	subs     []*Subscription
}

// NewHandle derives and validates the dataset's keys, then binds a
// new handle to the named group. An empty groupName yields a fresh unique
// group, so the handle is linked to nothing until another handle reuses the
// generated name (available via GroupName).
//
// Key validation is eager: on ErrInvalidKey or ErrKeyLengthMismatch the
// handle is never registered with any group and no partial state is
// observable anywhere on the bus.
func NewHandle(b *Bus, groupName string, ds Dataset, spec KeySpec) (*Handle, error) {
	keys, err := ResolveKeys(ds, spec)
	if err != nil {
		return nil, err
	}
	if groupName == "" {
		groupName = "ct-" + uuid.New().String()
	}
	g := b.Group(groupName)
	h := &Handle{
		id:    uuid.New().String(),
		group: g,
		keys:  keys,
	}
	g.mu.Lock()
	g.agg.register(h.id, keys)
	g.mu.Unlock()
	// A new universe can widen the effective filter for existing
	// contributions, so recompute immediately.
	g.republishFilter()
	return h, nil
}

// ID returns the handle's unique identifier.
func (h *Handle) ID() string {
	return h.id
}

// GroupName returns the name of the group this handle is bound to.
func (h *Handle) GroupName() string {
	return h.group.name
}

// Group returns the group this handle is bound to.
func (h *Handle) Group() *Group {
	return h.group
}

// Keys returns the handle's key sequence, parallel to the dataset's rows.
func (h *Handle) Keys() []Key {
	out := make([]Key, len(h.keys))
	copy(out, h.keys)
	return out
}

// PublishSelection replaces the group's selection with the given keys and
// notifies every subscriber before returning. The keys are stored as given:
// they may legitimately belong to a differently-keyed, group-linked dataset,
// so no subset check is performed. A nil set publishes an empty selection.
func (h *Handle) PublishSelection(keys KeySet) {
	if h.isDisposed() {
		return
	}
	h.group.Var(VarSelection).Set(cloneOrEmpty(keys))
}

// ClearSelection publishes an empty selection.
func (h *Handle) ClearSelection() {
	h.PublishSelection(nil)
}

// Selection returns the group's current selection, or an empty set if none
// was ever published.
func (h *Handle) Selection() KeySet {
	return h.group.Selection()
}

// PublishFilter asserts this handle's filter contribution: exactly the given
// keys from this handle's universe are visible. A nil or empty set asserts
// that zero rows pass, which is not the same as having no filter; use
// ClearFilter to retract the contribution entirely. The group's effective
// filter is recomputed and republished before PublishFilter returns.
func (h *Handle) PublishFilter(keys KeySet) {
	g := h.group
	g.mu.Lock()
	if h.disposed {
		g.mu.Unlock()
		return
	}
	g.agg.setContribution(h.id, cloneOrEmpty(keys))
	g.mu.Unlock()
	g.republishFilter()
}

// ClearFilter retracts this handle's filter contribution, returning it to
// the "no constraint" state.
func (h *Handle) ClearFilter() {
	g := h.group
	g.mu.Lock()
	if h.disposed {
		g.mu.Unlock()
		return
	}
	g.agg.clearContribution(h.id)
	g.mu.Unlock()
	g.republishFilter()
}

// Filter returns the group-wide effective filter, not this handle's own
// contribution. The second result is false when no contribution is active
// anywhere in the group, meaning every key is visible.
func (h *Handle) Filter() (KeySet, bool) {
	return h.group.Filter()
}

// VisibleKeys applies the effective filter to this handle's own keys,
// preserving row order. With no active filter it returns all keys.
func (h *Handle) VisibleKeys() []Key {
	eff, active := h.Filter()
	if !active {
		return h.Keys()
	}
	out := make([]Key, 0, len(h.keys))
	for _, k := range h.keys {
		if eff.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// OnSelection subscribes to selection changes in this handle's group. The
// subscription is owned by the handle and closed by Dispose.
func (h *Handle) OnSelection(fn func(KeySet)) *Subscription {
	sub := h.group.Var(VarSelection).Subscribe(func(value any) {
		if ks := asKeySet(value); ks != nil {
			fn(ks.Clone())
		} else {
			fn(NewKeySet())
		}
	})
	h.track(sub)
	return sub
}

// OnFilter subscribes to effective-filter changes in this handle's group.
// The callback receives (nil, false) when the filter becomes unconstrained.
// The subscription is owned by the handle and closed by Dispose.
func (h *Handle) OnFilter(fn func(KeySet, bool)) *Subscription {
	sub := h.group.Var(VarFilter).Subscribe(func(value any) {
		if ks := asKeySet(value); ks != nil {
			fn(ks.Clone(), true)
		} else {
			fn(nil, false)
		}
	})
	h.track(sub)
	return sub
}

// Var returns the named variable of this handle's group, for extensions
// beyond selection and filter.
func (h *Handle) Var(name string) *Variable {
	return h.group.Var(name)
}

// Dispose removes all trace of the handle: its filter contribution is
// retracted (reflected in the very next aggregation), its subscriptions are
// closed so no further callbacks reach its owner, and its keys leave the
// group universe. Idempotent; publish calls after Dispose are no-ops.
func (h *Handle) Dispose() {
	g := h.group
	g.mu.Lock()
	if h.disposed {
		g.mu.Unlock()
		return
	}
	h.disposed = true
	subs := h.subs
	h.subs = nil
	g.agg.deregister(h.id)
	g.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	g.republishFilter()
}

func (h *Handle) isDisposed() bool {
	h.group.mu.Lock()
	defer h.group.mu.Unlock()
	return h.disposed
}

func (h *Handle) track(sub *Subscription) {
	g := h.group
	g.mu.Lock()
	if h.disposed {
		// Late subscription on a dead handle: close it immediately
		// rather than leak a callback into a torn-down adapter.
		g.mu.Unlock()
		sub.Close()
		return
	}
	h.subs = append(h.subs, sub)
	g.mu.Unlock()
}

// cloneOrEmpty copies the given set, mapping nil to an empty set so stored
// values are always non-nil (nil is reserved for "unset"/"unconstrained").
func cloneOrEmpty(keys KeySet) KeySet {
	if keys == nil {
		return NewKeySet()
	}
	return keys.Clone()
}
