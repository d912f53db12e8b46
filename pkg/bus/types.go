package bus

import "sort"

// Key identifies one logical data row across all widgets and datasets in a
// group. Keys are opaque: the bus never interprets them beyond equality.
type Key string

// Standard variable names present in every group. Additional variable names
// may be used freely; these two are the ones the Handle API reads and writes.
const (
	VarSelection = "selection"
	VarFilter    = "filter"
)

// KeySet is an unordered set of keys. The zero value (nil) is usable for
// reads but Add requires a set created with NewKeySet.
//
// A nil KeySet and an empty KeySet are deliberately distinct where filters
// are concerned: nil means "no constraint", empty means "zero rows pass".
type KeySet map[Key]struct{}

// NewKeySet creates a set containing the given keys.
func NewKeySet(keys ...Key) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Add inserts a key into the set.
func (s KeySet) Add(k Key) {
	s[k] = struct{}{}
}

// Has reports whether the set contains k.
func (s KeySet) Has(k Key) bool {
	_, ok := s[k]
	return ok
}

// Len returns the number of keys in the set.
func (s KeySet) Len() int {
	return len(s)
}

// Clone returns an independent copy of the set. Cloning nil returns nil,
// preserving the unconstrained sentinel.
func (s KeySet) Clone() KeySet {
	if s == nil {
		return nil
	}
	out := make(KeySet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Equal reports whether both sets contain exactly the same keys.
// A nil set equals an empty set here; filter-state comparisons that need to
// distinguish the two check for nil explicitly.
func (s KeySet) Equal(other KeySet) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if !other.Has(k) {
			return false
		}
	}
	return true
}

// Intersect returns a new set containing keys present in both sets.
func (s KeySet) Intersect(other KeySet) KeySet {
	out := make(KeySet)
	for k := range s {
		if other.Has(k) {
			out[k] = struct{}{}
		}
	}
	return out
}

// Union returns a new set containing keys present in either set.
func (s KeySet) Union(other KeySet) KeySet {
	out := make(KeySet, len(s)+len(other))
	for k := range s {
		out[k] = struct{}{}
	}
	for k := range other {
		out[k] = struct{}{}
	}
	return out
}

// Subtract returns a new set containing keys in s that are not in other.
func (s KeySet) Subtract(other KeySet) KeySet {
	out := make(KeySet)
	for k := range s {
		if !other.Has(k) {
			out[k] = struct{}{}
		}
	}
	return out
}

// Sorted returns the set's keys in lexicographic order. Useful for
// deterministic output and wire encoding.
func (s KeySet) Sorted() []Key {
	out := make([]Key, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the set's keys as sorted plain strings.
func (s KeySet) Strings() []string {
	keys := s.Sorted()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}
