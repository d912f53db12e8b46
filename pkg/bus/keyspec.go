package bus

import (
	"fmt"
	"strconv"
)

// Dataset is the minimal view of tabular data the bus needs for key
// derivation. Implementations live with the caller; internal/dataset
// provides a CSV-backed one.
type Dataset interface {
	// NumRows returns the number of rows in the dataset.
	NumRows() int

	// Column returns the values of the named column, one per row.
	// Returns an error if no such column exists.
	Column(name string) ([]string, error)
}

// RowNamer is optionally implemented by datasets that carry row names.
// When present and non-empty, row names are the default key sequence.
type RowNamer interface {
	RowNames() []string
}

// KeySpec describes how to derive a dataset's key sequence. Exactly four
// forms exist: Explicit, Column, Derive and DefaultKeys. The interface is
// sealed; resolution happens in ResolveKeys.
type KeySpec interface {
	resolve(ds Dataset) ([]Key, error)
}

type explicitSpec struct {
	keys []Key
}

type columnSpec struct {
	name string
}

type deriveSpec struct {
	fn func(Dataset) ([]Key, error)
}

type defaultSpec struct{}

// Explicit specifies the key sequence directly. When a dataset is supplied
// at resolution time, the sequence length must equal the row count.
func Explicit(keys ...Key) KeySpec {
	return explicitSpec{keys: keys}
}

// Column specifies that keys are the values of the named dataset column.
func Column(name string) KeySpec {
	return columnSpec{name: name}
}

// Derive specifies a deriving function invoked with the dataset. The
// returned sequence must have one key per row.
func Derive(fn func(Dataset) ([]Key, error)) KeySpec {
	return deriveSpec{fn: fn}
}

// DefaultKeys uses the dataset's row names when it implements RowNamer and
// has non-empty names, and falls back to positional keys "1".."n" otherwise.
func DefaultKeys() KeySpec {
	return defaultSpec{}
}

func (s explicitSpec) resolve(ds Dataset) ([]Key, error) {
	if ds != nil && len(s.keys) != ds.NumRows() {
		return nil, fmt.Errorf("explicit key sequence has %d keys for %d rows: %w",
			len(s.keys), ds.NumRows(), ErrKeyLengthMismatch)
	}
	out := make([]Key, len(s.keys))
	copy(out, s.keys)
	return out, nil
}

func (s columnSpec) resolve(ds Dataset) ([]Key, error) {
	if ds == nil {
		return nil, fmt.Errorf("column key spec %q requires a dataset", s.name)
	}
	values, err := ds.Column(s.name)
	if err != nil {
		return nil, fmt.Errorf("failed to read key column %q: %w", s.name, err)
	}
	out := make([]Key, len(values))
	for i, v := range values {
		out[i] = Key(v)
	}
	return out, nil
}

func (s deriveSpec) resolve(ds Dataset) ([]Key, error) {
	if ds == nil {
		return nil, fmt.Errorf("deriving key spec requires a dataset")
	}
	keys, err := s.fn(ds)
	if err != nil {
		return nil, fmt.Errorf("key deriving function failed: %w", err)
	}
	if len(keys) != ds.NumRows() {
		return nil, fmt.Errorf("key deriving function returned %d keys for %d rows: %w",
			len(keys), ds.NumRows(), ErrKeyLengthMismatch)
	}
	return keys, nil
}

func (s defaultSpec) resolve(ds Dataset) ([]Key, error) {
	if ds == nil {
		return nil, fmt.Errorf("default key spec requires a dataset")
	}
	if rn, ok := ds.(RowNamer); ok {
		if names := rn.RowNames(); len(names) == ds.NumRows() && len(names) > 0 {
			out := make([]Key, len(names))
			for i, n := range names {
				out[i] = Key(n)
			}
			return out, nil
		}
	}
	// Positional fallback, 1-based to match row numbering users see.
	out := make([]Key, ds.NumRows())
	for i := range out {
		out[i] = Key(strconv.Itoa(i + 1))
	}
	return out, nil
}

// ResolveKeys materializes and validates a key sequence from a KeySpec.
// A nil spec means DefaultKeys. Validation is eager: every key must be
// non-empty and unique within the sequence, and the error names the first
// offending row so a broken dataset is rejected before any widget sees it.
func ResolveKeys(ds Dataset, spec KeySpec) ([]Key, error) {
	if spec == nil {
		spec = DefaultKeys()
	}
	keys, err := spec.resolve(ds)
	if err != nil {
		return nil, err
	}
	if err := validateKeys(keys); err != nil {
		return nil, err
	}
	return keys, nil
}

func validateKeys(keys []Key) error {
	seen := make(map[Key]int, len(keys))
	for i, k := range keys {
		if k == "" {
			return &KeyError{Row: i, Key: k, Reason: "empty key"}
		}
		if first, dup := seen[k]; dup {
			return &KeyError{Row: i, Key: k, Reason: fmt.Sprintf("duplicate of row %d", first)}
		}
		seen[k] = i
	}
	return nil
}
