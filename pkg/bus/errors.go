package bus

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by key derivation. Both are raised eagerly at
// Handle construction, never during publish: a handle that constructs
// successfully cannot fail a later bus operation.
var (
	// ErrInvalidKey indicates an empty or duplicated key in a derived
	// key sequence.
	ErrInvalidKey = errors.New("invalid key")

	// ErrKeyLengthMismatch indicates a key sequence whose length does not
	// match the dataset's row count.
	ErrKeyLengthMismatch = errors.New("key length mismatch")
)

// KeyError describes exactly which row of a key sequence failed validation.
// It wraps ErrInvalidKey so callers can test with IsInvalidKey or errors.Is.
type KeyError struct {
	Row    int    // zero-based row index of the offending key
	Key    Key    // the offending key ("" when the key was empty)
	Reason string // human-readable cause, e.g. "empty key" or "duplicate of row 2"
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("invalid key at row %d (%q): %s", e.Row, e.Key, e.Reason)
}

func (e *KeyError) Unwrap() error {
	return ErrInvalidKey
}

// IsInvalidKey returns true if the error is (or wraps) ErrInvalidKey.
func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}

// IsKeyLengthMismatch returns true if the error is (or wraps) ErrKeyLengthMismatch.
func IsKeyLengthMismatch(err error) bool {
	return errors.Is(err, ErrKeyLengthMismatch)
}
