// Package kv provides a small key-value store interface with hierarchical
// path-based keys. Keys are string slices (e.g. ["calendar", "accounts",
// "acme"]) joined with ':' for storage.
//
// voicebridge keeps two kinds of records in KV: knowledge-base documents
// (with their embedding vectors) and calendar account credentials. A
// BadgerDB-backed implementation is used in production; an in-memory
// implementation backs the tests.
package kv

import (
	"context"
	"errors"
	"iter"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// Separator joins key segments in the encoded form. Segments must not
// contain it.
const Separator byte = ':'

// Key is a hierarchical path represented as a slice of string segments.
type Key []string

// String returns the encoded form of the key, for display and storage.
func (k Key) String() string {
	return strings.Join(k, string(Separator))
}

// Entry is a key-value pair yielded by List.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is the interface for a key-value store with path-based keys.
// Implementations must be safe for concurrent use: the relay serves many
// calls at once and they all read through the same store.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a key-value pair, overwriting any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes a key. No error if the key does not exist.
	Delete(ctx context.Context, key Key) error

	// List iterates over all entries under the given prefix, in
	// lexicographic order of the encoded key.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// Close releases any resources held by the store.
	Close() error
}

// encodeKey converts a Key to its stored byte representation.
func encodeKey(k Key) []byte {
	n := 0
	for i, seg := range k {
		if i > 0 {
			n++
		}
		n += len(seg)
	}
	buf := make([]byte, 0, n)
	for i, seg := range k {
		if i > 0 {
			buf = append(buf, Separator)
		}
		buf = append(buf, seg...)
	}
	return buf
}

// decodeKey converts a stored byte representation back to a Key.
func decodeKey(b []byte) Key {
	return Key(strings.Split(string(b), string(Separator)))
}

// prefixBytes returns the encoded prefix with a trailing separator, so
// that ["a","b"] does not match the key ["a","bc"]. An empty prefix
// matches everything.
func prefixBytes(prefix Key) []byte {
	p := encodeKey(prefix)
	if len(p) == 0 {
		return nil
	}
	return append(p, Separator)
}
