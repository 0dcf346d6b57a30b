// Package kv provides a small key-value store abstraction with path-shaped
// keys. A Key is a slice of segments (e.g. ["preset", "default"]) encoded
// with a separator byte (default '/').
//
// Two backends are provided: BadgerDB for on-disk profiles and an in-memory
// store for tests. Open selects a backend from a URL.
package kv

import (
	"context"
	"errors"
	"iter"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// DefaultSeparator joins key segments in the encoded form.
const DefaultSeparator byte = '/'

// Key is a hierarchical path of segments. Segments must not contain the
// configured separator character.
type Key []string

// String renders the key for logs and error messages.
func (k Key) String() string {
	return strings.Join(k, string(DefaultSeparator))
}

// Append returns a new key with extra segments added.
func (k Key) Append(segs ...string) Key {
	out := make(Key, 0, len(k)+len(segs))
	out = append(out, k...)
	return append(out, segs...)
}

// Entry is one key-value pair, as produced by List and consumed by BatchSet.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a key-value store with path-shaped keys. Implementations must be
// safe for concurrent use.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores key=value, overwriting any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error

	// List yields all entries under prefix in lexicographic order of the
	// encoded key. The prefix matches whole segments: ["a","b"] matches
	// ["a","b","c"] but not ["a","bc"]. An empty prefix lists everything.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchSet stores several entries in one write.
	BatchSet(ctx context.Context, entries []Entry) error

	// BatchDelete removes several keys in one write.
	BatchDelete(ctx context.Context, keys []Key) error

	// Close releases resources held by the store.
	Close() error
}

// Options configures key encoding.
type Options struct {
	// Separator joins key segments in the encoded form. Zero means
	// DefaultSeparator.
	Separator byte
}

func (o *Options) sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

func (o *Options) encode(k Key) []byte {
	return []byte(strings.Join(k, string(o.sep())))
}

func (o *Options) decode(b []byte) Key {
	return Key(strings.Split(string(b), string(o.sep())))
}

// scanPrefix returns the encoded prefix for List: segment-aligned, so the
// stored key must continue with a separator after the prefix. Empty prefix
// returns nil (scan everything).
func (o *Options) scanPrefix(prefix Key) []byte {
	if len(prefix) == 0 {
		return nil
	}
	return append(o.encode(prefix), o.sep())
}
