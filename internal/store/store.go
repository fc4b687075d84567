// Package store provides the persistence layer: a minimal key-value Store
// interface with SQLite and in-memory backends. Sessions, custom templates,
// and settings are kept as JSON values under well-known key prefixes so the
// same logic works against either backend.
package store

import "errors"

// Well-known key prefixes.
const (
	PrefixSession     = "session:"
	PrefixSettings    = "settings:"
	KeySessionIndex   = "session:index"
	KeyCustomTemplate = "templates:custom"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Store is the minimal key-value contract the core persists through.
// Values are opaque bytes; callers own serialization.
type Store interface {
	// Get returns the value for key. The bool reports presence.
	Get(key string) ([]byte, bool, error)

	// Set writes the value for key, replacing any previous value.
	Set(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Keys returns all keys with the given prefix, sorted ascending.
	Keys(prefix string) ([]string, error)

	// Close releases the backing resources.
	Close() error
}
