// Package store defines the backing store interface and implementations.
//
// A Store persists the whole database as one snapshot. It knows nothing about
// tables, identifiers or queries: Read returns everything that was last
// written and Write replaces it.
package store

import "errors"

var (
	// ErrUnknownBackend is returned by New for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown store backend")

	// ErrUnknownCompression is returned for an unsupported compression name.
	ErrUnknownCompression = errors.New("unknown compression")

	// ErrCorrupt is returned when persisted bytes cannot be decoded.
	ErrCorrupt = errors.New("corrupt snapshot")
)

// Documents is the content of one table, keyed by the decimal form of each
// document's identifier.
type Documents map[string]map[string]any

// Snapshot is the content of every table, keyed by table name.
type Snapshot map[string]Documents

// Store is the interface that all backing stores must implement.
type Store interface {
	// Read returns the last written snapshot, or an empty snapshot if nothing
	// was ever written. The result is owned by the caller.
	Read() (Snapshot, error)

	// Write replaces the persisted snapshot. Readers never observe a
	// partially written snapshot.
	Write(s Snapshot) error

	// Close releases resources held by the store.
	Close() error
}
