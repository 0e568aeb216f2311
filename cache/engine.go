package cache

import (
	"context"
)

// Engine is the storage contract every backend satisfies. It works on
// encoded records; typing and serialization happen in the facade because Go
// does not allow generic methods on interfaces.
//
// Implementations must be safe for concurrent use.
type Engine interface {
	// Insert stores record under key in col, replacing any previous record.
	// The record expires col.TTLSeconds() seconds after insertion.
	Insert(ctx context.Context, col Column, key []byte, record []byte) error
	// Get returns the exact bytes previously inserted, or ErrNotFound if the
	// key is absent or expired.
	Get(ctx context.Context, col Column, key []byte) ([]byte, error)
	// Remove deletes the record if present. Removing a missing key succeeds.
	Remove(ctx context.Context, col Column, key []byte) error
	// Exists reports whether a live record exists without reading it.
	Exists(ctx context.Context, col Column, key []byte) (bool, error)
	// DropColumn removes every record in col.
	DropColumn(ctx context.Context, col Column) error
	// Close releases the engine's resources.
	Close() error
}

// Purger is implemented by engines that can physically delete expired
// records on demand.
type Purger interface {
	// Purge deletes expired records and returns how many were removed.
	Purge(ctx context.Context) (int64, error)
}
