package storage

import "context"

// Record is a single serialized entity keyed by its ID.
type Record struct {
	Data []byte
	ID   int64
}

// Engine defines the low-level persistent store used by the repository.
// An engine holds named stores of records and a key/value settings map.
// It works with raw bytes and knows nothing about entities or namespaces.
type Engine interface {
	SettingsStorage

	// IsSupported reports whether the engine can be used in this environment
	IsSupported() bool

	// HasStores reports whether any store has been created yet
	HasStores(ctx context.Context) (bool, error)

	// CreateStores idempotently creates the named stores
	CreateStores(ctx context.Context, names []string) error

	// StoreNames returns the names of all existing stores
	StoreNames(ctx context.Context) ([]string, error)

	// Put inserts or replaces records by ID
	Put(ctx context.Context, store string, records []Record) error

	// Get returns a single record
	// Returns ErrItemNotFound if the record doesn't exist
	Get(ctx context.Context, store string, id int64) ([]byte, error)

	// All returns every record of a store ordered by ascending ID
	All(ctx context.Context, store string) ([]Record, error)

	// Delete removes records by ID; missing IDs are ignored
	Delete(ctx context.Context, store string, ids []int64) error

	// Clear removes every record of a store but keeps the store
	Clear(ctx context.Context, store string) error

	// DropAll removes every store and every setting
	DropAll(ctx context.Context) error

	// Close releases the underlying resources
	Close() error
}
