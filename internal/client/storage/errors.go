package storage

import "errors"

// Common client storage errors
var (
	// ErrItemNotFound indicates that a record with the given ID does not exist
	ErrItemNotFound = errors.New("item not found")

	// ErrStoreNotFound indicates that the named store was never created
	ErrStoreNotFound = errors.New("store not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")

	// ErrNotSupported indicates that the engine cannot run in this environment
	ErrNotSupported = errors.New("storage engine not supported")

	// ErrNotInitialised indicates that the entity stores were never created
	ErrNotInitialised = errors.New("storage not initialised")
)
