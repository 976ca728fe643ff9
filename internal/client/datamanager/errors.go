package datamanager

import "errors"

// Ошибки менеджера данных
var (
	// ErrBootstrapOffline indicates that the local store was never initialised
	// and the server is not available to prime it. The application can't run.
	ErrBootstrapOffline = errors.New("local store is not initialised and client is offline")

	// ErrCrossEntityIntegrity indicates a batch whose entities reference a
	// locally created entity of a type that is not part of the same batch.
	ErrCrossEntityIntegrity = errors.New("batch references a local entity outside the batch")

	// ErrPushFailed indicates that local changes could not be delivered and
	// were kept for the next synchronization.
	ErrPushFailed = errors.New("failed to push local changes")

	// ErrPendingChanges indicates a pull requested while local changes are
	// still waiting to be pushed; the pull would discard them.
	ErrPendingChanges = errors.New("local changes are pending, synchronize instead")

	// ErrUnknownType indicates an entity type the manager was not configured with
	ErrUnknownType = errors.New("unknown entity type")

	// ErrIncompleteResults indicates that the server did not return a result
	// for every entity of a batch
	ErrIncompleteResults = errors.New("server returned incomplete results")
)
