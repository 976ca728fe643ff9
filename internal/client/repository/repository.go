package repository

import (
	"context"

	"github.com/iudanet/entitysync/internal/client/storage"
	"github.com/iudanet/entitysync/internal/models"
)

// Repository defines a typed-list durable store of entities.
// Besides plain type lists it maintains the shadow namespaces
// "UnsavedEntities|<Type>" and "DeletedIDs|<Type>" used to track offline changes.
// The repository never retries: failures are returned to the caller as is.
type Repository interface {
	storage.SettingsStorage

	// IsSupported reports whether the backing engine can be used
	IsSupported() bool

	// IsInitialised reports whether the stores have already been created
	IsInitialised(ctx context.Context) (bool, error)

	// Init idempotently creates every type and its shadow stores
	Init(ctx context.Context, types []string) error

	// GetList returns all entities of a store ordered by ID
	GetList(ctx context.Context, typ string) ([]models.Entity, error)

	// GetItem returns a single entity
	// Returns storage.ErrItemNotFound if the entity doesn't exist
	GetItem(ctx context.Context, typ string, id int64) (models.Entity, error)

	// GetLists returns the lists of all types starting with prefix.
	// The shadow namespace names are routed to GetUnsyncLists.
	GetLists(ctx context.Context, prefix string) (map[string][]models.Entity, error)

	// GetUnsyncLists returns the shadow lists of a namespace keyed by bare type
	GetUnsyncLists(ctx context.Context, namespace string) (map[string][]models.Entity, error)

	// GetDeletedIDs returns the staged deletions keyed by bare type
	GetDeletedIDs(ctx context.Context) (map[string][]int64, error)

	// SaveItem inserts or replaces an entity by ID
	SaveItem(ctx context.Context, typ string, item models.Entity) error

	// SaveList inserts or replaces several entities by ID
	SaveList(ctx context.Context, typ string, items []models.Entity) error

	// DeleteItem removes a single entity, missing IDs are ignored
	DeleteItem(ctx context.Context, typ string, id int64) error

	// DeleteItems removes several entities, missing IDs are ignored
	DeleteItems(ctx context.Context, typ string, ids []int64) error

	// DeleteList clears a store. The logical "UnsavedEntities" list also
	// removes every local-only (negative ID) row of every real type.
	DeleteList(ctx context.Context, name string) error

	// ClearEntireDatabase removes every store and setting
	ClearEntireDatabase(ctx context.Context) error

	// Close releases the backing engine
	Close() error
}

// Sealer encrypts serialized entities before they reach the engine.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}
