// Package local persists entities and pending offline changes in the
// local repository and assigns temporary IDs to entities created offline.
package local

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iudanet/entitysync/internal/client/repository"
	"github.com/iudanet/entitysync/internal/client/storage"
	"github.com/iudanet/entitysync/internal/models"
)

// Provider wraps a Repository with temp-ID assignment and shadow bookkeeping.
type Provider struct {
	repo   repository.Repository
	ids    *IDAllocator
	logger *slog.Logger
}

// NewProvider creates a local data provider.
// A nil allocator gets a wall-clock one, a nil logger falls back to slog.Default().
func NewProvider(repo repository.Repository, ids *IDAllocator, logger *slog.Logger) *Provider {
	if ids == nil {
		ids = NewIDAllocator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		repo:   repo,
		ids:    ids,
		logger: logger,
	}
}

// Settings exposes the key/value settings of the underlying repository.
func (p *Provider) Settings() storage.SettingsStorage {
	return p.repo
}

// IsInitialised reports whether the local stores exist.
func (p *Provider) IsInitialised(ctx context.Context) (bool, error) {
	return p.repo.IsInitialised(ctx)
}

// Init creates the stores and seeds the ID allocator with the lowest
// temporary ID already present, so IDs never collide across restarts.
func (p *Provider) Init(ctx context.Context, types []string) error {
	if err := p.repo.Init(ctx, types); err != nil {
		return err
	}

	for _, typ := range types {
		list, err := p.repo.GetList(ctx, typ)
		if err != nil {
			return err
		}
		// Список отсортирован по ID: минимальный временный ID первый
		if len(list) > 0 {
			p.ids.Observe(list[0].ID())
		}
	}
	return nil
}

// SaveEntity stores a copy of e, assigning a temporary ID when e has none.
// The result carries the incoming ID as ClientID and the stored ID as ID.
func (p *Provider) SaveEntity(ctx context.Context, typ string, e models.Entity) (models.TransactionResult, error) {
	e = e.Clone()
	clientID := e.ID()
	if clientID == 0 {
		e.SetID(p.ids.Next())
	}

	if err := p.repo.SaveItem(ctx, typ, e); err != nil {
		return models.TransactionResult{}, err
	}

	p.logger.Debug("Entity saved locally", "type", typ, "client_id", clientID, "id", e.ID())
	return models.TransactionResult{ClientID: clientID, ID: e.ID(), Type: typ}, nil
}

// SaveEntities stores every entity of the batch, type by type in sorted order.
// Temporary IDs are assigned in batch order before anything is written.
func (p *Provider) SaveEntities(ctx context.Context, batch models.Batch) ([]models.TransactionResult, error) {
	batch = batch.Clone()

	results := make([]models.TransactionResult, 0, batch.Len())
	for _, typ := range batch.Types() {
		for _, e := range batch[typ] {
			clientID := e.ID()
			if clientID == 0 {
				e.SetID(p.ids.Next())
			}
			results = append(results, models.TransactionResult{ClientID: clientID, ID: e.ID(), Type: typ})
		}
	}

	for _, typ := range batch.Types() {
		if err := p.repo.SaveList(ctx, typ, batch[typ]); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// AssignTempIDs gives every entity without an ID a temporary one, in place.
func (p *Provider) AssignTempIDs(batch models.Batch) {
	for _, typ := range batch.Types() {
		for _, e := range batch[typ] {
			if e.ID() == 0 {
				e.SetID(p.ids.Next())
			}
		}
	}
}

// SaveUnsavedEntity mirrors an entity into the UnsavedEntities shadow.
func (p *Provider) SaveUnsavedEntity(ctx context.Context, typ string, e models.Entity) error {
	return p.repo.SaveItem(ctx, storage.UnsavedStore(typ), e)
}

// SaveUnsavedEntities mirrors a batch into the UnsavedEntities shadow.
func (p *Provider) SaveUnsavedEntities(ctx context.Context, batch models.Batch) error {
	for _, typ := range batch.Types() {
		if err := p.repo.SaveList(ctx, storage.UnsavedStore(typ), batch[typ]); err != nil {
			return err
		}
	}
	return nil
}

// DropUnsaved removes entries of the UnsavedEntities shadow, leaving the
// main list as is. Used once the server has confirmed a newer copy.
func (p *Provider) DropUnsaved(ctx context.Context, typ string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return p.repo.DeleteItems(ctx, storage.UnsavedStore(typ), ids)
}

// SaveDeletedEntity stages a server ID for deletion on the next push.
// Local-only IDs are skipped: the server never saw them.
func (p *Provider) SaveDeletedEntity(ctx context.Context, typ string, id int64) error {
	return p.SaveDeletedEntities(ctx, typ, []int64{id})
}

// SaveDeletedEntities stages several server IDs for deletion.
func (p *Provider) SaveDeletedEntities(ctx context.Context, typ string, ids []int64) error {
	markers := make([]models.Entity, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		markers = append(markers, models.Entity{models.FieldID: id})
	}
	return p.repo.SaveList(ctx, storage.DeletedStore(typ), markers)
}

// DeleteEntity removes an entity from the unsaved shadow and the main list.
func (p *Provider) DeleteEntity(ctx context.Context, typ string, id int64) error {
	return p.DeleteEntities(ctx, typ, []int64{id})
}

// DeleteEntities removes several entities from the unsaved shadow and the main list.
func (p *Provider) DeleteEntities(ctx context.Context, typ string, ids []int64) error {
	if err := p.repo.DeleteItems(ctx, storage.UnsavedStore(typ), ids); err != nil {
		return err
	}
	return p.repo.DeleteItems(ctx, typ, ids)
}

// GetEntities returns every stored entity of a type ordered by ID.
func (p *Provider) GetEntities(ctx context.Context, typ string) ([]models.Entity, error) {
	return p.repo.GetList(ctx, typ)
}

// GetEntity returns a single stored entity.
func (p *Provider) GetEntity(ctx context.Context, typ string, id int64) (models.Entity, error) {
	return p.repo.GetItem(ctx, typ, id)
}

// GetAllEntities returns the lists of the given types.
func (p *Provider) GetAllEntities(ctx context.Context, types []string) (map[string][]models.Entity, error) {
	all := make(map[string][]models.Entity, len(types))
	for _, typ := range types {
		list, err := p.repo.GetList(ctx, typ)
		if err != nil {
			return nil, err
		}
		all[typ] = list
	}
	return all, nil
}

// GetAllUnsavedEntities returns the unsaved shadow of every type.
// Types without pending entities are omitted.
func (p *Provider) GetAllUnsavedEntities(ctx context.Context) (models.Batch, error) {
	lists, err := p.repo.GetUnsyncLists(ctx, storage.NamespaceUnsaved)
	if err != nil {
		return nil, err
	}

	batch := make(models.Batch)
	for typ, list := range lists {
		if len(list) > 0 {
			batch[typ] = list
		}
	}
	return batch, nil
}

// GetAllDeletedEntities returns the staged deletions of every type.
// Types without pending deletions are omitted.
func (p *Provider) GetAllDeletedEntities(ctx context.Context) (map[string][]int64, error) {
	lists, err := p.repo.GetDeletedIDs(ctx)
	if err != nil {
		return nil, err
	}

	deleted := make(map[string][]int64)
	for typ, ids := range lists {
		if len(ids) > 0 {
			deleted[typ] = ids
		}
	}
	return deleted, nil
}

// ResetLocalChanges clears both shadow namespaces. Clearing the unsaved
// namespace also drops every local-only row, since those only exist until
// the server has seen them.
func (p *Provider) ResetLocalChanges(ctx context.Context) error {
	if err := p.repo.DeleteList(ctx, storage.NamespaceUnsaved); err != nil {
		return fmt.Errorf("failed to reset unsaved entities: %w", err)
	}
	if err := p.repo.DeleteList(ctx, storage.NamespaceDeleted); err != nil {
		return fmt.Errorf("failed to reset deleted ids: %w", err)
	}
	p.logger.Debug("Local changes reset")
	return nil
}

// UpdateLocalData applies an explicit update variant to a type's list.
func (p *Provider) UpdateLocalData(ctx context.Context, typ string, update models.LocalDataUpdate) error {
	switch u := update.(type) {
	case models.Append:
		return p.repo.SaveList(ctx, typ, u.Entities)
	case models.Replace:
		if err := p.repo.DeleteList(ctx, typ); err != nil {
			return err
		}
		return p.repo.SaveList(ctx, typ, u.Entities)
	case models.Delete:
		return p.DeleteEntity(ctx, typ, u.ID)
	case models.Upsert:
		_, err := p.SaveEntity(ctx, typ, u.Entity)
		return err
	default:
		return fmt.Errorf("unsupported local data update %T", update)
	}
}

// PendingCounts returns the number of unsaved entities and staged deletions.
func (p *Provider) PendingCounts(ctx context.Context) (unsaved, deleted int, err error) {
	batch, err := p.GetAllUnsavedEntities(ctx)
	if err != nil {
		return 0, 0, err
	}
	ids, err := p.GetAllDeletedEntities(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, list := range ids {
		deleted += len(list)
	}
	return batch.Len(), deleted, nil
}

// ClearEntireDatabase wipes every store and setting and recreates the stores.
func (p *Provider) ClearEntireDatabase(ctx context.Context, types []string) error {
	if err := p.repo.ClearEntireDatabase(ctx); err != nil {
		return err
	}
	return p.repo.Init(ctx, types)
}
