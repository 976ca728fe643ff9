package datamanager

import (
	"context"
	"fmt"

	"github.com/iudanet/entitysync/internal/models"
)

type resultKey struct {
	typ string
	id  int64
}

// postSave replaces temporary IDs with server IDs using the results of a
// batch save. When the batch spans several types, negative foreign keys
// are remapped to the server IDs of the entities they point to; such
// references must resolve inside the batch.
// The batch is modified in place and returned.
func (m *Manager) postSave(batch models.Batch, results []models.TransactionResult) (models.Batch, error) {
	if errs := models.CollectErrors(results); len(errs) > 0 {
		return nil, fmt.Errorf("cannot apply rejected results: %v", errs)
	}

	// ClientID -> серверный ID для каждого типа
	promotions := make(map[resultKey]int64, len(results))
	for _, r := range results {
		if r.ClientID <= 0 {
			promotions[resultKey{typ: r.Type, id: r.ClientID}] = r.ID
		}
	}

	for _, typ := range batch.Types() {
		for _, e := range batch[typ] {
			id := e.ID()
			if id > 0 {
				continue
			}
			serverID, ok := promotions[resultKey{typ: typ, id: id}]
			if !ok || serverID <= 0 {
				return nil, fmt.Errorf("%w: %s %d", ErrIncompleteResults, typ, id)
			}
			e.SetID(serverID)
		}
	}

	if len(batch) < 2 {
		return batch, nil
	}

	// Второй проход: внешние ключи на сущности, созданные в этом же пакете
	for _, typ := range batch.Types() {
		for _, e := range batch[typ] {
			for field, value := range e {
				if field == models.FieldID {
					continue
				}
				ref, isInt := models.ToInt64(value)
				if !isInt || ref >= 0 {
					continue
				}
				related, isKey := m.schema.RelatedType(typ, field)
				if !isKey {
					continue
				}
				if _, inBatch := batch[related]; !inBatch {
					return nil, fmt.Errorf("%w: %s.%s references %s %d", ErrCrossEntityIntegrity, typ, field, related, ref)
				}
				serverID, ok := promotions[resultKey{typ: related, id: ref}]
				if !ok {
					return nil, fmt.Errorf("%w: %s.%s references unknown %s %d", ErrCrossEntityIntegrity, typ, field, related, ref)
				}
				e[field] = serverID
			}
		}
	}

	return batch, nil
}

// promote removes the old local rows of entities that received a server ID
// and rewrites references to them held by entities still waiting to be pushed.
func (m *Manager) promote(ctx context.Context, results []models.TransactionResult) error {
	remap := make(map[resultKey]int64)
	for _, r := range results {
		if !r.Promoted() {
			continue
		}
		if err := m.local.DeleteEntity(ctx, r.Type, r.ClientID); err != nil {
			return fmt.Errorf("failed to remove promoted %s %d: %w", r.Type, r.ClientID, err)
		}
		m.memory.DeleteEntity(r.Type, r.ClientID)
		remap[resultKey{typ: r.Type, id: r.ClientID}] = r.ID
	}
	if len(remap) == 0 {
		return nil
	}

	unsaved, err := m.local.GetAllUnsavedEntities(ctx)
	if err != nil {
		return fmt.Errorf("failed to read unsaved entities: %w", err)
	}

	changed := make(models.Batch)
	for _, typ := range unsaved.Types() {
		for _, e := range unsaved[typ] {
			if m.remapReferences(typ, e, remap) {
				changed[typ] = append(changed[typ], e)
			}
		}
	}
	if len(changed) == 0 {
		return nil
	}

	if _, err := m.local.SaveEntities(ctx, changed); err != nil {
		return fmt.Errorf("failed to update references: %w", err)
	}
	if err := m.local.SaveUnsavedEntities(ctx, changed); err != nil {
		return fmt.Errorf("failed to update references: %w", err)
	}
	m.memory.SaveEntities(changed)

	m.logger.Debug("Remapped references to promoted entities", "entities", changed.Len())
	return nil
}

// remapReferences переписывает внешние ключи e согласно remap
func (m *Manager) remapReferences(typ string, e models.Entity, remap map[resultKey]int64) bool {
	changed := false
	for field, value := range e {
		if field == models.FieldID {
			continue
		}
		ref, isInt := models.ToInt64(value)
		if !isInt || ref >= 0 {
			continue
		}
		related, isKey := m.schema.RelatedType(typ, field)
		if !isKey {
			continue
		}
		if serverID, ok := remap[resultKey{typ: related, id: ref}]; ok {
			e[field] = serverID
			changed = true
		}
	}
	return changed
}
