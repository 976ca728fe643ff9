package datamanager

import (
	"context"
	"fmt"

	"github.com/iudanet/entitysync/internal/client/api"
	"github.com/iudanet/entitysync/internal/models"
)

// SaveEntity saves a single entity, remotely when possible and locally otherwise.
// Validation failures, vetoes and server rejections are reported through the
// result's Errors with a nil error; the error is reserved for storage failures.
func (m *Manager) SaveEntity(ctx context.Context, typ string, e models.Entity) (models.TransactionResult, error) {
	if err := m.checkType(typ); err != nil {
		return models.TransactionResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e = e.Clone()
	if e == nil {
		e = models.Entity{}
	}

	if res := m.hooks.check(typ, e); res != nil {
		m.metrics.recordWrite("save", hookPath(*res), 1)
		return *res, nil
	}

	if !m.IsOnline() {
		return m.saveOffline(ctx, typ, e)
	}

	outcome, err := m.remote.SaveEntity(ctx, typ, e)
	if err != nil {
		return models.TransactionResult{}, fmt.Errorf("remote save failed: %w", err)
	}

	switch {
	case outcome.Kind == api.OutcomeUnreachable:
		m.logger.Debug("Server unreachable, saving locally", "type", typ)
		return m.saveOffline(ctx, typ, e)

	case outcome.Kind == api.OutcomeRejected || len(outcome.Errors()) > 0:
		// Отказ сервера: локальное хранилище не должно расходиться с сервером
		m.metrics.recordWrite("save", pathRejected, 1)
		res := models.ErrorResult(typ, e.ID(), outcome.Errors()...)
		if len(outcome.Results) > 0 {
			res = outcome.Results[0]
		}
		return res, nil
	}

	if len(outcome.Results) == 0 {
		return models.TransactionResult{}, fmt.Errorf("%w: no result for %s", ErrIncompleteResults, typ)
	}

	clientID := e.ID()
	serverID := outcome.Results[0].ID
	if serverID == 0 {
		serverID = clientID
	}
	if serverID <= 0 {
		return models.TransactionResult{}, fmt.Errorf("%w: server kept local id %d for %s", ErrIncompleteResults, serverID, typ)
	}
	e.SetID(serverID)

	if _, err := m.local.SaveEntity(ctx, typ, e); err != nil {
		return models.TransactionResult{}, fmt.Errorf("failed to store %s locally: %w", typ, err)
	}
	// Подтвержденная сервером версия новее offline правки в теневом списке
	if err := m.local.DropUnsaved(ctx, typ, []int64{serverID}); err != nil {
		return models.TransactionResult{}, fmt.Errorf("failed to drop stale unsaved %s %d: %w", typ, serverID, err)
	}
	m.memory.SaveEntity(typ, e)

	res := models.TransactionResult{ClientID: clientID, ID: serverID, Type: typ}
	if clientID < 0 && res.Promoted() {
		if err := m.promote(ctx, []models.TransactionResult{res}); err != nil {
			return models.TransactionResult{}, err
		}
	}

	m.metrics.recordWrite("save", pathRemote, 1)
	m.logger.Debug("Entity saved", "type", typ, "client_id", clientID, "id", serverID)
	return res, nil
}

// saveOffline сохраняет сущность локально и помечает ее для отправки
func (m *Manager) saveOffline(ctx context.Context, typ string, e models.Entity) (models.TransactionResult, error) {
	res, err := m.local.SaveEntity(ctx, typ, e)
	if err != nil {
		return models.TransactionResult{}, fmt.Errorf("failed to store %s locally: %w", typ, err)
	}

	stored := e.Clone()
	stored.SetID(res.ID)
	if err := m.local.SaveUnsavedEntity(ctx, typ, stored); err != nil {
		return models.TransactionResult{}, fmt.Errorf("failed to mark %s as unsaved: %w", typ, err)
	}
	m.memory.SaveEntity(typ, stored)

	m.metrics.recordWrite("save", pathLocal, 1)
	m.logger.Debug("Entity saved offline", "type", typ, "id", res.ID)
	return res, nil
}

// SaveEntities saves entities of several types in one batch. Any veto or
// validation failure cancels the whole batch before any I/O. Entities
// without an ID get a temporary one first, so every result's ClientID is
// unique within the batch.
func (m *Manager) SaveEntities(ctx context.Context, batch models.Batch) ([]models.TransactionResult, error) {
	for _, typ := range batch.Types() {
		if err := m.checkType(typ); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	batch = batch.Clone()

	var failed []models.TransactionResult
	for _, typ := range batch.Types() {
		for _, e := range batch[typ] {
			res := m.hooks.check(typ, e)
			if res == nil {
				continue
			}
			if res.Cancelled {
				m.metrics.recordWrite("save", pathVetoed, batch.Len())
				return []models.TransactionResult{*res}, nil
			}
			failed = append(failed, *res)
		}
	}
	if len(failed) > 0 {
		m.metrics.recordWrite("save", pathInvalid, batch.Len())
		return failed, nil
	}

	if batch.Len() == 0 {
		return nil, nil
	}

	m.local.AssignTempIDs(batch)

	if !m.IsOnline() {
		return m.saveEntitiesOffline(ctx, batch)
	}

	outcome, err := m.remote.SaveEntities(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("remote batch save failed: %w", err)
	}

	switch {
	case outcome.Kind == api.OutcomeUnreachable:
		m.logger.Debug("Server unreachable, saving batch locally", "entities", batch.Len())
		return m.saveEntitiesOffline(ctx, batch)

	case outcome.Kind == api.OutcomeRejected || len(outcome.Errors()) > 0:
		m.metrics.recordWrite("save", pathRejected, batch.Len())
		return outcome.Results, nil
	}

	promoted, err := m.postSave(batch, outcome.Results)
	if err != nil {
		return nil, err
	}

	if _, err := m.local.SaveEntities(ctx, promoted); err != nil {
		return nil, fmt.Errorf("failed to store batch locally: %w", err)
	}
	for _, typ := range promoted.Types() {
		if err := m.local.DropUnsaved(ctx, typ, entityIDs(promoted[typ])); err != nil {
			return nil, fmt.Errorf("failed to drop stale unsaved %s: %w", typ, err)
		}
	}
	m.memory.SaveEntities(promoted)

	if err := m.promote(ctx, outcome.Results); err != nil {
		return nil, err
	}

	m.metrics.recordWrite("save", pathRemote, batch.Len())
	m.logger.Debug("Batch saved", "types", batch.Types(), "entities", batch.Len())
	return outcome.Results, nil
}

func (m *Manager) saveEntitiesOffline(ctx context.Context, batch models.Batch) ([]models.TransactionResult, error) {
	results, err := m.local.SaveEntities(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to store batch locally: %w", err)
	}
	if err := m.local.SaveUnsavedEntities(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to mark batch as unsaved: %w", err)
	}
	m.memory.SaveEntities(batch)

	m.metrics.recordWrite("save", pathLocal, batch.Len())
	m.logger.Debug("Batch saved offline", "types", batch.Types(), "entities", batch.Len())
	return results, nil
}

func entityIDs(list []models.Entity) []int64 {
	out := make([]int64, 0, len(list))
	for _, e := range list {
		out = append(out, e.ID())
	}
	return out
}

func hookPath(res models.TransactionResult) string {
	if res.Cancelled {
		return pathVetoed
	}
	return pathInvalid
}
