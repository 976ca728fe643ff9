package datamanager

import (
	"context"
	"fmt"

	"github.com/iudanet/entitysync/internal/client/api"
	"github.com/iudanet/entitysync/internal/models"
)

// DeleteEntity deletes a single entity, remotely when possible.
// Entities that only exist locally are removed without contacting the server.
func (m *Manager) DeleteEntity(ctx context.Context, typ string, id int64) (models.TransactionResult, error) {
	results, err := m.DeleteEntities(ctx, typ, []int64{id})
	if err != nil {
		return models.TransactionResult{}, err
	}
	if len(results) == 0 {
		return models.TransactionResult{ClientID: id, ID: id, Type: typ}, nil
	}
	if errs := models.CollectErrors(results); len(errs) > 0 {
		res := results[0]
		res.Errors = errs
		return res, nil
	}
	return results[0], nil
}

// DeleteEntities deletes several entities of one type. On a server
// rejection nothing is changed locally. When the server can't be reached
// the deletions are applied locally and server IDs are staged for the
// next push.
func (m *Manager) DeleteEntities(ctx context.Context, typ string, ids []int64) ([]models.TransactionResult, error) {
	if err := m.checkType(typ); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Сущности с отрицательным ID сервер никогда не видел
	var serverIDs []int64
	for _, id := range ids {
		if id > 0 {
			serverIDs = append(serverIDs, id)
		}
	}

	if !m.IsOnline() {
		return m.deleteOffline(ctx, typ, ids)
	}
	if len(serverIDs) == 0 {
		return m.deleteLocal(ctx, typ, ids, nil)
	}

	var (
		outcome api.Outcome
		err     error
	)
	if len(serverIDs) == 1 {
		outcome, err = m.remote.DeleteEntity(ctx, typ, serverIDs[0])
	} else {
		outcome, err = m.remote.DeleteEntities(ctx, typ, serverIDs)
	}
	if err != nil {
		return nil, fmt.Errorf("remote delete failed: %w", err)
	}

	switch {
	case outcome.Kind == api.OutcomeUnreachable:
		m.logger.Debug("Server unreachable, deleting locally", "type", typ, "count", len(ids))
		return m.deleteOffline(ctx, typ, ids)

	case outcome.Kind == api.OutcomeRejected || len(outcome.Errors()) > 0:
		m.metrics.recordWrite("delete", pathRejected, len(ids))
		return outcome.Results, nil
	}

	return m.deleteLocal(ctx, typ, ids, outcome.Results)
}

// deleteLocal применяет подтвержденное удаление к локальному хранилищу и кэшу
func (m *Manager) deleteLocal(ctx context.Context, typ string, ids []int64, results []models.TransactionResult) ([]models.TransactionResult, error) {
	if err := m.local.DeleteEntities(ctx, typ, ids); err != nil {
		return nil, fmt.Errorf("failed to delete %s locally: %w", typ, err)
	}
	m.memory.DeleteEntities(typ, ids)

	m.metrics.recordWrite("delete", pathRemote, len(ids))
	m.logger.Debug("Entities deleted", "type", typ, "ids", ids)
	return mergeDeleteResults(typ, ids, results), nil
}

// deleteOffline удаляет локально и ставит серверные ID в очередь на отправку
func (m *Manager) deleteOffline(ctx context.Context, typ string, ids []int64) ([]models.TransactionResult, error) {
	if err := m.local.DeleteEntities(ctx, typ, ids); err != nil {
		return nil, fmt.Errorf("failed to delete %s locally: %w", typ, err)
	}
	if err := m.local.SaveDeletedEntities(ctx, typ, ids); err != nil {
		return nil, fmt.Errorf("failed to stage %s deletions: %w", typ, err)
	}
	m.memory.DeleteEntities(typ, ids)

	m.metrics.recordWrite("delete", pathLocal, len(ids))
	m.logger.Debug("Entities deleted offline", "type", typ, "ids", ids)
	return mergeDeleteResults(typ, ids, nil), nil
}

// mergeDeleteResults returns one result per requested ID, preferring the
// server's result where it sent one.
func mergeDeleteResults(typ string, ids []int64, server []models.TransactionResult) []models.TransactionResult {
	byID := make(map[int64]models.TransactionResult, len(server))
	for _, r := range server {
		byID[r.ClientID] = r
	}

	results := make([]models.TransactionResult, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			results = append(results, r)
			continue
		}
		results = append(results, models.TransactionResult{ClientID: id, ID: id, Type: typ})
	}
	return results
}
