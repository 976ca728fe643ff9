package datamanager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/iudanet/entitysync/internal/client/api"
	"github.com/iudanet/entitysync/internal/client/storage"
	"github.com/iudanet/entitysync/internal/models"
	pkgapi "github.com/iudanet/entitysync/pkg/api"
)

// SyncResult contains synchronization results
type SyncResult struct {
	PushedEntities int // количество отправленных сущностей
	PushedDeletes  int // количество отправленных удалений
	PulledEntities int // количество полученных сущностей
	PulledDeletes  int // количество примененных удалений
	Offline        bool
}

// Synchronize pushes local changes and then pulls server changes.
// Concurrent calls with the same initial flag share one in-flight run; an
// initial request never joins an incremental one. The run is detached from
// the cancellation of the caller that started it: each caller stops
// waiting when its own ctx is done, while the run itself completes.
func (m *Manager) Synchronize(ctx context.Context, initial bool) (*SyncResult, error) {
	key := "synchronize"
	if initial {
		key = "synchronize-initial"
	}

	runCtx := context.WithoutCancel(ctx)
	ch := m.flight.DoChan(key, func() (any, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.synchronize(runCtx, initial)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Shared {
			m.logger.Debug("Joined in-flight synchronization", "initial", initial)
		}
		res, _ := r.Val.(*SyncResult)
		return res, r.Err
	}
}

func (m *Manager) synchronize(ctx context.Context, initial bool) (*SyncResult, error) {
	start := time.Now()
	defer m.metrics.observeSync(start)

	result := &SyncResult{}

	if !m.IsOnline() {
		m.logger.Info("Offline, serving local data")
		result.Offline = true
		if err := m.loadFromLocal(ctx); err != nil {
			return nil, err
		}
		return result, nil
	}

	m.logger.Info("Starting synchronization", "initial", initial)

	// Отправка всегда предшествует получению: сервер должен увидеть локальные
	// изменения до того, как мы прочитаем его дельту
	if err := m.push(ctx, result); err != nil {
		if errors.Is(err, ErrPushFailed) {
			if loadErr := m.loadFromLocal(ctx); loadErr != nil {
				return nil, errors.Join(err, loadErr)
			}
		}
		return nil, err
	}

	if err := m.pull(ctx, initial, result); err != nil {
		return nil, err
	}

	m.logger.Info("Synchronization completed",
		"pushed", result.PushedEntities,
		"pushed_deletes", result.PushedDeletes,
		"pulled", result.PulledEntities,
		"pulled_deletes", result.PulledDeletes,
		"offline", result.Offline)

	return result, nil
}

// UpdateServerWithLocalChanges pushes the shadow lists to the server.
func (m *Manager) UpdateServerWithLocalChanges(ctx context.Context) (*SyncResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := &SyncResult{}
	if !m.IsOnline() {
		result.Offline = true
		return result, nil
	}
	if err := m.push(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateClientWithLatestServerChanges pulls server changes since the watermark.
// Applying a pull resets the shadow lists and purges local-only rows, so it
// must only follow a successful push. With PushPolicyRetain the call fails
// with ErrPendingChanges while anything is still waiting to be pushed; use
// Synchronize to push and pull in one step.
func (m *Manager) UpdateClientWithLatestServerChanges(ctx context.Context, initial bool) (*SyncResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.PushPolicy == PushPolicyRetain {
		unsaved, deleted, err := m.local.PendingCounts(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count pending changes: %w", err)
		}
		if unsaved+deleted > 0 {
			return nil, fmt.Errorf("%w: %d unsaved, %d deleted", ErrPendingChanges, unsaved, deleted)
		}
	}

	result := &SyncResult{}
	if err := m.pull(ctx, initial, result); err != nil {
		return nil, err
	}
	return result, nil
}

// push отправляет накопленные offline изменения
func (m *Manager) push(ctx context.Context, result *SyncResult) error {
	unsaved, err := m.local.GetAllUnsavedEntities(ctx)
	if err != nil {
		return fmt.Errorf("failed to read unsaved entities: %w", err)
	}
	deleted, err := m.local.GetAllDeletedEntities(ctx)
	if err != nil {
		return fmt.Errorf("failed to read deleted ids: %w", err)
	}

	deletes := 0
	for _, ids := range deleted {
		deletes += len(ids)
	}

	if unsaved.Len() == 0 && deletes == 0 {
		m.metrics.recordPhase("push", "skipped")
		return m.clearShadows(ctx)
	}

	req := pkgapi.UpdateServerRequest{
		PushID:     uuid.NewString(),
		Unsaved:    unsaved,
		DeletedIDs: deleted,
	}

	m.logger.Info("Pushing local changes",
		"push_id", req.PushID,
		"entities", unsaved.Len(),
		"deletes", deletes)

	outcome, err := m.updateServer(ctx, req)
	if err != nil && ctx.Err() != nil {
		return err
	}

	switch {
	case err == nil && outcome.Kind == api.OutcomeOK:
		m.metrics.recordPhase("push", "ok")
		result.PushedEntities = unsaved.Len()
		result.PushedDeletes = deletes
		return m.applyPushResults(ctx, unsaved, outcome.Results)

	case err == nil && outcome.Kind == api.OutcomeRejected:
		// Сервер увидел изменения и отказал: повтор ничего не изменит
		m.metrics.recordPhase("push", "rejected")
		m.logger.Warn("Server rejected pushed changes",
			"push_id", req.PushID,
			"errors", outcome.Errors())
		return m.clearShadows(ctx)
	}

	reason := "server unreachable"
	if err != nil {
		reason = err.Error()
	}

	if m.cfg.PushPolicy == PushPolicyDrop {
		m.metrics.recordPhase("push", "dropped")
		m.logger.Warn("Push failed, dropping local changes",
			"push_id", req.PushID,
			"reason", reason)
		return m.clearShadows(ctx)
	}

	m.metrics.recordPhase("push", "failed")
	m.logger.Warn("Push failed, keeping local changes",
		"push_id", req.PushID,
		"reason", reason)
	return fmt.Errorf("%w: %s", ErrPushFailed, reason)
}

// updateServer повторяет отправку с экспоненциальной задержкой, пока сервер недоступен
func (m *Manager) updateServer(ctx context.Context, req pkgapi.UpdateServerRequest) (api.Outcome, error) {
	var outcome api.Outcome

	backoff := retry.WithMaxRetries(m.cfg.PushRetries, retry.NewExponential(m.cfg.RetryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		o, err := m.remote.UpdateServer(ctx, req)
		if err != nil {
			return err
		}
		if o.Kind == api.OutcomeUnreachable {
			m.logger.Debug("Server unreachable, retrying push", "push_id", req.PushID)
			return retry.RetryableError(api.ErrUnreachable)
		}
		outcome = o
		return nil
	})
	if errors.Is(err, api.ErrUnreachable) {
		return api.Unreachable(), nil
	}
	if err != nil {
		return api.Outcome{}, err
	}
	return outcome, nil
}

// applyPushResults очищает теневые списки и сохраняет продвинутые сущности
// под серверными ID, чтобы они не пропали до следующего pull.
func (m *Manager) applyPushResults(ctx context.Context, unsaved models.Batch, results []models.TransactionResult) error {
	promoted, err := m.postSave(unsaved, results)
	if err != nil {
		m.logger.Warn("Could not apply push results locally, relying on pull", "error", err)
		promoted = nil
	}

	if err := m.clearShadows(ctx); err != nil {
		return err
	}
	if len(promoted) == 0 {
		return nil
	}

	if _, err := m.local.SaveEntities(ctx, promoted); err != nil {
		return fmt.Errorf("failed to store pushed entities: %w", err)
	}
	m.memory.SaveEntities(promoted)
	return nil
}

// clearShadows очищает теневые списки и удаляет локальные записи с отрицательным ID
func (m *Manager) clearShadows(ctx context.Context) error {
	if err := m.local.ResetLocalChanges(ctx); err != nil {
		return err
	}
	if purged := m.memory.PurgeNegative(); purged > 0 {
		m.logger.Debug("Purged local-only entities from memory", "count", purged)
	}
	m.metrics.setPending(0, 0)
	return nil
}

// pull получает изменения сервера начиная с watermark
func (m *Manager) pull(ctx context.Context, initial bool, result *SyncResult) error {
	if !m.IsOnline() {
		result.Offline = true
		return m.loadFromLocal(ctx)
	}

	settings := m.local.Settings()
	token, err := storage.LastSyncTime(ctx, settings)
	if err != nil {
		return fmt.Errorf("failed to read watermark: %w", err)
	}

	changes, err := m.remote.GetChangesSince(ctx, token)
	if err != nil {
		if errors.Is(err, api.ErrUnreachable) {
			m.metrics.recordPhase("pull", "unreachable")
			m.logger.Warn("Server unreachable, serving local data", "error", err)
			result.Offline = true
			return m.loadFromLocal(ctx)
		}
		m.metrics.recordPhase("pull", "error")
		return fmt.Errorf("failed to get changes: %w", err)
	}

	if err := m.local.ResetLocalChanges(ctx); err != nil {
		return err
	}
	if !initial {
		m.memory.PurgeNegative()
	}

	types := make([]string, 0, len(changes.Entities))
	for typ := range changes.Entities {
		types = append(types, typ)
	}
	sort.Strings(types)

	for _, typ := range types {
		if err := m.checkType(typ); err != nil {
			m.logger.Warn("Skipping changes of unknown type", "type", typ)
			continue
		}
		entities := changes.Entities[typ]
		if err := m.local.UpdateLocalData(ctx, typ, models.Append{Entities: entities}); err != nil {
			return fmt.Errorf("failed to apply changes of %s: %w", typ, err)
		}
		if !initial {
			m.memory.SaveEntities(models.Batch{typ: entities})
		}
		result.PulledEntities += len(entities)
	}

	for _, key := range changes.DeletedIDs {
		typ, id, err := pkgapi.ParseDeletedKey(key)
		if err != nil {
			m.logger.Warn("Skipping malformed deleted key", "key", key, "error", err)
			continue
		}
		if err := m.checkType(typ); err != nil {
			m.logger.Warn("Skipping delete of unknown type", "key", key)
			continue
		}
		if err := m.local.DeleteEntity(ctx, typ, id); err != nil {
			return fmt.Errorf("failed to apply delete %s: %w", key, err)
		}
		if !initial {
			m.memory.DeleteEntity(typ, id)
		}
		result.PulledDeletes++
	}

	// Watermark сохраняется только после полного применения изменений
	if changes.ServerTime != "" {
		if err := settings.SaveSetting(ctx, storage.SettingLastSyncTime, changes.ServerTime); err != nil {
			return fmt.Errorf("failed to save watermark: %w", err)
		}
	}

	m.metrics.recordPhase("pull", "ok")
	m.logger.Debug("Applied server changes",
		"entities", result.PulledEntities,
		"deletes", result.PulledDeletes,
		"server_time", changes.ServerTime)

	if initial {
		return m.loadFromLocal(ctx)
	}
	return nil
}
