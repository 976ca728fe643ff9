package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/iudanet/entitysync/internal/client/storage"
	"github.com/iudanet/entitysync/internal/models"
)

// Store implements Repository on top of a storage engine.
type Store struct {
	engine storage.Engine
	sealer Sealer
	logger *slog.Logger
}

var _ Repository = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithSealer enables at-rest encryption of entity payloads.
func WithSealer(s Sealer) Option {
	return func(st *Store) {
		st.sealer = s
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(st *Store) {
		if l != nil {
			st.logger = l
		}
	}
}

// New creates a repository backed by engine.
func New(engine storage.Engine, opts ...Option) *Store {
	s := &Store{
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsSupported reports whether the backing engine can be used.
func (s *Store) IsSupported() bool {
	return s.engine.IsSupported()
}

// IsInitialised reports whether Init has been run against this database.
func (s *Store) IsInitialised(ctx context.Context) (bool, error) {
	ok, err := s.engine.HasStores(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check stores: %w", err)
	}
	return ok, nil
}

// Init creates the type stores together with their shadow stores.
func (s *Store) Init(ctx context.Context, types []string) error {
	if err := s.engine.CreateStores(ctx, storage.StoresFor(types)); err != nil {
		return fmt.Errorf("failed to create stores: %w", err)
	}
	s.logger.Debug("Repository initialised", "types", types)
	return nil
}

// GetList returns every entity of a store ordered by ID.
func (s *Store) GetList(ctx context.Context, typ string) ([]models.Entity, error) {
	records, err := s.engine.All(ctx, typ)
	if err != nil {
		return nil, fmt.Errorf("failed to read list %s: %w", typ, err)
	}

	entities := make([]models.Entity, 0, len(records))
	for _, rec := range records {
		e, err := s.decode(rec.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s/%d: %w", typ, rec.ID, err)
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// GetItem returns a single entity by ID.
func (s *Store) GetItem(ctx context.Context, typ string, id int64) (models.Entity, error) {
	data, err := s.engine.Get(ctx, typ, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%d: %w", typ, id, err)
	}

	e, err := s.decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s/%d: %w", typ, id, err)
	}
	return e, nil
}

// GetLists returns the lists of all real types whose name starts with prefix.
func (s *Store) GetLists(ctx context.Context, prefix string) (map[string][]models.Entity, error) {
	if storage.IsShadowNamespace(prefix) {
		return s.GetUnsyncLists(ctx, prefix)
	}

	types, err := s.types(ctx)
	if err != nil {
		return nil, err
	}

	lists := make(map[string][]models.Entity)
	for _, typ := range types {
		if !strings.HasPrefix(typ, prefix) {
			continue
		}
		list, err := s.GetList(ctx, typ)
		if err != nil {
			return nil, err
		}
		lists[typ] = list
	}
	return lists, nil
}

// GetUnsyncLists returns the contents of a shadow namespace keyed by bare type.
// Every known type is present in the result, possibly with an empty list.
func (s *Store) GetUnsyncLists(ctx context.Context, namespace string) (map[string][]models.Entity, error) {
	if !storage.IsShadowNamespace(namespace) {
		return nil, fmt.Errorf("unknown shadow namespace %q", namespace)
	}

	names, err := s.engine.StoreNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}

	lists := make(map[string][]models.Entity)
	for _, name := range names {
		ns, typ := storage.SplitStoreName(name)
		if ns != namespace {
			continue
		}
		list, err := s.GetList(ctx, name)
		if err != nil {
			return nil, err
		}
		if namespace == storage.NamespaceDeleted {
			// Для удалений нужен только идентификатор
			for i, e := range list {
				list[i] = models.Entity{models.FieldID: e.ID()}
			}
		}
		lists[typ] = list
	}
	return lists, nil
}

// GetDeletedIDs returns the staged deletions as bare IDs keyed by type.
func (s *Store) GetDeletedIDs(ctx context.Context) (map[string][]int64, error) {
	lists, err := s.GetUnsyncLists(ctx, storage.NamespaceDeleted)
	if err != nil {
		return nil, err
	}

	ids := make(map[string][]int64, len(lists))
	for typ, list := range lists {
		out := make([]int64, 0, len(list))
		for _, e := range list {
			out = append(out, e.ID())
		}
		ids[typ] = out
	}
	return ids, nil
}

// SaveItem inserts or replaces a single entity.
func (s *Store) SaveItem(ctx context.Context, typ string, item models.Entity) error {
	return s.SaveList(ctx, typ, []models.Entity{item})
}

// SaveList inserts or replaces several entities in one engine call.
func (s *Store) SaveList(ctx context.Context, typ string, items []models.Entity) error {
	if len(items) == 0 {
		return nil
	}

	records := make([]storage.Record, 0, len(items))
	for _, item := range items {
		id := item.ID()
		if id == 0 {
			return fmt.Errorf("cannot store %s without ID", typ)
		}
		data, err := s.encode(item)
		if err != nil {
			return fmt.Errorf("failed to encode %s/%d: %w", typ, id, err)
		}
		records = append(records, storage.Record{ID: id, Data: data})
	}

	if err := s.engine.Put(ctx, typ, records); err != nil {
		return fmt.Errorf("failed to save list %s: %w", typ, err)
	}
	return nil
}

// DeleteItem removes a single entity.
func (s *Store) DeleteItem(ctx context.Context, typ string, id int64) error {
	return s.DeleteItems(ctx, typ, []int64{id})
}

// DeleteItems removes several entities.
func (s *Store) DeleteItems(ctx context.Context, typ string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.engine.Delete(ctx, typ, ids); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", typ, err)
	}
	return nil
}

// DeleteList clears a store or a whole shadow namespace.
func (s *Store) DeleteList(ctx context.Context, name string) error {
	switch name {
	case storage.NamespaceUnsaved:
		if err := s.purgeLocalRows(ctx); err != nil {
			return err
		}
		return s.clearNamespace(ctx, storage.NamespaceUnsaved)
	case storage.NamespaceDeleted:
		return s.clearNamespace(ctx, storage.NamespaceDeleted)
	default:
		if err := s.engine.Clear(ctx, name); err != nil {
			return fmt.Errorf("failed to clear %s: %w", name, err)
		}
		return nil
	}
}

// ClearEntireDatabase wipes every store including shadow stores and settings.
func (s *Store) ClearEntireDatabase(ctx context.Context) error {
	if err := s.engine.DropAll(ctx); err != nil {
		return fmt.Errorf("failed to clear database: %w", err)
	}
	s.logger.Info("Local database cleared")
	return nil
}

// SaveSetting stores a setting value.
func (s *Store) SaveSetting(ctx context.Context, key, value string) error {
	return s.engine.SaveSetting(ctx, key, value)
}

// GetSetting retrieves a setting value.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	return s.engine.GetSetting(ctx, key)
}

// Close closes the backing engine.
func (s *Store) Close() error {
	return s.engine.Close()
}

// purgeLocalRows удаляет записи с отрицательным ID из всех реальных типов:
// у таких записей нет серверной копии.
func (s *Store) purgeLocalRows(ctx context.Context) error {
	types, err := s.types(ctx)
	if err != nil {
		return err
	}

	for _, typ := range types {
		records, err := s.engine.All(ctx, typ)
		if err != nil {
			return fmt.Errorf("failed to read list %s: %w", typ, err)
		}

		var local []int64
		for _, rec := range records {
			// All возвращает записи по возрастанию ID: отрицательные идут первыми
			if rec.ID >= 0 {
				break
			}
			local = append(local, rec.ID)
		}
		if len(local) == 0 {
			continue
		}
		if err := s.DeleteItems(ctx, typ, local); err != nil {
			return err
		}
		s.logger.Debug("Purged local-only rows", "type", typ, "count", len(local))
	}
	return nil
}

func (s *Store) clearNamespace(ctx context.Context, namespace string) error {
	names, err := s.engine.StoreNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stores: %w", err)
	}

	for _, name := range names {
		if ns, _ := storage.SplitStoreName(name); ns != namespace {
			continue
		}
		if err := s.engine.Clear(ctx, name); err != nil {
			return fmt.Errorf("failed to clear %s: %w", name, err)
		}
	}
	return nil
}

// types returns the real (non-shadow) type names, sorted.
func (s *Store) types(ctx context.Context) ([]string, error) {
	names, err := s.engine.StoreNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}

	var types []string
	for _, name := range names {
		if ns, typ := storage.SplitStoreName(name); ns == "" {
			types = append(types, typ)
		}
	}
	sort.Strings(types)
	return types, nil
}

func (s *Store) encode(e models.Entity) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	if s.sealer == nil {
		return data, nil
	}
	return s.sealer.Seal(data)
}

func (s *Store) decode(data []byte) (models.Entity, error) {
	if s.sealer != nil {
		opened, err := s.sealer.Open(data)
		if err != nil {
			return nil, err
		}
		data = opened
	}

	var e models.Entity
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errors.New("empty entity payload")
	}
	return e, nil
}
