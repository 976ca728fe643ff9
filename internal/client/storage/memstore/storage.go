// Package memstore is a volatile storage engine. It keeps everything in
// process memory and is used for ephemeral sessions and tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/iudanet/entitysync/internal/client/storage"
)

// Storage is an in-memory storage engine
type Storage struct {
	stores   map[string]map[int64][]byte
	settings map[string]string
	mu       sync.RWMutex
	closed   bool
}

var _ storage.Engine = (*Storage)(nil)

// New creates an empty in-memory engine
func New() *Storage {
	return &Storage{
		stores:   make(map[string]map[int64][]byte),
		settings: make(map[string]string),
	}
}

// IsSupported always reports true while the engine is open
func (s *Storage) IsSupported() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

// Close marks the engine closed
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Storage) store(name string) (map[int64][]byte, error) {
	if s.closed {
		return nil, storage.ErrStorageClosed
	}
	st, ok := s.stores[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrStoreNotFound, name)
	}
	return st, nil
}

// HasStores reports whether any store exists
func (s *Storage) HasStores(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, storage.ErrStorageClosed
	}
	return len(s.stores) > 0, nil
}

// CreateStores idempotently creates the named stores
func (s *Storage) CreateStores(ctx context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	for _, name := range names {
		if _, ok := s.stores[name]; !ok {
			s.stores[name] = make(map[int64][]byte)
		}
	}
	return nil
}

// StoreNames returns the names of all stores
func (s *Storage) StoreNames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}
	names := make([]string, 0, len(s.stores))
	for name := range s.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Put inserts or replaces records
func (s *Storage) Put(ctx context.Context, store string, records []storage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.store(store)
	if err != nil {
		return err
	}
	for _, rec := range records {
		st[rec.ID] = append([]byte(nil), rec.Data...)
	}
	return nil
}

// Get returns a single record
func (s *Storage) Get(ctx context.Context, store string, id int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, err := s.store(store)
	if err != nil {
		return nil, err
	}
	data, ok := st[id]
	if !ok {
		return nil, storage.ErrItemNotFound
	}
	return append([]byte(nil), data...), nil
}

// All returns every record ordered by ID
func (s *Storage) All(ctx context.Context, store string) ([]storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, err := s.store(store)
	if err != nil {
		return nil, err
	}
	records := make([]storage.Record, 0, len(st))
	for id, data := range st {
		records = append(records, storage.Record{ID: id, Data: append([]byte(nil), data...)})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// Delete removes records by ID
func (s *Storage) Delete(ctx context.Context, store string, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.store(store)
	if err != nil {
		return err
	}
	for _, id := range ids {
		delete(st, id)
	}
	return nil
}

// Clear empties a store
func (s *Storage) Clear(ctx context.Context, store string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.store(store); err != nil {
		return err
	}
	s.stores[store] = make(map[int64][]byte)
	return nil
}

// DropAll removes all stores and settings
func (s *Storage) DropAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	s.stores = make(map[string]map[int64][]byte)
	s.settings = make(map[string]string)
	return nil
}

// SaveSetting stores a setting value
func (s *Storage) SaveSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	s.settings[key] = value
	return nil
}

// GetSetting retrieves a setting value
func (s *Storage) GetSetting(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, storage.ErrStorageClosed
	}
	value, ok := s.settings[key]
	return value, ok, nil
}
