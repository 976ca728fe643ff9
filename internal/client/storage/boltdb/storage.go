package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/entitysync/internal/client/storage"
)

var (
	// BoltDB bucket names
	bucketStores   = []byte("stores")
	bucketMetadata = []byte("metadata")
)

// Storage represents BoltDB storage engine for client
type Storage struct {
	db *bbolt.DB
}

var _ storage.Engine = (*Storage)(nil)

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем BoltDB
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db}

	// Инициализируем buckets
	if err := s.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// IsSupported reports whether the database is open
func (s *Storage) IsSupported() bool {
	return s.db != nil
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		// Родительский bucket, внутри которого живут stores сущностей
		if _, err := tx.CreateBucketIfNotExists(bucketStores); err != nil {
			return fmt.Errorf("failed to create stores bucket: %w", err)
		}

		// Bucket для настроек (watermark синхронизации)
		if _, err := tx.CreateBucketIfNotExists(bucketMetadata); err != nil {
			return fmt.Errorf("failed to create metadata bucket: %w", err)
		}

		return nil
	})
}

// HasStores reports whether at least one entity store exists
func (s *Storage) HasStores(ctx context.Context) (bool, error) {
	names, err := s.StoreNames(ctx)
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// CreateStores idempotently creates nested buckets for the named stores
func (s *Storage) CreateStores(ctx context.Context, names []string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		parent := tx.Bucket(bucketStores)
		for _, name := range names {
			if _, err := parent.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create store %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// StoreNames returns the names of all existing stores
func (s *Storage) StoreNames(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketStores).ForEachBucket(func(k []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}

	return names, nil
}

// DropAll removes every store and every setting
func (s *Storage) DropAll(ctx context.Context) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketStores, bucketMetadata} {
			if err := tx.DeleteBucket(name); err != nil && err != bbolt.ErrBucketNotFound {
				return fmt.Errorf("failed to delete bucket %s: %w", name, err)
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("drop transaction failed: %w", err)
	}

	return nil
}
