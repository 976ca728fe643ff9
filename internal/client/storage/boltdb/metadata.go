package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/entitysync/internal/client/storage"
)

// SaveSetting saves a setting value in the metadata bucket
func (s *Storage) SaveSetting(ctx context.Context, key, value string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		if err := bucket.Put([]byte(key), []byte(value)); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", key, err)
		}

		return nil
	})
}

// GetSetting retrieves a setting value
// Returns false if the setting has never been saved
func (s *Storage) GetSetting(ctx context.Context, key string) (string, bool, error) {
	if s.db == nil {
		return "", false, storage.ErrStorageClosed
	}

	var (
		value string
		found bool
	)

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		raw := bucket.Get([]byte(key))
		if raw == nil {
			return nil
		}
		value = string(raw)
		found = true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}

	return value, found, nil
}
