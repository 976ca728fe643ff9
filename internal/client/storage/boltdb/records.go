package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/entitysync/internal/client/storage"
)

// encodeID кодирует int64 так, чтобы лексикографический порядок ключей
// совпадал с числовым порядком (отрицательные ID идут первыми)
func encodeID(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id)^(1<<63))
	return key
}

func decodeID(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key) ^ (1 << 63))
}

func storeBucket(tx *bbolt.Tx, store string) (*bbolt.Bucket, error) {
	bucket := tx.Bucket(bucketStores).Bucket([]byte(store))
	if bucket == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrStoreNotFound, store)
	}
	return bucket, nil
}

// Put stores or replaces records by ID
func (s *Storage) Put(ctx context.Context, store string, records []storage.Record) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := storeBucket(tx, store)
		if err != nil {
			return err
		}

		for _, rec := range records {
			if err := bucket.Put(encodeID(rec.ID), rec.Data); err != nil {
				return fmt.Errorf("failed to save record %d: %w", rec.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// Get retrieves a single record by ID
func (s *Storage) Get(ctx context.Context, store string, id int64) ([]byte, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := storeBucket(tx, store)
		if err != nil {
			return err
		}

		value := bucket.Get(encodeID(id))
		if value == nil {
			return storage.ErrItemNotFound
		}

		// Значение валидно только внутри транзакции - копируем
		data = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}

// All returns every record of the store ordered by ascending ID
func (s *Storage) All(ctx context.Context, store string) ([]storage.Record, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var records []storage.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := storeBucket(tx, store)
		if err != nil {
			return err
		}

		return bucket.ForEach(func(k, v []byte) error {
			records = append(records, storage.Record{
				ID:   decodeID(k),
				Data: append([]byte(nil), v...),
			})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read store %s: %w", store, err)
	}

	return records, nil
}

// Delete removes records by ID
func (s *Storage) Delete(ctx context.Context, store string, ids []int64) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := storeBucket(tx, store)
		if err != nil {
			return err
		}

		for _, id := range ids {
			if err := bucket.Delete(encodeID(id)); err != nil {
				return fmt.Errorf("failed to delete record %d: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete transaction failed: %w", err)
	}

	return nil
}

// Clear removes all records from the store
func (s *Storage) Clear(ctx context.Context, store string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		parent := tx.Bucket(bucketStores)
		// Удаляем bucket полностью
		if err := parent.DeleteBucket([]byte(store)); err != nil {
			if err == bbolt.ErrBucketNotFound {
				return fmt.Errorf("%w: %s", storage.ErrStoreNotFound, store)
			}
			return fmt.Errorf("failed to delete bucket: %w", err)
		}

		// Создаем заново пустой bucket
		if _, err := parent.CreateBucket([]byte(store)); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("clear transaction failed: %w", err)
	}

	return nil
}
