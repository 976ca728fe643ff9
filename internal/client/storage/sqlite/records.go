package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/entitysync/internal/client/storage"
)

// Put inserts or replaces records by ID
func (s *Storage) Put(ctx context.Context, store string, records []storage.Record) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := storeExists(ctx, tx, store); err != nil {
		return err
	}

	const query = `
		INSERT INTO records (store, id, data) VALUES (?, ?, ?)
		ON CONFLICT(store, id) DO UPDATE SET data = excluded.data
	`

	for _, rec := range records {
		if err := s.exec(ctx, tx, query, store, rec.ID, rec.Data); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Get retrieves a single record by ID
func (s *Storage) Get(ctx context.Context, store string, id int64) ([]byte, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	if err := storeExists(ctx, s.db, store); err != nil {
		return nil, err
	}

	const query = `SELECT data FROM records WHERE store = ? AND id = ?`

	var data []byte
	err := s.db.QueryRowContext(ctx, query, store, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrItemNotFound
	}
	if err != nil {
		return nil, &QueryError{Err: err, Query: query, Args: []any{store, id}}
	}

	return data, nil
}

// All returns every record of the store ordered by ascending ID
func (s *Storage) All(ctx context.Context, store string) ([]storage.Record, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	if err := storeExists(ctx, s.db, store); err != nil {
		return nil, err
	}

	const query = `SELECT id, data FROM records WHERE store = ? ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, store)
	if err != nil {
		return nil, &QueryError{Err: err, Query: query, Args: []any{store}}
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []storage.Record
	for rows.Next() {
		var rec storage.Record
		if err := rows.Scan(&rec.ID, &rec.Data); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// Delete removes records by ID
func (s *Storage) Delete(ctx context.Context, store string, ids []int64) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := storeExists(ctx, tx, store); err != nil {
		return err
	}

	for _, id := range ids {
		if err := s.exec(ctx, tx, `DELETE FROM records WHERE store = ? AND id = ?`, store, id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Clear removes all records of the store
func (s *Storage) Clear(ctx context.Context, store string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	if err := storeExists(ctx, s.db, store); err != nil {
		return err
	}

	return s.exec(ctx, s.db, `DELETE FROM records WHERE store = ?`, store)
}
