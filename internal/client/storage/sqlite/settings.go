package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iudanet/entitysync/internal/client/storage"
)

// SaveSetting stores a setting value
func (s *Storage) SaveSetting(ctx context.Context, key, value string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.exec(ctx, s.db, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
}

// GetSetting retrieves a setting value
func (s *Storage) GetSetting(ctx context.Context, key string) (string, bool, error) {
	if s.db == nil {
		return "", false, storage.ErrStorageClosed
	}

	const query = `SELECT value FROM settings WHERE key = ?`

	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &QueryError{Err: err, Query: query, Args: []any{key}}
	}

	return value, true, nil
}
