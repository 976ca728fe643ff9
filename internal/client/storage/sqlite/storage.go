package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/iudanet/entitysync/internal/client/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Storage represents SQLite storage engine implementation
type Storage struct {
	db *sql.DB
}

var _ storage.Engine = (*Storage)(nil)

// QueryError wraps a failed statement together with its arguments so the
// caller can log enough context to diagnose the failure.
type QueryError struct {
	Err   error
	Query string
	Args  []any
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("sqlite: %v (query: %s, args: %v)", e.Err, e.Query, e.Args)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// New creates a new SQLite storage instance
// dbPath is the path to the SQLite database file
// Use ":memory:" for in-memory database (useful for testing)
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем соединение с БД
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Проверяем соединение
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite с WAL mode может поддерживать несколько читателей, но только одного писателя
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Storage{db: db}

	// Запускаем миграции
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
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

// IsSupported reports whether the connection is open
func (s *Storage) IsSupported() bool {
	return s.db != nil
}

// runMigrations выполняет миграции из embedded FS
func (s *Storage) runMigrations() error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	return nil
}

// DB returns the underlying database connection for testing purposes
func (s *Storage) DB() *sql.DB {
	return s.db
}

func (s *Storage) exec(ctx context.Context, q execer, query string, args ...any) error {
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return &QueryError{Err: err, Query: query, Args: args}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func storeExists(ctx context.Context, q querier, store string) error {
	const query = `SELECT 1 FROM stores WHERE name = ?`

	var one int
	err := q.QueryRowContext(ctx, query, store).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", storage.ErrStoreNotFound, store)
	}
	if err != nil {
		return &QueryError{Err: err, Query: query, Args: []any{store}}
	}
	return nil
}

// HasStores reports whether at least one store exists
func (s *Storage) HasStores(ctx context.Context) (bool, error) {
	if s.db == nil {
		return false, storage.ErrStorageClosed
	}

	const query = `SELECT COUNT(*) FROM stores`

	var count int
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return false, &QueryError{Err: err, Query: query}
	}
	return count > 0, nil
}

// CreateStores idempotently registers the named stores
func (s *Storage) CreateStores(ctx context.Context, names []string) error {
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

	for _, name := range names {
		if err := s.exec(ctx, tx, `INSERT OR IGNORE INTO stores (name) VALUES (?)`, name); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// StoreNames returns the names of all existing stores
func (s *Storage) StoreNames(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	const query = `SELECT name FROM stores ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &QueryError{Err: err, Query: query}
	}
	defer func() {
		_ = rows.Close()
	}()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan store name: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// DropAll removes every store, record and setting
func (s *Storage) DropAll(ctx context.Context) error {
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

	for _, query := range []string{
		`DELETE FROM records`,
		`DELETE FROM stores`,
		`DELETE FROM settings`,
	} {
		if err := s.exec(ctx, tx, query); err != nil {
			return err
		}
	}

	return tx.Commit()
}
