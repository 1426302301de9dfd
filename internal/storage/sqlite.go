package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tokenwarden/pkg/logging"
	"tokenwarden/pkg/oauth"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// SQLiteStore persists records in a single SQLite table, one row per key.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and applies the
// schema. Use ":memory:" for a throwaway database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, oauth.NewConfigurationError("storage.path", "sqlite storage requires a database path")
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; a single connection also keeps ":memory:"
	// databases alive for the lifetime of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(sqliteSchema)
	return err
}

// Get returns the record for key, or (nil, nil) when there is none.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*oauth.TokenRecord, error) {
	query := `
		SELECT record
		FROM tokens
		WHERE key = ?
	`

	var raw string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query token: %w", err)
	}

	var record oauth.TokenRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	return &record, nil
}

// Set upserts record under key.
func (s *SQLiteStore) Set(ctx context.Context, key string, record *oauth.TokenRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	query := `
		INSERT INTO tokens (key, record, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			record = excluded.record,
			updated_at = excluded.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, key, string(data), time.Now().Unix()); err != nil {
		logging.Audit(logging.AuditEvent{Action: "token_store_failed", Outcome: "failure", Key: key, Error: err})
		return fmt.Errorf("failed to store token: %w", err)
	}

	logging.Audit(logging.AuditEvent{Action: "token_stored", Outcome: "success", Key: key})
	return nil
}

// Remove deletes the row for key. Missing keys are ignored.
func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE key = ?`, key); err != nil {
		logging.Audit(logging.AuditEvent{Action: "token_delete_failed", Outcome: "failure", Key: key, Error: err})
		return fmt.Errorf("failed to delete token: %w", err)
	}

	logging.Audit(logging.AuditEvent{Action: "token_deleted", Outcome: "success", Key: key})
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
