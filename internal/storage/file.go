package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tokenwarden/pkg/logging"
	"tokenwarden/pkg/oauth"
)

// DefaultTokenStorageDir is the default token directory, relative to the
// user's home directory.
const DefaultTokenStorageDir = ".config/tokenwarden/tokens"

// FileStore persists one JSON file per key.
//
// SECURITY: This store handles sensitive OAuth credentials.
//   - Files are created with 0600 permissions (owner read/write only)
//   - The storage directory is created with 0700 permissions
//   - Token values are NEVER logged, only storage keys
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

// NewFileStore creates a file store rooted at dir, creating it if needed.
// An empty dir means ~/.config/tokenwarden/tokens.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, DefaultTokenStorageDir)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create token storage directory: %w", err)
	}

	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding the token files.
func (s *FileStore) Dir() string {
	return s.dir
}

// Get reads the record for key. A missing file yields (nil, nil).
func (s *FileStore) Get(_ context.Context, key string) (*oauth.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// #nosec G304 -- path is derived from a hash of the key, not user input
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var record oauth.TokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	return &record, nil
}

// Set writes record for key, replacing any existing file.
func (s *FileStore) Set(_ context.Context, key string, record *oauth.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	// Write to a temp file and rename so readers never see a partial record.
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		logging.Audit(logging.AuditEvent{Action: "token_store_failed", Outcome: "failure", Key: key, Error: err})
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		_ = os.Remove(tmp)
		logging.Audit(logging.AuditEvent{Action: "token_store_failed", Outcome: "failure", Key: key, Error: err})
		return fmt.Errorf("failed to write token file: %w", err)
	}

	logging.Audit(logging.AuditEvent{Action: "token_stored", Outcome: "success", Key: key})
	return nil
}

// Remove deletes the file for key. A missing file is not an error.
func (s *FileStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Audit(logging.AuditEvent{Action: "token_delete_failed", Outcome: "failure", Key: key, Error: err})
		return fmt.Errorf("failed to remove token file: %w", err)
	}

	logging.Audit(logging.AuditEvent{Action: "token_deleted", Outcome: "success", Key: key})
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}

// path maps a key to a filesystem-safe file name using the first 16 bytes of
// its SHA-256 hash.
func (s *FileStore) path(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(hash[:16])+".json")
}
