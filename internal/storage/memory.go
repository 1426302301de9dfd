package storage

import (
	"context"
	"sync"

	"tokenwarden/pkg/oauth"
)

// MemoryStore keeps records in process memory. Records are lost on exit.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*oauth.TokenRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*oauth.TokenRecord),
	}
}

// Get returns a copy of the record stored under key, or nil.
func (s *MemoryStore) Get(_ context.Context, key string) (*oauth.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecord(s.records[key]), nil
}

// Set stores a copy of record under key.
func (s *MemoryStore) Set(_ context.Context, key string, record *oauth.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = cloneRecord(record)
	return nil
}

// Remove deletes key. Missing keys are ignored.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
