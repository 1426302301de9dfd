package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenwarden/pkg/oauth"
)

func sampleRecord() *oauth.TokenRecord {
	return &oauth.TokenRecord{
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		ExpiresAt:    time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC).UnixMilli(),
		TokenType:    "Bearer",
		Scope:        "openid profile",
	}
}

// adapterFactories returns one constructor per concrete adapter so the
// contract tests below run against every backend.
func adapterFactories(t *testing.T) map[string]func() Store {
	t.Helper()
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"file": func() Store {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"sqlite": func() Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tokens.db"))
			require.NoError(t, err)
			return s
		},
		"sqlite-memory": func() Store {
			s, err := NewSQLiteStore(":memory:")
			require.NoError(t, err)
			return s
		},
		"cached-file": func() Store {
			inner, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return NewCachedAdapter(inner, time.Minute, nil)
		},
	}
}

func TestAdapter_Contract(t *testing.T) {
	ctx := context.Background()

	for name, factory := range adapterFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer store.Close()

			key := oauth.StorageKey("google")

			got, err := store.Get(ctx, key)
			require.NoError(t, err)
			assert.Nil(t, got, "missing key should be absent")

			require.NoError(t, store.Set(ctx, key, sampleRecord()))

			got, err = store.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, sampleRecord(), got)

			updated := sampleRecord()
			updated.AccessToken = "access-789"
			require.NoError(t, store.Set(ctx, key, updated))

			got, err = store.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, "access-789", got.AccessToken)

			other, err := store.Get(ctx, oauth.StorageKey("spotify"))
			require.NoError(t, err)
			assert.Nil(t, other)

			require.NoError(t, store.Remove(ctx, key))
			got, err = store.Get(ctx, key)
			require.NoError(t, err)
			assert.Nil(t, got)

			assert.NoError(t, store.Remove(ctx, key), "removing a missing key is not an error")
		})
	}
}

func TestAdapter_ReturnsCopies(t *testing.T) {
	ctx := context.Background()

	for name, factory := range adapterFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer store.Close()

			record := sampleRecord()
			require.NoError(t, store.Set(ctx, "k", record))
			record.AccessToken = "mutated"

			got, err := store.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "access-123", got.AccessToken)

			got.AccessToken = "mutated-again"
			again, err := store.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "access-123", again.AccessToken)
		})
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		wantType interface{}
		wantErr  bool
	}{
		{name: "default is memory", opts: Options{}, wantType: &MemoryStore{}},
		{name: "memory", opts: Options{Driver: DriverMemory}, wantType: &MemoryStore{}},
		{name: "file", opts: Options{Driver: DriverFile, Path: t.TempDir()}, wantType: &FileStore{}},
		{name: "sqlite", opts: Options{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "t.db")}, wantType: &SQLiteStore{}},
		{name: "file with cache", opts: Options{Driver: DriverFile, Path: t.TempDir(), CacheTTL: time.Minute}, wantType: &CachedAdapter{}},
		{name: "sqlite without path", opts: Options{Driver: DriverSQLite}, wantErr: true},
		{name: "unknown driver", opts: Options{Driver: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, oauth.ErrConfiguration))
				return
			}
			require.NoError(t, err)
			defer store.Close()
			assert.IsType(t, tt.wantType, store)
		})
	}
}
