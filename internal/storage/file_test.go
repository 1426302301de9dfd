package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Permissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "tokens")

	store, err := NewFileStore(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	require.NoError(t, store.Set(context.Background(), "oauth2.google", sampleRecord()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must be renamed away")

	name := entries[0].Name()
	assert.True(t, strings.HasSuffix(name, ".json"))
	assert.Len(t, strings.TrimSuffix(name, ".json"), 32, "file name is 16 hex-encoded hash bytes")
	assert.NotContains(t, name, "google", "file name must not leak the key")

	info, err = entries[0].Info()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileStore_SnakeCaseOnDisk(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), "oauth2.fitbit", sampleRecord()))

	data, err := os.ReadFile(store.path("oauth2.fitbit"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"expires_at"`)
	assert.Contains(t, string(data), `"refresh_token"`)
}

func TestFileStore_CorruptFile(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(store.path("oauth2.google"), []byte("{not json"), 0600))

	_, err = store.Get(context.Background(), "oauth2.google")
	assert.Error(t, err)
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "oauth2.spotify", sampleRecord()))

	second, err := NewFileStore(dir)
	require.NoError(t, err)
	got, err := second.Get(ctx, "oauth2.spotify")
	require.NoError(t, err)
	assert.Equal(t, sampleRecord(), got)
}
