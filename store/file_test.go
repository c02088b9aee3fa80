package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "penalties.json")

	fileStore, err := NewFile(path)
	require.NoError(t, err)

	penalty, err := fileStore.Get(ctx, "cache-1.example.net")
	require.NoError(t, err)
	require.Equal(t, int64(0), penalty, "unknown hosts start from zero")

	require.NoError(t, fileStore.Set(ctx, "cache-1.example.net", 2000))
	require.NoError(t, fileStore.Set(ctx, "cache-2.example.net", 1000))

	penalty, err = fileStore.Get(ctx, "cache-1.example.net")
	require.NoError(t, err)
	require.Equal(t, int64(2000), penalty)
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "penalties.json")

	fileStore, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, fileStore.Set(ctx, "cache-1.example.net", 3000))

	reopened, err := NewFile(path)
	require.NoError(t, err)

	penalty, err := reopened.Get(ctx, "cache-1.example.net")
	require.NoError(t, err)
	require.Equal(t, int64(3000), penalty)

	require.Equal(t, map[string]int64{"cache-1.example.net": 3000}, reopened.All())
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "penalties.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := NewFile(path)
	require.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	memory := NewMemory()

	require.NoError(t, memory.Set(ctx, "cache-1.example.net", 1000))

	penalty, err := memory.Get(ctx, "cache-1.example.net")
	require.NoError(t, err)
	require.Equal(t, int64(1000), penalty)

	require.Equal(t, map[string]int64{"cache-1.example.net": 1000}, memory.All())
}
