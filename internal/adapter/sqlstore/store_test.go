package sqlstore_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itassist/internal/adapter/sqlstore"
	"itassist/internal/index"
)

func TestStore_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "index.db")

	store, err := sqlstore.Open(ctx, sqlstore.Config{Driver: sqlstore.DialectSQLite, Path: path})
	require.NoError(t, err)

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, index.ErrIndexNotFound)

	snap := sampleSnapshot()
	require.NoError(t, store.Save(ctx, snap))
	require.NoError(t, store.Close())

	reopened, err := sqlstore.Open(ctx, sqlstore.Config{Driver: sqlstore.DialectSQLite, Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(snap.Chunks, got.Chunks); diff != "" {
		t.Errorf("chunks differ (-want +got):\n%s", diff)
	}
	assert.Equal(t, snap.Manifest.Model, got.Manifest.Model)
	assert.Equal(t, snap.Manifest.Dimension, got.Manifest.Dimension)
	assert.True(t, snap.Manifest.CreatedAt.Equal(got.Manifest.CreatedAt))

	t.Run("Save Replaces Previous Snapshot", func(t *testing.T) {
		smaller := sampleSnapshot()
		smaller.Chunks = smaller.Chunks[:1]
		require.NoError(t, reopened.Save(ctx, smaller))

		got, err := reopened.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, got.Chunks, 1)
		assert.Equal(t, 1, got.Manifest.ChunkCount)
	})
}

func TestStore_SQLiteCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("not a sqlite database ", 256)), 0o600))

	_, err := sqlstore.Open(context.Background(), sqlstore.Config{Driver: sqlstore.DialectSQLite, Path: path})
	assert.ErrorIs(t, err, index.ErrIndexCorrupt)
}

func TestStore_UnknownDriver(t *testing.T) {
	_, err := sqlstore.Open(context.Background(), sqlstore.Config{Driver: "mongo"})
	assert.Error(t, err)
}
