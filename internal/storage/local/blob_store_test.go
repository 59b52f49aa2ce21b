package local_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/review-hub/internal/storage"
	"github.com/JakeFAU/review-hub/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "archive", "nested")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	tempDir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: tempDir})
	require.NoError(t, err)

	t.Run("ValidPut", func(t *testing.T) {
		path := "runs/2026-01-02/run-1.json"
		data := []byte(`{"run_id":"run-1"}`)
		uri, err := store.PutObject(context.Background(), path, storage.ContentType, bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(tempDir, path), uri)

		// #nosec G304 -- test reads from the controlled temp directory.
		readData, err := os.ReadFile(filepath.Join(tempDir, path))
		require.NoError(t, err)
		assert.Equal(t, data, readData)
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "", storage.ContentType, bytes.NewReader([]byte("data")))
		assert.Error(t, err)
	})

	t.Run("Traversal", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "../escape.json", storage.ContentType, bytes.NewReader([]byte("data")))
		assert.ErrorContains(t, err, "traversal")
	})
}

func TestLatest(t *testing.T) {
	t.Parallel()

	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = store.Latest(ctx, "runs")
	require.ErrorIs(t, err, storage.ErrNotFound)

	for _, p := range []string{
		"runs/2026-01-02/0190-b.json",
		"runs/2026-01-03/0190-a.json",
		"runs/2026-01-01/0190-z.json",
		"other/2027-01-01/x.json",
	} {
		_, err := store.PutObject(ctx, p, storage.ContentType, bytes.NewReader([]byte(p)))
		require.NoError(t, err)
	}

	name, data, err := store.Latest(ctx, "runs")
	require.NoError(t, err)
	assert.Equal(t, "runs/2026-01-03/0190-a.json", name)
	assert.Equal(t, "runs/2026-01-03/0190-a.json", string(data))
}
