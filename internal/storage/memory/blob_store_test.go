package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/review-hub/internal/storage"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "runs/a.json", storage.ContentType, bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://runs/a.json", uri)

	payload[0] = 'C'
	_, data, err := store.Latest(context.Background(), "runs")
	require.NoError(t, err)
	require.Equal(t, "content", string(data))
}

func TestBlobStoreLatest(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	ctx := context.Background()
	_, _, err := store.Latest(ctx, "runs")
	require.ErrorIs(t, err, storage.ErrNotFound)

	for _, p := range []string{"runs/2026-01-01/b.json", "runs/2026-01-02/a.json", "zzz/c.json"} {
		_, err := store.PutObject(ctx, p, storage.ContentType, bytes.NewReader([]byte(p)))
		require.NoError(t, err)
	}
	name, _, err := store.Latest(ctx, "runs")
	require.NoError(t, err)
	require.Equal(t, "runs/2026-01-02/a.json", name)
	require.Equal(t, []string{"runs/2026-01-01/b.json", "runs/2026-01-02/a.json", "zzz/c.json"}, store.Paths())
}
