package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	store := New(filepath.Join(t.TempDir(), "absent", "keys.txt"))
	keys, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestAddManyIsMonotonicAndIdempotent(t *testing.T) {
	t.Parallel()

	store := New(filepath.Join(t.TempDir(), "state", "dedup-keys.txt"))
	batch := []string{"k1", "k2", "k3"}

	added, err := store.AddMany(batch)
	require.NoError(t, err)
	require.Equal(t, 3, added)

	added, err = store.AddMany(batch)
	require.NoError(t, err)
	require.Equal(t, 0, added)

	keys, err := store.Load()
	require.NoError(t, err)
	for _, k := range batch {
		assert.Contains(t, keys, k)
	}
	count, err := store.Count()
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestAddManySkipsBlankAndRepeatedInput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keys.txt")
	store := New(path)

	added, err := store.AddMany([]string{"a", "", "  ", "a", "b"})
	require.NoError(t, err)
	require.Equal(t, 2, added)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "a\nb\n", string(raw))
}

func TestLoadIgnoresBlankLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keys.txt")
	require.NoError(t, os.WriteFile(path, []byte("x\n\n  y  \n"), 0o600))

	keys, err := New(path).Load()
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.Contains(t, keys, "y")
}

func TestAddManyConcurrentWritersNeverDuplicate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keys.txt")
	var wg sync.WaitGroup
	totals := make([]int, 4)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			keys := make([]string, 0, 50)
			for i := 0; i < 50; i++ {
				keys = append(keys, fmt.Sprintf("key-%d", i))
			}
			n, err := New(path).AddMany(keys)
			require.NoError(t, err)
			totals[w] = n
		}(w)
	}
	wg.Wait()

	sum := 0
	for _, n := range totals {
		sum += n
	}
	require.Equal(t, 50, sum)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(string(raw)), "\n"), 50)
}
