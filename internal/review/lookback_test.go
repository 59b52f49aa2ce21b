package review

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWithinLookback(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		date string
		days int
		want bool
	}{
		{name: "disabled", date: "2000.01.01", days: 0, want: true},
		{name: "empty", date: "", days: 3, want: true},
		{name: "today", date: "2024.03.10", days: 1, want: true},
		{name: "cutoff day inclusive", date: "2024-03-08", days: 3, want: true},
		{name: "before cutoff", date: "2024/03/07", days: 3, want: false},
		{name: "with time suffix", date: "2024.03.09 14:22", days: 2, want: true},
		{name: "unknown format kept", date: "3 days ago", days: 1, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, WithinLookback(tt.date, now, tt.days))
		})
	}
}

func TestSeenSetConcurrentAdd(t *testing.T) {
	t.Parallel()

	set := NewSeenSet(map[string]struct{}{"pre": {}})
	require.False(t, set.Add("pre"))

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		added int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if set.Add("shared") {
				mu.Lock()
				added++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, added)
	require.True(t, set.Has("shared"))
	require.Equal(t, 2, set.Len())
}
