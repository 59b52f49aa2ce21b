package httpsource

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/review-hub/internal/fetcher"
	"github.com/JakeFAU/review-hub/internal/review"
)

var fixedNow = time.Date(2024, 2, 6, 1, 0, 0, 0, time.UTC)

func boardHTML(name, body string) string {
	return fmt.Sprintf(`<html><body><div class="author">user**</div><div class="date">2024.02.05</div>
<div class="board_txt_area"><p>%s</p><p>%s</p></div></body></html>`, name, body)
}

func boardURL(idx int) string {
	return fmt.Sprintf("https://shop.example/review/?idx=%d&interlock=shop_review", idx)
}

func newMockedSource(t *testing.T, workers int) (*Source, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	f := fetcher.New(fetcher.Config{Transport: transport, Timeout: 2 * time.Second})
	src := New(f, nil, Config{Workers: workers, Now: func() time.Time { return fixedNow }}, nil)
	return src, transport
}

func TestCollectKeepsInputOrderAndIsolatesFailures(t *testing.T) {
	t.Parallel()

	src, transport := newMockedSource(t, 3)
	for i := 1; i <= 5; i++ {
		transport.RegisterResponder(http.MethodGet, boardURL(i),
			httpmock.NewStringResponder(http.StatusOK, boardHTML("크림", fmt.Sprintf("후기 %d", i))))
	}
	transport.RegisterResponder(http.MethodGet, boardURL(3), httpmock.NewStringResponder(http.StatusForbidden, "denied"))

	urls := []string{boardURL(1), boardURL(2), boardURL(3), boardURL(4), boardURL(5)}
	results, err := src.Collect(context.Background(), "acme", urls, review.NewSeenSet(nil))
	require.NoError(t, err)
	require.Len(t, results, 5)

	for i, res := range results {
		require.Equal(t, urls[i], res.URL)
		if i == 2 {
			require.ErrorIs(t, res.Err, fetcher.ErrForbidden)
			require.Empty(t, res.Reviews)
			continue
		}
		require.NoError(t, res.Err)
		require.Len(t, res.Reviews, 1)
		rec := res.Reviews[0]
		require.Equal(t, "imweb", rec.Platform)
		require.Equal(t, "acme", rec.Brand)
		require.Equal(t, "크림", rec.ProductName)
		require.Equal(t, fmt.Sprintf("후기 %d", i+1), rec.Body)
		require.Equal(t, fmt.Sprint(i+1), rec.ReviewID)
		require.Equal(t, urls[i], rec.ProductURL)
		require.Equal(t, fixedNow, rec.CollectedAt)
	}
}

func TestCollectSharesSeenSet(t *testing.T) {
	t.Parallel()

	src, transport := newMockedSource(t, 4)
	// Two URLs serve the same review; the identity key differs only by URL,
	// so seed the set with the first to prove workers consult it.
	transport.RegisterResponder(http.MethodGet, boardURL(1), httpmock.NewStringResponder(http.StatusOK, boardHTML("크림", "같은 후기")))
	transport.RegisterResponder(http.MethodGet, boardURL(2), httpmock.NewStringResponder(http.StatusOK, boardHTML("크림", "다른 후기")))

	known := review.Normalize(review.RawReview{Author: "user**", ReviewDate: "2024.02.05", Body: "같은 후기"},
		review.Context{Platform: "imweb", ProductURL: boardURL(1)})
	seen := review.NewSeenSet(map[string]struct{}{known.Key: {}})

	results, err := src.Collect(context.Background(), "acme", []string{boardURL(1), boardURL(2)}, seen)
	require.NoError(t, err)
	require.Empty(t, results[0].Reviews)
	require.Equal(t, 1, results[0].Seen)
	require.Len(t, results[1].Reviews, 1)
	require.Equal(t, 2, seen.Len())
}

type slowFetcher struct {
	active  atomic.Int32
	maxSeen atomic.Int32
	mu      sync.Mutex
	calls   []string
}

func (f *slowFetcher) Fetch(ctx context.Context, rawURL string) (fetcher.Response, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		cur := f.maxSeen.Load()
		if n <= cur || f.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	f.mu.Unlock()
	select {
	case <-ctx.Done():
		return fetcher.Response{}, ctx.Err()
	case <-time.After(10 * time.Millisecond):
	}
	return fetcher.Response{URL: rawURL, StatusCode: 200, Body: []byte(boardHTML("p", rawURL))}, nil
}

type countingPacer struct{ n atomic.Int32 }

func (p *countingPacer) Wait(context.Context, string) error {
	p.n.Add(1)
	return nil
}

func TestCollectBoundsConcurrency(t *testing.T) {
	t.Parallel()

	f := &slowFetcher{}
	pacer := &countingPacer{}
	src := New(f, pacer, Config{Workers: 2}, nil)

	urls := make([]string, 8)
	for i := range urls {
		urls[i] = boardURL(i)
	}
	results, err := src.Collect(context.Background(), "acme", urls, review.NewSeenSet(nil))
	require.NoError(t, err)
	require.Len(t, results, 8)
	require.LessOrEqual(t, f.maxSeen.Load(), int32(2))
	require.Equal(t, int32(8), pacer.n.Load())
	require.Len(t, f.calls, 8)
}

func TestCollectCanceled(t *testing.T) {
	t.Parallel()

	src := New(&slowFetcher{}, nil, Config{Workers: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := src.Collect(ctx, "acme", []string{boardURL(1), boardURL(2)}, review.NewSeenSet(nil))
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 2)
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	src, transport := newMockedSource(t, 1)
	listing := "https://shop.example/review"
	transport.RegisterResponder(http.MethodGet, listing, httpmock.NewStringResponder(http.StatusOK,
		`<html><body><a href="/review/?idx=2&interlock=shop_review">2</a><a href="/review/?idx=1&interlock=shop_review">1</a></body></html>`))

	links, err := src.Discover(context.Background(), listing)
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://shop.example/review/?idx=2&interlock=shop_review",
		"https://shop.example/review/?idx=1&interlock=shop_review",
	}, links)

	direct, err := src.Discover(context.Background(), boardURL(7)+"&bmode=view")
	require.NoError(t, err)
	require.Equal(t, []string{boardURL(7)}, direct)
	require.Equal(t, 1, transport.GetTotalCallCount())
}

func TestDiscoverWithoutLinksUsesSeed(t *testing.T) {
	t.Parallel()

	src, transport := newMockedSource(t, 1)
	seed := "https://shop.example/product/cream"
	transport.RegisterResponder(http.MethodGet, seed, httpmock.NewStringResponder(http.StatusOK, productPage))

	links, err := src.Discover(context.Background(), seed)
	require.NoError(t, err)
	require.Equal(t, []string{seed}, links)
}

func TestClampWorkers(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultWorkers, ClampWorkers(0))
	require.Equal(t, 1, ClampWorkers(1))
	require.Equal(t, MaxWorkers, ClampWorkers(99))
}
