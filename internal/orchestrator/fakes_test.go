package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/review-hub/internal/collector"
	"github.com/JakeFAU/review-hub/internal/discovery"
	"github.com/JakeFAU/review-hub/internal/httpsource"
	"github.com/JakeFAU/review-hub/internal/review"
	"github.com/JakeFAU/review-hub/internal/sink"
)

var t0 = time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)

// fakeClock advances only when slept on.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
	reads int
}

func newFakeClock() *fakeClock { return &fakeClock{now: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)
	return nil
}

type fakeIDs struct {
	mu sync.Mutex
	n  int
}

func (g *fakeIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("run-%d", g.n), nil
}

// fakeKeys is an in-memory KeyStore.
type fakeKeys struct {
	mu      sync.Mutex
	keys    map[string]struct{}
	batches [][]string
	loadErr error
	addErr  error
}

func newFakeKeys(initial ...string) *fakeKeys {
	k := &fakeKeys{keys: map[string]struct{}{}}
	for _, key := range initial {
		k.keys[key] = struct{}{}
	}
	return k
}

func (k *fakeKeys) Load() (map[string]struct{}, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.loadErr != nil {
		return nil, k.loadErr
	}
	out := make(map[string]struct{}, len(k.keys))
	for key := range k.keys {
		out[key] = struct{}{}
	}
	return out, nil
}

func (k *fakeKeys) AddMany(keys []string) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.addErr != nil {
		return 0, k.addErr
	}
	k.batches = append(k.batches, append([]string(nil), keys...))
	added := 0
	for _, key := range keys {
		if _, ok := k.keys[key]; !ok {
			k.keys[key] = struct{}{}
			added++
		}
	}
	return added, nil
}

func (k *fakeKeys) Batches() [][]string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([][]string(nil), k.batches...)
}

// fakeReconciler treats keys it has seen before as updates. When failAfter
// is positive, it writes that many appends and then fails.
type fakeReconciler struct {
	mu        sync.Mutex
	sinkKeys  map[string]struct{}
	calls     [][]review.Record
	failAfter int
}

func newFakeReconciler(existing ...string) *fakeReconciler {
	r := &fakeReconciler{sinkKeys: map[string]struct{}{}}
	for _, k := range existing {
		r.sinkKeys[k] = struct{}{}
	}
	return r
}

func (r *fakeReconciler) Reconcile(_ context.Context, records []review.Record) (sink.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]review.Record(nil), records...))
	var res sink.Result
	for _, rec := range records {
		if _, ok := r.sinkKeys[rec.Key]; ok {
			res.Updated++
			continue
		}
		if r.failAfter > 0 && res.Appended == r.failAfter {
			return res, errors.New("sink quota exceeded")
		}
		r.sinkKeys[rec.Key] = struct{}{}
		res.Appended++
		res.NewKeys = append(res.NewKeys, rec.Key)
	}
	res.Writes = 1
	return res, nil
}

func (r *fakeReconciler) Calls() [][]review.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]review.Record(nil), r.calls...)
}

type fakeDiscoverer struct {
	outcome discovery.Outcome
}

func (d *fakeDiscoverer) Discover(context.Context, string) discovery.Outcome {
	return d.outcome
}

// fakeCollector serves fixed reviews per item URL, honouring the seen set.
type fakeCollector struct {
	mu      sync.Mutex
	reviews map[string][]review.Record
	status  map[string]collector.Status
	calls   []string
}

func (c *fakeCollector) CollectForItem(_ context.Context, item collector.Item, seen *review.SeenSet) collector.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, item.URL)
	st := c.status[item.URL]
	if st == "" {
		st = collector.StatusOK
	}
	res := collector.Result{Status: st}
	if st == collector.StatusBlocked {
		res.Reason = "blocked: captcha_or_denied_selector"
		return res
	}
	if st == collector.StatusError {
		res.Err = errors.New("review root missing")
	}
	for _, rec := range c.reviews[item.URL] {
		if seen.Add(rec.Key) {
			res.Reviews = append(res.Reviews, rec)
		}
	}
	return res
}

func (c *fakeCollector) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type fakeHTTP struct {
	urls        []string
	discoverErr error
	reviews     map[string][]review.Record
	itemErr     map[string]error
	collectErr  error
}

func (h *fakeHTTP) Discover(context.Context, string) ([]string, error) {
	return h.urls, h.discoverErr
}

func (h *fakeHTTP) Collect(_ context.Context, _ string, urls []string, seen *review.SeenSet) ([]httpsource.ItemResult, error) {
	if h.collectErr != nil {
		return nil, h.collectErr
	}
	out := make([]httpsource.ItemResult, 0, len(urls))
	for _, u := range urls {
		res := httpsource.ItemResult{URL: u, Err: h.itemErr[u]}
		for _, rec := range h.reviews[u] {
			if seen.Add(rec.Key) {
				res.Reviews = append(res.Reviews, rec)
			}
		}
		out = append(out, res)
	}
	return out, nil
}

type loggedErrors struct {
	Tab   string
	RunID string
	Stage string
	Items []sink.ErrorItem
}

type fakeErrorLog struct {
	mu    sync.Mutex
	calls []loggedErrors
}

func (l *fakeErrorLog) Log(_ context.Context, tab, runID, stage string, items []sink.ErrorItem) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, loggedErrors{Tab: tab, RunID: runID, Stage: stage, Items: items})
	return len(items), nil
}

func (l *fakeErrorLog) Calls() []loggedErrors {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]loggedErrors(nil), l.calls...)
}

func rec(key, date string) review.Record {
	return review.Record{Key: key, ReviewDate: date, Platform: "coupang", Brand: "acme"}
}
