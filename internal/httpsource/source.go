// Package httpsource collects reviews from storefronts whose review pages are
// served as static HTML, fanning out over items with a bounded worker pool.
package httpsource

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/review-hub/internal/fetcher"
	"github.com/JakeFAU/review-hub/internal/review"
)

// Worker pool bounds.
const (
	DefaultWorkers = 6
	MaxWorkers     = 16
)

// Fetcher retrieves one page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (fetcher.Response, error)
}

// Pacer delays requests per host.
type Pacer interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls a Source.
type Config struct {
	Platform string
	Workers  int
	MaxItems int
	Now      func() time.Time
}

// ClampWorkers bounds n to [1, MaxWorkers], treating n <= 0 as the default.
func ClampWorkers(n int) int {
	if n <= 0 {
		return DefaultWorkers
	}
	return min(n, MaxWorkers)
}

// ItemResult is the outcome for one item URL.
type ItemResult struct {
	URL         string
	ProductName string
	Reviews     []review.Record
	Seen        int
	Err         error
}

// Source discovers and collects review pages over plain HTTP.
type Source struct {
	fetcher Fetcher
	pacer   Pacer
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Source. pacer may be nil.
func New(f Fetcher, pacer Pacer, cfg Config, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Platform == "" {
		cfg.Platform = "imweb"
	}
	cfg.Workers = ClampWorkers(cfg.Workers)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Source{fetcher: f, pacer: pacer, cfg: cfg, logger: logger.With(zap.String("platform", cfg.Platform))}
}

// Discover lists the review pages reachable from seed. A seed that is itself
// a review page, or a listing without review links, yields just the seed.
func (s *Source) Discover(ctx context.Context, seed string) ([]string, error) {
	if IsReviewBoardURL(seed) {
		return []string{review.CanonicalProductURL(seed)}, nil
	}
	resp, err := s.fetch(ctx, seed)
	if err != nil {
		return nil, err
	}
	links, err := ReviewLinks(resp.Body, resp.URL)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return []string{review.CanonicalProductURL(seed)}, nil
	}
	if s.cfg.MaxItems > 0 && len(links) > s.cfg.MaxItems {
		links = links[:s.cfg.MaxItems]
	}
	return links, nil
}

// Collect fetches every URL with up to Workers in flight. Per-item failures
// are reported in the results; only cancellation returns an error. Results
// follow the order of urls.
func (s *Source) Collect(ctx context.Context, brand string, urls []string, seen *review.SeenSet) ([]ItemResult, error) {
	results := make([]ItemResult, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, u := range urls {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = ItemResult{URL: u, Err: err}
				return nil
			}
			results[i] = s.collectOne(gctx, brand, u, seen)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("collect %s: %w", s.cfg.Platform, err)
	}
	return results, nil
}

func (s *Source) collectOne(ctx context.Context, brand, rawURL string, seen *review.SeenSet) ItemResult {
	res := ItemResult{URL: rawURL}
	resp, err := s.fetch(ctx, rawURL)
	if err != nil {
		res.Err = err
		s.logger.Warn("review page fetch failed",
			zap.String("url", rawURL),
			zap.String("class", fetcher.Label(err)),
			zap.Error(err),
		)
		return res
	}
	name, raws, err := Parse(resp.Body, resp.URL)
	if err != nil {
		res.Err = err
		return res
	}
	res.ProductName = name
	res.Seen = len(raws)

	rc := review.Context{
		Platform:    s.cfg.Platform,
		Brand:       brand,
		ProductName: name,
		ProductURL:  resp.URL,
		SourceURL:   resp.URL,
		CollectedAt: s.cfg.Now(),
	}
	for _, raw := range raws {
		rec := review.Normalize(raw, rc)
		if seen.Add(rec.Key) {
			res.Reviews = append(res.Reviews, rec)
		}
	}
	return res
}

func (s *Source) fetch(ctx context.Context, rawURL string) (fetcher.Response, error) {
	if s.pacer != nil {
		if err := s.pacer.Wait(ctx, rawURL); err != nil {
			return fetcher.Response{}, err
		}
	}
	resp, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return fetcher.Response{}, err
	}
	if resp.URL == "" {
		resp.URL = rawURL
	}
	return resp, nil
}
