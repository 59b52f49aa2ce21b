// Package collector walks one item's paginated review list and turns what it
// sees into normalized records.
package collector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-hub/internal/browser"
	"github.com/JakeFAU/review-hub/internal/detector"
	"github.com/JakeFAU/review-hub/internal/review"
)

// OrderLatest is the newest-first listing order the early stop relies on.
const OrderLatest = "latest"

// Status tags a collection Result.
type Status string

// Collection outcomes.
const (
	StatusOK      Status = "ok"
	StatusBlocked Status = "blocked"
	StatusError   Status = "error"
)

// Item identifies one product to collect.
type Item struct {
	Platform string
	Brand    string
	URL      string
}

// Stats are the per-item counters reported in the run summary.
type Stats struct {
	ProductURL       string `json:"product_url"`
	PagesVisited     int    `json:"pages_visited"`
	ReviewsSeen      int    `json:"reviews_seen"`
	ReviewsNew       int    `json:"reviews_new"`
	StoppedEarlySeen int    `json:"stopped_early_seen"`
}

// Result is the outcome of one CollectForItem call.
type Result struct {
	Status      Status
	ProductName string
	Reviews     []review.Record
	Stats       Stats
	Reason      string
	Err         error
}

// Options bounds collection for one item.
type Options struct {
	MaxPages   int
	MaxReviews int
	// Order is the listing order the page is sorted into. "" means latest.
	// Any other order keeps the site default and disables the early stop.
	Order         string
	RootWait      time.Duration
	ProductSettle time.Duration
	SectionSettle time.Duration
	SortWait      time.Duration
	PageWait      time.Duration
	// Now stamps CollectedAt. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the production bounds.
func DefaultOptions() Options {
	return Options{
		MaxPages:      5,
		MaxReviews:    80,
		Order:         OrderLatest,
		RootWait:      15 * time.Second,
		ProductSettle: 2200 * time.Millisecond,
		SectionSettle: 1500 * time.Millisecond,
		SortWait:      900 * time.Millisecond,
		PageWait:      900 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxPages <= 0 {
		o.MaxPages = def.MaxPages
	}
	if o.MaxReviews <= 0 {
		o.MaxReviews = def.MaxReviews
	}
	if o.RootWait <= 0 {
		o.RootWait = def.RootWait
	}
	if o.Order == "" {
		o.Order = def.Order
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Collector extracts reviews for items with one browser page per item.
type Collector struct {
	browser  browser.Browser
	profile  Profile
	opts     Options
	detector *detector.Detector
	logger   *zap.Logger
}

// New constructs a Collector.
func New(b browser.Browser, profile Profile, opts Options, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	logger = logger.With(zap.String("profile", profile.Name))
	if opts.Order != OrderLatest {
		logger.Warn("review order is not newest-first; early stop on seen reviews is disabled",
			zap.String("order", opts.Order))
	}
	return &Collector{
		browser:  b,
		profile:  profile.withDefaults(),
		opts:     opts,
		detector: detector.New(),
		logger:   logger,
	}
}

// CollectForItem returns the reviews of item that seen does not already hold.
// Every returned key is added to seen.
func (c *Collector) CollectForItem(ctx context.Context, item Item, seen *review.SeenSet) Result {
	productURL := c.profile.ProductURL(item.URL)
	sourceURL := review.CanonicalProductURL(item.URL)
	res := Result{Stats: Stats{ProductURL: productURL}}

	page, err := c.browser.Open(ctx, item.URL)
	if err != nil {
		return res.fail(fmt.Errorf("open %s: %w", item.URL, err))
	}
	defer page.Close() //nolint:errcheck // best-effort tab cleanup

	if err := browser.CheckStatus(page, item.URL); err != nil {
		return res.fail(err)
	}
	if err := page.Wait(ctx, c.opts.ProductSettle); err != nil {
		return res.fail(err)
	}
	reason, err := c.blocked(ctx, page)
	if err != nil {
		return res.fail(err)
	}
	if reason != "" {
		c.logger.Warn("product page blocked", zap.String("url", item.URL), zap.String("reason", reason))
		res.Status = StatusBlocked
		res.Reason = reason
		return res
	}

	var name string
	if err := page.Evaluate(ctx, c.profile.ProductNameScript, &name); err != nil {
		c.logger.Debug("product name unavailable", zap.Error(err))
	}
	res.ProductName = name

	if err := c.prepare(ctx, page); err != nil {
		return res.fail(err)
	}

	rc := review.Context{
		Platform:    platformOf(item, c.profile),
		Brand:       item.Brand,
		ProductName: name,
		ProductURL:  productURL,
		SourceURL:   sourceURL,
		CollectedAt: c.opts.Now(),
	}
	earlyStop := c.opts.Order == OrderLatest

	for n := 1; n <= c.opts.MaxPages && len(res.Reviews) < c.opts.MaxReviews; n++ {
		if c.profile.ReviewRootSelector != "" {
			if err := page.WaitForSelector(ctx, c.profile.ReviewRootSelector, c.opts.RootWait); err != nil {
				if ctx.Err() != nil {
					return res.fail(ctx.Err())
				}
				c.logger.Debug("review root not visible", zap.Int("page", n), zap.Error(err))
			}
		}

		var raws []review.RawReview
		if err := page.Evaluate(ctx, c.profile.ExtractScript, &raws); err != nil {
			return res.fail(fmt.Errorf("extract reviews on page %d: %w", n, err))
		}
		res.Stats.PagesVisited++
		res.Stats.ReviewsSeen += len(raws)

		newOnPage := 0
		for _, raw := range raws {
			if c.profile.Adjust != nil {
				var keep bool
				if raw, keep = c.profile.Adjust(raw); !keep {
					continue
				}
			}
			rec := review.Normalize(raw, rc)
			if !seen.Add(rec.Key) {
				continue
			}
			res.Reviews = append(res.Reviews, rec)
			res.Stats.ReviewsNew++
			newOnPage++
			if len(res.Reviews) >= c.opts.MaxReviews {
				break
			}
		}

		if newOnPage == 0 && earlyStop {
			res.Stats.StoppedEarlySeen++
			c.logger.Debug("no new reviews on page; stopping", zap.Int("page", n), zap.String("url", productURL))
			break
		}
		if n == c.opts.MaxPages || len(res.Reviews) >= c.opts.MaxReviews {
			break
		}

		var next struct {
			OK bool `json:"ok"`
		}
		if err := page.Evaluate(ctx, c.profile.NextPageScript(n+1), &next); err != nil {
			return res.fail(fmt.Errorf("open review page %d: %w", n+1, err))
		}
		if !next.OK {
			break
		}
		if err := page.Wait(ctx, c.opts.PageWait); err != nil {
			return res.fail(err)
		}
	}

	res.Status = StatusOK
	c.logger.Debug("item collected",
		zap.String("url", productURL),
		zap.Int("pages", res.Stats.PagesVisited),
		zap.Int("seen", res.Stats.ReviewsSeen),
		zap.Int("new", res.Stats.ReviewsNew),
	)
	return res
}

func (c *Collector) prepare(ctx context.Context, page browser.Page) error {
	if c.profile.EnsureSectionScript != "" {
		var state map[string]any
		if err := page.Evaluate(ctx, c.profile.EnsureSectionScript, &state); err != nil {
			c.logger.Debug("review section not revealed", zap.Error(err))
		} else {
			c.logger.Debug("review section", zap.Any("state", state))
		}
		if err := page.Wait(ctx, c.opts.SectionSettle); err != nil {
			return err
		}
	}
	if c.opts.Order == OrderLatest && c.profile.SortLatestScript != "" {
		var sorted map[string]any
		if err := page.Evaluate(ctx, c.profile.SortLatestScript, &sorted); err != nil {
			c.logger.Debug("sort by latest failed", zap.Error(err))
		}
		if err := page.Wait(ctx, c.opts.SortWait); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) blocked(ctx context.Context, page browser.Page) (string, error) {
	var state detector.PageState
	if err := page.Evaluate(ctx, c.profile.PageStateScript, &state); err != nil {
		return "", fmt.Errorf("read page state: %w", err)
	}
	return c.detector.Check(state), nil
}

func (r Result) fail(err error) Result {
	r.Status = StatusError
	r.Err = err
	r.Reason = err.Error()
	return r
}

func platformOf(item Item, p Profile) string {
	if p.Platform != "" {
		return p.Platform
	}
	return item.Platform
}
