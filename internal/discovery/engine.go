// Package discovery enumerates item locators from a paginated, infinitely
// scrolling listing page.
package discovery

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-hub/internal/browser"
	"github.com/JakeFAU/review-hub/internal/detector"
	"github.com/JakeFAU/review-hub/internal/review"
)

// Status tags a discovery Outcome.
type Status string

// Discovery outcomes.
const (
	StatusOK      Status = "ok"
	StatusBlocked Status = "blocked"
	StatusError   Status = "error"
)

// Outcome is the result of one Discover call. Items holds whatever was found
// before a Blocked or Error stop.
type Outcome struct {
	Status Status
	Items  []string
	Reason string
	Err    error
	Pages  int
}

// Options bounds a discovery run.
type Options struct {
	MaxItems           int
	MaxPages           int
	MaxScrolls         int
	StabilityThreshold int
	ScrollWait         time.Duration
	PageSettle         time.Duration
}

// DefaultOptions returns the production bounds.
func DefaultOptions() Options {
	return Options{
		MaxItems:           50,
		MaxPages:           10,
		MaxScrolls:         6,
		StabilityThreshold: 2,
		ScrollWait:         900 * time.Millisecond,
		PageSettle:         1800 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxItems <= 0 {
		o.MaxItems = def.MaxItems
	}
	if o.MaxPages <= 0 {
		o.MaxPages = def.MaxPages
	}
	if o.MaxScrolls <= 0 {
		o.MaxScrolls = def.MaxScrolls
	}
	if o.StabilityThreshold <= 0 {
		o.StabilityThreshold = def.StabilityThreshold
	}
	return o
}

// Engine drives a browser page through a listing.
type Engine struct {
	browser  browser.Browser
	profile  Profile
	opts     Options
	detector *detector.Detector
	logger   *zap.Logger
}

// New constructs an Engine. Zero counts in opts take their defaults; zero
// waits are honoured as-is.
func New(b browser.Browser, profile Profile, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		browser:  b,
		profile:  profile.withDefaults(),
		opts:     opts.withDefaults(),
		detector: detector.New(),
		logger:   logger.With(zap.String("profile", profile.Name)),
	}
}

// Discover walks seed's pages until MaxItems, MaxPages, or a page that adds
// nothing new.
func (e *Engine) Discover(ctx context.Context, seed string) Outcome {
	page, err := e.browser.Open(ctx, "")
	if err != nil {
		return failed(nil, 0, fmt.Errorf("open page: %w", err))
	}
	defer page.Close() //nolint:errcheck // best-effort tab cleanup

	var (
		items []string
		seen  = make(map[string]struct{})
	)
	maxPages := e.opts.MaxPages
	if e.profile.MaxPages > 0 {
		maxPages = min(maxPages, e.profile.MaxPages)
	}
	for n := 1; n <= maxPages; n++ {
		pageURL := review.AddOrReplaceQuery(seed, e.profile.PageParam, strconv.Itoa(n))
		if err := page.Navigate(ctx, pageURL); err != nil {
			return failed(items, n, err)
		}
		if err := browser.CheckStatus(page, pageURL); err != nil {
			return failed(items, n, err)
		}
		if err := page.Wait(ctx, e.opts.PageSettle); err != nil {
			return failed(items, n, err)
		}
		reason, err := e.blocked(ctx, page)
		if err != nil {
			return failed(items, n, err)
		}
		if reason != "" {
			e.logger.Warn("listing blocked", zap.String("url", pageURL), zap.String("reason", reason))
			return Outcome{Status: StatusBlocked, Items: items, Reason: reason, Pages: n}
		}

		best, err := e.scan(ctx, page, len(items), seen)
		if err != nil {
			return failed(items, n, err)
		}

		added := 0
		for _, u := range best {
			if len(items) >= e.opts.MaxItems {
				break
			}
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			items = append(items, u)
			added++
		}
		e.logger.Debug("listing page scanned",
			zap.Int("page", n),
			zap.Int("found", len(best)),
			zap.Int("added", added),
			zap.Int("total", len(items)),
		)
		if len(items) >= e.opts.MaxItems {
			return Outcome{Status: StatusOK, Items: items, Pages: n}
		}
		if n > 1 && added == 0 {
			return Outcome{Status: StatusOK, Items: items, Pages: n}
		}
	}
	return Outcome{Status: StatusOK, Items: items, Pages: maxPages}
}

// scan scrolls until the extracted list stops growing and returns the longest
// list seen. It also stops once the links not already in seen would fill
// MaxItems.
func (e *Engine) scan(ctx context.Context, page browser.Page, have int, seen map[string]struct{}) ([]string, error) {
	var best []string
	stable := 0
	for i := 0; i < e.opts.MaxScrolls; i++ {
		cur, err := e.extract(ctx, page)
		if err != nil {
			return best, err
		}
		if len(cur) > len(best) {
			best = cur
			stable = 0
		} else {
			stable++
		}
		if stable >= e.opts.StabilityThreshold {
			break
		}
		if have+unseen(best, seen) >= e.opts.MaxItems {
			break
		}
		if err := page.Evaluate(ctx, e.profile.ScrollScript, nil); err != nil {
			return best, fmt.Errorf("scroll: %w", err)
		}
		if err := page.Wait(ctx, e.opts.ScrollWait); err != nil {
			return best, err
		}
	}
	return best, nil
}

func (e *Engine) extract(ctx context.Context, page browser.Page) ([]string, error) {
	var hrefs []any
	if err := page.Evaluate(ctx, e.profile.LinkScript, &hrefs); err != nil {
		return nil, fmt.Errorf("extract links: %w", err)
	}
	out := make([]string, 0, len(hrefs))
	seen := make(map[string]struct{}, len(hrefs))
	for _, h := range hrefs {
		href, ok := h.(string)
		if !ok || href == "" || !e.profile.LinkFilter(href) {
			continue
		}
		u := e.profile.Canonicalize(href)
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out, nil
}

// blocked returns a reason when the page is an interstitial. A page whose
// state cannot be read is an error, not a block.
func (e *Engine) blocked(ctx context.Context, page browser.Page) (string, error) {
	var state detector.PageState
	if err := page.Evaluate(ctx, e.profile.PageStateScript, &state); err != nil {
		return "", fmt.Errorf("read page state: %w", err)
	}
	return e.detector.Check(state), nil
}

func unseen(links []string, seen map[string]struct{}) int {
	n := 0
	for _, u := range links {
		if _, ok := seen[u]; !ok {
			n++
		}
	}
	return n
}

func failed(items []string, pages int, err error) Outcome {
	return Outcome{Status: StatusError, Items: items, Reason: err.Error(), Err: err, Pages: pages}
}
