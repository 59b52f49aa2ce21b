package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-hub/internal/catalog"
	"github.com/JakeFAU/review-hub/internal/collector"
	"github.com/JakeFAU/review-hub/internal/discovery"
	"github.com/JakeFAU/review-hub/internal/fetcher"
	"github.com/JakeFAU/review-hub/internal/metrics"
	"github.com/JakeFAU/review-hub/internal/review"
	"github.com/JakeFAU/review-hub/internal/sink"
)

const tracerName = "github.com/JakeFAU/review-hub/internal/orchestrator"

// sourceRun carries one source through one round.
type sourceRun struct {
	src     Source
	report  SourceReport
	errs    []ErrorEntry
	records []review.Record
	logger  *zap.Logger
}

func (r *sourceRun) fail(stage, url, status string, err error) {
	r.errs = append(r.errs, ErrorEntry{
		Source: r.src.Name,
		Stage:  stage,
		URL:    url,
		Status: status,
		Error:  err.Error(),
	})
	r.report.Errors++
	r.logger.Warn("source stage failed",
		zap.String("stage", stage),
		zap.String("url", url),
		zap.String("status", status),
		zap.Error(err),
	)
}

// runSource moves src through Discovering, Collecting and Reconciling. It
// never returns an error: failures end the source in StateError and are
// reported in the result.
func (o *Orchestrator) runSource(ctx context.Context, run *runState, src Source) *sourceRun {
	sr := &sourceRun{
		src:    src,
		report: SourceReport{Name: src.Name, State: StateIdle},
		logger: o.logger.With(zap.String("source", src.Name)),
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "source "+src.Name)
	defer span.End()

	state := o.pipeline(ctx, run, sr)
	sr.report.State = state
	span.SetAttributes(
		attribute.String("run.id", run.id),
		attribute.Int("reviews.collected", sr.report.Collected),
		attribute.Int("reviews.new", sr.report.New),
	)
	if state == StateError {
		span.SetStatus(codes.Error, "source failed")
	}
	o.setState(src.Name, state)
	metrics.ObserveSourceRun(src.Name, string(state))
	o.logErrors(ctx, run.id, sr)
	return sr
}

func (o *Orchestrator) pipeline(ctx context.Context, run *runState, sr *sourceRun) State {
	src := sr.src
	var (
		urls    []string
		collect func() error
	)

	o.setState(src.Name, StateDiscovering)
	switch src.Kind {
	case catalog.KindBrowser:
		if o.deps.Browser == nil {
			sr.fail(StageSetup, src.SeedURL, "", fmt.Errorf("no browser pipeline configured"))
			return StateError
		}
		disc, coll, err := o.deps.Browser(src.Platform)
		if err != nil {
			sr.fail(StageSetup, src.SeedURL, "", err)
			return StateError
		}
		urls = o.discoverBrowser(ctx, sr, disc)
		collect = func() error { return o.collectBrowser(ctx, run, sr, coll, urls) }
	case catalog.KindHTTP:
		if o.deps.HTTP == nil {
			sr.fail(StageSetup, src.SeedURL, "", fmt.Errorf("no http pipeline configured"))
			return StateError
		}
		hs, err := o.deps.HTTP(src.Platform)
		if err != nil {
			sr.fail(StageSetup, src.SeedURL, "", err)
			return StateError
		}
		found, err := hs.Discover(ctx, src.SeedURL)
		if err != nil {
			sr.fail(StageDiscovery, src.SeedURL, statusOf(err), err)
		}
		urls = found
		collect = func() error { return o.collectHTTP(ctx, run, sr, hs, urls) }
	default:
		sr.fail(StageSetup, src.SeedURL, "", fmt.Errorf("unknown source kind %q", src.Kind))
		return StateError
	}

	sr.report.Discovered = len(urls)
	metrics.ObserveDiscovered(src.Name, len(urls))
	if len(urls) == 0 {
		if sr.report.Errors > 0 {
			return StateError
		}
		sr.logger.Info("no items discovered")
		return StateIdle
	}
	o.rememberProducts(sr, urls)

	o.setState(src.Name, StateCollecting)
	if err := collect(); err != nil {
		return StateError
	}
	sr.records = o.withinLookback(run, sr.records)
	sr.report.Collected = len(sr.records)
	metrics.ObserveCollected(src.Name, len(sr.records))

	if len(sr.records) == 0 {
		return StateIdle
	}
	o.setState(src.Name, StateReconciling)
	if err := o.reconcile(ctx, sr); err != nil {
		return StateError
	}
	return StateIdle
}

func (o *Orchestrator) discoverBrowser(ctx context.Context, sr *sourceRun, disc Discoverer) []string {
	out := disc.Discover(ctx, sr.src.SeedURL)
	switch out.Status {
	case discovery.StatusBlocked:
		sr.report.Blocked = true
		metrics.ObserveBlocked(sr.src.Name)
		sr.fail(StageDiscovery, sr.src.SeedURL, string(out.Status), errors.New(out.Reason))
	case discovery.StatusError:
		err := out.Err
		if err == nil {
			err = errors.New(out.Reason)
		}
		sr.fail(StageDiscovery, sr.src.SeedURL, string(out.Status), err)
	}
	sr.logger.Info("discovered items",
		zap.String("status", string(out.Status)),
		zap.Int("items", len(out.Items)),
		zap.Int("pages", out.Pages),
	)
	return out.Items
}

// collectBrowser visits items one by one. Blocked or failed items are
// recorded and the batch moves on; a canceled context fails the source.
func (o *Orchestrator) collectBrowser(ctx context.Context, run *runState, sr *sourceRun, coll ItemCollector, urls []string) error {
	for i, url := range urls {
		if i > 0 {
			if err := o.deps.Clock.Sleep(ctx, o.cfg.ItemSleep); err != nil {
				sr.fail(StageCollect, url, fetcher.Label(err), err)
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			sr.fail(StageCollect, url, fetcher.Label(err), err)
			return err
		}
		res := coll.CollectForItem(ctx, collector.Item{
			Platform: sr.src.Platform,
			Brand:    sr.src.Brand,
			URL:      url,
		}, run.seen)
		sr.records = append(sr.records, res.Reviews...)

		switch res.Status {
		case collector.StatusOK:
		case collector.StatusBlocked:
			sr.report.Blocked = true
			metrics.ObserveBlocked(sr.src.Name)
			sr.fail(StageCollect, url, string(res.Status), errors.New(res.Reason))
		default:
			err := res.Err
			if err == nil {
				err = errors.New(res.Reason)
			}
			sr.fail(StageCollect, url, string(res.Status), err)
		}
	}
	return nil
}

func (o *Orchestrator) collectHTTP(ctx context.Context, run *runState, sr *sourceRun, hs HTTPSource, urls []string) error {
	results, err := hs.Collect(ctx, sr.src.Brand, urls, run.seen)
	if err != nil {
		sr.fail(StageCollect, sr.src.SeedURL, fetcher.Label(err), err)
		return err
	}
	for _, res := range results {
		sr.records = append(sr.records, res.Reviews...)
		if res.Err != nil {
			if errors.Is(res.Err, fetcher.ErrBlocked) {
				sr.report.Blocked = true
				metrics.ObserveBlocked(sr.src.Name)
			}
			sr.fail(StageCollect, res.URL, statusOf(res.Err), res.Err)
		}
	}
	return nil
}

func (o *Orchestrator) withinLookback(run *runState, records []review.Record) []review.Record {
	if o.cfg.LookbackDays <= 0 {
		return records
	}
	now := run.now().In(o.cfg.Location)
	kept := records[:0]
	for _, rec := range records {
		if review.WithinLookback(rec.ReviewDate, now, o.cfg.LookbackDays) {
			kept = append(kept, rec)
		}
	}
	return kept
}

// reconcile writes the source's records and persists the keys of appended
// rows, including those of a partially written batch.
func (o *Orchestrator) reconcile(ctx context.Context, sr *sourceRun) error {
	if o.cfg.DryRun {
		sr.report.New = len(sr.records)
		sr.logger.Info("dry run: skipping sink write", zap.Int("records", len(sr.records)))
		return nil
	}
	res, err := o.deps.Reconciler.Reconcile(ctx, sr.records)
	sr.report.New = res.Appended
	sr.report.Updated = res.Updated
	if err != nil {
		sr.fail(StageReconcile, sr.src.SeedURL, "", err)
	}
	if len(res.NewKeys) > 0 {
		if _, keyErr := o.deps.DedupKeys.AddMany(res.NewKeys); keyErr != nil {
			keyErr = fmt.Errorf("persist identity keys: %w", keyErr)
			sr.fail(StageReconcile, sr.src.SeedURL, "", keyErr)
			if err == nil {
				err = keyErr
			}
		}
	}
	return err
}

func (o *Orchestrator) rememberProducts(sr *sourceRun, urls []string) {
	if o.cfg.DryRun || o.deps.SeenProducts == nil {
		return
	}
	added, err := o.deps.SeenProducts.AddMany(urls)
	if err != nil {
		sr.logger.Warn("record seen products failed", zap.Error(err))
		return
	}
	sr.logger.Debug("recorded products", zap.Int("new", added))
}

// logErrors mirrors a source's failures into the error tabs.
func (o *Orchestrator) logErrors(ctx context.Context, runID string, sr *sourceRun) {
	if !o.cfg.ErrorLog || o.cfg.DryRun || o.deps.ErrorLog == nil || len(sr.errs) == 0 {
		return
	}
	byStage := make(map[string][]sink.ErrorItem)
	for _, e := range sr.errs {
		byStage[e.Stage] = append(byStage[e.Stage], sink.ErrorItem{
			Brand:    sr.src.Brand,
			Platform: sr.src.Platform,
			URL:      e.URL,
			Status:   e.Status,
			Error:    e.Error,
		})
	}
	// Error rows are written even after cancellation.
	ctx = context.WithoutCancel(ctx)
	for _, stage := range []string{StageSetup, StageDiscovery, StageCollect, StageReconcile} {
		items := byStage[stage]
		if len(items) == 0 {
			continue
		}
		tab := o.cfg.ErrorTabs.Reviews
		if stage == StageSetup || stage == StageDiscovery {
			tab = o.cfg.ErrorTabs.Discovery
		}
		if _, err := o.deps.ErrorLog.Log(ctx, tab, runID, stage, items); err != nil {
			sr.logger.Warn("write error rows failed", zap.String("tab", tab), zap.Error(err))
		}
	}
}

// statusOf renders an error as an HTTP status code when it carries one.
func statusOf(err error) string {
	if code := fetcher.StatusOf(err); code > 0 {
		return strconv.Itoa(code)
	}
	return fetcher.Label(err)
}
