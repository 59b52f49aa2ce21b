// Package app builds the long-lived services of a review-hub process from
// configuration and owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-hub/internal/api"
	"github.com/JakeFAU/review-hub/internal/browser"
	"github.com/JakeFAU/review-hub/internal/catalog"
	"github.com/JakeFAU/review-hub/internal/clock/system"
	"github.com/JakeFAU/review-hub/internal/collector"
	"github.com/JakeFAU/review-hub/internal/config"
	"github.com/JakeFAU/review-hub/internal/discovery"
	"github.com/JakeFAU/review-hub/internal/fetcher"
	"github.com/JakeFAU/review-hub/internal/httpsource"
	"github.com/JakeFAU/review-hub/internal/id/uuid"
	"github.com/JakeFAU/review-hub/internal/identity"
	"github.com/JakeFAU/review-hub/internal/lock"
	"github.com/JakeFAU/review-hub/internal/orchestrator"
	"github.com/JakeFAU/review-hub/internal/publisher"
	memorypublisher "github.com/JakeFAU/review-hub/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/review-hub/internal/publisher/pubsub"
	"github.com/JakeFAU/review-hub/internal/ratelimit"
	"github.com/JakeFAU/review-hub/internal/sink"
	pgsink "github.com/JakeFAU/review-hub/internal/sink/postgres"
	"github.com/JakeFAU/review-hub/internal/sink/sheets"
	"github.com/JakeFAU/review-hub/internal/storage"
	gcsstorage "github.com/JakeFAU/review-hub/internal/storage/gcs"
	localstorage "github.com/JakeFAU/review-hub/internal/storage/local"
)

// App holds the services shared by the CLI commands.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	tab       sink.Tab
	dedupKeys *identity.Store
	seen      *identity.Store
	archive   storage.Archive
	publisher publisher.Publisher

	browserOnce sync.Once
	browser     *browser.Chromedp
	browserErr  error

	closers []func() error
}

// New wires the sink, state stores, archive and publisher. Browsers start
// lazily, on the first browser-backed source.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:       cfg,
		logger:    logger,
		dedupKeys: identity.New(cfg.State.DedupKeysPath),
		seen:      identity.New(cfg.State.SeenProductsPath),
	}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	var err error
	if a.tab, err = a.buildTab(ctx); err != nil {
		return err
	}
	if a.archive, err = a.buildArchive(ctx); err != nil {
		return err
	}
	if a.publisher, err = a.buildPublisher(ctx); err != nil {
		return err
	}
	return nil
}

func (a *App) buildTab(ctx context.Context) (sink.Tab, error) {
	s := a.cfg.Sink
	switch s.Kind {
	case config.SinkSheets:
		a.logger.Info("using google sheets sink", zap.String("spreadsheet", s.Sheets.SpreadsheetID))
		tab, err := sheets.New(ctx, a.cfg.SheetsConfig())
		if err != nil {
			return nil, fmt.Errorf("init sheets sink: %w", err)
		}
		return tab, nil
	case config.SinkPostgres:
		a.logger.Info("using postgres sink", zap.String("table", s.Postgres.Table))
		tab, err := pgsink.New(ctx, a.cfg.PostgresConfig())
		if err != nil {
			return nil, fmt.Errorf("init postgres sink: %w", err)
		}
		a.closers = append(a.closers, func() error { tab.Close(); return nil })
		if err := tab.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("init postgres sink: %w", err)
		}
		return tab, nil
	default:
		a.logger.Info("using in-memory sink; rows are discarded on exit")
		return sink.NewMemoryTab(), nil
	}
}

func (a *App) buildArchive(ctx context.Context) (storage.Archive, error) {
	ac := a.cfg.Archive
	switch ac.Kind {
	case config.ArchiveLocal:
		store, err := localstorage.New(localstorage.Config{BaseDir: ac.Dir})
		if err != nil {
			return nil, fmt.Errorf("init local archive: %w", err)
		}
		return store, nil
	case config.ArchiveGCS:
		store, err := gcsstorage.Dial(ctx, gcsstorage.Config{Bucket: ac.Bucket, Prefix: ac.Prefix})
		if err != nil {
			return nil, fmt.Errorf("init gcs archive: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return storage.Nop{}, nil
	}
}

func (a *App) buildPublisher(ctx context.Context) (publisher.Publisher, error) {
	pc := a.cfg.Publisher
	switch pc.Kind {
	case config.PublisherMemory:
		return memorypublisher.New(), nil
	case config.PublisherPubSub:
		pub, closeFn, err := gcppublisher.Dial(ctx, pc.ProjectID, pc.Topic)
		if err != nil {
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, closeFn)
		return pub, nil
	default:
		return publisher.Nop{}, nil
	}
}

// Tab returns the configured sink tab.
func (a *App) Tab() sink.Tab {
	return a.tab
}

// Publisher returns the configured summary publisher.
func (a *App) Publisher() publisher.Publisher {
	return a.publisher
}

// Orchestrator builds an orchestrator over the catalog sources selected by
// runner.sources and runner.brands. Skipped catalog entries are logged.
func (a *App) Orchestrator() (*orchestrator.Orchestrator, error) {
	cat, err := catalog.Load(a.cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	sources, skipped := cat.Sources()
	for _, name := range skipped {
		a.logger.Warn("catalog entry skipped", zap.String("entry", name))
	}
	r := a.cfg.Runner
	sources = catalog.Filter(sources, r.Sources, r.Brands)
	if len(sources) == 0 {
		return nil, errors.New("no sources selected")
	}

	clock := system.New()
	deps := orchestrator.Deps{
		Sources:      sources,
		Browser:      a.browserFactory,
		HTTP:         a.httpFactory(clock),
		DedupKeys:    a.dedupKeys,
		SeenProducts: a.seen,
		Clock:        clock,
		IDs:          uuid.New(),
		Archive:      a.archive,
		Publisher:    a.publisher,
	}
	if !r.DryRun {
		rec, err := sink.NewReconciler(a.tab, a.cfg.Layout(), lock.FileLocker{}, a.cfg.Sink.LockPath, a.logger)
		if err != nil {
			return nil, err
		}
		deps.Reconciler = rec
		deps.ErrorLog = sink.NewErrorLog(a.tab, lock.FileLocker{}, a.cfg.Sink.LockPath, clock.Now, a.cfg.Location())
	}

	topic := ""
	if a.cfg.Publisher.Kind != config.PublisherNone {
		topic = a.cfg.Publisher.Topic
	}
	return orchestrator.New(deps, orchestrator.Config{
		LockPath:     r.LockPath,
		MaxDuration:  a.cfg.Deadline(),
		Sleep:        a.cfg.RoundSleep(),
		ItemSleep:    a.cfg.ItemSleep(),
		SourceSleep:  a.cfg.SourceSleep(),
		Once:         r.Once,
		DryRun:       r.DryRun,
		ErrorLog:     r.ErrorLog,
		LookbackDays: r.LookbackDays,
		Location:     a.cfg.Location(),
		ErrorTabs: orchestrator.ErrorTabs{
			Reviews:   a.cfg.Sink.ErrorTabs.Reviews,
			Discovery: a.cfg.Sink.ErrorTabs.Discovery,
		},
		ArchivePrefix: a.cfg.Archive.Prefix,
		Topic:         topic,
	}, a.logger)
}

func (a *App) browserFactory(platform string) (orchestrator.Discoverer, orchestrator.ItemCollector, error) {
	a.browserOnce.Do(func() {
		a.browser, a.browserErr = browser.NewChromedp(a.cfg.BrowserConfig())
		if a.browserErr == nil {
			a.closers = append(a.closers, func() error { a.browser.Close(); return nil })
		}
	})
	if a.browserErr != nil {
		return nil, nil, fmt.Errorf("start browser: %w", a.browserErr)
	}
	return browserPipeline(a.browser, platform, a.cfg.DiscoveryOptions(), a.cfg.CollectorOptions(), a.logger)
}

// browserPipeline picks the discovery and collection profiles of platform.
func browserPipeline(b browser.Browser, platform string, dopts discovery.Options, copts collector.Options, logger *zap.Logger) (orchestrator.Discoverer, orchestrator.ItemCollector, error) {
	switch strings.ToLower(strings.TrimSpace(platform)) {
	case "coupang", "coupang_brandshop":
		return discovery.New(b, discovery.CoupangProfile(), dopts, logger),
			collector.New(b, collector.CoupangProfile(), copts, logger), nil
	case "ohou":
		return discovery.New(b, discovery.OhouProfile(), dopts, logger),
			collector.New(b, collector.OhouProfile(), copts, logger), nil
	case "wadiz_qa":
		return discovery.WadizTabs{},
			collector.New(b, collector.WadizProfile(), copts, logger), nil
	}
	return nil, nil, fmt.Errorf("platform %q has no browser profile", platform)
}

func (a *App) httpFactory(clock *system.Clock) orchestrator.HTTPFactory {
	var (
		once    sync.Once
		fetch   *fetcher.Fetcher
		limiter *ratelimit.Limiter
	)
	return func(platform string) (orchestrator.HTTPSource, error) {
		once.Do(func() {
			fetch = fetcher.New(a.cfg.FetcherConfig())
			limiter = ratelimit.New(a.cfg.RateLimit())
		})
		return httpsource.New(fetch, limiter, httpsource.Config{
			Platform: platform,
			Workers:  httpsource.ClampWorkers(a.cfg.HTTP.Workers),
			MaxItems: a.cfg.Discovery.MaxItems,
			Now:      clock.Now,
		}, a.logger), nil
	}
}

// Deduper builds a duplicate cleaner for the main tab.
func (a *App) Deduper() (*sink.Deduper, error) {
	return sink.NewDeduper(a.tab, a.cfg.Layout(), lock.FileLocker{}, a.cfg.Sink.LockPath, a.logger)
}

// Status returns a status source over the persisted state. Pass a nil
// interface, not a nil *Orchestrator, when nothing is running.
func (a *App) Status(live api.Live) api.StatusSource {
	return api.StatusSource{
		Live:          live,
		DedupKeys:     a.dedupKeys,
		SeenProducts:  a.seen,
		Archive:       a.archive,
		ArchivePrefix: a.cfg.Archive.Prefix,
	}
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
}
