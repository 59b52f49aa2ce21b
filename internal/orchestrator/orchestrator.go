// Package orchestrator runs collection rounds over the catalog sources and
// reconciles what they find into the sink.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-hub/internal/catalog"
	"github.com/JakeFAU/review-hub/internal/collector"
	"github.com/JakeFAU/review-hub/internal/discovery"
	"github.com/JakeFAU/review-hub/internal/httpsource"
	"github.com/JakeFAU/review-hub/internal/publisher"
	"github.com/JakeFAU/review-hub/internal/review"
	"github.com/JakeFAU/review-hub/internal/sink"
	"github.com/JakeFAU/review-hub/internal/storage"
)

// State is where a source is in its per-round pipeline.
type State string

// Source states. Error is terminal for the source within a round.
const (
	StateIdle        State = "idle"
	StateDiscovering State = "discovering"
	StateCollecting  State = "collecting"
	StateReconciling State = "reconciling"
	StateError       State = "error"
)

// Error stages.
const (
	StageSetup     = "setup"
	StageDiscovery = "discovery"
	StageCollect   = "collect"
	StageReconcile = "reconcile"
)

// Source is one catalog entry.
type Source = catalog.Source

// Discoverer lists item URLs behind a seed page in a browser.
type Discoverer interface {
	Discover(ctx context.Context, seed string) discovery.Outcome
}

// ItemCollector extracts reviews for one item in a browser.
type ItemCollector interface {
	CollectForItem(ctx context.Context, item collector.Item, seen *review.SeenSet) collector.Result
}

// HTTPSource discovers and collects over plain HTTP.
type HTTPSource interface {
	Discover(ctx context.Context, seed string) ([]string, error)
	Collect(ctx context.Context, brand string, urls []string, seen *review.SeenSet) ([]httpsource.ItemResult, error)
}

// BrowserFactory returns the browser pipeline for a platform.
type BrowserFactory func(platform string) (Discoverer, ItemCollector, error)

// HTTPFactory returns the HTTP pipeline for a platform.
type HTTPFactory func(platform string) (HTTPSource, error)

// Reconciler writes records to the sink.
type Reconciler interface {
	Reconcile(ctx context.Context, records []review.Record) (sink.Result, error)
}

// KeyStore is a persisted, append-only key set.
type KeyStore interface {
	Load() (map[string]struct{}, error)
	AddMany(keys []string) (int, error)
}

// ErrorLogger records failed work items in an error tab.
type ErrorLogger interface {
	Log(ctx context.Context, tab, runID, stage string, items []sink.ErrorItem) (int, error)
}

// Clock reads time and sleeps.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator mints run ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Deps are the collaborators of an Orchestrator. Browser and HTTP may be nil
// when no source of that kind is configured. ErrorLog, Archive and Publisher
// are optional.
type Deps struct {
	Sources      []Source
	Browser      BrowserFactory
	HTTP         HTTPFactory
	Reconciler   Reconciler
	DedupKeys    KeyStore
	SeenProducts KeyStore
	ErrorLog     ErrorLogger
	Clock        Clock
	IDs          IDGenerator
	Archive      storage.Archive
	Publisher    publisher.Publisher
}

// ErrorTabs names the tabs failures are logged to.
type ErrorTabs struct {
	Reviews   string
	Discovery string
}

// Config tunes a run.
type Config struct {
	LockPath     string
	MaxDuration  time.Duration
	Sleep        time.Duration
	ItemSleep    time.Duration
	SourceSleep  time.Duration
	Once         bool
	DryRun       bool
	ErrorLog     bool
	LookbackDays int
	Location     *time.Location
	ErrorTabs    ErrorTabs
	// ArchivePrefix roots archived summaries, e.g. "runs".
	ArchivePrefix string
	// Topic enables publishing the summary when non-empty.
	Topic string
}

// Orchestrator drives sources through discovery, collection and
// reconciliation.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger

	mu     sync.RWMutex
	states map[string]State
	last   *Summary
}

// New validates deps and fills config defaults.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	if deps.Reconciler == nil && !cfg.DryRun {
		return nil, fmt.Errorf("reconciler is required")
	}
	if deps.DedupKeys == nil {
		return nil, fmt.Errorf("dedup key store is required")
	}
	if deps.Clock == nil || deps.IDs == nil {
		return nil, fmt.Errorf("clock and id generator are required")
	}
	if deps.Archive == nil {
		deps.Archive = storage.Nop{}
	}
	if deps.Publisher == nil {
		deps.Publisher = publisher.Nop{}
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = 55 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ErrorTabs.Reviews == "" {
		cfg.ErrorTabs.Reviews = sink.ErrorTabReviews
	}
	if cfg.ErrorTabs.Discovery == "" {
		cfg.ErrorTabs.Discovery = sink.ErrorTabDiscovery
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "runs"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	states := make(map[string]State, len(deps.Sources))
	for _, src := range deps.Sources {
		states[src.Name] = StateIdle
	}
	return &Orchestrator{deps: deps, cfg: cfg, logger: logger, states: states}, nil
}

// States returns the current state of every source.
func (o *Orchestrator) States() map[string]State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]State, len(o.states))
	for k, v := range o.states {
		out[k] = v
	}
	return out
}

// LastSummary returns the summary of the most recent finished run.
func (o *Orchestrator) LastSummary() (Summary, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return Summary{}, false
	}
	return *o.last, true
}

func (o *Orchestrator) setState(name string, state State) {
	o.mu.Lock()
	prev := o.states[name]
	o.states[name] = state
	o.mu.Unlock()
	if prev != state {
		o.logger.Debug("source state",
			zap.String("source", name),
			zap.String("from", string(prev)),
			zap.String("to", string(state)),
		)
	}
}
