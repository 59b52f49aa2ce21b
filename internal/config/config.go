// Package config loads and validates review-hub configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/review-hub/internal/logging"
)

// EnvPrefix namespaces environment overrides, e.g. REVIEWHUB_SINK_KIND.
const EnvPrefix = "REVIEWHUB"

// Sink kinds.
const (
	SinkMemory   = "memory"
	SinkSheets   = "sheets"
	SinkPostgres = "postgres"
)

// Archive kinds.
const (
	ArchiveNone  = "none"
	ArchiveLocal = "local"
	ArchiveGCS   = "gcs"
)

// Publisher kinds.
const (
	PublisherNone   = "none"
	PublisherMemory = "memory"
	PublisherPubSub = "pubsub"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Runner    RunnerConfig    `mapstructure:"runner"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Collector CollectorConfig `mapstructure:"collector"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Sink      SinkConfig      `mapstructure:"sink"`
	State     StateConfig     `mapstructure:"state"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   logging.Config  `mapstructure:"logging"`
}

// RunnerConfig governs the bounded-time loop.
type RunnerConfig struct {
	LockPath          string   `mapstructure:"lock_path"`
	MaxMinutes        int      `mapstructure:"max_minutes"`
	SleepSeconds      int      `mapstructure:"sleep_seconds"`
	ItemSleepMillis   int      `mapstructure:"item_sleep_ms"`
	SourceSleepMillis int      `mapstructure:"source_sleep_ms"`
	Once              bool     `mapstructure:"once"`
	DryRun            bool     `mapstructure:"dry_run"`
	ErrorLog          bool     `mapstructure:"error_log"`
	LookbackDays      int      `mapstructure:"lookback_days"`
	Timezone          string   `mapstructure:"timezone"`
	Sources           []string `mapstructure:"sources"`
	Brands            []string `mapstructure:"brands"`
}

// DiscoveryConfig bounds browser listing walks.
type DiscoveryConfig struct {
	MaxItems           int `mapstructure:"max_items"`
	MaxPages           int `mapstructure:"max_pages"`
	MaxScrolls         int `mapstructure:"max_scrolls"`
	StabilityThreshold int `mapstructure:"stability_threshold"`
	ScrollWaitMillis   int `mapstructure:"scroll_wait_ms"`
	PageSettleMillis   int `mapstructure:"page_settle_ms"`
}

// CollectorConfig bounds per-item review collection.
type CollectorConfig struct {
	MaxPages   int    `mapstructure:"max_pages"`
	MaxReviews int    `mapstructure:"max_reviews"`
	Order      string `mapstructure:"order"`
}

// BrowserConfig configures the headless Chrome browser.
type BrowserConfig struct {
	Headless          bool   `mapstructure:"headless"`
	ExecPath          string `mapstructure:"exec_path"`
	UserAgent         string `mapstructure:"user_agent"`
	MaxParallel       int    `mapstructure:"max_parallel"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	CallTimeoutSecs   int    `mapstructure:"call_timeout_seconds"`
}

// HTTPConfig configures plain-HTTP sources.
type HTTPConfig struct {
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	Workers        int     `mapstructure:"workers"`
	RPS            float64 `mapstructure:"rps"`
	Burst          int     `mapstructure:"burst"`
}

// SinkConfig selects and configures the tabular sink.
type SinkConfig struct {
	Kind            string         `mapstructure:"kind"`
	LockPath        string         `mapstructure:"lock_path"`
	Tab             string         `mapstructure:"tab"`
	StartRow        int            `mapstructure:"start_row"`
	ChunkSize       int            `mapstructure:"chunk_size"`
	MaxPayloadBytes int            `mapstructure:"max_payload_bytes"`
	ScanMaxRows     int            `mapstructure:"scan_max_rows"`
	DedupeBatch     int            `mapstructure:"dedupe_batch"`
	ErrorTabs       ErrorTabs      `mapstructure:"error_tabs"`
	Sheets          SheetsConfig   `mapstructure:"sheets"`
	Postgres        PostgresConfig `mapstructure:"postgres"`
}

// ErrorTabs names the failure tabs.
type ErrorTabs struct {
	Reviews   string `mapstructure:"reviews"`
	Discovery string `mapstructure:"discovery"`
}

// SheetsConfig points at a spreadsheet.
type SheetsConfig struct {
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
}

// PostgresConfig controls the cell table sink.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// StateConfig locates the persisted key files.
type StateConfig struct {
	DedupKeysPath    string `mapstructure:"dedup_keys_path"`
	SeenProductsPath string `mapstructure:"seen_products_path"`
}

// CatalogConfig locates the brand/platform catalog.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// ArchiveConfig selects where run summaries are stored.
type ArchiveConfig struct {
	Kind   string `mapstructure:"kind"`
	Dir    string `mapstructure:"dir"`
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// PublisherConfig selects where run summaries are announced.
type PublisherConfig struct {
	Kind      string `mapstructure:"kind"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the status server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith is Load on a caller-supplied Viper, so command flags bound with
// BindPFlag take precedence over file and environment values.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("runner.lock_path", "state/run.lock")
	v.SetDefault("runner.max_minutes", 55)
	v.SetDefault("runner.sleep_seconds", 2)
	v.SetDefault("runner.item_sleep_ms", 1000)
	v.SetDefault("runner.source_sleep_ms", 2000)
	v.SetDefault("runner.once", false)
	v.SetDefault("runner.dry_run", false)
	v.SetDefault("runner.error_log", true)
	v.SetDefault("runner.lookback_days", 0)
	v.SetDefault("runner.timezone", "Asia/Seoul")
	v.SetDefault("runner.sources", []string{})
	v.SetDefault("runner.brands", []string{})

	v.SetDefault("discovery.max_items", 50)
	v.SetDefault("discovery.max_pages", 10)
	v.SetDefault("discovery.max_scrolls", 6)
	v.SetDefault("discovery.stability_threshold", 2)
	v.SetDefault("discovery.scroll_wait_ms", 900)
	v.SetDefault("discovery.page_settle_ms", 1800)

	v.SetDefault("collector.max_pages", 5)
	v.SetDefault("collector.max_reviews", 80)
	v.SetDefault("collector.order", "latest")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.max_parallel", 1)
	v.SetDefault("browser.nav_timeout_seconds", 45)
	v.SetDefault("browser.call_timeout_seconds", 30)

	v.SetDefault("http.user_agent", "review-hub/0.1")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.workers", 6)
	v.SetDefault("http.rps", 2.0)
	v.SetDefault("http.burst", 2)

	v.SetDefault("sink.kind", SinkMemory)
	v.SetDefault("sink.lock_path", "state/sink.lock")
	v.SetDefault("sink.tab", "main_review")
	v.SetDefault("sink.start_row", 3)
	v.SetDefault("sink.chunk_size", 20)
	v.SetDefault("sink.max_payload_bytes", 1<<20)
	v.SetDefault("sink.scan_max_rows", 20000)
	v.SetDefault("sink.dedupe_batch", 200)
	v.SetDefault("sink.error_tabs.reviews", "errors_reviews")
	v.SetDefault("sink.error_tabs.discovery", "errors_discovery")
	// Keys without a meaningful default are still registered so that
	// AutomaticEnv overrides reach Unmarshal.
	v.SetDefault("sink.sheets.spreadsheet_id", "")
	v.SetDefault("sink.sheets.credentials_file", "")
	v.SetDefault("sink.sheets.timeout_seconds", 60)
	v.SetDefault("sink.postgres.dsn", "")
	v.SetDefault("sink.postgres.table", "sink_cells")
	v.SetDefault("sink.postgres.max_conns", 4)
	v.SetDefault("sink.postgres.min_conns", 0)

	v.SetDefault("state.dedup_keys_path", "state/dedup-keys.txt")
	v.SetDefault("state.seen_products_path", "state/seen-products.txt")

	v.SetDefault("catalog.path", "catalog.yaml")

	v.SetDefault("archive.kind", ArchiveLocal)
	v.SetDefault("archive.dir", "state/archive")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "runs")

	v.SetDefault("publisher.kind", PublisherNone)
	v.SetDefault("publisher.project_id", "")
	v.SetDefault("publisher.topic", "review-runs")

	v.SetDefault("server.port", 8080)

	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and clamps tunables into range.
func (c *Config) Validate() error {
	if c.Runner.MaxMinutes <= 0 {
		return fmt.Errorf("runner.max_minutes must be > 0")
	}
	if c.Runner.SleepSeconds < 0 {
		return fmt.Errorf("runner.sleep_seconds must be >= 0")
	}
	if strings.TrimSpace(c.Runner.LockPath) == "" {
		return fmt.Errorf("runner.lock_path is required")
	}
	// The run lock is held while the sink lock is taken; one path would deadlock.
	if c.Sink.LockPath != "" && filepath.Clean(c.Sink.LockPath) == filepath.Clean(c.Runner.LockPath) {
		return fmt.Errorf("runner.lock_path and sink.lock_path must differ")
	}
	if _, err := time.LoadLocation(c.Runner.Timezone); err != nil {
		return fmt.Errorf("runner.timezone: %w", err)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	c.HTTP.Workers = clamp(c.HTTP.Workers, 1, 16)
	c.Sink.ChunkSize = clamp(c.Sink.ChunkSize, 1, 200)
	c.Sink.DedupeBatch = clamp(c.Sink.DedupeBatch, 1, 1000)
	if c.Browser.MaxParallel < 0 {
		return fmt.Errorf("browser.max_parallel must be >= 0")
	}

	switch c.Sink.Kind {
	case SinkMemory:
	case SinkSheets:
		if c.Sink.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("sink.sheets.spreadsheet_id is required for the sheets sink")
		}
	case SinkPostgres:
		if c.Sink.Postgres.DSN == "" {
			return fmt.Errorf("sink.postgres.dsn is required for the postgres sink")
		}
	default:
		return fmt.Errorf("unknown sink.kind %q", c.Sink.Kind)
	}

	switch c.Archive.Kind {
	case ArchiveNone:
	case ArchiveLocal:
		if c.Archive.Dir == "" {
			return fmt.Errorf("archive.dir is required for the local archive")
		}
	case ArchiveGCS:
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket is required for the gcs archive")
		}
	default:
		return fmt.Errorf("unknown archive.kind %q", c.Archive.Kind)
	}

	switch c.Publisher.Kind {
	case PublisherNone, PublisherMemory:
	case PublisherPubSub:
		if c.Publisher.ProjectID == "" || c.Publisher.Topic == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic are required for pubsub")
		}
	default:
		return fmt.Errorf("unknown publisher.kind %q", c.Publisher.Kind)
	}

	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}

// Location resolves Runner.Timezone. Validate has already checked it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Runner.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Deadline is the runner's wall-clock budget.
func (c Config) Deadline() time.Duration {
	return time.Duration(c.Runner.MaxMinutes) * time.Minute
}

func clamp(n, lo, hi int) int {
	return max(lo, min(n, hi))
}

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
