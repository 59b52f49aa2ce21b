package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 55, cfg.Runner.MaxMinutes)
	require.Equal(t, 2, cfg.Runner.SleepSeconds)
	require.Equal(t, "Asia/Seoul", cfg.Runner.Timezone)
	require.True(t, cfg.Runner.ErrorLog)
	require.Equal(t, SinkMemory, cfg.Sink.Kind)
	require.Equal(t, "main_review", cfg.Sink.Tab)
	require.Equal(t, 20, cfg.Sink.ChunkSize)
	require.Equal(t, "errors_reviews", cfg.Sink.ErrorTabs.Reviews)
	require.Equal(t, 6, cfg.HTTP.Workers)
	require.Equal(t, "latest", cfg.Collector.Order)
	require.Equal(t, 55*time.Minute, cfg.Deadline())
	require.Equal(t, "Asia/Seoul", cfg.Location().String())
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	configYAML := `
runner:
  max_minutes: 10
  once: true
  lookback_days: 7
  timezone: UTC
  sources: [acme_coupang]
discovery:
  max_items: 12
  scroll_wait_ms: 100
collector:
  max_reviews: 30
  order: helpful
browser:
  nav_timeout_seconds: 20
http:
  workers: 40
  rps: 0.5
sink:
  kind: postgres
  chunk_size: 500
  postgres:
    dsn: postgres://localhost/reviews
archive:
  kind: gcs
  bucket: review-runs
publisher:
  kind: pubsub
  project_id: proj
  topic: runs
logging:
  development: true
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 10, cfg.Runner.MaxMinutes)
	require.True(t, cfg.Runner.Once)
	require.Equal(t, []string{"acme_coupang"}, cfg.Runner.Sources)
	require.Equal(t, 16, cfg.HTTP.Workers, "workers are clamped")
	require.Equal(t, 200, cfg.Sink.ChunkSize, "chunk size is clamped")
	require.Equal(t, "postgres://localhost/reviews", cfg.Sink.Postgres.DSN)
	require.Equal(t, "sink_cells", cfg.PostgresConfig().Table)
	require.True(t, cfg.Logging.Development)
	require.Equal(t, "debug", cfg.Logging.Level)

	disc := cfg.DiscoveryOptions()
	require.Equal(t, 12, disc.MaxItems)
	require.Equal(t, 100*time.Millisecond, disc.ScrollWait)
	require.Equal(t, 1800*time.Millisecond, disc.PageSettle)

	coll := cfg.CollectorOptions()
	require.Equal(t, 30, coll.MaxReviews)
	require.Equal(t, "helpful", coll.Order)
	require.Equal(t, 5, coll.MaxPages)

	require.Equal(t, 20*time.Second, cfg.BrowserConfig().NavigationTimeout)
	require.Equal(t, 30*time.Second, cfg.BrowserConfig().CallTimeout)

	layout := cfg.Layout()
	require.Equal(t, 200, layout.ChunkSize)
	require.Equal(t, time.UTC.String(), layout.Location.String())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REVIEWHUB_SINK_KIND", "sheets")
	t.Setenv("REVIEWHUB_SINK_SHEETS_SPREADSHEET_ID", "sheet-123")
	t.Setenv("REVIEWHUB_RUNNER_MAX_MINUTES", "5")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, SinkSheets, cfg.Sink.Kind)
	require.Equal(t, "sheet-123", cfg.SheetsConfig().SpreadsheetID)
	require.Equal(t, 60*time.Second, cfg.SheetsConfig().Timeout)
	require.Equal(t, 5, cfg.Runner.MaxMinutes)
}

func TestLoadWithExplicitOverrides(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set("runner.dry_run", true)
	v.Set("collector.max_pages", 2)

	cfg, err := LoadWith(v, "")
	require.NoError(t, err)
	require.True(t, cfg.Runner.DryRun)
	require.Equal(t, 2, cfg.Collector.MaxPages)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"non-positive max minutes", func(c *Config) { c.Runner.MaxMinutes = 0 }, "runner.max_minutes"},
		{"negative sleep", func(c *Config) { c.Runner.SleepSeconds = -1 }, "runner.sleep_seconds"},
		{"missing lock path", func(c *Config) { c.Runner.LockPath = " " }, "runner.lock_path"},
		{"shared lock path", func(c *Config) { c.Sink.LockPath = "./" + c.Runner.LockPath }, "sink.lock_path"},
		{"bad timezone", func(c *Config) { c.Runner.Timezone = "Mars/Olympus" }, "runner.timezone"},
		{"invalid timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, "http.timeout_seconds"},
		{"unknown sink", func(c *Config) { c.Sink.Kind = "excel" }, "sink.kind"},
		{"sheets without id", func(c *Config) { c.Sink.Kind = SinkSheets }, "spreadsheet_id"},
		{"postgres without dsn", func(c *Config) { c.Sink.Kind = SinkPostgres }, "sink.postgres.dsn"},
		{"gcs without bucket", func(c *Config) { c.Archive.Kind = ArchiveGCS }, "archive.bucket"},
		{"unknown archive", func(c *Config) { c.Archive.Kind = "s3" }, "archive.kind"},
		{"pubsub without project", func(c *Config) { c.Publisher.Kind = PublisherPubSub }, "publisher.project_id"},
		{"unknown publisher", func(c *Config) { c.Publisher.Kind = "kafka" }, "publisher.kind"},
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"negative parallel", func(c *Config) { c.Browser.MaxParallel = -1 }, "browser.max_parallel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), tt.want), "got %v", err)
		})
	}
}

func TestValidateClampsTunables(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	cfg.HTTP.Workers = 0
	cfg.Sink.ChunkSize = -3
	cfg.Sink.DedupeBatch = 5000
	require.NoError(t, cfg.Validate())
	require.Equal(t, 1, cfg.HTTP.Workers)
	require.Equal(t, 1, cfg.Sink.ChunkSize)
	require.Equal(t, 1000, cfg.Sink.DedupeBatch)
}
