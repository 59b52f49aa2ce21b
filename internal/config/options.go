package config

import (
	"time"

	"github.com/JakeFAU/review-hub/internal/browser"
	"github.com/JakeFAU/review-hub/internal/collector"
	"github.com/JakeFAU/review-hub/internal/discovery"
	"github.com/JakeFAU/review-hub/internal/fetcher"
	"github.com/JakeFAU/review-hub/internal/ratelimit"
	"github.com/JakeFAU/review-hub/internal/sink"
	"github.com/JakeFAU/review-hub/internal/sink/postgres"
	"github.com/JakeFAU/review-hub/internal/sink/sheets"
)

// DiscoveryOptions maps the discovery section onto engine bounds.
func (c Config) DiscoveryOptions() discovery.Options {
	d := c.Discovery
	return discovery.Options{
		MaxItems:           d.MaxItems,
		MaxPages:           d.MaxPages,
		MaxScrolls:         d.MaxScrolls,
		StabilityThreshold: d.StabilityThreshold,
		ScrollWait:         millis(d.ScrollWaitMillis),
		PageSettle:         millis(d.PageSettleMillis),
	}
}

// CollectorOptions maps the collector section onto per-item bounds. Waits
// keep the collector defaults.
func (c Config) CollectorOptions() collector.Options {
	opts := collector.DefaultOptions()
	opts.MaxPages = c.Collector.MaxPages
	opts.MaxReviews = c.Collector.MaxReviews
	opts.Order = c.Collector.Order
	return opts
}

// BrowserConfig maps the browser section onto the chromedp browser.
func (c Config) BrowserConfig() browser.Config {
	b := c.Browser
	return browser.Config{
		MaxParallel:       b.MaxParallel,
		UserAgent:         b.UserAgent,
		ExecPath:          b.ExecPath,
		Headless:          b.Headless,
		NavigationTimeout: seconds(b.NavTimeoutSeconds),
		CallTimeout:       seconds(b.CallTimeoutSecs),
	}
}

// FetcherConfig maps the http section onto the colly fetcher.
func (c Config) FetcherConfig() fetcher.Config {
	return fetcher.Config{
		UserAgent: c.HTTP.UserAgent,
		Timeout:   seconds(c.HTTP.TimeoutSeconds),
	}
}

// RateLimit maps the http section onto the per-host limiter.
func (c Config) RateLimit() ratelimit.Config {
	return ratelimit.Config{RPS: c.HTTP.RPS, Burst: c.HTTP.Burst}
}

// Layout maps the sink section onto the main tab layout.
func (c Config) Layout() sink.Layout {
	l := sink.DefaultLayout()
	l.Tab = c.Sink.Tab
	l.StartRow = c.Sink.StartRow
	l.ChunkSize = c.Sink.ChunkSize
	l.MaxPayloadBytes = c.Sink.MaxPayloadBytes
	l.ScanMaxRows = c.Sink.ScanMaxRows
	l.Location = c.Location()
	return l
}

// SheetsConfig maps the sink.sheets section.
func (c Config) SheetsConfig() sheets.Config {
	s := c.Sink.Sheets
	return sheets.Config{
		SpreadsheetID:   s.SpreadsheetID,
		CredentialsFile: s.CredentialsFile,
		Timeout:         seconds(s.TimeoutSeconds),
	}
}

// PostgresConfig maps the sink.postgres section.
func (c Config) PostgresConfig() postgres.Config {
	p := c.Sink.Postgres
	return postgres.Config{
		DSN:      p.DSN,
		Table:    p.Table,
		MaxConns: p.MaxConns,
		MinConns: p.MinConns,
	}
}

// RoundSleep is the pause between rounds.
func (c Config) RoundSleep() time.Duration {
	return seconds(c.Runner.SleepSeconds)
}

// ItemSleep is the pause between browser items.
func (c Config) ItemSleep() time.Duration {
	return millis(c.Runner.ItemSleepMillis)
}

// SourceSleep is the pause between sources in a round.
func (c Config) SourceSleep() time.Duration {
	return millis(c.Runner.SourceSleepMillis)
}
