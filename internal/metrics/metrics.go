// Package metrics exposes Prometheus collectors for review collection runs.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	itemsDiscoveredTotal  *prometheus.CounterVec
	reviewsCollectedTotal *prometheus.CounterVec
	sinkRowsTotal         *prometheus.CounterVec
	sinkWritesTotal       *prometheus.CounterVec
	sourceRunsTotal       *prometheus.CounterVec
	blockedTotal          *prometheus.CounterVec
	httpFetchTotal        *prometheus.CounterVec
	rateLimitDelaySeconds *prometheus.HistogramVec
	roundDurationSeconds  prometheus.Histogram

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		itemsDiscoveredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviewhub_items_discovered_total",
				Help: "Item locators discovered, labeled by source.",
			},
			[]string{"source"},
		)

		reviewsCollectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviewhub_reviews_collected_total",
				Help: "Net-new reviews collected, labeled by source.",
			},
			[]string{"source"},
		)

		sinkRowsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviewhub_sink_rows_total",
				Help: "Rows written to the sink, labeled by operation (append, update, clear).",
			},
			[]string{"op"},
		)

		sinkWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviewhub_sink_writes_total",
				Help: "Batched write calls issued to the sink, labeled by operation.",
			},
			[]string{"op"},
		)

		sourceRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviewhub_source_runs_total",
				Help: "Source rounds finished, labeled by source and final state.",
			},
			[]string{"source", "state"},
		)

		blockedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviewhub_blocked_total",
				Help: "Pages recognised as blocked or CAPTCHA, labeled by source.",
			},
			[]string{"source"},
		)

		httpFetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviewhub_http_fetch_total",
				Help: "HTTP item fetches, labeled by host and outcome.",
			},
			[]string{"site", "status"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reviewhub_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		roundDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reviewhub_round_duration_seconds",
				Help:    "Wall-clock duration of one round across all sources.",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
			},
		)
	})
}

// SanitizeSite extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDiscovered counts discovered item locators.
func ObserveDiscovered(source string, n int) {
	Init()
	if n > 0 {
		itemsDiscoveredTotal.WithLabelValues(source).Add(float64(n))
	}
}

// ObserveCollected counts net-new reviews.
func ObserveCollected(source string, n int) {
	Init()
	if n > 0 {
		reviewsCollectedTotal.WithLabelValues(source).Add(float64(n))
	}
}

// ObserveSinkWrite records one batched sink write of rows rows.
func ObserveSinkWrite(op string, rows int) {
	Init()
	sinkWritesTotal.WithLabelValues(op).Inc()
	sinkRowsTotal.WithLabelValues(op).Add(float64(rows))
}

// ObserveSourceRun counts a finished source round.
func ObserveSourceRun(source, state string) {
	Init()
	sourceRunsTotal.WithLabelValues(source, state).Inc()
}

// ObserveBlocked counts a blocked page.
func ObserveBlocked(source string) {
	Init()
	blockedTotal.WithLabelValues(source).Inc()
}

// ObserveHTTPFetch counts an HTTP item fetch.
func ObserveHTTPFetch(rawURL, status string) {
	Init()
	httpFetchTotal.WithLabelValues(SanitizeSite(rawURL), status).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(site string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveRound records the duration of one round.
func ObserveRound(duration time.Duration) {
	Init()
	roundDurationSeconds.Observe(duration.Seconds())
}
