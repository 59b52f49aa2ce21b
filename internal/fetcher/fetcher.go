// Package fetcher performs plain HTTP page fetches with colly and classifies
// failures into typed errors.
package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/review-hub/internal/detector"
	"github.com/JakeFAU/review-hub/internal/metrics"
)

// Config controls fetch behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Headers   http.Header
	// Transport overrides the pooled default transport.
	Transport http.RoundTripper
}

// Response is a successful fetch.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Fetcher issues GET requests through a shared colly backend.
type Fetcher struct {
	cfg      Config
	base     *colly.Collector
	detector *detector.Detector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. The backend is configured once so clones can be used
// from many goroutines.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	transport := cfg.Transport
	if transport == nil {
		transport = newHTTPTransport()
	}
	c.WithTransport(transport)
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{cfg: cfg, base: c, detector: detector.New()}
}

// Fetch GETs rawURL. Non-2xx statuses, transport failures and block pages
// come back as *HTTPError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Response, error) {
	var (
		result  Response
		status  int
		hookErr error
	)
	start := time.Now()
	collector := f.base.Clone()
	collector.AllowURLRevisit = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	f.configureHooks(collector, start, &result, &status, &hookErr)

	err := run(ctx, collector, rawURL, &hookErr)
	if err != nil {
		classified := Classify(rawURL, status, err)
		metrics.ObserveHTTPFetch(rawURL, Label(classified))
		return Response{}, classified
	}
	if reason := f.detector.CheckHTML(result.Body); reason != "" {
		blocked := Blocked(rawURL, result.StatusCode, reason)
		metrics.ObserveHTTPFetch(rawURL, Label(blocked))
		return Response{}, blocked
	}
	metrics.ObserveHTTPFetch(rawURL, Label(nil))
	return result, nil
}

func (f *Fetcher) configureHooks(hooks collectorHooks, start time.Time, result *Response, status *int, hookErr *error) {
	hooks.OnRequest(func(r *colly.Request) {
		for key, values := range f.cfg.Headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})
	hooks.OnResponse(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		*result = Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			*status = r.StatusCode
		}
		*hookErr = err
	})
}

func run(ctx context.Context, collector *colly.Collector, rawURL string, hookErr *error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("fetch canceled: %w", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit: %w", err)
		}
		if *hookErr != nil {
			return fmt.Errorf("response: %w", *hookErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}
}
