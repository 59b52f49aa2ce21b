// Package browser abstracts the headless browser used by the scripted
// discovery and collection flows.
package browser

import (
	"context"
	"fmt"
	"time"
)

// Browser opens pages. Implementations must be safe for concurrent use.
type Browser interface {
	// Open returns a new page, navigated to url when url is non-empty.
	Open(ctx context.Context, url string) (Page, error)
}

// Page is a single browser tab. A Page is not safe for concurrent use.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Evaluate runs script and decodes its JSON result into out. out may be nil.
	Evaluate(ctx context.Context, script string, out any) error
	Wait(ctx context.Context, d time.Duration) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	Close() error
}

// StatusError reports a document response at or above 400.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http status %d", e.URL, e.Code)
}

// CheckStatus returns a *StatusError when p reports a failed document
// response. Pages that do not track status always pass.
func CheckStatus(p Page, url string) error {
	sr, ok := p.(StatusReporter)
	if !ok {
		return nil
	}
	if code := sr.LastStatus(); code >= 400 {
		return &StatusError{URL: url, Code: code}
	}
	return nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
