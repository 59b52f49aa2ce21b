package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/review-hub/internal/lock"
)

// Error tab names.
const (
	ErrorTabReviews   = "errors_reviews"
	ErrorTabDiscovery = "errors_discovery"
)

var errorHeader = []any{"collected_at", "run_id", "stage", "brand", "platform", "url", "status", "error"}

// ErrorItem is one failed unit of work.
type ErrorItem struct {
	Brand    string `json:"brand"`
	Platform string `json:"platform"`
	URL      string `json:"url"`
	Status   string `json:"status"`
	Error    string `json:"error"`
}

// ErrorLog appends failures to a dedicated error tab. Those tabs hold a single
// table, so the store's own append is safe there.
type ErrorLog struct {
	tab      Tab
	locker   lock.Locker
	lockPath string
	now      func() time.Time
	loc      *time.Location
}

// NewErrorLog builds an ErrorLog.
func NewErrorLog(tab Tab, locker lock.Locker, lockPath string, now func() time.Time, loc *time.Location) *ErrorLog {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ErrorLog{tab: tab, locker: locker, lockPath: lockPath, now: now, loc: loc}
}

// Log writes items to tabName, creating the header row when A1 is empty.
func (e *ErrorLog) Log(ctx context.Context, tabName, runID, stage string, items []ErrorItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	last := len(errorHeader) - 1
	write := func() error {
		head, err := e.tab.Get(ctx, FormatRange(tabName, 0, 1, last, 1))
		if err != nil {
			return fmt.Errorf("read error tab header: %w", err)
		}
		if cell(head, 0) == "" {
			if err := e.tab.Update(ctx, FormatRange(tabName, 0, 1, last, 1), [][]any{errorHeader}); err != nil {
				return fmt.Errorf("write error tab header: %w", err)
			}
		}
		at := e.now().In(e.loc).Format(time.RFC3339)
		rows := make([][]any, 0, len(items))
		for _, it := range items {
			rows = append(rows, []any{at, runID, stage, it.Brand, it.Platform, it.URL, it.Status, it.Error})
		}
		if err := e.tab.Append(ctx, FormatOpenRange(tabName, 0, 2, last), rows); err != nil {
			return fmt.Errorf("append error rows: %w", err)
		}
		return nil
	}
	var err error
	if e.locker != nil && e.lockPath != "" {
		err = e.locker.WithLock(e.lockPath, write)
	} else {
		err = write()
	}
	if err != nil {
		return 0, err
	}
	return len(items), nil
}
