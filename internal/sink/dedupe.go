package sink

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-hub/internal/lock"
	"github.com/JakeFAU/review-hub/internal/metrics"
)

// DedupeResult reports a duplicate-row maintenance pass.
type DedupeResult struct {
	DuplicatesFound   int `json:"duplicates_found"`
	DuplicatesCleared int `json:"duplicates_cleared"`
	UniqueKeys        int `json:"unique_keys"`
}

// Deduper clears rows whose key already appeared higher up in the tab.
type Deduper struct {
	tab      Tab
	layout   compiledLayout
	locker   lock.Locker
	lockPath string
	logger   *zap.Logger
}

// NewDeduper validates layout and builds a Deduper.
func NewDeduper(tab Tab, layout Layout, locker lock.Locker, lockPath string, logger *zap.Logger) (*Deduper, error) {
	if tab == nil {
		return nil, fmt.Errorf("sink tab is required")
	}
	compiled, err := layout.compile()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{tab: tab, layout: compiled, locker: locker, lockPath: lockPath, logger: logger}, nil
}

// ClearDuplicates keeps the first row of each key and blanks the rest, one
// update per contiguous run within each batch of batchSize rows.
func (d *Deduper) ClearDuplicates(ctx context.Context, maxRows, batchSize int) (DedupeResult, error) {
	var res DedupeResult
	batchSize = max(1, min(batchSize, 1000))
	l := d.layout
	if maxRows > 0 {
		l.ScanMaxRows = maxRows
	}

	run := func() error {
		sentinels, err := d.tab.Get(ctx, FormatRange(l.Tab, l.sentinel, l.StartRow, l.sentinel, l.scanEnd()))
		if err != nil {
			return fmt.Errorf("scan sentinel column: %w", err)
		}
		keys, err := d.tab.Get(ctx, FormatRange(l.Tab, l.key, l.StartRow, l.key, l.scanEnd()))
		if err != nil {
			return fmt.Errorf("scan key column: %w", err)
		}

		seen := make(map[string]int)
		var dupRows []rowTarget
		for i := 0; i < max(len(sentinels), len(keys)); i++ {
			key := cell(keys, i)
			if cell(sentinels, i) == "" || key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				dupRows = append(dupRows, rowTarget{row: l.StartRow + i})
				continue
			}
			seen[key] = l.StartRow + i
		}
		res.UniqueKeys = len(seen)
		res.DuplicatesFound = len(dupRows)

		empty := make([]any, l.Width())
		for i := range empty {
			empty[i] = ""
		}
		for start := 0; start < len(dupRows); start += batchSize {
			chunk := dupRows[start:min(start+batchSize, len(dupRows))]
			for _, r := range contiguousRuns(chunk) {
				rows := make([][]any, len(r))
				for j := range rows {
					rows[j] = empty
				}
				first, last := r[0].row, r[len(r)-1].row
				if err := d.tab.Update(ctx, FormatRange(l.Tab, l.first, first, l.last, last), rows); err != nil {
					return fmt.Errorf("clear rows %d-%d: %w", first, last, err)
				}
				res.DuplicatesCleared += len(r)
				metrics.ObserveSinkWrite("clear", len(r))
			}
		}
		return nil
	}

	var err error
	if d.locker != nil && d.lockPath != "" {
		err = d.locker.WithLock(d.lockPath, run)
	} else {
		err = run()
	}
	if err != nil {
		return res, err
	}
	d.logger.Info("sink duplicates cleared",
		zap.Int("found", res.DuplicatesFound),
		zap.Int("cleared", res.DuplicatesCleared),
		zap.Int("unique_keys", res.UniqueKeys),
	)
	return res, nil
}
