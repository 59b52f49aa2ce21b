package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-hub/internal/lock"
	"github.com/JakeFAU/review-hub/internal/metrics"
	"github.com/JakeFAU/review-hub/internal/review"
)

// Result summarises one Reconcile call.
type Result struct {
	Appended int `json:"appended"`
	Updated  int `json:"updated"`
	Writes   int `json:"writes"`
	// NewKeys are the keys of appended rows, in write order. Only these need
	// to be persisted to the identity store.
	NewKeys []string `json:"-"`
}

// Reconciler partitions records into in-place updates and appends against a
// Tab, holding the global sink lock for the whole scan-then-write step.
type Reconciler struct {
	tab      Tab
	layout   compiledLayout
	locker   lock.Locker
	lockPath string
	logger   *zap.Logger
}

// NewReconciler validates layout and builds a Reconciler. A nil locker or an
// empty lockPath disables sink locking.
func NewReconciler(tab Tab, layout Layout, locker lock.Locker, lockPath string, logger *zap.Logger) (*Reconciler, error) {
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
	return &Reconciler{
		tab:      tab,
		layout:   compiled,
		locker:   locker,
		lockPath: lockPath,
		logger:   logger,
	}, nil
}

type rowTarget struct {
	row    int
	record review.Record
}

// Reconcile writes records to the sink. Keys already present are rewritten in
// place in contiguous runs; new keys are written in fixed-size chunks right
// after the last present row. On error the returned Result covers the prefix
// that was written.
func (r *Reconciler) Reconcile(ctx context.Context, records []review.Record) (Result, error) {
	var result Result
	if len(records) == 0 {
		return result, nil
	}
	err := r.withLock(func() error {
		index, lastRow, err := scanIndex(ctx, r.tab, r.layout)
		if err != nil {
			return err
		}

		var (
			toUpdate []rowTarget
			toAppend []review.Record
			batch    = make(map[string]struct{}, len(records))
		)
		for _, rec := range records {
			if _, dup := batch[rec.Key]; dup {
				continue
			}
			batch[rec.Key] = struct{}{}
			if row, ok := index[rec.Key]; ok {
				toUpdate = append(toUpdate, rowTarget{row: row, record: rec})
				continue
			}
			toAppend = append(toAppend, rec)
		}

		if err := r.writeUpdates(ctx, toUpdate, &result); err != nil {
			return err
		}
		return r.writeAppends(ctx, toAppend, lastRow+1, &result)
	})
	if err != nil {
		return result, err
	}
	r.logger.Info("sink reconciled",
		zap.String("tab", r.layout.Tab),
		zap.Int("appended", result.Appended),
		zap.Int("updated", result.Updated),
		zap.Int("writes", result.Writes),
	)
	return result, nil
}

func (r *Reconciler) withLock(fn func() error) error {
	if r.locker == nil || r.lockPath == "" {
		return fn()
	}
	if err := r.locker.WithLock(r.lockPath, fn); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	return nil
}

// scanIndex reads the whole sentinel and key columns once and returns
// key -> row (first occurrence) plus the last row whose sentinel matches.
// The scan is open-ended: a bounded window would place appends on top of
// rows below it.
func scanIndex(ctx context.Context, tab Tab, l compiledLayout) (map[string]int, int, error) {
	sentinels, err := tab.Get(ctx, FormatOpenRange(l.Tab, l.sentinel, l.StartRow, l.sentinel))
	if err != nil {
		return nil, 0, fmt.Errorf("scan sentinel column: %w", err)
	}
	keys, err := tab.Get(ctx, FormatOpenRange(l.Tab, l.key, l.StartRow, l.key))
	if err != nil {
		return nil, 0, fmt.Errorf("scan key column: %w", err)
	}

	index := make(map[string]int, len(keys))
	last := l.StartRow - 1
	for i := 0; i < max(len(sentinels), len(keys)); i++ {
		row := l.StartRow + i
		sentinel := cell(sentinels, i)
		if l.sentinelRe.MatchString(sentinel) {
			last = row
		}
		key := cell(keys, i)
		if sentinel == "" || key == "" {
			continue
		}
		if _, ok := index[key]; !ok {
			index[key] = row
		}
	}
	return index, last, nil
}

// contiguousRuns groups targets (sorted by row) into maximal runs of adjacent rows.
func contiguousRuns(targets []rowTarget) [][]rowTarget {
	if len(targets) == 0 {
		return nil
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].row < targets[j].row })
	var runs [][]rowTarget
	start := 0
	for i := 1; i <= len(targets); i++ {
		if i == len(targets) || targets[i].row != targets[i-1].row+1 {
			runs = append(runs, targets[start:i])
			start = i
		}
	}
	return runs
}

func (r *Reconciler) writeUpdates(ctx context.Context, targets []rowTarget, result *Result) error {
	l := r.layout
	from := l.first + l.PreserveCols
	targetRow := func(t rowTarget) []any { return t.record.Row(l.Location) }
	for _, run := range contiguousRuns(targets) {
		for start := 0; start < len(run); start += l.ChunkSize {
			end := min(start+l.ChunkSize, len(run))
			for _, chunk := range splitByPayload(run[start:end], targetRow, l.MaxPayloadBytes) {
				rows := make([][]any, 0, len(chunk))
				for _, t := range chunk {
					rows = append(rows, targetRow(t)[l.PreserveCols:l.Width()])
				}
				first, lastRow := chunk[0].row, chunk[len(chunk)-1].row
				rng := FormatRange(l.Tab, from, first, l.last, lastRow)
				if err := r.tab.Update(ctx, rng, rows); err != nil {
					return fmt.Errorf("update rows %d-%d: %w", first, lastRow, err)
				}
				result.Updated += len(chunk)
				result.Writes++
				metrics.ObserveSinkWrite("update", len(chunk))
			}
		}
	}
	return nil
}

func (r *Reconciler) writeAppends(ctx context.Context, records []review.Record, next int, result *Result) error {
	l := r.layout
	recordRow := func(rec review.Record) []any { return rec.Row(l.Location) }
	for start := 0; start < len(records); start += l.ChunkSize {
		end := min(start+l.ChunkSize, len(records))
		for _, chunk := range splitByPayload(records[start:end], recordRow, l.MaxPayloadBytes) {
			rows := make([][]any, 0, len(chunk))
			for _, rec := range chunk {
				rows = append(rows, recordRow(rec)[:l.Width()])
			}
			rng := FormatRange(l.Tab, l.first, next, l.last, next+len(rows)-1)
			if err := r.tab.Update(ctx, rng, rows); err != nil {
				return fmt.Errorf("append rows at %d: %w", next, err)
			}
			next += len(rows)
			result.Appended += len(rows)
			result.Writes++
			for _, rec := range chunk {
				result.NewKeys = append(result.NewKeys, rec.Key)
			}
			metrics.ObserveSinkWrite("append", len(rows))
		}
	}
	return nil
}

// splitByPayload halves a chunk until its JSON encoding fits limit. A single
// oversized row is written as-is.
func splitByPayload[T any](chunk []T, row func(T) []any, limit int) [][]T {
	if len(chunk) <= 1 {
		return [][]T{chunk}
	}
	rows := make([][]any, 0, len(chunk))
	for _, item := range chunk {
		rows = append(rows, row(item))
	}
	payload, err := json.Marshal(rows)
	if err != nil || len(payload) <= limit {
		return [][]T{chunk}
	}
	mid := len(chunk) / 2
	return append(splitByPayload(chunk[:mid], row, limit), splitByPayload(chunk[mid:], row, limit)...)
}
