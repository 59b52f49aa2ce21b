package sink

import (
	"fmt"
	"regexp"
	"time"

	"github.com/JakeFAU/review-hub/internal/review"
)

// Layout describes where review rows live inside the main tab.
type Layout struct {
	Tab             string
	StartRow        int
	FirstCol        string
	LastCol         string
	SentinelCol     string
	SentinelPattern string
	KeyCol          string
	// PreserveCols leading columns (the collection timestamps) are left
	// untouched when a row is updated in place.
	PreserveCols    int
	// ScanMaxRows bounds the duplicate-cleaning scan. Reconcile always reads
	// the full key column.
	ScanMaxRows     int
	ChunkSize       int
	MaxPayloadBytes int
	Location        *time.Location
}

// Defaults mirroring the review sheet format.
const (
	DefaultTab             = "main_review"
	DefaultStartRow        = 3
	DefaultSentinelPattern = `^\d{4}-\d{2}-\d{2}$`
	DefaultScanMaxRows     = 20000
	DefaultChunkSize       = 20
	MaxChunkSize           = 200
	DefaultMaxPayloadBytes = 1 << 20
)

// DefaultLayout returns the A..O layout starting at row 3.
func DefaultLayout() Layout {
	return Layout{
		Tab:             DefaultTab,
		StartRow:        DefaultStartRow,
		FirstCol:        "A",
		LastCol:         "O",
		SentinelCol:     "A",
		SentinelPattern: DefaultSentinelPattern,
		KeyCol:          "N",
		PreserveCols:    2,
		ScanMaxRows:     DefaultScanMaxRows,
		ChunkSize:       DefaultChunkSize,
		MaxPayloadBytes: DefaultMaxPayloadBytes,
		Location:        time.UTC,
	}
}

// compiledLayout is a validated Layout with resolved column indexes.
type compiledLayout struct {
	Layout
	first, last, sentinel, key int
	sentinelRe                 *regexp.Regexp
}

func (l Layout) compile() (compiledLayout, error) {
	d := DefaultLayout()
	if l.Tab == "" {
		l.Tab = d.Tab
	}
	if l.StartRow <= 0 {
		l.StartRow = d.StartRow
	}
	if l.FirstCol == "" {
		l.FirstCol = d.FirstCol
	}
	if l.LastCol == "" {
		l.LastCol = d.LastCol
	}
	if l.SentinelCol == "" {
		l.SentinelCol = d.SentinelCol
	}
	if l.SentinelPattern == "" {
		l.SentinelPattern = d.SentinelPattern
	}
	if l.KeyCol == "" {
		l.KeyCol = d.KeyCol
	}
	if l.PreserveCols < 0 {
		l.PreserveCols = 0
	}
	if l.ScanMaxRows <= 0 {
		l.ScanMaxRows = d.ScanMaxRows
	}
	l.ChunkSize = ClampChunk(l.ChunkSize)
	if l.MaxPayloadBytes <= 0 {
		l.MaxPayloadBytes = d.MaxPayloadBytes
	}
	if l.Location == nil {
		l.Location = time.UTC
	}

	c := compiledLayout{
		Layout:   l,
		first:    ColumnIndex(l.FirstCol),
		last:     ColumnIndex(l.LastCol),
		sentinel: ColumnIndex(l.SentinelCol),
		key:      ColumnIndex(l.KeyCol),
	}
	if c.first < 0 || c.last < c.first || c.sentinel < 0 || c.key < 0 {
		return compiledLayout{}, fmt.Errorf("invalid sink columns %s..%s (sentinel %s, key %s)", l.FirstCol, l.LastCol, l.SentinelCol, l.KeyCol)
	}
	if c.Width() != len(review.Columns) {
		return compiledLayout{}, fmt.Errorf("sink columns %s..%s must span %d columns", l.FirstCol, l.LastCol, len(review.Columns))
	}
	if c.first+l.PreserveCols > c.last {
		return compiledLayout{}, fmt.Errorf("preserve_cols %d leaves no writable columns", l.PreserveCols)
	}
	re, err := regexp.Compile(l.SentinelPattern)
	if err != nil {
		return compiledLayout{}, fmt.Errorf("compile sentinel pattern: %w", err)
	}
	c.sentinelRe = re
	return c, nil
}

// Width is the number of columns in a row.
func (c compiledLayout) Width() int {
	return c.last - c.first + 1
}

func (c compiledLayout) scanEnd() int {
	return c.StartRow + c.ScanMaxRows - 1
}

// ClampChunk bounds an append chunk size to 1..MaxChunkSize, mapping 0 to the default.
func ClampChunk(n int) int {
	switch {
	case n == 0:
		return DefaultChunkSize
	case n < 1:
		return 1
	case n > MaxChunkSize:
		return MaxChunkSize
	default:
		return n
	}
}
