// Package sink reconciles canonical review records against an external,
// row-addressed tabular store such as a spreadsheet tab.
package sink

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Tab is the minimal view of a tabular store. Ranges use A1 notation with
// 1-indexed rows and lettered columns, e.g. "main_review!A3:O5".
type Tab interface {
	Get(ctx context.Context, rng string) ([][]string, error)
	Update(ctx context.Context, rng string, rows [][]any) error
	Append(ctx context.Context, rng string, rows [][]any) error
}

// CellRange is a parsed A1 range. Columns are zero-based; rows are 1-based and
// EndRow is 0 for an open-ended range such as "A2:H".
type CellRange struct {
	Tab      string
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

// ColumnIndex converts a column letter ("A", "N", "AA") to a zero-based index.
// It returns -1 for invalid input.
func ColumnIndex(col string) int {
	col = strings.ToUpper(strings.TrimSpace(col))
	if col == "" {
		return -1
	}
	idx := 0
	for _, r := range col {
		if r < 'A' || r > 'Z' {
			return -1
		}
		idx = idx*26 + int(r-'A'+1)
	}
	return idx - 1
}

// ColumnLetter converts a zero-based index to its column letter.
func ColumnLetter(idx int) string {
	if idx < 0 {
		return ""
	}
	var out []byte
	for n := idx + 1; n > 0; n = (n - 1) / 26 {
		out = append([]byte{byte('A' + (n-1)%26)}, out...)
	}
	return string(out)
}

// FormatRange renders a bounded A1 range on tab.
func FormatRange(tab string, startCol, startRow, endCol, endRow int) string {
	return fmt.Sprintf("%s!%s%d:%s%d", quoteTab(tab), ColumnLetter(startCol), startRow, ColumnLetter(endCol), endRow)
}

// FormatOpenRange renders an A1 range with no end row.
func FormatOpenRange(tab string, startCol, startRow, endCol int) string {
	return fmt.Sprintf("%s!%s%d:%s", quoteTab(tab), ColumnLetter(startCol), startRow, ColumnLetter(endCol))
}

func quoteTab(tab string) string {
	for _, r := range tab {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
		}
	}
	return tab
}

// ParseRange parses "tab!A3:O5", "'my tab'!A2:H" or "A1:H1".
func ParseRange(rng string) (CellRange, error) {
	var out CellRange
	cells := rng
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		out.Tab = rng[:i]
		cells = rng[i+1:]
		if strings.HasPrefix(out.Tab, "'") && strings.HasSuffix(out.Tab, "'") && len(out.Tab) >= 2 {
			out.Tab = strings.ReplaceAll(out.Tab[1:len(out.Tab)-1], "''", "'")
		}
	}
	start, end, found := strings.Cut(cells, ":")
	if !found {
		end = start
	}
	var err error
	if out.StartCol, out.StartRow, err = parseCell(start); err != nil {
		return CellRange{}, fmt.Errorf("parse range %q: %w", rng, err)
	}
	if out.EndCol, out.EndRow, err = parseCell(end); err != nil {
		return CellRange{}, fmt.Errorf("parse range %q: %w", rng, err)
	}
	if out.StartRow == 0 {
		out.StartRow = 1
	}
	if out.EndCol < out.StartCol || (out.EndRow != 0 && out.EndRow < out.StartRow) {
		return CellRange{}, fmt.Errorf("parse range %q: end precedes start", rng)
	}
	return out, nil
}

func parseCell(cell string) (int, int, error) {
	cell = strings.TrimSpace(cell)
	i := 0
	for i < len(cell) && (cell[i] >= 'A' && cell[i] <= 'Z' || cell[i] >= 'a' && cell[i] <= 'z') {
		i++
	}
	col := ColumnIndex(cell[:i])
	if col < 0 {
		return 0, 0, fmt.Errorf("invalid column in %q", cell)
	}
	if i == len(cell) {
		return col, 0, nil
	}
	row, err := strconv.Atoi(cell[i:])
	if err != nil || row <= 0 {
		return 0, 0, fmt.Errorf("invalid row in %q", cell)
	}
	return col, row, nil
}

// cell returns rows[i][0] trimmed, or "" when absent.
func cell(rows [][]string, i int) string {
	if i >= len(rows) || len(rows[i]) == 0 {
		return ""
	}
	return strings.TrimSpace(rows[i][0])
}
