package sink

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Call records one write made against a MemoryTab.
type Call struct {
	Op    string
	Range string
	Rows  int
}

// MemoryTab is an in-process Tab used for dry runs and tests. It follows the
// spreadsheet conventions the reconciler relies on: trailing empty rows and
// cells are omitted from Get results.
type MemoryTab struct {
	mu    sync.Mutex
	tabs  map[string][][]string
	calls []Call
	// FailUpdateAt makes the n-th Update call (1-based) fail when > 0.
	FailUpdateAt int
	updates      int
}

// NewMemoryTab returns an empty MemoryTab.
func NewMemoryTab() *MemoryTab {
	return &MemoryTab{tabs: make(map[string][][]string)}
}

// Get returns the values inside rng.
func (m *MemoryTab) Get(_ context.Context, rng string) ([][]string, error) {
	cr, err := ParseRange(rng)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	grid := m.tabs[cr.Tab]
	end := len(grid)
	if cr.EndRow != 0 && cr.EndRow < end {
		end = cr.EndRow
	}
	var out [][]string
	for row := cr.StartRow; row <= end; row++ {
		values := trimRight(slice(grid[row-1], cr.StartCol, cr.EndCol))
		if len(values) == 0 {
			values = nil
		}
		out = append(out, values)
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

// Update overwrites the cells of rng with rows.
func (m *MemoryTab) Update(_ context.Context, rng string, rows [][]any) error {
	cr, err := ParseRange(rng)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updates++
	if m.FailUpdateAt > 0 && m.updates == m.FailUpdateAt {
		return fmt.Errorf("memory tab: injected update failure on %s", rng)
	}
	if cr.EndRow != 0 && len(rows) > cr.EndRow-cr.StartRow+1 {
		return fmt.Errorf("memory tab: %d rows exceed range %s", len(rows), rng)
	}
	m.write(cr.Tab, cr.StartRow, cr.StartCol, rows)
	m.calls = append(m.calls, Call{Op: "update", Range: rng, Rows: len(rows)})
	return nil
}

// Append writes rows below the last non-empty row within rng's columns.
func (m *MemoryTab) Append(_ context.Context, rng string, rows [][]any) error {
	cr, err := ParseRange(rng)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	next := cr.StartRow
	grid := m.tabs[cr.Tab]
	for row := len(grid); row >= cr.StartRow; row-- {
		if len(trimRight(slice(grid[row-1], cr.StartCol, cr.EndCol))) > 0 {
			next = row + 1
			break
		}
	}
	m.write(cr.Tab, next, cr.StartCol, rows)
	m.calls = append(m.calls, Call{Op: "append", Range: rng, Rows: len(rows)})
	return nil
}

// Calls returns a copy of the recorded writes.
func (m *MemoryTab) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// ResetCalls clears the recorded writes.
func (m *MemoryTab) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Snapshot returns a copy of every row of tab.
func (m *MemoryTab) Snapshot(tab string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	grid := m.tabs[tab]
	out := make([][]string, len(grid))
	for i, row := range grid {
		out[i] = append([]string(nil), row...)
	}
	return out
}

func (m *MemoryTab) write(tab string, startRow, startCol int, rows [][]any) {
	grid := m.tabs[tab]
	for i, values := range rows {
		row := startRow + i
		for len(grid) < row {
			grid = append(grid, nil)
		}
		line := grid[row-1]
		for len(line) < startCol+len(values) {
			line = append(line, "")
		}
		for j, v := range values {
			line[startCol+j] = toCell(v)
		}
		grid[row-1] = line
	}
	m.tabs[tab] = grid
}

func toCell(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func slice(row []string, from, to int) []string {
	if from >= len(row) {
		return nil
	}
	if to >= len(row) {
		to = len(row) - 1
	}
	return append([]string(nil), row[from:to+1]...)
}

func trimRight(row []string) []string {
	for len(row) > 0 && strings.TrimSpace(row[len(row)-1]) == "" {
		row = row[:len(row)-1]
	}
	return row
}
