// Package postgres stores sink tabs as a cell table in Postgres so the
// reconciler can run without a spreadsheet.
package postgres

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/review-hub/internal/sink"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultTable holds every tab's cells.
const DefaultTable = "sink_cells"

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Tab implements sink.Tab over a (tab, row_num, col_idx, value) table.
type Tab struct {
	pool  querier
	table string
}

// New connects to Postgres using cfg.
func New(ctx context.Context, cfg Config) (*Tab, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sink.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	tab, err := NewWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return tab, nil
}

// NewWithPool constructs a Tab from an existing pool (primarily for testing).
func NewWithPool(pool querier, table string) (*Tab, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Tab{pool: pool, table: table}, nil
}

// Close releases the pool.
func (t *Tab) Close() {
	if t == nil || t.pool == nil {
		return
	}
	t.pool.Close()
}

// EnsureSchema creates the cell table when missing.
func (t *Tab) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	tab text NOT NULL,
	row_num integer NOT NULL,
	col_idx integer NOT NULL,
	value text NOT NULL,
	PRIMARY KEY (tab, row_num, col_idx)
)`, t.table)
	if _, err := t.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", t.table, err)
	}
	return nil
}

// Get returns the non-empty cells of rng laid out as rows, with the same
// trailing trimming a spreadsheet applies.
func (t *Tab) Get(ctx context.Context, rng string) ([][]string, error) {
	cr, err := sink.ParseRange(rng)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT row_num, col_idx, value FROM %s
WHERE tab = $1 AND row_num BETWEEN $2 AND $3 AND col_idx BETWEEN $4 AND $5 AND value <> ''
ORDER BY row_num, col_idx`, t.table)
	rows, err := t.pool.Query(ctx, query, cr.Tab, cr.StartRow, endRow(cr), cr.StartCol, cr.EndCol)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", rng, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var (
			rowNum, colIdx int
			value          string
		)
		if err := rows.Scan(&rowNum, &colIdx, &value); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		i := rowNum - cr.StartRow
		for len(out) <= i {
			out = append(out, nil)
		}
		j := colIdx - cr.StartCol
		for len(out[i]) <= j {
			out[i] = append(out[i], "")
		}
		out[i][j] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return out, nil
}

// Update upserts rows starting at rng's top-left cell.
func (t *Tab) Update(ctx context.Context, rng string, rows [][]any) error {
	cr, err := sink.ParseRange(rng)
	if err != nil {
		return err
	}
	if cr.EndRow != 0 && len(rows) > cr.EndRow-cr.StartRow+1 {
		return fmt.Errorf("%d rows exceed range %s", len(rows), rng)
	}
	return t.upsert(ctx, cr.Tab, cr.StartRow, cr.StartCol, rows)
}

// Append writes rows below the last non-empty row within rng's columns.
func (t *Tab) Append(ctx context.Context, rng string, rows [][]any) error {
	cr, err := sink.ParseRange(rng)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
SELECT COALESCE(MAX(row_num), 0) FROM %s
WHERE tab = $1 AND row_num >= $2 AND col_idx BETWEEN $3 AND $4 AND value <> ''`, t.table)
	var last int
	if err := t.pool.QueryRow(ctx, query, cr.Tab, cr.StartRow, cr.StartCol, cr.EndCol).Scan(&last); err != nil {
		return fmt.Errorf("find last row of %s: %w", rng, err)
	}
	return t.upsert(ctx, cr.Tab, max(last+1, cr.StartRow), cr.StartCol, rows)
}

// maxCellsPerStatement keeps one upsert under the 65535 bind parameter limit
// at four parameters per cell.
const maxCellsPerStatement = 65535 / 4

// upsert writes rows in as few statements as the parameter limit allows,
// splitting only between rows.
func (t *Tab) upsert(ctx context.Context, tab string, startRow, startCol int, rows [][]any) error {
	for len(rows) > 0 {
		n, cells := 0, 0
		for n < len(rows) && (n == 0 || cells+len(rows[n]) <= maxCellsPerStatement) {
			cells += len(rows[n])
			n++
		}
		if err := t.upsertBatch(ctx, tab, startRow, startCol, rows[:n]); err != nil {
			return err
		}
		rows = rows[n:]
		startRow += n
	}
	return nil
}

func (t *Tab) upsertBatch(ctx context.Context, tab string, startRow, startCol int, rows [][]any) error {
	var (
		values []string
		args   []any
	)
	for i, row := range rows {
		for j, v := range row {
			n := len(args)
			values = append(values, fmt.Sprintf("($%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4))
			args = append(args, tab, startRow+i, startCol+j, toCell(v))
		}
	}
	if len(values) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
INSERT INTO %s (tab, row_num, col_idx, value) VALUES %s
ON CONFLICT (tab, row_num, col_idx) DO UPDATE SET value = EXCLUDED.value`, t.table, strings.Join(values, ","))
	if _, err := t.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s rows %d-%d: %w", tab, startRow, startRow+len(rows)-1, err)
	}
	return nil
}

func endRow(cr sink.CellRange) int {
	if cr.EndRow == 0 {
		return math.MaxInt32
	}
	return cr.EndRow
}

func toCell(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
