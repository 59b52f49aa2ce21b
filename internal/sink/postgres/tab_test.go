package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func newMockTab(t *testing.T) (*Tab, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	tab, err := NewWithPool(mock, "")
	require.NoError(t, err)
	return tab, mock
}

func TestGetLaysOutCellsAsRows(t *testing.T) {
	t.Parallel()

	tab, mock := newMockTab(t)
	mock.ExpectQuery("SELECT row_num, col_idx, value FROM sink_cells").
		WithArgs("main_review", 3, 6, 13, 13).
		WillReturnRows(pgxmock.NewRows([]string{"row_num", "col_idx", "value"}).
			AddRow(3, 13, "k1").
			AddRow(5, 13, "k3"))

	rows, err := tab.Get(context.Background(), "main_review!N3:N6")
	require.NoError(t, err)
	require.Equal(t, [][]string{{"k1"}, nil, {"k3"}}, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOpenRangeUsesMaxRow(t *testing.T) {
	t.Parallel()

	tab, mock := newMockTab(t)
	mock.ExpectQuery("SELECT row_num").
		WithArgs("errors_reviews", 2, math.MaxInt32, 0, 7).
		WillReturnRows(pgxmock.NewRows([]string{"row_num", "col_idx", "value"}).
			AddRow(2, 0, "run").
			AddRow(2, 2, "collect"))

	rows, err := tab.Get(context.Background(), "errors_reviews!A2:H")
	require.NoError(t, err)
	require.Equal(t, [][]string{{"run", "", "collect"}}, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUpsertsEveryCell(t *testing.T) {
	t.Parallel()

	tab, mock := newMockTab(t)
	mock.ExpectExec("INSERT INTO sink_cells").
		WithArgs("main_review", 4, 12, "x", "main_review", 4, 13, "5").
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	err := tab.Update(context.Background(), "main_review!M4:N4", [][]any{{"x", 5}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSplitsAtParameterLimit(t *testing.T) {
	t.Parallel()

	tab, mock := newMockTab(t)
	rows := make([][]any, maxCellsPerStatement+1)
	for i := range rows {
		rows[i] = []any{i}
	}
	mock.ExpectExec("INSERT INTO sink_cells").WillReturnResult(pgxmock.NewResult("INSERT", int64(maxCellsPerStatement)))
	mock.ExpectExec("INSERT INTO sink_cells").
		WithArgs("main_review", 3+maxCellsPerStatement, 0, fmt.Sprint(maxCellsPerStatement)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, tab.Update(context.Background(), "main_review!A3:A", rows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRejectsRowsBeyondRange(t *testing.T) {
	t.Parallel()

	tab, _ := newMockTab(t)
	err := tab.Update(context.Background(), "main_review!A3:B3", [][]any{{"a"}, {"b"}})
	require.Error(t, err)
}

func TestAppendWritesBelowLastRow(t *testing.T) {
	t.Parallel()

	tab, mock := newMockTab(t)
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("errors_reviews", 2, 0, 7).
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(4))
	mock.ExpectExec("INSERT INTO sink_cells").
		WithArgs("errors_reviews", 5, 0, "run-1", "errors_reviews", 5, 1, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	err := tab.Append(context.Background(), "errors_reviews!A2:H", [][]any{{"run-1", nil}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWrapsExecError(t *testing.T) {
	t.Parallel()

	tab, mock := newMockTab(t)
	mock.ExpectExec("INSERT INTO sink_cells").
		WillReturnError(errors.New("conn reset"))

	err := tab.Update(context.Background(), "main_review!A3:A3", [][]any{{"x"}})
	require.ErrorContains(t, err, "conn reset")
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	tab, mock := newMockTab(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sink_cells").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, tab.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "bad;table")
	require.Error(t, err)
	_, err = NewWithPool(nil, "")
	require.Error(t, err)
}
