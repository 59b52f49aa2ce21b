package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	body   map[string]any
}

type fakeSheets struct {
	mu       sync.Mutex
	requests []recordedRequest
	values   [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := recordedRequest{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req.body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	values := f.values
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{"range": "x", "majorDimension": "ROWS", "values": values})
	case strings.HasSuffix(r.URL.Path, ":append"):
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-1"})
	default:
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-1", "updatedRows": 1})
	}
}

func newTestTab(t *testing.T, fake *fakeSheets) *Tab {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := sheetsapi.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	tab, err := NewWithService(svc, Config{SpreadsheetID: "sheet-1"})
	require.NoError(t, err)
	return tab
}

func TestGetConvertsValuesToStrings(t *testing.T) {
	t.Parallel()

	fake := &fakeSheets{values: [][]any{{"2024-01-02"}, {}, {"x", 4.5}}}
	tab := newTestTab(t, fake)

	rows, err := tab.Get(context.Background(), "main_review!A3:A5")
	require.NoError(t, err)
	require.Equal(t, [][]string{{"2024-01-02"}, nil, {"x", "4.5"}}, rows)

	require.Len(t, fake.requests, 1)
	require.Equal(t, http.MethodGet, fake.requests[0].method)
	require.Contains(t, fake.requests[0].path, "/v4/spreadsheets/sheet-1/values/main_review!A3:A5")
}

func TestUpdateSendsRawValues(t *testing.T) {
	t.Parallel()

	fake := &fakeSheets{}
	tab := newTestTab(t, fake)

	err := tab.Update(context.Background(), "main_review!A3:B3", [][]any{{"2024-01-02", 5.0}})
	require.NoError(t, err)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	require.Equal(t, http.MethodPut, req.method)
	require.Contains(t, req.query, "valueInputOption=RAW")
	require.Equal(t, []any{[]any{"2024-01-02", 5.0}}, req.body["values"])
}

func TestAppendUsesInsertRows(t *testing.T) {
	t.Parallel()

	fake := &fakeSheets{}
	tab := newTestTab(t, fake)

	require.NoError(t, tab.Append(context.Background(), "errors_reviews!A2:H", [][]any{{"a", "b"}}))
	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	require.Equal(t, http.MethodPost, req.method)
	require.True(t, strings.HasSuffix(req.path, ":append"))
	require.Contains(t, req.query, "insertDataOption=INSERT_ROWS")
}

func TestNewWithServiceValidates(t *testing.T) {
	t.Parallel()

	_, err := NewWithService(nil, Config{SpreadsheetID: "x"})
	require.Error(t, err)
	_, err = NewWithService(&sheetsapi.Service{}, Config{})
	require.Error(t, err)
}
