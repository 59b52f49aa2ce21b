// Package sheets implements sink.Tab on top of the Google Sheets v4 API.
package sheets

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// Config identifies the spreadsheet and credentials.
type Config struct {
	SpreadsheetID   string
	CredentialsFile string
	// Timeout bounds each API call. Zero means 60s.
	Timeout time.Duration
}

// Tab reads and writes A1 ranges of one spreadsheet.
type Tab struct {
	svc     *sheetsapi.Service
	id      string
	timeout time.Duration
}

// New creates a Tab using service-account or default credentials.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Tab, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	all := []option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsScope)}
	if cfg.CredentialsFile != "" {
		all = append(all, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	all = append(all, opts...)
	svc, err := sheetsapi.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg)
}

// NewWithService wraps an existing service (primarily for testing).
func NewWithService(svc *sheetsapi.Service, cfg Config) (*Tab, error) {
	if svc == nil {
		return nil, fmt.Errorf("sheets service is required")
	}
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Tab{svc: svc, id: cfg.SpreadsheetID, timeout: timeout}, nil
}

// Get returns the formatted values in rng as strings.
func (t *Tab) Get(ctx context.Context, rng string) ([][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	resp, err := t.svc.Spreadsheets.Values.Get(t.id, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets get %s: %w", rng, err)
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		out[i] = cells
	}
	return out, nil
}

// Update overwrites rng with rows, storing values as entered.
func (t *Tab) Update(ctx context.Context, rng string, rows [][]any) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	vr := &sheetsapi.ValueRange{MajorDimension: "ROWS", Values: rows}
	if _, err := t.svc.Spreadsheets.Values.Update(t.id, rng, vr).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("sheets update %s: %w", rng, err)
	}
	return nil
}

// Append uses the API's table detection; only safe on single-table tabs.
func (t *Tab) Append(ctx context.Context, rng string, rows [][]any) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	vr := &sheetsapi.ValueRange{MajorDimension: "ROWS", Values: rows}
	call := t.svc.Spreadsheets.Values.Append(t.id, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS")
	if _, err := call.Context(ctx).Do(); err != nil {
		return fmt.Errorf("sheets append %s: %w", rng, err)
	}
	return nil
}
