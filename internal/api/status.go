package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JakeFAU/review-hub/internal/orchestrator"
	"github.com/JakeFAU/review-hub/internal/storage"
)

// Counter reports the size of a persisted key set.
type Counter interface {
	Count() (int, error)
}

// Live is a running orchestrator.
type Live interface {
	States() map[string]orchestrator.State
	LastSummary() (orchestrator.Summary, bool)
}

// Status is the JSON view served on /v1/status and printed by the status
// command.
type Status struct {
	Sources      map[string]orchestrator.State `json:"sources,omitempty"`
	DedupKeys    int                           `json:"dedup_keys"`
	SeenProducts int                           `json:"seen_products"`
	LastRun      *orchestrator.Summary         `json:"last_run,omitempty"`
	LastRunPath  string                        `json:"last_run_path,omitempty"`
}

// StatusSource assembles a Status. Live and SeenProducts are optional; with
// no live orchestrator the last run is read back from Archive.
type StatusSource struct {
	Live          Live
	DedupKeys     Counter
	SeenProducts  Counter
	Archive       storage.Archive
	ArchivePrefix string
}

// Collect builds the current Status.
func (s StatusSource) Collect(ctx context.Context) (Status, error) {
	var st Status
	if s.DedupKeys != nil {
		n, err := s.DedupKeys.Count()
		if err != nil {
			return Status{}, fmt.Errorf("count dedup keys: %w", err)
		}
		st.DedupKeys = n
	}
	if s.SeenProducts != nil {
		n, err := s.SeenProducts.Count()
		if err != nil {
			return Status{}, fmt.Errorf("count seen products: %w", err)
		}
		st.SeenProducts = n
	}

	if s.Live != nil {
		st.Sources = s.Live.States()
		if last, ok := s.Live.LastSummary(); ok {
			st.LastRun = &last
			st.LastRunPath = last.Archive
			return st, nil
		}
	}
	if s.Archive == nil {
		return st, nil
	}
	path, data, err := s.Archive.Latest(ctx, s.ArchivePrefix)
	if errors.Is(err, storage.ErrNotFound) {
		return st, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("read last summary: %w", err)
	}
	var last orchestrator.Summary
	if err := json.Unmarshal(data, &last); err != nil {
		return Status{}, fmt.Errorf("decode %s: %w", path, err)
	}
	st.LastRun = &last
	st.LastRunPath = path
	return st, nil
}
