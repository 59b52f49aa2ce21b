package orchestrator

import "time"

// maxSummaryErrors bounds the error list kept in a Summary. Errored still
// counts every failure.
const maxSummaryErrors = 500

// Summary reports a whole run.
type Summary struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Rounds     int            `json:"rounds"`
	Discovered int            `json:"discovered"`
	Collected  int            `json:"collected"`
	New        int            `json:"new"`
	Updated    int            `json:"updated"`
	Errored    int            `json:"errored"`
	DryRun     bool           `json:"dry_run"`
	Sources    []SourceReport `json:"sources"`
	Errors     []ErrorEntry   `json:"errors"`
	// Archive is where the summary was stored, if anywhere.
	Archive string `json:"archive,omitempty"`
}

// SourceReport accumulates one source over the rounds of a run.
type SourceReport struct {
	Name       string `json:"name"`
	State      State  `json:"state"`
	Discovered int    `json:"discovered"`
	Collected  int    `json:"collected"`
	New        int    `json:"new"`
	Updated    int    `json:"updated"`
	Errors     int    `json:"errors"`
	Blocked    bool   `json:"blocked"`
}

// ErrorEntry is one failure in a Summary.
type ErrorEntry struct {
	Source string `json:"source"`
	Stage  string `json:"stage"`
	URL    string `json:"url"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// add folds one round's report for a source into s.
func (s *Summary) add(rep SourceReport, errs []ErrorEntry) {
	s.Discovered += rep.Discovered
	s.Collected += rep.Collected
	s.New += rep.New
	s.Updated += rep.Updated
	s.Errored += len(errs)
	for _, e := range errs {
		if len(s.Errors) >= maxSummaryErrors {
			break
		}
		s.Errors = append(s.Errors, e)
	}

	for i := range s.Sources {
		cur := &s.Sources[i]
		if cur.Name != rep.Name {
			continue
		}
		cur.State = rep.State
		cur.Discovered += rep.Discovered
		cur.Collected += rep.Collected
		cur.New += rep.New
		cur.Updated += rep.Updated
		cur.Errors += rep.Errors
		cur.Blocked = cur.Blocked || rep.Blocked
		return
	}
	s.Sources = append(s.Sources, rep)
}
