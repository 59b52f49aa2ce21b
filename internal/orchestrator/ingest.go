package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-hub/internal/metrics"
	"github.com/JakeFAU/review-hub/internal/review"
)

// Ingest reconciles records read from an export as source name. Records
// whose key is already stored, or that repeat within the batch, are dropped
// before the lookback filter; the rest take the same sink path as a
// collected source.
func (o *Orchestrator) Ingest(ctx context.Context, name string, records []review.Record) (SourceReport, error) {
	run, err := o.newRun(o.deps.Clock.Now())
	if err != nil {
		return SourceReport{}, err
	}
	sr := &sourceRun{
		src:    Source{Name: name},
		report: SourceReport{Name: name, State: StateIdle},
		logger: o.logger.With(zap.String("source", name), zap.String("run_id", run.id)),
	}
	for _, rec := range records {
		if run.seen.Add(rec.Key) {
			sr.records = append(sr.records, rec)
		}
	}
	sr.records = o.withinLookback(run, sr.records)
	sr.report.Collected = len(sr.records)
	metrics.ObserveCollected(name, len(sr.records))
	sr.logger.Info("ingesting export",
		zap.Int("read", len(records)),
		zap.Int("new", len(sr.records)),
	)

	if len(sr.records) > 0 {
		o.setState(name, StateReconciling)
		if err = o.reconcile(ctx, sr); err != nil {
			sr.report.State = StateError
		}
	}
	o.setState(name, sr.report.State)
	o.logErrors(ctx, run.id, sr)
	if err != nil {
		return sr.report, fmt.Errorf("ingest %s: %w", name, err)
	}
	return sr.report, nil
}
