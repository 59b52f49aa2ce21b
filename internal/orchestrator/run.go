package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-hub/internal/lock"
	"github.com/JakeFAU/review-hub/internal/metrics"
	"github.com/JakeFAU/review-hub/internal/review"
	"github.com/JakeFAU/review-hub/internal/storage"
)

// finalizeTimeout bounds archiving and publishing a summary.
const finalizeTimeout = 30 * time.Second

// runState is shared by the rounds of one run.
type runState struct {
	id      string
	seen    *review.SeenSet
	summary Summary
	now     func() time.Time
}

func (o *Orchestrator) newRun(started time.Time) (*runState, error) {
	id, err := o.deps.IDs.NewID()
	if err != nil {
		return nil, fmt.Errorf("new run id: %w", err)
	}
	keys, err := o.deps.DedupKeys.Load()
	if err != nil {
		return nil, fmt.Errorf("load identity keys: %w", err)
	}
	return &runState{
		id:   id,
		seen: review.NewSeenSet(keys),
		now:  o.deps.Clock.Now,
		summary: Summary{
			RunID:     id,
			StartedAt: started,
			DryRun:    o.cfg.DryRun,
			Sources:   []SourceReport{},
			Errors:    []ErrorEntry{},
		},
	}, nil
}

// RunRound runs every source once, in catalog order, without taking the run
// lock or archiving. Source failures are reported in the Summary; only
// process-level failures return an error.
func (o *Orchestrator) RunRound(ctx context.Context) (Summary, error) {
	run, err := o.newRun(o.deps.Clock.Now())
	if err != nil {
		return Summary{}, err
	}
	o.round(ctx, run)
	return o.finish(run), nil
}

// Loop holds the run lock and repeats rounds until MaxDuration passes or ctx
// ends, sleeping Sleep between rounds. Once mode runs a single round. The
// final Summary is archived and published. Time spent waiting for the lock
// counts against MaxDuration.
func (o *Orchestrator) Loop(ctx context.Context) (Summary, error) {
	var summary Summary
	started := o.deps.Clock.Now()
	deadline := started.Add(o.cfg.MaxDuration)
	body := func() error {
		run, err := o.newRun(started)
		if err != nil {
			return err
		}
		o.logger.Info("run started",
			zap.String("run_id", run.id),
			zap.Int("sources", len(o.deps.Sources)),
			zap.Time("deadline", deadline),
			zap.Bool("dry_run", o.cfg.DryRun),
		)
		for ctx.Err() == nil && o.deps.Clock.Now().Before(deadline) {
			o.round(ctx, run)
			if o.cfg.Once {
				break
			}
			if err := o.deps.Clock.Sleep(ctx, o.cfg.Sleep); err != nil {
				break
			}
		}
		summary = o.finish(run)
		summary.Archive = o.archive(ctx, summary)
		o.publish(ctx, summary)
		o.remember(summary)
		return nil
	}

	if o.cfg.LockPath == "" {
		return summary, body()
	}
	if err := lock.WithLockContext(ctx, o.cfg.LockPath, body); err != nil {
		return summary, fmt.Errorf("run loop: %w", err)
	}
	return summary, nil
}

func (o *Orchestrator) round(ctx context.Context, run *runState) {
	start := o.deps.Clock.Now()
	run.summary.Rounds++
	for i, src := range o.deps.Sources {
		if i > 0 {
			if err := o.deps.Clock.Sleep(ctx, o.cfg.SourceSleep); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
		sr := o.runSource(ctx, run, src)
		run.summary.add(sr.report, sr.errs)
		o.logger.Info("source finished",
			zap.String("source", src.Name),
			zap.String("state", string(sr.report.State)),
			zap.Int("discovered", sr.report.Discovered),
			zap.Int("collected", sr.report.Collected),
			zap.Int("new", sr.report.New),
			zap.Int("updated", sr.report.Updated),
			zap.Int("errors", sr.report.Errors),
		)
	}
	elapsed := o.deps.Clock.Now().Sub(start)
	metrics.ObserveRound(elapsed)
	o.logger.Info("round finished",
		zap.String("run_id", run.id),
		zap.Int("round", run.summary.Rounds),
		zap.Duration("elapsed", elapsed),
	)
}

func (o *Orchestrator) finish(run *runState) Summary {
	s := run.summary
	s.FinishedAt = o.deps.Clock.Now()
	s.Sources = append([]SourceReport(nil), s.Sources...)
	s.Errors = append([]ErrorEntry(nil), s.Errors...)
	if s.Sources == nil {
		s.Sources = []SourceReport{}
	}
	if s.Errors == nil {
		s.Errors = []ErrorEntry{}
	}
	return s
}

// archive stores the summary and returns its location, or "" on failure.
func (o *Orchestrator) archive(ctx context.Context, s Summary) string {
	payload, err := json.Marshal(s)
	if err != nil {
		o.logger.Warn("encode summary failed", zap.Error(err))
		return ""
	}
	path := storage.SummaryPath(o.cfg.ArchivePrefix, s.StartedAt.In(o.cfg.Location), s.RunID)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	uri, err := o.deps.Archive.PutObject(ctx, path, storage.ContentType, bytes.NewReader(payload))
	if err != nil {
		o.logger.Warn("archive summary failed", zap.String("path", path), zap.Error(err))
		return ""
	}
	return uri
}

func (o *Orchestrator) publish(ctx context.Context, s Summary) {
	if o.cfg.Topic == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	id, err := o.deps.Publisher.Publish(ctx, o.cfg.Topic, s)
	if err != nil {
		o.logger.Warn("publish summary failed", zap.String("topic", o.cfg.Topic), zap.Error(err))
		return
	}
	o.logger.Info("summary published", zap.String("topic", o.cfg.Topic), zap.String("message_id", id))
}

func (o *Orchestrator) remember(s Summary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = &s
}
