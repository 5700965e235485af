package executor

import (
	"context"
	"time"

	"duckstack/internal/domain"
	"duckstack/internal/service/pipeline"
	"duckstack/internal/service/tracker"
)

// RefreshReport is the outcome of one change-driven refresh.
type RefreshReport struct {
	RunID        string
	Materialized []string
	Completed    []string
	NotRun       []string
	Rendered     bool
	Duration     time.Duration
	Err          error
}

// Refresher re-executes the affected part of an already validated
// specification. Unlike Driver it may be called repeatedly.
type Refresher struct {
	spec  *pipeline.Specification
	steps stepper
}

// NewRefresher validates spec once and returns a refresher for it.
func NewRefresher(spec *pipeline.Specification, collab Collaborators, opts ...Option) (*Refresher, error) {
	if err := collab.validate(); err != nil {
		return nil, err
	}
	result, err := pipeline.Validate(spec)
	if err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return &Refresher{
		spec:  spec,
		steps: stepper{collab: collab, settings: newSettings(opts)},
	}, nil
}

// Refresh re-materializes the affected sources, re-executes the affected
// transformations in topological order (fail-fast), then re-renders. Names
// that are neither sources nor outputs are ignored. An affected set matching
// nothing is a no-op.
func (r *Refresher) Refresh(ctx context.Context, affected []string) (*RefreshReport, error) {
	report := &RefreshReport{RunID: domain.NewID()}
	start := time.Now()
	logger := r.steps.logger.With("run_id", report.RunID)

	want := make(map[string]bool, len(affected))
	for _, name := range affected {
		want[name] = true
	}
	var sources []domain.Source
	for _, src := range r.spec.Sources() {
		if want[src.Name] {
			sources = append(sources, src)
		}
	}
	var outputs []string
	for _, out := range r.spec.OutputNames() {
		if want[out] {
			outputs = append(outputs, out)
		}
	}
	if len(sources) == 0 && len(outputs) == 0 {
		logger.Debug("refresh skipped, nothing affected", "affected", affected)
		return report, nil
	}

	finish := func(err error) (*RefreshReport, error) {
		report.Err = err
		report.Duration = time.Since(start)
		if err != nil {
			logger.Error("refresh failed", "error", err, "duration", report.Duration)
		} else {
			logger.Info("refresh finished", "sources", len(report.Materialized),
				"transformations", len(report.Completed), "duration", report.Duration)
		}
		return report, err
	}

	logger.Info("refresh started", "affected", affected)
	materialized, err := r.steps.materialize(ctx, logger, sources)
	report.Materialized = materialized
	if err != nil {
		report.NotRun = outputs
		return finish(err)
	}

	ordered, err := order(r.spec, outputs)
	if err != nil {
		return finish(err)
	}
	completed, err := r.steps.execute(ctx, logger, r.spec, ordered)
	report.Completed = completed
	if err != nil {
		report.NotRun = ordered[len(completed):]
		return finish(err)
	}

	if err := r.steps.render(ctx, r.spec); err != nil {
		return finish(err)
	}
	report.Rendered = true
	return finish(nil)
}

// Rerender renders the serving layer without recomputing anything. Used when
// only dashboards changed.
func (r *Refresher) Rerender(ctx context.Context) error {
	if err := r.steps.render(ctx, r.spec); err != nil {
		r.steps.logger.Error("render failed", "error", err)
		return err
	}
	return nil
}

// Listener adapts Refresh to a tracker listener. Failures are logged; the
// tracker does not retry.
func (r *Refresher) Listener(ctx context.Context) tracker.Listener {
	return func(affected []string) {
		_, _ = r.Refresh(ctx, affected)
	}
}
