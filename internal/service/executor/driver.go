// Package executor drives a pipeline run through validation, source
// materialization, transformation execution, and serving.
package executor

import (
	"context"
	"sync/atomic"
	"time"

	"duckstack/internal/domain"
	"duckstack/internal/service/pipeline"
)

// State is a step of the run state machine.
type State string

// Run states.
const (
	StateIdle                     State = "Idle"
	StateValidating               State = "Validating"
	StateMaterializingSources     State = "MaterializingSources"
	StateExecutingTransformations State = "ExecutingTransformations"
	StateServing                  State = "Serving"
	StateDone                     State = "Done"
	StateFailed                   State = "Failed"
)

// Terminal reports whether no further transition can happen from s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Transition records one state change of a run.
type Transition struct {
	From State
	To   State
	At   time.Time
}

// RunReport is the outcome of a single run. Err is the same error Run returns.
type RunReport struct {
	RunID        string
	State        State
	Violations   []pipeline.Violation
	Materialized []string
	Completed    []string
	NotRun       []string
	Transitions  []Transition
	Duration     time.Duration
	Err          error
}

// Driver executes one run of a specification. It is single-use: a second call
// to Run returns a ConflictError.
type Driver struct {
	spec    *pipeline.Specification
	steps   stepper
	started atomic.Bool
}

// NewDriver creates a driver for spec with the given collaborators.
func NewDriver(spec *pipeline.Specification, collab Collaborators, opts ...Option) (*Driver, error) {
	if spec == nil {
		return nil, pipeline.ErrNilSpecification
	}
	if err := collab.validate(); err != nil {
		return nil, err
	}
	return &Driver{
		spec:  spec,
		steps: stepper{collab: collab, settings: newSettings(opts)},
	}, nil
}

// run tracks the mutable state of one Run call.
type run struct {
	d      *Driver
	report *RunReport
	start  time.Time
}

func (r *run) transition(to State) {
	from := r.report.State
	r.report.State = to
	r.report.Transitions = append(r.report.Transitions, Transition{From: from, To: to, At: time.Now()})
	r.d.steps.recorder.Transition(string(from), string(to))
	r.d.steps.logger.Info("state transition", "run_id", r.report.RunID, "from", from, "to", to)
}

func (r *run) fail(err error) (*RunReport, error) {
	r.report.Err = err
	r.transition(StateFailed)
	return r.finish()
}

func (r *run) finish() (*RunReport, error) {
	r.report.Duration = time.Since(r.start)
	r.d.steps.recorder.RunFinished(string(r.report.State), r.report.Duration)
	if r.report.Err != nil {
		r.d.steps.logger.Error("run failed", "run_id", r.report.RunID, "error", r.report.Err, "duration", r.report.Duration)
	} else {
		r.d.steps.logger.Info("run finished", "run_id", r.report.RunID, "duration", r.report.Duration)
	}
	return r.report, r.report.Err
}

// Run executes the specification. The returned report is non-nil for every
// run that started, including failed ones. Nothing is retried: a collaborator
// failure, timeout, or context cancellation moves the run to Failed.
func (d *Driver) Run(ctx context.Context) (*RunReport, error) {
	if !d.started.CompareAndSwap(false, true) {
		return nil, domain.ErrConflict("driver has already run; create a new driver per run")
	}

	r := &run{
		d:      d,
		report: &RunReport{RunID: domain.NewID(), State: StateIdle},
		start:  time.Now(),
	}
	logger := d.steps.logger.With("run_id", r.report.RunID)

	// Validating: expected defects are data, nothing downstream is called.
	r.transition(StateValidating)
	result, err := pipeline.Validate(d.spec)
	if err != nil {
		return r.fail(err)
	}
	if !result.OK() {
		r.report.Violations = result.Violations
		for _, v := range result.Violations {
			logger.Warn("validation violation", "kind", v.Kind, "subject", v.Subject, "message", v.Message)
		}
		return r.fail(result.Err())
	}

	r.transition(StateMaterializingSources)
	materialized, err := d.steps.materialize(ctx, logger, d.spec.Sources())
	r.report.Materialized = materialized
	if err != nil {
		r.report.NotRun = d.spec.OutputNames()
		return r.fail(err)
	}

	r.transition(StateExecutingTransformations)
	ordered, err := order(d.spec, d.spec.OutputNames())
	if err != nil {
		return r.fail(err)
	}
	completed, err := d.steps.execute(ctx, logger, d.spec, ordered)
	r.report.Completed = completed
	if err != nil {
		r.report.NotRun = ordered[len(completed):]
		return r.fail(err)
	}

	r.transition(StateServing)
	if err := d.steps.render(ctx, d.spec); err != nil {
		return r.fail(err)
	}

	r.transition(StateDone)
	return r.finish()
}
