package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duckstack/internal/domain"
	"duckstack/internal/service/pipeline"
	"duckstack/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func salesSpec() *pipeline.Specification {
	return pipeline.NewSpecification(
		[]domain.Source{{Name: "raw_sales"}},
		[]domain.Transformation{
			{Name: "weekly", Inputs: []string{"sales_daily"}, Output: "sales_weekly"},
			{Name: "daily", Inputs: []string{"raw_sales"}, Output: "sales_daily"},
		},
		domain.ServingLayer{Dashboards: []domain.Dashboard{{
			Name:    "Sales",
			Metrics: []domain.Metric{{Name: "total", Query: "SELECT SUM(total) FROM sales_weekly"}},
		}}},
	)
}

type mocks struct {
	ingest  *testutil.MockIngestor
	exec    *testutil.MockExecutor
	render  *testutil.MockRenderer
	collabs Collaborators
}

func newMocks() *mocks {
	m := &mocks{
		ingest: &testutil.MockIngestor{},
		exec:   &testutil.MockExecutor{},
		render: &testutil.MockRenderer{},
	}
	m.collabs = Collaborators{Ingestor: m.ingest, Executor: m.exec, Renderer: m.render}
	return m
}

type recordingRecorder struct {
	mu          sync.Mutex
	transitions []string
	steps       []string
	finished    []string
}

func (r *recordingRecorder) Transition(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, from+"->"+to)
}

func (r *recordingRecorder) Step(kind, name, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, fmt.Sprintf("%s:%s:%s", kind, name, outcome))
}

func (r *recordingRecorder) RunFinished(state string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, state)
}

func states(report *RunReport) []State {
	out := make([]State, len(report.Transitions))
	for i, tr := range report.Transitions {
		out[i] = tr.To
	}
	return out
}

func TestDriver_EndToEnd(t *testing.T) {
	m := newMocks()
	rec := &recordingRecorder{}
	d, err := NewDriver(salesSpec(), m.collabs, WithLogger(discardLogger()), WithRecorder(rec))
	require.NoError(t, err)

	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, []State{
		StateValidating, StateMaterializingSources, StateExecutingTransformations, StateServing, StateDone,
	}, states(report))
	assert.Equal(t, StateIdle, report.Transitions[0].From)

	assert.Equal(t, []string{"raw_sales"}, m.ingest.Calls())
	assert.Equal(t, []string{"sales_daily", "sales_weekly"}, m.exec.Calls)
	assert.Equal(t, 1, m.render.Rendered)
	assert.ElementsMatch(t, []string{"raw_sales", "sales_daily", "sales_weekly"}, m.render.Available)

	assert.Equal(t, []string{"raw_sales"}, report.Materialized)
	assert.Equal(t, []string{"sales_daily", "sales_weekly"}, report.Completed)
	assert.Empty(t, report.NotRun)

	assert.Len(t, rec.transitions, 5)
	assert.Equal(t, []string{"Done"}, rec.finished)
	assert.Equal(t, []string{
		"source:raw_sales:success",
		"transformation:sales_daily:success",
		"transformation:sales_weekly:success",
		"serving::success",
	}, rec.steps)
}

func TestDriver_SingleUse(t *testing.T) {
	d, err := NewDriver(salesSpec(), newMocks().collabs)
	require.NoError(t, err)

	_, err = d.Run(context.Background())
	require.NoError(t, err)

	report, err := d.Run(context.Background())
	assert.Nil(t, report)
	var conflict *domain.ConflictError
	assert.True(t, errors.As(err, &conflict))
}

func TestNewDriver_Errors(t *testing.T) {
	m := newMocks()

	_, err := NewDriver(nil, m.collabs)
	assert.ErrorIs(t, err, pipeline.ErrNilSpecification)

	tests := []struct {
		name   string
		collab Collaborators
	}{
		{"no ingestor", Collaborators{Executor: m.exec, Renderer: m.render}},
		{"no executor", Collaborators{Ingestor: m.ingest, Renderer: m.render}},
		{"no renderer", Collaborators{Ingestor: m.ingest, Executor: m.exec}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDriver(salesSpec(), tt.collab)
			var verr *domain.ValidationError
			assert.True(t, errors.As(err, &verr))
		})
	}
}

func TestDriver_InvalidSpecCallsNothing(t *testing.T) {
	spec := pipeline.NewSpecification(nil, []domain.Transformation{
		{Name: "a", Inputs: []string{"B"}, Output: "A"},
		{Name: "b", Inputs: []string{"A"}, Output: "B"},
	}, domain.ServingLayer{})
	m := newMocks()
	d, err := NewDriver(spec, m.collabs)
	require.NoError(t, err)

	report, err := d.Run(context.Background())
	require.Error(t, err)

	var invalid *domain.PipelineInvalidError
	require.True(t, errors.As(err, &invalid))
	assert.Len(t, invalid.Violations, 1)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, []State{StateValidating, StateFailed}, states(report))
	require.Len(t, report.Violations, 1)
	assert.Equal(t, pipeline.KindCyclicDependency, report.Violations[0].Kind)

	assert.Empty(t, m.ingest.Calls())
	assert.Empty(t, m.exec.Calls)
	assert.Zero(t, m.render.Rendered)
}

func TestDriver_SourceFailure(t *testing.T) {
	m := newMocks()
	boom := errors.New("bucket unreachable")
	m.ingest.MaterializeFn = func(context.Context, domain.Source) error { return boom }
	d, err := NewDriver(salesSpec(), m.collabs)
	require.NoError(t, err)

	report, err := d.Run(context.Background())

	var collab *domain.CollaboratorError
	require.True(t, errors.As(err, &collab))
	assert.Equal(t, domain.CollaboratorIngestion, collab.Collaborator)
	assert.Equal(t, "raw_sales", collab.Artifact)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, []State{StateValidating, StateMaterializingSources, StateFailed}, states(report))
	assert.Empty(t, m.exec.Calls)
	assert.Zero(t, m.render.Rendered)
}

func TestDriver_TransformationFailure(t *testing.T) {
	tests := []struct {
		name          string
		failOn        string
		wantCompleted []string
		wantNotRun    []string
	}{
		{"first fails", "sales_daily", nil, []string{"sales_daily", "sales_weekly"}},
		{"last fails", "sales_weekly", []string{"sales_daily"}, []string{"sales_weekly"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks()
			boom := errors.New("binder error")
			m.exec.ExecuteFn = testutil.FailOn(tt.failOn, boom)
			d, err := NewDriver(salesSpec(), m.collabs)
			require.NoError(t, err)

			report, err := d.Run(context.Background())

			var terr *domain.TransformationError
			require.True(t, errors.As(err, &terr))
			assert.Equal(t, tt.failOn, terr.Transformation)
			assert.Equal(t, tt.wantCompleted, terr.Completed)
			assert.Equal(t, tt.wantNotRun, terr.NotRun)
			assert.ErrorIs(t, err, boom)

			assert.Equal(t, StateFailed, report.State)
			assert.Equal(t, tt.wantCompleted, report.Completed)
			assert.Equal(t, tt.wantNotRun, report.NotRun)
			assert.Zero(t, m.render.Rendered)
		})
	}
}

func TestDriver_RenderFailure(t *testing.T) {
	m := newMocks()
	m.render.RenderFn = func(context.Context, domain.ServingLayer, []string) error {
		return errors.New("disk full")
	}
	d, err := NewDriver(salesSpec(), m.collabs)
	require.NoError(t, err)

	report, err := d.Run(context.Background())

	var collab *domain.CollaboratorError
	require.True(t, errors.As(err, &collab))
	assert.Equal(t, domain.CollaboratorRendering, collab.Collaborator)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, StateServing, report.Transitions[len(report.Transitions)-1].From)
	assert.Equal(t, []string{"sales_daily", "sales_weekly"}, report.Completed)
}

func TestDriver_CancelledContext(t *testing.T) {
	m := newMocks()
	d, err := NewDriver(salesSpec(), m.collabs)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := d.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, report.State)
	assert.Empty(t, m.ingest.Calls())
	assert.Empty(t, m.exec.Calls)
}

func TestDriver_StepTimeout(t *testing.T) {
	m := newMocks()
	var attempts atomic.Int32
	m.ingest.MaterializeFn = func(ctx context.Context, _ domain.Source) error {
		attempts.Add(1)
		<-ctx.Done()
		return ctx.Err()
	}
	d, err := NewDriver(salesSpec(), m.collabs, WithStepTimeout(20*time.Millisecond))
	require.NoError(t, err)

	report, err := d.Run(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, int32(1), attempts.Load(), "timed out calls are not retried")
}

func TestDriver_BoundedSourceParallelism(t *testing.T) {
	var sources []domain.Source
	for i := 0; i < 8; i++ {
		sources = append(sources, domain.Source{Name: fmt.Sprintf("raw_%d", i)})
	}
	spec := pipeline.NewSpecification(sources, nil, domain.ServingLayer{})

	var inFlight, peak atomic.Int32
	m := newMocks()
	m.ingest.MaterializeFn = func(context.Context, domain.Source) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}

	d, err := NewDriver(spec, m.collabs, WithParallelism(2))
	require.NoError(t, err)
	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Len(t, m.ingest.Calls(), 8)
	assert.Equal(t, spec.SourceNames(), report.Materialized)
}
