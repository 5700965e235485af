package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duckstack/internal/domain"
	"duckstack/internal/service/pipeline"
	"duckstack/internal/service/tracker"
	"duckstack/internal/testutil"
)

func TestRefresher_Refresh(t *testing.T) {
	tests := []struct {
		name         string
		affected     []string
		wantIngest   []string
		wantExec     []string
		wantRendered int
	}{
		{"source change", []string{"raw_sales", "sales_daily", "sales_weekly"}, []string{"raw_sales"}, []string{"sales_daily", "sales_weekly"}, 1},
		{"downstream only", []string{"sales_weekly", "sales_daily"}, nil, []string{"sales_daily", "sales_weekly"}, 1},
		{"unknown ignored", []string{"orders"}, nil, nil, 0},
		{"empty", nil, nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks()
			r, err := NewRefresher(salesSpec(), m.collabs, WithLogger(discardLogger()))
			require.NoError(t, err)

			report, err := r.Refresh(context.Background(), tt.affected)
			require.NoError(t, err)

			assert.Equal(t, tt.wantIngest, m.ingest.Calls())
			assert.Equal(t, tt.wantExec, m.exec.Calls)
			assert.Equal(t, tt.wantRendered, m.render.Rendered)
			assert.Equal(t, tt.wantRendered == 1, report.Rendered)
		})
	}
}

func TestRefresher_Repeatable(t *testing.T) {
	m := newMocks()
	r, err := NewRefresher(salesSpec(), m.collabs)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := r.Refresh(context.Background(), []string{"sales_weekly"})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"sales_weekly", "sales_weekly", "sales_weekly"}, m.exec.Calls)
}

func TestRefresher_FailFast(t *testing.T) {
	m := newMocks()
	m.exec.ExecuteFn = testutil.FailOn("sales_daily", errors.New("boom"))
	r, err := NewRefresher(salesSpec(), m.collabs)
	require.NoError(t, err)

	report, err := r.Refresh(context.Background(), []string{"sales_daily", "sales_weekly"})

	var terr *domain.TransformationError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, []string{"sales_daily", "sales_weekly"}, report.NotRun)
	assert.False(t, report.Rendered)
	assert.Zero(t, m.render.Rendered)
}

func TestNewRefresher_RejectsInvalidSpec(t *testing.T) {
	spec := pipeline.NewSpecification(nil, []domain.Transformation{
		{Name: "a", Inputs: []string{"missing"}, Output: "a"},
	}, domain.ServingLayer{})

	_, err := NewRefresher(spec, newMocks().collabs)
	var invalid *domain.PipelineInvalidError
	assert.True(t, errors.As(err, &invalid))
}

func TestRefresher_TrackerListener(t *testing.T) {
	spec := salesSpec()
	m := newMocks()
	r, err := NewRefresher(spec, m.collabs)
	require.NoError(t, err)

	tr := tracker.New(spec.BuildDependencyGraph(), discardLogger())
	tr.RegisterListener(r.Listener(context.Background()))

	affected := tr.ReportChange("raw_sales")

	assert.ElementsMatch(t, []string{"raw_sales", "sales_daily", "sales_weekly"}, affected)
	assert.Equal(t, []string{"raw_sales"}, m.ingest.Calls())
	assert.Equal(t, []string{"sales_daily", "sales_weekly"}, m.exec.Calls)
	assert.Equal(t, 1, m.render.Rendered)
}

func TestRefresher_Rerender(t *testing.T) {
	m := newMocks()
	r, err := NewRefresher(salesSpec(), m.collabs)
	require.NoError(t, err)

	require.NoError(t, r.Rerender(context.Background()))
	assert.Equal(t, 1, m.render.Rendered)
	assert.Empty(t, m.ingest.Calls())
	assert.Empty(t, m.exec.Calls)

	m.render.RenderFn = func(context.Context, domain.ServingLayer, []string) error { return errors.New("disk full") }
	err = r.Rerender(context.Background())
	var collabErr *domain.CollaboratorError
	require.ErrorAs(t, err, &collabErr)
	assert.Equal(t, domain.CollaboratorRendering, collabErr.Collaborator)
}
