package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duckstack/internal/domain"
)

// salesSpec is the raw_sales → sales_daily → sales_weekly pipeline with one dashboard.
func salesSpec() *Specification {
	return NewSpecification(
		[]domain.Source{{
			Name: "raw_sales",
			Schema: domain.Schema{Columns: []domain.Column{
				{Name: "sale_date", Type: domain.DataTypeTimestamp},
				{Name: "amount", Type: domain.DataTypeFloat},
			}},
			RefreshInterval: "1h",
		}},
		[]domain.Transformation{
			{Name: "daily", Inputs: []string{"raw_sales"}, Output: "sales_daily"},
			{Name: "weekly", Inputs: []string{"sales_daily"}, Output: "sales_weekly"},
		},
		domain.ServingLayer{Dashboards: []domain.Dashboard{{
			Name:    "Sales Overview",
			Metrics: []domain.Metric{{Name: "Total Sales", Query: "SELECT SUM(daily_sales) FROM sales_daily"}},
			Charts: []domain.Chart{{
				Name: "Weekly Trend", Type: domain.ChartLine,
				Query: "SELECT week, total FROM sales_weekly ORDER BY week",
			}},
		}}},
	)
}

func TestSpecification_BuildDependencyGraph(t *testing.T) {
	g := salesSpec().BuildDependencyGraph()

	assert.Equal(t, []string{"raw_sales", "sales_daily", "sales_weekly"}, g.Nodes())
	assert.Equal(t, []string{"sales_daily"}, g.Consumers("raw_sales"))
	assert.False(t, g.HasCycle())

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"raw_sales", "sales_daily", "sales_weekly"}, order)
}

func TestSpecification_GraphIsFreshPerCall(t *testing.T) {
	spec := salesSpec()
	first := spec.BuildDependencyGraph()
	first.AddDependency("sales_weekly", "raw_sales")
	require.True(t, first.HasCycle())

	assert.False(t, spec.BuildDependencyGraph().HasCycle())
}

func TestSpecification_UnconsumedSourceIsANode(t *testing.T) {
	spec := NewSpecification(
		[]domain.Source{{Name: "raw_sales"}, {Name: "raw_unused"}},
		[]domain.Transformation{{Name: "daily", Inputs: []string{"raw_sales"}, Output: "sales_daily"}},
		domain.ServingLayer{},
	)
	g := spec.BuildDependencyGraph()
	assert.True(t, g.HasNode("raw_unused"))
	assert.Empty(t, g.Consumers("raw_unused"))
}

func TestSpecification_DeclarationOrderDoesNotMatter(t *testing.T) {
	spec := NewSpecification(
		[]domain.Source{{Name: "raw_sales"}},
		[]domain.Transformation{
			{Name: "weekly", Inputs: []string{"sales_daily"}, Output: "sales_weekly"},
			{Name: "daily", Inputs: []string{"raw_sales"}, Output: "sales_daily"},
		},
		domain.ServingLayer{},
	)
	order, err := spec.BuildDependencyGraph().TopologicalOrder(spec.OutputNames()...)
	require.NoError(t, err)
	assert.Equal(t, []string{"sales_daily", "sales_weekly"}, order)
}

func TestSpecification_IsImmutable(t *testing.T) {
	transforms := []domain.Transformation{{Name: "daily", Inputs: []string{"raw_sales"}, Output: "sales_daily"}}
	spec := NewSpecification([]domain.Source{{Name: "raw_sales"}}, transforms, domain.ServingLayer{})

	transforms[0].Inputs[0] = "tampered"
	got := spec.Transformations()
	assert.Equal(t, "raw_sales", got[0].Inputs[0])

	got[0].Output = "also_tampered"
	assert.Equal(t, []string{"sales_daily"}, spec.OutputNames())
}

func TestSpecification_Lookups(t *testing.T) {
	spec := salesSpec()

	assert.Equal(t, domain.ArtifactSource, spec.Kind("raw_sales"))
	assert.Equal(t, domain.ArtifactTransformation, spec.Kind("sales_weekly"))
	assert.Equal(t, domain.ArtifactUnknown, spec.Kind("orders"))
	assert.Equal(t, "transformation", spec.Kind("sales_daily").String())

	src, ok := spec.Source("raw_sales")
	require.True(t, ok)
	assert.Equal(t, "1h", src.RefreshInterval)

	tr, ok := spec.Transformation("sales_weekly")
	require.True(t, ok)
	assert.Equal(t, "weekly", tr.Name)

	assert.Equal(t, []string{"raw_sales", "sales_daily", "sales_weekly"}, spec.AvailableNames())
	assert.Len(t, spec.Serving().Dashboards, 1)
}
