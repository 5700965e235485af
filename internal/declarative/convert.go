package declarative

import (
	"strings"

	"duckstack/internal/domain"
	"duckstack/internal/service/pipeline"
)

// Defaults applied when a dashboard or metric leaves a field empty.
const (
	DefaultDashboardRefresh = "5m"
	DefaultMetricFormat     = ",.0f"
)

// ToSpecification converts the loaded state into an immutable pipeline
// specification, preserving declaration order.
func ToSpecification(state *DesiredState) *pipeline.Specification {
	sources := make([]domain.Source, 0, len(state.Sources))
	for _, s := range state.Sources {
		sources = append(sources, toSource(s))
	}
	transformations := make([]domain.Transformation, 0, len(state.Transformations))
	for _, t := range state.Transformations {
		transformations = append(transformations, toTransformation(t))
	}
	serving := domain.ServingLayer{Dashboards: make([]domain.Dashboard, 0, len(state.Dashboards))}
	for _, d := range state.Dashboards {
		serving.Dashboards = append(serving.Dashboards, toDashboard(d))
	}
	return pipeline.NewSpecification(sources, transformations, serving)
}

func toSchema(cols []ColumnDef) domain.Schema {
	if len(cols) == 0 {
		return domain.Schema{}
	}
	out := domain.Schema{Columns: make([]domain.Column, len(cols))}
	for i, c := range cols {
		nullable := true
		if c.Nullable != nil {
			nullable = *c.Nullable
		}
		out.Columns[i] = domain.Column{
			Name:     c.Name,
			Type:     domain.DataType(strings.ToLower(c.Type)),
			Nullable: nullable,
		}
	}
	return out
}

func toSource(s SourceSpec) domain.Source {
	return domain.Source{
		Name:            s.Name,
		Schema:          toSchema(s.Schema),
		RefreshInterval: s.RefreshInterval,
		RetentionPeriod: s.RetentionPeriod,
		Location:        s.Location,
		Format:          strings.ToLower(s.Format),
	}
}

func toTransformation(t TransformationSpec) domain.Transformation {
	out := domain.Transformation{
		Name:    t.Name,
		Inputs:  append([]string(nil), t.Inputs...),
		Output:  t.Output,
		Schema:  toSchema(t.Schema),
		SQL:     t.SQL,
		GroupBy: append([]string(nil), t.GroupBy...),
	}
	for _, a := range t.Aggregations {
		out.Aggregations = append(out.Aggregations, domain.Aggregation{Function: a.Function, Column: a.Column, Alias: a.Alias})
	}
	for _, f := range t.Filters {
		out.Filters = append(out.Filters, domain.Filter{Column: f.Column, Operator: f.Operator, Value: f.Value})
	}
	for _, j := range t.Joins {
		out.Joins = append(out.Joins, domain.Join{Input: j.Input, On: j.On, Type: j.Type})
	}
	return out
}

func toDashboard(d DashboardSpec) domain.Dashboard {
	out := domain.Dashboard{
		Name:            d.Name,
		RefreshInterval: d.RefreshInterval,
		AccessRoles:     append([]string(nil), d.AccessRoles...),
	}
	if out.RefreshInterval == "" {
		out.RefreshInterval = DefaultDashboardRefresh
	}
	for _, m := range d.Metrics {
		format := m.Format
		if format == "" {
			format = DefaultMetricFormat
		}
		out.Metrics = append(out.Metrics, domain.Metric{
			Name: m.Name, Query: m.Query, Format: format, Description: m.Description,
		})
	}
	for _, c := range d.Charts {
		out.Charts = append(out.Charts, domain.Chart{
			Name:    c.Name,
			Type:    domain.ChartType(strings.ToLower(c.Type)),
			Query:   c.Query,
			XAxis:   c.XAxis,
			YAxis:   c.YAxis,
			ColorBy: c.ColorBy,
		})
	}
	return out
}
