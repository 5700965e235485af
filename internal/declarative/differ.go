package declarative

import (
	"fmt"
	"strings"
)

// Diff compares a previously loaded state against a newly loaded one and
// returns a Plan describing what changed. Entries are matched by name; when
// a name is declared twice only the first declaration is compared.
func Diff(previous, next *DesiredState) *Plan {
	plan := &Plan{}
	diffSources(plan, next, previous.Sources, next.Sources)
	diffTransformations(plan, next, previous.Transformations, next.Transformations)
	diffDashboards(plan, next, previous.Dashboards, next.Dashboards)
	plan.SortActions()
	return plan
}

// === Helpers ===

func addCreate(plan *Plan, kind ResourceKind, name, filePath string, desired any) {
	plan.Actions = append(plan.Actions, Action{
		Operation:    OpCreate,
		ResourceKind: kind,
		ResourceName: name,
		FilePath:     filePath,
		Desired:      desired,
	})
}

func addUpdate(plan *Plan, kind ResourceKind, name, filePath string, desired, actual any, changes []FieldDiff) {
	plan.Actions = append(plan.Actions, Action{
		Operation:    OpUpdate,
		ResourceKind: kind,
		ResourceName: name,
		FilePath:     filePath,
		Desired:      desired,
		Actual:       actual,
		Changes:      changes,
	})
}

func addDelete(plan *Plan, kind ResourceKind, name string, actual any) {
	plan.Actions = append(plan.Actions, Action{
		Operation:    OpDelete,
		ResourceKind: kind,
		ResourceName: name,
		Actual:       actual,
	})
}

func diffField(changes *[]FieldDiff, field, oldVal, newVal string) {
	if oldVal != newVal {
		*changes = append(*changes, FieldDiff{Field: field, OldValue: oldVal, NewValue: newVal})
	}
}

func diffListField(changes *[]FieldDiff, field string, oldVal, newVal []string) {
	diffField(changes, field, strings.Join(oldVal, ","), strings.Join(newVal, ","))
}

// formatSchema returns a stable representation like "id:integer,name:string?".
func formatSchema(cols []ColumnDef) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c.Name + ":" + strings.ToLower(c.Type)
		if c.Nullable != nil && !*c.Nullable {
			parts[i] += "!"
		}
	}
	return strings.Join(parts, ",")
}

// indexByName maps each name to its first position.
func indexByName[T any](items []T, name func(T) string) map[string]T {
	m := make(map[string]T, len(items))
	for _, it := range items {
		n := name(it)
		if _, ok := m[n]; !ok {
			m[n] = it
		}
	}
	return m
}

// === Sources ===

func diffSources(plan *Plan, next *DesiredState, previous, desired []SourceSpec) {
	name := func(s SourceSpec) string { return s.Name }
	old := indexByName(previous, name)
	seen := make(map[string]bool)

	for _, d := range desired {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		a, ok := old[d.Name]
		if !ok {
			addCreate(plan, KindSource, d.Name, next.filePath(KindSource, d.Name), d)
			continue
		}
		var changes []FieldDiff
		diffField(&changes, "schema", formatSchema(a.Schema), formatSchema(d.Schema))
		diffField(&changes, "refresh_interval", a.RefreshInterval, d.RefreshInterval)
		diffField(&changes, "retention_period", a.RetentionPeriod, d.RetentionPeriod)
		diffField(&changes, "location", a.Location, d.Location)
		diffField(&changes, "format", a.Format, d.Format)
		if len(changes) > 0 {
			addUpdate(plan, KindSource, d.Name, next.filePath(KindSource, d.Name), d, a, changes)
		}
	}
	for _, a := range previous {
		if !seen[a.Name] {
			seen[a.Name] = true
			addDelete(plan, KindSource, a.Name, a)
		}
	}
}

// === Transformations ===

func formatAggregations(aggs []AggregationSpec) []string {
	out := make([]string, len(aggs))
	for i, a := range aggs {
		out[i] = fmt.Sprintf("%s(%s)", strings.ToLower(a.Function), a.Column)
		if a.Alias != "" {
			out[i] += " as " + a.Alias
		}
	}
	return out
}

func formatFilters(filters []FilterSpec) []string {
	out := make([]string, len(filters))
	for i, f := range filters {
		out[i] = fmt.Sprintf("%s %s %s", f.Column, f.Operator, f.Value)
	}
	return out
}

func formatJoins(joins []JoinSpec) []string {
	out := make([]string, len(joins))
	for i, j := range joins {
		out[i] = fmt.Sprintf("%s %s on %s", strings.ToLower(j.Type), j.Input, j.On)
	}
	return out
}

func diffTransformations(plan *Plan, next *DesiredState, previous, desired []TransformationSpec) {
	name := func(t TransformationSpec) string { return t.Name }
	old := indexByName(previous, name)
	seen := make(map[string]bool)

	for _, d := range desired {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		a, ok := old[d.Name]
		if !ok {
			addCreate(plan, KindTransformation, d.Name, next.filePath(KindTransformation, d.Name), d)
			continue
		}
		var changes []FieldDiff
		diffListField(&changes, "inputs", a.Inputs, d.Inputs)
		diffField(&changes, "output", a.Output, d.Output)
		diffField(&changes, "schema", formatSchema(a.Schema), formatSchema(d.Schema))
		diffField(&changes, "sql", strings.TrimSpace(a.SQL), strings.TrimSpace(d.SQL))
		diffListField(&changes, "group_by", a.GroupBy, d.GroupBy)
		diffListField(&changes, "aggregations", formatAggregations(a.Aggregations), formatAggregations(d.Aggregations))
		diffListField(&changes, "filters", formatFilters(a.Filters), formatFilters(d.Filters))
		diffListField(&changes, "joins", formatJoins(a.Joins), formatJoins(d.Joins))
		if len(changes) > 0 {
			addUpdate(plan, KindTransformation, d.Name, next.filePath(KindTransformation, d.Name), d, a, changes)
		}
	}
	for _, a := range previous {
		if !seen[a.Name] {
			seen[a.Name] = true
			addDelete(plan, KindTransformation, a.Name, a)
		}
	}
}

// === Dashboards ===

func formatMetrics(metrics []MetricSpec) []string {
	out := make([]string, len(metrics))
	for i, m := range metrics {
		out[i] = fmt.Sprintf("%s=%s", m.Name, strings.TrimSpace(m.Query))
	}
	return out
}

func formatCharts(charts []ChartSpec) []string {
	out := make([]string, len(charts))
	for i, c := range charts {
		out[i] = fmt.Sprintf("%s[%s]=%s", c.Name, strings.ToLower(c.Type), strings.TrimSpace(c.Query))
	}
	return out
}

func diffDashboards(plan *Plan, next *DesiredState, previous, desired []DashboardSpec) {
	name := func(d DashboardSpec) string { return d.Name }
	old := indexByName(previous, name)
	seen := make(map[string]bool)

	for _, d := range desired {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		a, ok := old[d.Name]
		if !ok {
			addCreate(plan, KindDashboard, d.Name, next.filePath(KindDashboard, d.Name), d)
			continue
		}
		var changes []FieldDiff
		diffField(&changes, "refresh_interval", a.RefreshInterval, d.RefreshInterval)
		diffListField(&changes, "access_roles", a.AccessRoles, d.AccessRoles)
		diffListField(&changes, "metrics", formatMetrics(a.Metrics), formatMetrics(d.Metrics))
		diffListField(&changes, "charts", formatCharts(a.Charts), formatCharts(d.Charts))
		if len(changes) > 0 {
			addUpdate(plan, KindDashboard, d.Name, next.filePath(KindDashboard, d.Name), d, a, changes)
		}
	}
	for _, a := range previous {
		if !seen[a.Name] {
			seen[a.Name] = true
			addDelete(plan, KindDashboard, a.Name, a)
		}
	}
}
