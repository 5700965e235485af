package declarative

import (
	"fmt"
	"strings"

	"duckstack/internal/ddl"
	"duckstack/internal/domain"
	"duckstack/internal/render"
	"duckstack/internal/service/scheduler"
)

// ValidationError represents a single validation problem.
type ValidationError struct {
	Path    string // e.g. "source[raw_sales].schema[2]"
	Message string
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Validate performs structural checks on the loaded state and returns every
// problem found. Dependency-level checks (cycles, unknown inputs, duplicate
// outputs, serving references) belong to the pipeline validator and run on
// the converted specification.
func Validate(state *DesiredState) []ValidationError {
	var errs []ValidationError

	for i, src := range state.Sources {
		validateSource(i, src, &errs)
	}
	for i, t := range state.Transformations {
		validateTransformation(i, t, &errs)
	}
	slugs := make(map[string]string, len(state.Dashboards))
	for i, d := range state.Dashboards {
		validateDashboard(i, d, &errs)
		if strings.TrimSpace(d.Name) == "" {
			continue
		}
		slug := render.Slug(d.Name)
		switch prev, ok := slugs[slug]; {
		case !ok:
			slugs[slug] = d.Name
		case prev == d.Name:
			addErr(&errs, label(KindDashboard, i, d.Name), "duplicate dashboard %q", d.Name)
		default:
			addErr(&errs, label(KindDashboard, i, d.Name), "file name %q already used by dashboard %q", slug, prev)
		}
	}
	return errs
}

func addErr(errs *[]ValidationError, path, msg string, args ...any) {
	*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf(msg, args...)})
}

// label names an entry by index and, when it has one, by name.
func label(kind ResourceKind, i int, name string) string {
	if name == "" {
		return fmt.Sprintf("%s[%d]", kind, i)
	}
	return fmt.Sprintf("%s[%s]", kind, name)
}

func validateRelation(errs *[]ValidationError, path, field, name string) {
	if name == "" {
		addErr(errs, path, "%s is required", field)
		return
	}
	for _, part := range strings.Split(name, ".") {
		if err := ddl.ValidateIdentifier(part); err != nil {
			addErr(errs, path, "%s %q: %v", field, name, err)
			return
		}
	}
}

func validateSchema(errs *[]ValidationError, path string, cols []ColumnDef) {
	seen := make(map[string]bool, len(cols))
	for j, col := range cols {
		colPath := fmt.Sprintf("%s.schema[%d]", path, j)
		if col.Name == "" {
			addErr(errs, colPath, "name is required")
		} else if seen[strings.ToLower(col.Name)] {
			addErr(errs, colPath, "duplicate column %q", col.Name)
		}
		seen[strings.ToLower(col.Name)] = true
		if !domain.ValidDataTypes[domain.DataType(strings.ToLower(col.Type))] {
			addErr(errs, colPath, "unsupported data type %q", col.Type)
		}
	}
}

func validateSource(i int, src SourceSpec, errs *[]ValidationError) {
	path := label(KindSource, i, src.Name)
	validateRelation(errs, path, "name", src.Name)
	validateSchema(errs, path, src.Schema)

	if src.Location == "" && len(src.Schema) == 0 {
		addErr(errs, path, "a source without a location needs a schema to generate sample data")
	}
	if src.Location == "" && src.Format != "" {
		addErr(errs, path, "format %q given without a location", src.Format)
	}
	if src.Location != "" {
		if _, err := ddl.ReadFile(src.Location, src.Format); err != nil {
			addErr(errs, path, "%v", err)
		}
	}
	if src.RefreshInterval != "" {
		if _, err := scheduler.ParseInterval(src.RefreshInterval); err != nil {
			addErr(errs, path, "%v", err)
		}
	}
}

func validateTransformation(i int, t TransformationSpec, errs *[]ValidationError) {
	path := label(KindTransformation, i, t.Name)
	if t.Name == "" {
		addErr(errs, path, "name is required")
	}
	validateRelation(errs, path, "output", t.Output)
	validateSchema(errs, path, t.Schema)

	if len(t.Inputs) == 0 {
		addErr(errs, path, "at least one input is required")
	}
	for j, in := range t.Inputs {
		if strings.TrimSpace(in) == "" {
			addErr(errs, fmt.Sprintf("%s.inputs[%d]", path, j), "input name is required")
		}
	}

	inputs := make(map[string]bool, len(t.Inputs))
	for _, in := range t.Inputs {
		inputs[in] = true
	}
	for j, join := range t.Joins {
		if !inputs[join.Input] {
			addErr(errs, fmt.Sprintf("%s.joins[%d]", path, j), "join input %q is not listed in inputs", join.Input)
		}
	}

	if strings.TrimSpace(t.SQL) != "" {
		if len(t.GroupBy) > 0 || len(t.Aggregations) > 0 || len(t.Filters) > 0 || len(t.Joins) > 0 {
			addErr(errs, path, "sql cannot be combined with group_by, aggregations, filters, or joins")
		}
		return
	}
	if len(t.Inputs) == 0 {
		return
	}
	// Composition errors surface now instead of at execution time.
	if _, err := ddl.ComposeSelect(toTransformation(t)); err != nil {
		addErr(errs, path, "%v", err)
	}
}

func validateDashboard(i int, d DashboardSpec, errs *[]ValidationError) {
	path := label(KindDashboard, i, d.Name)
	if strings.TrimSpace(d.Name) == "" {
		addErr(errs, path, "name is required")
	}
	if d.RefreshInterval != "" {
		if _, err := scheduler.ParseInterval(d.RefreshInterval); err != nil {
			addErr(errs, path, "%v", err)
		}
	}

	metricNames := make(map[string]bool, len(d.Metrics))
	for j, m := range d.Metrics {
		mPath := fmt.Sprintf("%s.metrics[%d]", path, j)
		if m.Name == "" {
			addErr(errs, mPath, "name is required")
		} else if metricNames[m.Name] {
			addErr(errs, mPath, "duplicate metric %q", m.Name)
		}
		metricNames[m.Name] = true
		if strings.TrimSpace(m.Query) == "" {
			addErr(errs, mPath, "query is required")
		}
	}

	for j, c := range d.Charts {
		cPath := fmt.Sprintf("%s.charts[%d]", path, j)
		if c.Name == "" {
			addErr(errs, cPath, "name is required")
		}
		if !domain.ValidChartTypes[domain.ChartType(strings.ToLower(c.Type))] {
			addErr(errs, cPath, "unsupported chart type %q", c.Type)
		}
		if strings.TrimSpace(c.Query) == "" {
			addErr(errs, cPath, "query is required")
		}
	}
}
