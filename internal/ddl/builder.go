// Package ddl builds DuckDB statements that materialize sources and
// transformation outputs.
package ddl

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"duckstack/internal/domain"
)

// SampleEpoch is the first timestamp of generated sample data. Rows are one
// hour apart.
const SampleEpoch = "2024-01-01 00:00:00"

// CreateTableAs returns CREATE OR REPLACE TABLE "<table>" AS <query>.
func CreateTableAs(table, query string) (string, error) {
	if table == "" {
		return "", fmt.Errorf("table name is required")
	}
	query = strings.TrimRight(strings.TrimSpace(query), "; \n\t")
	if query == "" {
		return "", fmt.Errorf("query for %q is empty", table)
	}
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s AS %s", QuoteRelation(table), query), nil
}

// ReadFile returns a SELECT over a DuckDB file reader. An empty format is
// inferred from the path extension.
//
//	SELECT * FROM read_csv_auto('data/raw_sales.csv')
func ReadFile(location, format string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("location is required")
	}
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(location)), ".")
	}

	var readFunc string
	switch strings.ToLower(format) {
	case "csv", "tsv":
		readFunc = "read_csv_auto"
	case "parquet":
		readFunc = "read_parquet"
	case "json", "ndjson", "jsonl":
		readFunc = "read_json_auto"
	default:
		return "", fmt.Errorf("unsupported file format: %q", format)
	}
	return fmt.Sprintf("SELECT * FROM %s(%s)", readFunc, QuoteLiteral(location)), nil
}

// SampleData returns a SELECT generating deterministic rows for schema.
// Row i of a timestamp column is SampleEpoch plus i hours.
func SampleData(schema domain.Schema, rows int) (string, error) {
	if len(schema.Columns) == 0 {
		return "", fmt.Errorf("schema has no columns")
	}
	if rows < 1 {
		return "", fmt.Errorf("row count must be positive, got %d", rows)
	}

	exprs := make([]string, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		expr, err := sampleExpr(col)
		if err != nil {
			return "", err
		}
		exprs = append(exprs, expr+" AS "+QuoteIdentifier(col.Name))
	}
	return fmt.Sprintf("SELECT %s FROM range(%d) AS r(i)", strings.Join(exprs, ", "), rows), nil
}

func sampleExpr(col domain.Column) (string, error) {
	if col.Name == "" {
		return "", fmt.Errorf("column name is required")
	}
	typ, err := ColumnType(col.Type)
	if err != nil {
		return "", fmt.Errorf("column %q: %w", col.Name, err)
	}
	switch typ {
	case "TIMESTAMP":
		return fmt.Sprintf("TIMESTAMP '%s' + to_hours(i)", SampleEpoch), nil
	case "DATE":
		return fmt.Sprintf("CAST(TIMESTAMP '%s' + to_hours(i) AS DATE)", SampleEpoch), nil
	case "BIGINT":
		return "CAST((i * 37) % 1000 AS BIGINT)", nil
	case "DOUBLE":
		return "CAST(((i * 7919) % 100000) / 100.0 AS DOUBLE)", nil
	case "BOOLEAN":
		return "(i % 2 = 0)", nil
	default:
		return QuoteLiteral(col.Name+"_") + " || CAST(i % 10 AS VARCHAR)", nil
	}
}

var aggregateFuncs = map[string]bool{
	"sum": true, "count": true, "avg": true, "min": true, "max": true,
}

var filterOperators = map[string]bool{
	"=": true, "!=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true,
}

var joinTypes = map[string]string{
	"":      "INNER",
	"inner": "INNER",
	"left":  "LEFT",
	"right": "RIGHT",
	"full":  "FULL",
}

// ComposeSelect returns the SELECT producing t's output: the explicit SQL
// when present, otherwise one composed from the first input, joins, filters,
// aggregations, and group-by columns.
func ComposeSelect(t domain.Transformation) (string, error) {
	if sql := strings.TrimSpace(t.SQL); sql != "" {
		return strings.TrimRight(sql, "; \n\t"), nil
	}
	if len(t.Inputs) == 0 {
		return "", fmt.Errorf("transformation %q has neither SQL nor inputs", t.Name)
	}

	var selectList []string
	for _, col := range t.GroupBy {
		selectList = append(selectList, columnRef(col))
	}
	for _, agg := range t.Aggregations {
		expr, err := aggregateExpr(agg)
		if err != nil {
			return "", fmt.Errorf("transformation %q: %w", t.Name, err)
		}
		selectList = append(selectList, expr)
	}
	if len(selectList) == 0 {
		selectList = []string{"*"}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(selectList, ", "), QuoteRelation(t.Inputs[0]))

	for _, j := range t.Joins {
		kind, ok := joinTypes[strings.ToLower(j.Type)]
		if !ok {
			return "", fmt.Errorf("transformation %q: unsupported join type %q", t.Name, j.Type)
		}
		if strings.TrimSpace(j.On) == "" {
			return "", fmt.Errorf("transformation %q: join on %q needs a condition", t.Name, j.Input)
		}
		fmt.Fprintf(&b, " %s JOIN %s ON %s", kind, QuoteRelation(j.Input), j.On)
	}

	if len(t.Filters) > 0 {
		preds := make([]string, 0, len(t.Filters))
		for _, f := range t.Filters {
			if !filterOperators[f.Operator] {
				return "", fmt.Errorf("transformation %q: unsupported filter operator %q", t.Name, f.Operator)
			}
			preds = append(preds, fmt.Sprintf("%s %s %s", columnRef(f.Column), f.Operator, literal(f.Value)))
		}
		b.WriteString(" WHERE " + strings.Join(preds, " AND "))
	}

	if len(t.GroupBy) > 0 && len(t.Aggregations) > 0 {
		cols := make([]string, len(t.GroupBy))
		for i, col := range t.GroupBy {
			cols[i] = columnRef(col)
		}
		b.WriteString(" GROUP BY " + strings.Join(cols, ", "))
	}
	return b.String(), nil
}

func aggregateExpr(agg domain.Aggregation) (string, error) {
	fn := strings.ToLower(agg.Function)
	if !aggregateFuncs[fn] {
		return "", fmt.Errorf("unsupported aggregation function %q", agg.Function)
	}
	if agg.Column == "" {
		return "", fmt.Errorf("aggregation %s needs a column", fn)
	}
	arg := agg.Column
	if arg == "*" {
		if fn != "count" {
			return "", fmt.Errorf("%s(*) is not allowed", fn)
		}
	} else {
		arg = columnRef(arg)
	}
	alias := agg.Alias
	if alias == "" {
		alias = fn + "_" + strings.Trim(agg.Column, "*")
		alias = strings.TrimSuffix(alias, "_")
	}
	return fmt.Sprintf("%s(%s) AS %s", strings.ToUpper(fn), arg, QuoteIdentifier(alias)), nil
}

var numberRe = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// literal renders numbers and booleans bare and everything else as a
// quoted string.
func literal(v string) string {
	if numberRe.MatchString(v) {
		return v
	}
	switch strings.ToLower(v) {
	case "true", "false", "null":
		return strings.ToUpper(v)
	}
	return QuoteLiteral(v)
}
