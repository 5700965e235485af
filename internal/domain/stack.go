package domain

// DataType is a column type understood by the ingestion and execution engine.
type DataType string

// Supported column data types.
const (
	DataTypeInteger   DataType = "integer"
	DataTypeFloat     DataType = "float"
	DataTypeString    DataType = "string"
	DataTypeTimestamp DataType = "timestamp"
	DataTypeBoolean   DataType = "boolean"
	DataTypeDate      DataType = "date"
)

// ValidDataTypes lists every accepted DataType.
var ValidDataTypes = map[DataType]bool{
	DataTypeInteger: true, DataTypeFloat: true, DataTypeString: true,
	DataTypeTimestamp: true, DataTypeBoolean: true, DataTypeDate: true,
}

// ChartType is the visual form of a dashboard chart.
type ChartType string

// Supported chart types.
const (
	ChartLine    ChartType = "line"
	ChartBar     ChartType = "bar"
	ChartScatter ChartType = "scatter"
	ChartTable   ChartType = "table"
	ChartMetric  ChartType = "metric"
)

// ValidChartTypes lists every accepted ChartType.
var ValidChartTypes = map[ChartType]bool{
	ChartLine: true, ChartBar: true, ChartScatter: true, ChartTable: true, ChartMetric: true,
}

// ArtifactKind is the closed set of roles an artifact name can play.
type ArtifactKind int

// Artifact kinds. A name is either a source or exactly one transformation output.
const (
	ArtifactUnknown ArtifactKind = iota
	ArtifactSource
	ArtifactTransformation
)

func (k ArtifactKind) String() string {
	switch k {
	case ArtifactSource:
		return "source"
	case ArtifactTransformation:
		return "transformation"
	default:
		return "unknown"
	}
}

// Column describes one column of a table schema.
type Column struct {
	Name     string
	Type     DataType
	Nullable bool
}

// Schema is an ordered list of columns.
type Schema struct {
	Columns []Column
}

// Source is a raw input table supplied by the ingestion collaborator.
type Source struct {
	Name            string
	Schema          Schema
	RefreshInterval string // e.g. "1h" or a cron expression; empty = never
	RetentionPeriod string // informational, e.g. "1y"
	Location        string // file path or URL; empty = generated sample data
	Format          string // csv, parquet, json; empty = inferred from Location
}

// Aggregation is one aggregate expression of a transformation.
type Aggregation struct {
	Function string // sum, count, avg, min, max
	Column   string // "*" allowed for count
	Alias    string
}

// Filter is a simple predicate applied before aggregation.
type Filter struct {
	Column   string
	Operator string // =, !=, <, <=, >, >=
	Value    string
}

// Join attaches another input to the primary input of a transformation.
type Join struct {
	Input string
	On    string // raw SQL join condition
	Type  string // inner, left, right, full
}

// Transformation derives exactly one output artifact from its inputs.
// Everything after Output is opaque to the dependency model and is only
// interpreted by the execution collaborator.
type Transformation struct {
	Name         string
	Inputs       []string
	Output       string
	Schema       Schema
	SQL          string // explicit SELECT; takes precedence over the parts below
	GroupBy      []string
	Aggregations []Aggregation
	Filters      []Filter
	Joins        []Join
}

// Metric is a single-value query shown on a dashboard.
type Metric struct {
	Name        string
	Query       string
	Format      string
	Description string
}

// Chart is a query rendered as a visualization.
type Chart struct {
	Name    string
	Type    ChartType
	Query   string
	XAxis   string
	YAxis   string
	ColorBy string
}

// Dashboard groups metrics and charts.
type Dashboard struct {
	Name            string
	Metrics         []Metric
	Charts          []Chart
	RefreshInterval string
	AccessRoles     []string
}

// ServingLayer is the set of dashboards reading from computed artifacts.
type ServingLayer struct {
	Dashboards []Dashboard
}

// Clone returns a deep copy of the transformation.
func (t Transformation) Clone() Transformation {
	out := t
	out.Inputs = append([]string(nil), t.Inputs...)
	out.Schema = t.Schema.Clone()
	out.GroupBy = append([]string(nil), t.GroupBy...)
	out.Aggregations = append([]Aggregation(nil), t.Aggregations...)
	out.Filters = append([]Filter(nil), t.Filters...)
	out.Joins = append([]Join(nil), t.Joins...)
	return out
}

// Clone returns a deep copy of the schema.
func (s Schema) Clone() Schema {
	return Schema{Columns: append([]Column(nil), s.Columns...)}
}

// Clone returns a deep copy of the source.
func (s Source) Clone() Source {
	out := s
	out.Schema = s.Schema.Clone()
	return out
}

// Clone returns a deep copy of the serving layer.
func (l ServingLayer) Clone() ServingLayer {
	out := ServingLayer{Dashboards: make([]Dashboard, len(l.Dashboards))}
	for i, d := range l.Dashboards {
		d.Metrics = append([]Metric(nil), d.Metrics...)
		d.Charts = append([]Chart(nil), d.Charts...)
		d.AccessRoles = append([]string(nil), d.AccessRoles...)
		out.Dashboards[i] = d
	}
	return out
}
