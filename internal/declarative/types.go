package declarative

// Document is the generic envelope parsed first to determine Kind.
type Document struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
}

// ObjectMeta holds common metadata for named documents.
type ObjectMeta struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty"`
}

// StackDoc declares a complete stack in one file.
type StackDoc struct {
	APIVersion string     `yaml:"apiVersion"`
	Kind       string     `yaml:"kind"`
	Metadata   ObjectMeta `yaml:"metadata"`
	Spec       StackSpec  `yaml:"spec"`
}

// StackSpec is the body of a Stack document.
type StackSpec struct {
	Sources         []SourceSpec         `yaml:"sources,omitempty"`
	Transformations []TransformationSpec `yaml:"transformations,omitempty"`
	Dashboards      []DashboardSpec      `yaml:"dashboards,omitempty"`
}

// SourceListDoc declares sources in a sources/ directory file.
type SourceListDoc struct {
	APIVersion string       `yaml:"apiVersion"`
	Kind       string       `yaml:"kind"`
	Sources    []SourceSpec `yaml:"sources"`
}

// TransformationListDoc declares transformations in a transformations/ file.
type TransformationListDoc struct {
	APIVersion      string               `yaml:"apiVersion"`
	Kind            string               `yaml:"kind"`
	Transformations []TransformationSpec `yaml:"transformations"`
}

// DashboardListDoc declares dashboards in a dashboards/ file.
type DashboardListDoc struct {
	APIVersion string          `yaml:"apiVersion"`
	Kind       string          `yaml:"kind"`
	Dashboards []DashboardSpec `yaml:"dashboards"`
}

// ColumnDef is one schema column.
type ColumnDef struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable *bool  `yaml:"nullable,omitempty"` // default true
}

// SourceSpec declares a raw input table.
type SourceSpec struct {
	Name            string      `yaml:"name"`
	Schema          []ColumnDef `yaml:"schema,omitempty"`
	RefreshInterval string      `yaml:"refresh_interval,omitempty"`
	RetentionPeriod string      `yaml:"retention_period,omitempty"`
	Location        string      `yaml:"location,omitempty"`
	Format          string      `yaml:"format,omitempty"`
}

// AggregationSpec is one aggregate of a composed transformation.
type AggregationSpec struct {
	Function string `yaml:"function"`
	Column   string `yaml:"column"`
	Alias    string `yaml:"alias,omitempty"`
}

// FilterSpec is one predicate of a composed transformation.
type FilterSpec struct {
	Column   string `yaml:"column"`
	Operator string `yaml:"operator"`
	Value    string `yaml:"value"`
}

// JoinSpec attaches another input.
type JoinSpec struct {
	Input string `yaml:"input"`
	On    string `yaml:"on"`
	Type  string `yaml:"type,omitempty"`
}

// TransformationSpec declares a transformation producing one output.
type TransformationSpec struct {
	Name         string            `yaml:"name"`
	Inputs       []string          `yaml:"inputs"`
	Output       string            `yaml:"output"`
	Schema       []ColumnDef       `yaml:"schema,omitempty"`
	SQL          string            `yaml:"sql,omitempty"`
	GroupBy      []string          `yaml:"group_by,omitempty"`
	Aggregations []AggregationSpec `yaml:"aggregations,omitempty"`
	Filters      []FilterSpec      `yaml:"filters,omitempty"`
	Joins        []JoinSpec        `yaml:"joins,omitempty"`
}

// MetricSpec is a single-value dashboard query.
type MetricSpec struct {
	Name        string `yaml:"name"`
	Query       string `yaml:"query"`
	Format      string `yaml:"format,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// ChartSpec is a dashboard visualization.
type ChartSpec struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Query   string `yaml:"query"`
	XAxis   string `yaml:"x_axis,omitempty"`
	YAxis   string `yaml:"y_axis,omitempty"`
	ColorBy string `yaml:"color_by,omitempty"`
}

// DashboardSpec declares a dashboard.
type DashboardSpec struct {
	Name            string       `yaml:"name"`
	RefreshInterval string       `yaml:"refresh_interval,omitempty"`
	AccessRoles     []string     `yaml:"access_roles,omitempty"`
	Metrics         []MetricSpec `yaml:"metrics,omitempty"`
	Charts          []ChartSpec  `yaml:"charts,omitempty"`
}

// DesiredState is everything loaded from a stack file or directory, in
// file and declaration order. FilePaths maps "<kind>/<name>" to the file
// that declared it.
type DesiredState struct {
	Name            string
	Sources         []SourceSpec
	Transformations []TransformationSpec
	Dashboards      []DashboardSpec
	FilePaths       map[string]string
}

func (s *DesiredState) record(kind ResourceKind, name, path string) {
	if s.FilePaths == nil {
		s.FilePaths = make(map[string]string)
	}
	key := kind.String() + "/" + name
	if _, ok := s.FilePaths[key]; !ok {
		s.FilePaths[key] = path
	}
}

func (s *DesiredState) filePath(kind ResourceKind, name string) string {
	return s.FilePaths[kind.String()+"/"+name]
}

func (s *DesiredState) addStack(spec StackSpec, path string) {
	s.addSources(spec.Sources, path)
	s.addTransformations(spec.Transformations, path)
	s.addDashboards(spec.Dashboards, path)
}

func (s *DesiredState) addSources(sources []SourceSpec, path string) {
	for _, src := range sources {
		s.Sources = append(s.Sources, src)
		s.record(KindSource, src.Name, path)
	}
}

func (s *DesiredState) addTransformations(ts []TransformationSpec, path string) {
	for _, t := range ts {
		s.Transformations = append(s.Transformations, t)
		s.record(KindTransformation, t.Name, path)
	}
}

func (s *DesiredState) addDashboards(ds []DashboardSpec, path string) {
	for _, d := range ds {
		s.Dashboards = append(s.Dashboards, d)
		s.record(KindDashboard, d.Name, path)
	}
}
