package declarative

// ResourceKind identifies a type of declared resource.
type ResourceKind int

// Resource kind constants, ordered by dependency layer.
const (
	KindSource         ResourceKind = iota // layer 0
	KindTransformation                     // layer 1
	KindDashboard                          // layer 2
)

// String returns a human-readable kebab-case name for the resource kind.
func (k ResourceKind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindTransformation:
		return "transformation"
	case KindDashboard:
		return "dashboard"
	default:
		return "unknown"
	}
}

// Layer returns the dependency layer for ordering. Sources feed
// transformations, which feed dashboards.
func (k ResourceKind) Layer() int {
	switch k {
	case KindSource:
		return 0
	case KindTransformation:
		return 1
	case KindDashboard:
		return 2
	default:
		return 99
	}
}

// Operation represents a planned change type.
type Operation int

const (
	// OpCreate indicates a resource was added.
	OpCreate Operation = iota
	// OpUpdate indicates a resource definition changed.
	OpUpdate
	// OpDelete indicates a resource was removed.
	OpDelete
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Known Kind strings used in YAML documents.
const (
	KindNameStack              = "Stack"
	KindNameSourceList         = "SourceList"
	KindNameTransformationList = "TransformationList"
	KindNameDashboardList      = "DashboardList"
)

// SupportedAPIVersion is the current API version for YAML documents.
const SupportedAPIVersion = "duckstack/v1"
