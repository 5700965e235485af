package declarative

import "sort"

// Action represents a single planned change between two loaded states.
type Action struct {
	Operation    Operation
	ResourceKind ResourceKind
	ResourceName string
	FilePath     string // declaring YAML file in the new state (empty for deletes)
	Desired      any    // the new spec (nil for Delete)
	Actual       any    // the previous spec (nil for Create)
	Changes      []FieldDiff
}

// FieldDiff describes a single field change within an Update action.
type FieldDiff struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// Plan is an ordered list of actions grouped by dependency layer.
type Plan struct {
	Actions []Action
}

// Summary returns counts of creates, updates, and deletes.
func (p *Plan) Summary() PlanSummary {
	var s PlanSummary
	for _, a := range p.Actions {
		switch a.Operation {
		case OpCreate:
			s.Creates++
		case OpUpdate:
			s.Updates++
		case OpDelete:
			s.Deletes++
		}
	}
	return s
}

// HasChanges returns true if the plan has any actions.
func (p *Plan) HasChanges() bool {
	return len(p.Actions) > 0
}

// PlanSummary holds counts of planned operations.
type PlanSummary struct {
	Creates int `json:"creates"`
	Updates int `json:"updates"`
	Deletes int `json:"deletes"`
}

// ChangedArtifacts returns the artifact names a created or updated source
// or transformation produces, in plan order. Feeding them to the change
// tracker yields everything that has to be recomputed.
func (p *Plan) ChangedArtifacts() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, a := range p.Actions {
		if a.Operation == OpDelete {
			continue
		}
		switch a.ResourceKind {
		case KindSource:
			add(a.ResourceName)
		case KindTransformation:
			if t, ok := a.Desired.(TransformationSpec); ok {
				add(t.Output)
			}
		}
	}
	return out
}

// DashboardsChanged reports whether any dashboard was added, changed, or removed.
func (p *Plan) DashboardsChanged() bool {
	for _, a := range p.Actions {
		if a.ResourceKind == KindDashboard {
			return true
		}
	}
	return false
}

// SortActions sorts actions by dependency layer (creates ascending, deletes descending).
// Deletes come after all creates and updates. Within the same layer and
// operation group, actions are sorted alphabetically by ResourceName.
func (p *Plan) SortActions() {
	sort.SliceStable(p.Actions, func(i, j int) bool {
		ai, aj := p.Actions[i], p.Actions[j]

		iIsDelete := ai.Operation == OpDelete
		jIsDelete := aj.Operation == OpDelete
		if iIsDelete != jIsDelete {
			return !iIsDelete
		}

		li := ai.ResourceKind.Layer()
		lj := aj.ResourceKind.Layer()
		if li != lj {
			if iIsDelete {
				return li > lj
			}
			return li < lj
		}
		return ai.ResourceName < aj.ResourceName
	})
}
