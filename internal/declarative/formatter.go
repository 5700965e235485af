package declarative

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

// FormatText writes a human-readable change plan to w.
// If noColor is true, ANSI codes are suppressed.
func FormatText(w io.Writer, plan *Plan, noColor bool) {
	c := func(code string) string {
		if noColor {
			return ""
		}
		return code
	}

	if !plan.HasChanges() {
		fmt.Fprintln(w, "No changes. Stack configuration is unchanged.")
		return
	}

	// Group actions by file path for section headers.
	type group struct {
		path    string
		actions []Action
	}
	var groups []group
	seen := map[string]int{}
	for _, a := range plan.Actions {
		p := a.FilePath
		if idx, ok := seen[p]; ok {
			groups[idx].actions = append(groups[idx].actions, a)
		} else {
			seen[p] = len(groups)
			groups = append(groups, group{path: p, actions: []Action{a}})
		}
	}

	for _, g := range groups {
		if g.path != "" {
			fmt.Fprintf(w, "\n%s# %s%s\n", c(colorCyan), g.path, c(colorReset))
		} else {
			fmt.Fprintf(w, "\n%s# (removed)%s\n", c(colorCyan), c(colorReset))
		}

		for _, a := range g.actions {
			switch a.Operation {
			case OpCreate:
				fmt.Fprintf(w, "  %s+%s %s %q added\n",
					c(colorGreen), c(colorReset), a.ResourceKind, a.ResourceName)
				if detail := describe(a.Desired); detail != "" {
					fmt.Fprintf(w, "      %s%s%s\n", c(colorDim), detail, c(colorReset))
				}

			case OpUpdate:
				fmt.Fprintf(w, "  %s~%s %s %q changed\n",
					c(colorYellow), c(colorReset), a.ResourceKind, a.ResourceName)
				for _, d := range a.Changes {
					fmt.Fprintf(w, "      %s: %q → %q\n", d.Field, d.OldValue, d.NewValue)
				}

			case OpDelete:
				fmt.Fprintf(w, "  %s-%s %s %q removed\n",
					c(colorRed), c(colorReset), a.ResourceKind, a.ResourceName)
			}
		}
	}

	s := plan.Summary()
	fmt.Fprintf(w, "\n%sChanges:%s %d added, %d changed, %d removed.\n",
		c(colorDim), c(colorReset), s.Creates, s.Updates, s.Deletes)
}

// describe returns a one-line summary of a created resource.
func describe(desired any) string {
	switch d := desired.(type) {
	case SourceSpec:
		parts := []string{fmt.Sprintf("%d columns", len(d.Schema))}
		if d.Location != "" {
			parts = append(parts, "location "+d.Location)
		}
		if d.RefreshInterval != "" {
			parts = append(parts, "every "+d.RefreshInterval)
		}
		return strings.Join(parts, ", ")
	case TransformationSpec:
		return fmt.Sprintf("%s → %s", strings.Join(d.Inputs, ", "), d.Output)
	case DashboardSpec:
		return fmt.Sprintf("%d metrics, %d charts", len(d.Metrics), len(d.Charts))
	default:
		return ""
	}
}

// FormatJSON writes the change plan as JSON to w.
func FormatJSON(w io.Writer, plan *Plan) error {
	type jsonAction struct {
		Operation    string      `json:"operation"`
		ResourceType string      `json:"resource_type"`
		ResourceName string      `json:"resource_name"`
		Path         string      `json:"path,omitempty"`
		Changes      []FieldDiff `json:"changes,omitempty"`
	}
	type jsonPlan struct {
		Actions          []jsonAction `json:"actions"`
		ChangedArtifacts []string     `json:"changed_artifacts,omitempty"`
		Summary          PlanSummary  `json:"summary"`
	}

	jp := jsonPlan{
		Actions:          make([]jsonAction, 0, len(plan.Actions)),
		ChangedArtifacts: plan.ChangedArtifacts(),
		Summary:          plan.Summary(),
	}
	for _, a := range plan.Actions {
		ja := jsonAction{
			Operation:    a.Operation.String(),
			ResourceType: a.ResourceKind.String(),
			ResourceName: a.ResourceName,
			Path:         a.FilePath,
		}
		if len(a.Changes) > 0 {
			ja.Changes = a.Changes
		}
		jp.Actions = append(jp.Actions, ja)
	}

	data, err := json.MarshalIndent(jp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
