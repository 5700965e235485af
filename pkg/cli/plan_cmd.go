package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"duckstack/internal/service/pipeline"
)

type planStep struct {
	Output string   `json:"output"`
	Name   string   `json:"transformation"`
	Inputs []string `json:"inputs"`
}

type executionPlan struct {
	Sources []string   `json:"sources"`
	Steps   []planStep `json:"steps"`
	Tiers   [][]string `json:"tiers"`
}

// buildPlan orders the selected transformations and groups them, with all
// sources, into tiers that could run concurrently.
func buildPlan(spec *pipeline.Specification, selector string) (*executionPlan, error) {
	order, err := pipeline.Select(spec, selector)
	if err != nil {
		return nil, err
	}
	tiers, err := spec.BuildDependencyGraph().Tiers()
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool, len(order))
	for _, out := range order {
		keep[out] = true
	}
	plan := &executionPlan{Sources: spec.SourceNames(), Steps: make([]planStep, 0, len(order))}
	for _, src := range plan.Sources {
		keep[src] = true
	}
	for _, out := range order {
		t, _ := spec.Transformation(out)
		plan.Steps = append(plan.Steps, planStep{Output: out, Name: t.Name, Inputs: t.Inputs})
	}
	for _, tier := range tiers {
		var kept []string
		for _, name := range tier {
			if keep[name] {
				kept = append(kept, name)
			}
		}
		if len(kept) > 0 {
			plan.Tiers = append(plan.Tiers, kept)
		}
	}
	return plan, nil
}

func newPlanCmd(a *app) *cobra.Command {
	var selector string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the execution order of the stack",
		Long: "Validates the stack and prints the order transformations would run in, " +
			"plus the dependency tiers. --select narrows the plan: name, name+, +name, +name+.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			stack, err := a.loadStack(false)
			if err != nil {
				return err
			}
			if !stack.ok() {
				return a.reportProblems(cmd.ErrOrStderr(), stack)
			}

			plan, err := buildPlan(stack.spec, selector)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), plan)
			}

			w := cmd.OutOrStdout()
			paint := painter(useColor(w, a.noColor))
			fmt.Fprintf(w, "%s (%d)\n", paint(colorBold, "Sources"), len(plan.Sources))
			for _, src := range plan.Sources {
				fmt.Fprintf(w, "  %s\n", src)
			}
			fmt.Fprintf(w, "\n%s (%d)\n", paint(colorBold, "Transformations"), len(plan.Steps))
			for i, step := range plan.Steps {
				fmt.Fprintf(w, "  %d. %s ← %s\n", i+1, paint(colorCyan, step.Output), strings.Join(step.Inputs, ", "))
			}
			fmt.Fprintf(w, "\n%s\n", paint(colorBold, "Tiers"))
			for i, tier := range plan.Tiers {
				fmt.Fprintf(w, "  %d: %s\n", i, strings.Join(tier, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&selector, "select", "s", "", "Transformation selector (name, name+, +name, +name+)")
	return cmd
}
