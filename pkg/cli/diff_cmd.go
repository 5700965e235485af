package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"duckstack/internal/declarative"
)

func newDiffCmd(a *app) *cobra.Command {
	var exitCode bool

	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Compare two stack definitions",
		Long: "Loads two stack files or directories and shows the sources, transformations, " +
			"and dashboards that were added, changed, or removed, plus the artifacts to recompute.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			previous, err := declarative.Load(args[0])
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			next, err := declarative.Load(args[1])
			if err != nil {
				return fmt.Errorf("load %s: %w", args[1], err)
			}

			plan := declarative.Diff(previous, next)
			w := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				if err := declarative.FormatJSON(w, plan); err != nil {
					return fmt.Errorf("format diff: %w", err)
				}
			} else {
				declarative.FormatText(w, plan, !useColor(w, a.noColor))
				if changed := plan.ChangedArtifacts(); len(changed) > 0 {
					affected := declarative.ToSpecification(next).BuildDependencyGraph().AffectedBy(changed...)
					fmt.Fprintf(w, "Recompute: %v\n", affected)
				}
			}

			// Exit code 2 if there are changes (useful for CI).
			if exitCode && plan.HasChanges() {
				return &exitError{code: 2}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "Exit with status 2 when the definitions differ")
	return cmd
}
