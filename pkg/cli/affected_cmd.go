package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAffectedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "affected NAME...",
		Short: "List everything that must be recomputed when artifacts change",
		Long: "Prints the changed names plus every artifact downstream of them, in declaration order. " +
			"Names the stack does not know are echoed back at the end.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			stack, err := a.loadStack(false)
			if err != nil {
				return err
			}

			affected := stack.spec.BuildDependencyGraph().AffectedBy(args...)
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string][]string{
					"changed":  args,
					"affected": affected,
				})
			}
			for _, name := range affected {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
