package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type violationJSON struct {
	Kind    string   `json:"kind"`
	Subject string   `json:"subject,omitempty"`
	Nodes   []string `json:"nodes,omitempty"`
	Message string   `json:"message"`
}

func newValidateCmd(a *app) *cobra.Command {
	var allowUnknownFields bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the stack definition offline",
		Long: "Reads the stack YAML, checks its structure, and validates the dependency graph: " +
			"cycles, duplicate names, unknown inputs, and dashboard queries naming unknown tables.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			stack, err := a.loadStack(allowUnknownFields)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				structural := make([]string, len(stack.structural))
				for i, e := range stack.structural {
					structural[i] = e.Error()
				}
				violations := make([]violationJSON, len(stack.result.Violations))
				for i, v := range stack.result.Violations {
					violations[i] = violationJSON{Kind: string(v.Kind), Subject: v.Subject, Nodes: v.Nodes, Message: v.Message}
				}
				if err := printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"valid":      stack.ok(),
					"errors":     structural,
					"violations": violations,
				}); err != nil {
					return err
				}
				if !stack.ok() {
					return &exitError{code: 1}
				}
				return nil
			}

			if !stack.ok() {
				return a.reportProblems(cmd.ErrOrStderr(), stack)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stack is valid: %d source(s), %d transformation(s), %d dashboard(s).\n",
				len(stack.state.Sources), len(stack.state.Transformations), len(stack.state.Dashboards))
			return nil
		},
	}

	cmd.Flags().BoolVar(&allowUnknownFields, "allow-unknown-fields", false, "Allow unknown YAML fields in the stack definition")
	return cmd
}
