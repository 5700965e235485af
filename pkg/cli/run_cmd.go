package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"duckstack/internal/service/executor"
)

type runReportJSON struct {
	RunID        string          `json:"run_id"`
	State        string          `json:"state"`
	Violations   []violationJSON `json:"violations,omitempty"`
	Materialized []string        `json:"materialized"`
	Completed    []string        `json:"completed"`
	NotRun       []string        `json:"not_run,omitempty"`
	Transitions  []string        `json:"transitions"`
	DurationMS   int64           `json:"duration_ms"`
	OutputDir    string          `json:"output_dir,omitempty"`
	Error        string          `json:"error,omitempty"`
}

func toRunReportJSON(r *executor.RunReport, outputDir string) runReportJSON {
	out := runReportJSON{
		RunID:        r.RunID,
		State:        string(r.State),
		Materialized: nonNil(r.Materialized),
		Completed:    nonNil(r.Completed),
		NotRun:       r.NotRun,
		DurationMS:   r.Duration.Milliseconds(),
	}
	for _, v := range r.Violations {
		out.Violations = append(out.Violations, violationJSON{Kind: string(v.Kind), Subject: v.Subject, Nodes: v.Nodes, Message: v.Message})
	}
	for _, t := range r.Transitions {
		out.Transitions = append(out.Transitions, string(t.To))
	}
	if r.State == executor.StateDone {
		out.OutputDir = outputDir
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func printRunReport(w io.Writer, r *executor.RunReport, outputDir string, paint func(code, s string) string) {
	state := paint(colorGreen, string(r.State))
	if r.State == executor.StateFailed {
		state = paint(colorRed, string(r.State))
	}
	fmt.Fprintf(w, "Run %s %s in %s\n", r.RunID, state, r.Duration.Round(time.Millisecond))
	for _, v := range r.Violations {
		fmt.Fprintf(w, "  - %s\n", v.Error())
	}
	if len(r.Materialized) > 0 {
		fmt.Fprintf(w, "  materialized: %s\n", strings.Join(r.Materialized, ", "))
	}
	if len(r.Completed) > 0 {
		fmt.Fprintf(w, "  completed:    %s\n", strings.Join(r.Completed, ", "))
	}
	if len(r.NotRun) > 0 {
		fmt.Fprintf(w, "  not run:      %s\n", strings.Join(r.NotRun, ", "))
	}
	if r.State == executor.StateDone {
		fmt.Fprintf(w, "  dashboards:   %s\n", outputDir)
	}
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the stack once",
		Long: "Validates the stack, materializes every source, executes transformations in dependency order, " +
			"and writes dashboard files. Nothing is retried; the first failure stops the run.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			stack, err := a.loadStack(false)
			if err != nil {
				return err
			}
			if len(stack.structural) > 0 {
				return a.reportProblems(cmd.ErrOrStderr(), stack)
			}

			rt, err := a.newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			driver, err := executor.NewDriver(stack.spec, rt.collaborators(), a.executorOptions(rt)...)
			if err != nil {
				return err
			}
			report, runErr := driver.Run(cmd.Context())
			a.flushMetrics(rt)

			w := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				if err := printJSON(w, toRunReportJSON(report, a.cfg.OutputDir)); err != nil {
					return err
				}
				if runErr != nil {
					return &exitError{code: 1}
				}
				return nil
			}
			printRunReport(w, report, a.cfg.OutputDir, painter(useColor(w, a.noColor)))
			if runErr != nil {
				return &exitError{code: 1, err: runErr}
			}
			return nil
		},
	}
}
