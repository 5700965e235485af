package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"duckstack/internal/declarative"
	"duckstack/internal/service/executor"
	"duckstack/internal/service/pipeline"
	"duckstack/internal/service/scheduler"
	"duckstack/internal/service/tracker"
)

// watcher keeps a stack fresh: scheduled source refreshes and edits to the
// stack definition are reported to the tracker, whose single listener
// recomputes the affected artifacts.
type watcher struct {
	app     *app
	out     io.Writer
	collab  executor.Collaborators
	opts    []executor.Option
	logger  *slog.Logger
	tracker *tracker.Tracker
	sched   *scheduler.Scheduler

	mu        sync.Mutex // serializes refreshes and guards the fields below
	state     *declarative.DesiredState
	spec      *pipeline.Specification
	refresher *executor.Refresher
}

func newWatcher(a *app, out io.Writer, state *declarative.DesiredState, spec *pipeline.Specification,
	collab executor.Collaborators, opts []executor.Option) (*watcher, error) {
	refresher, err := executor.NewRefresher(spec, collab, opts...)
	if err != nil {
		return nil, err
	}
	w := &watcher{
		app:       a,
		out:       out,
		collab:    collab,
		opts:      opts,
		logger:    a.logger,
		tracker:   tracker.New(spec.BuildDependencyGraph(), a.logger),
		state:     state,
		spec:      spec,
		refresher: refresher,
	}
	w.sched = scheduler.New(w.tracker, a.logger)
	w.sched.Reload(spec)
	return w, nil
}

// listen registers the refresh listener. Refreshes run under mu so a cron
// tick and a reload never recompute concurrently.
func (w *watcher) listen(ctx context.Context) tracker.ListenerID {
	return w.tracker.RegisterListener(func(affected []string) {
		w.mu.Lock()
		defer w.mu.Unlock()
		_, _ = w.refresher.Refresh(ctx, affected)
	})
}

// reload reads the stack definition again. An unchanged or invalid
// definition keeps the current one. It reports whether a new definition
// was adopted.
func (w *watcher) reload(ctx context.Context) bool {
	next, err := declarative.Load(w.app.cfg.StackPath)
	if err != nil {
		w.logger.Warn("reload stack", "error", err)
		return false
	}

	w.mu.Lock()
	plan := declarative.Diff(w.state, next)
	if !plan.HasChanges() {
		w.mu.Unlock()
		return false
	}
	if errs := declarative.Validate(next); len(errs) > 0 {
		w.mu.Unlock()
		for _, e := range errs {
			w.logger.Warn("stack change rejected", "error", e.Error())
		}
		return false
	}
	spec := declarative.ToSpecification(next)
	refresher, err := executor.NewRefresher(spec, w.collab, w.opts...)
	if err != nil {
		w.mu.Unlock()
		w.logger.Warn("stack change rejected", "error", err)
		return false
	}

	declarative.FormatText(w.out, plan, true)
	w.state, w.spec, w.refresher = next, spec, refresher
	w.tracker.Replace(spec.BuildDependencyGraph())
	w.sched.Reload(spec)
	w.mu.Unlock()

	if changed := plan.ChangedArtifacts(); len(changed) > 0 {
		w.tracker.ReportChange(changed...)
	} else if plan.DashboardsChanged() {
		w.mu.Lock()
		_ = w.refresher.Rerender(ctx)
		w.mu.Unlock()
	}
	return true
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		poll time.Duration
		addr string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the stack and keep it fresh",
		Long: "Runs the stack once, then refreshes sources on their refresh_interval and " +
			"recomputes only what changed. Edits to the stack definition are picked up every --poll. " +
			"With --addr the dashboards and run metrics are served over HTTP. " +
			"Stops on interrupt.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			if poll <= 0 {
				return fmt.Errorf("--poll must be positive")
			}
			stack, err := a.loadStack(false)
			if err != nil {
				return err
			}
			if !stack.ok() {
				return a.reportProblems(cmd.ErrOrStderr(), stack)
			}

			rt, err := a.newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			opts := a.executorOptions(rt)

			driver, err := executor.NewDriver(stack.spec, rt.collaborators(), opts...)
			if err != nil {
				return err
			}
			report, runErr := driver.Run(ctx)
			a.flushMetrics(rt)
			printRunReport(out, report, a.cfg.OutputDir, painter(useColor(out, a.noColor)))
			if runErr != nil {
				return &exitError{code: 1, err: runErr}
			}

			w, err := newWatcher(a, out, stack.state, stack.spec, rt.collaborators(), opts)
			if err != nil {
				return err
			}
			w.listen(ctx)
			w.sched.Start()
			defer w.sched.Stop()

			if cmd.Flags().Changed("addr") {
				srv := a.newServer(rt.metrics.Registry())
				go func() {
					if err := srv.ListenAndServe(ctx, a.listenAddr(cmd, addr)); err != nil {
						a.logger.Error("dashboard server stopped", "error", err)
					}
				}()
			}
			a.logger.Info("watching stack", "config", a.cfg.StackPath, "scheduled", len(w.sched.Scheduled()), "poll", poll)

			ticker := time.NewTicker(poll)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					a.logger.Info("watch stopped")
					return nil
				case <-ticker.C:
					if w.reload(ctx) {
						a.flushMetrics(rt)
					}
				}
			}
		},
	}

	cmd.Flags().DurationVar(&poll, "poll", 2*time.Second, "How often the stack definition is checked for edits")
	cmd.Flags().StringVar(&addr, "addr", "", "Also serve dashboards and /metrics on this address")
	return cmd
}
