package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"duckstack/internal/domain"
	"duckstack/internal/graph"
	"duckstack/internal/metrics"
	"duckstack/internal/service/pipeline"
)

// DefaultParallelism bounds concurrent source materialization when no
// option overrides it.
const DefaultParallelism = 4

// Collaborators are the three boundary ports a run drives.
type Collaborators struct {
	Ingestor domain.Ingestor
	Executor domain.TransformExecutor
	Renderer domain.Renderer
}

func (c Collaborators) validate() error {
	switch {
	case c.Ingestor == nil:
		return domain.ErrValidation("ingestion collaborator is required")
	case c.Executor == nil:
		return domain.ErrValidation("execution collaborator is required")
	case c.Renderer == nil:
		return domain.ErrValidation("rendering collaborator is required")
	}
	return nil
}

type settings struct {
	logger      *slog.Logger
	recorder    metrics.Recorder
	parallelism int
	stepTimeout time.Duration
}

// Option configures a Driver or Refresher.
type Option func(*settings)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *settings) { s.recorder = r }
}

// WithParallelism bounds concurrent source materialization. Values below 1
// mean sequential.
func WithParallelism(n int) Option {
	return func(s *settings) { s.parallelism = n }
}

// WithStepTimeout limits each collaborator call. Zero means no limit.
func WithStepTimeout(d time.Duration) Option {
	return func(s *settings) { s.stepTimeout = d }
}

func newSettings(opts []Option) settings {
	s := settings{
		logger:      slog.New(slog.DiscardHandler),
		recorder:    metrics.Noop{},
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.parallelism < 1 {
		s.parallelism = 1
	}
	return s
}

// stepper performs the collaborator calls shared by full runs and refreshes.
type stepper struct {
	collab Collaborators
	settings
}

func (s *stepper) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.stepTimeout > 0 {
		return context.WithTimeout(ctx, s.stepTimeout)
	}
	return context.WithCancel(ctx)
}

func outcome(err error) string {
	if err != nil {
		return metrics.OutcomeFailure
	}
	return metrics.OutcomeSuccess
}

// materialize calls the ingestor once per source with bounded concurrency.
// It returns the names that succeeded, in declaration order.
func (s *stepper) materialize(ctx context.Context, logger *slog.Logger, sources []domain.Source) ([]string, error) {
	var mu sync.Mutex
	done := make(map[string]bool, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			stepCtx, cancel := s.stepContext(gctx)
			defer cancel()

			start := time.Now()
			err := s.collab.Ingestor.Materialize(stepCtx, src)
			s.recorder.Step(metrics.StepSource, src.Name, outcome(err), time.Since(start))
			if err != nil {
				logger.Error("source materialization failed", "source", src.Name, "error", err)
				return &domain.CollaboratorError{
					Collaborator: domain.CollaboratorIngestion,
					Artifact:     src.Name,
					Err:          err,
				}
			}
			logger.Debug("source materialized", "source", src.Name, "duration", time.Since(start))

			mu.Lock()
			done[src.Name] = true
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	var names []string
	for _, src := range sources {
		if done[src.Name] {
			names = append(names, src.Name)
		}
	}
	if err == nil {
		// Every goroutine may have succeeded after the parent was cancelled.
		err = ctx.Err()
	}
	return names, err
}

// order returns outputs in topological order over spec's full graph. A cycle
// at this point means the graph changed after validation.
func order(spec *pipeline.Specification, outputs []string) ([]string, error) {
	if len(outputs) == 0 {
		return nil, nil
	}
	ordered, err := spec.BuildDependencyGraph().TopologicalOrder(outputs...)
	if err != nil {
		var cyc *graph.CyclicDependencyError
		if errors.As(err, &cyc) {
			return nil, &domain.InvariantViolationError{Message: "dependency graph is cyclic after validation", Err: err}
		}
		return nil, &domain.InvariantViolationError{Message: "transformation output missing from dependency graph", Err: err}
	}
	return ordered, nil
}

// execute runs transformations strictly sequentially in the given order and
// stops at the first failure.
func (s *stepper) execute(ctx context.Context, logger *slog.Logger, spec *pipeline.Specification, ordered []string) ([]string, error) {
	var completed []string
	for i, out := range ordered {
		fail := func(err error) error {
			return &domain.TransformationError{
				Transformation: out,
				Completed:      append([]string(nil), completed...),
				NotRun:         append([]string(nil), ordered[i:]...),
				Err:            err,
			}
		}
		if err := ctx.Err(); err != nil {
			return completed, fail(err)
		}
		t, ok := spec.Transformation(out)
		if !ok {
			return completed, &domain.InvariantViolationError{Message: fmt.Sprintf("no transformation produces %q", out)}
		}

		stepCtx, cancel := s.stepContext(ctx)
		start := time.Now()
		err := s.collab.Executor.Execute(stepCtx, t)
		cancel()
		s.recorder.Step(metrics.StepTransformation, out, outcome(err), time.Since(start))
		if err != nil {
			logger.Error("transformation failed", "transformation", t.Name, "output", out, "error", err)
			return completed, fail(err)
		}
		logger.Debug("transformation executed", "transformation", t.Name, "output", out, "duration", time.Since(start))
		completed = append(completed, out)
	}
	return completed, nil
}

func (s *stepper) render(ctx context.Context, spec *pipeline.Specification) error {
	stepCtx, cancel := s.stepContext(ctx)
	defer cancel()

	start := time.Now()
	err := s.collab.Renderer.Render(stepCtx, spec.Serving(), spec.AvailableNames())
	s.recorder.Step(metrics.StepServing, "", outcome(err), time.Since(start))
	if err != nil {
		return &domain.CollaboratorError{Collaborator: domain.CollaboratorRendering, Err: err}
	}
	return nil
}
