package cli

import (
	"database/sql"

	"duckstack/internal/engine"
	"duckstack/internal/metrics"
	"duckstack/internal/render"
	"duckstack/internal/service/executor"
)

// stackRuntime wires DuckDB, the dashboard renderer, and run metrics into
// executor collaborators.
type stackRuntime struct {
	db       *sql.DB
	engine   *engine.Engine
	renderer *render.FileRenderer
	metrics  *metrics.Prometheus
}

func (a *app) newRuntime() (*stackRuntime, error) {
	path := a.cfg.DBPath
	if a.cfg.InMemory() {
		path = ""
	}
	db, err := engine.Open(path)
	if err != nil {
		return nil, err
	}
	eng := engine.New(db, a.logger, a.cfg.SampleRows)
	return &stackRuntime{
		db:       db,
		engine:   eng,
		renderer: render.NewFileRenderer(a.cfg.OutputDir, eng, a.logger),
		metrics:  metrics.NewPrometheus(),
	}, nil
}

func (rt *stackRuntime) collaborators() executor.Collaborators {
	return executor.Collaborators{Ingestor: rt.engine, Executor: rt.engine, Renderer: rt.renderer}
}

func (a *app) executorOptions(rt *stackRuntime) []executor.Option {
	return []executor.Option{
		executor.WithLogger(a.logger),
		executor.WithRecorder(rt.metrics),
		executor.WithParallelism(a.cfg.Parallelism),
		executor.WithStepTimeout(a.cfg.StepTimeout),
	}
}

// flushMetrics writes the metrics textfile when one is configured.
func (a *app) flushMetrics(rt *stackRuntime) {
	if a.cfg.MetricsFile == "" {
		return
	}
	if err := rt.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		a.logger.Warn("write metrics file", "path", a.cfg.MetricsFile, "error", err)
	}
}

func (rt *stackRuntime) Close() error {
	return rt.db.Close()
}
