// Package metrics records pipeline run metrics in a Prometheus registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Step kinds passed to Recorder.Step.
const (
	StepSource         = "source"
	StepTransformation = "transformation"
	StepServing        = "serving"
)

// Step outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder receives run events from the execution driver.
type Recorder interface {
	Transition(from, to string)
	Step(kind, name, outcome string, d time.Duration)
	RunFinished(state string, d time.Duration)
}

// Noop discards every event.
type Noop struct{}

func (Noop) Transition(string, string)                   {}
func (Noop) Step(string, string, string, time.Duration) {}
func (Noop) RunFinished(string, time.Duration)           {}

// Prometheus is a Recorder backed by its own registry, so several drivers in
// one process never collide on registration.
type Prometheus struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	steps       *prometheus.CounterVec
	stepSeconds *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	runSeconds  prometheus.Gauge
}

// NewPrometheus creates the collectors and registers them on a fresh registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "duckstack_state_transitions_total",
				Help: "Execution driver state transitions",
			},
			[]string{"from", "to"},
		),
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "duckstack_steps_total",
				Help: "Collaborator calls by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		stepSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "duckstack_step_duration_seconds",
				Help:    "Collaborator call duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "duckstack_runs_total",
				Help: "Finished runs by terminal state",
			},
			[]string{"state"},
		),
		runSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "duckstack_last_run_duration_seconds",
			Help: "Wall time of the most recent run",
		}),
	}
	p.registry.MustRegister(p.transitions, p.steps, p.stepSeconds, p.runs, p.runSeconds)
	return p
}

// Registry exposes the underlying registry for gathering.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

func (p *Prometheus) Transition(from, to string) {
	p.transitions.WithLabelValues(from, to).Inc()
}

func (p *Prometheus) Step(kind, _ string, outcome string, d time.Duration) {
	p.steps.WithLabelValues(kind, outcome).Inc()
	p.stepSeconds.WithLabelValues(kind).Observe(d.Seconds())
}

func (p *Prometheus) RunFinished(state string, d time.Duration) {
	p.runs.WithLabelValues(state).Inc()
	p.runSeconds.Set(d.Seconds())
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (p *Prometheus) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, p.registry)
}
