package perf

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wesleyorama2/orderstorm/internal/config"
	"github.com/wesleyorama2/orderstorm/internal/profile"
	"github.com/wesleyorama2/orderstorm/internal/swarm/engine"
	"github.com/wesleyorama2/orderstorm/internal/swarm/metrics"
)

// Config is a complete run configuration.
type Config = config.Config

// Load describes how many shoppers run and for how long.
type Load = config.LoadConfig

// Stage is one step of a ramping run.
type Stage = config.StageConfig

// WaitTime is the pause between two tasks of the same shopper.
type WaitTime = config.WaitTimeConfig

// Duration is a time.Duration read from "30s" style strings.
type Duration = config.Duration

// TestResult contains the complete results of a run.
type TestResult = engine.TestResult

// ThresholdResult is the outcome of one threshold expression.
type ThresholdResult = engine.ThresholdResult

// Snapshot is a point-in-time view of the run metrics.
type Snapshot = metrics.Snapshot

// PrometheusExporter serves run metrics on /metrics.
type PrometheusExporter = metrics.PrometheusExporter

// NewPrometheusExporter creates an exporter listening on addr once started.
func NewPrometheusExporter(addr string) *PrometheusExporter {
	return metrics.NewPrometheusExporter(addr)
}

// LoadConfig reads a YAML or JSON run configuration.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// Option configures a Runner.
type Option func(*runnerOptions)

type runnerOptions struct {
	logger   *zap.Logger
	observer metrics.Observer
}

// WithLogger sets the logger handed to every shopper.
func WithLogger(logger *zap.Logger) Option {
	return func(o *runnerOptions) {
		o.logger = logger
	}
}

// WithPrometheus mirrors every outcome to a Prometheus exporter. The caller
// starts and stops the exporter. A nil exporter is ignored.
func WithPrometheus(exporter *PrometheusExporter) Option {
	return func(o *runnerOptions) {
		if exporter != nil {
			o.observer = exporter
		}
	}
}

// Runner runs one load test with the shopper profile.
type Runner struct {
	engine *engine.Engine
}

// NewRunner applies defaults to cfg and validates it.
func NewRunner(cfg *Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var o runnerOptions
	for _, opt := range opts {
		opt(&o)
	}

	config.ApplyDefaults(cfg)
	engOpts := []engine.Option{engine.WithLogger(o.logger)}
	if o.observer != nil {
		engOpts = append(engOpts, engine.WithObserver(o.observer))
	}

	eng, err := engine.NewEngine(cfg, profile.NewFactory(cfg.Profile), engOpts...)
	if err != nil {
		return nil, err
	}
	return &Runner{engine: eng}, nil
}

// Run executes the test. Cancelling ctx ends it early; the results collected
// so far are returned. A Runner runs once.
func (r *Runner) Run(ctx context.Context) (*TestResult, error) {
	return r.engine.Run(ctx)
}

// GetMetrics returns the current metrics snapshot, or nil before Run.
func (r *Runner) GetMetrics() *Snapshot {
	return r.engine.GetMetrics()
}

// GetProgress returns the run progress (0.0 to 1.0).
func (r *Runner) GetProgress() float64 {
	return r.engine.GetProgress()
}

// Stop ends a running test early.
func (r *Runner) Stop(ctx context.Context) error {
	return r.engine.Stop(ctx)
}

// RunTest runs cfg to completion.
func RunTest(ctx context.Context, cfg *Config) (*TestResult, error) {
	runner, err := NewRunner(cfg)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}
