// Package engine runs a configured load test end to end.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wesleyorama2/orderstorm/internal/config"
	"github.com/wesleyorama2/orderstorm/internal/swarm"
	"github.com/wesleyorama2/orderstorm/internal/swarm/executor"
	"github.com/wesleyorama2/orderstorm/internal/swarm/metrics"
)

// Engine is the orchestrator for one load run.
//
// It coordinates:
//   - Configuration defaults and validation
//   - The executor that controls how many shoppers run
//   - Metrics collection and aggregation
//   - Threshold evaluation
//
// Example usage:
//
//	cfg, _ := config.Load("storm.yaml")
//	eng, _ := engine.NewEngine(cfg, profile.NewFactory(cfg.Profile))
//	result, _ := eng.Run(context.Background())
//	fmt.Printf("Test passed: %v\n", result.Passed)
type Engine struct {
	config     *config.Config
	factory    swarm.BehaviorFactory
	execConfig *executor.Config
	executor   executor.Executor
	logger     *zap.Logger
	observer   metrics.Observer

	mu            sync.RWMutex
	metricsEngine *metrics.Engine
	runID         string
	startTime     time.Time
	running       bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger handed to every VU.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver mirrors every recorded outcome to o (e.g. a Prometheus exporter).
func WithObserver(o metrics.Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// TestResult contains the complete results of a run.
type TestResult struct {
	RunID     string        `json:"runId"`
	Name      string        `json:"name"`
	Host      string        `json:"host"`
	Executor  string        `json:"executor"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`

	Metrics      *metrics.Snapshot      `json:"metrics"`
	TimeSeries   []*metrics.TimeBucket  `json:"timeSeries,omitempty"`
	RequestStats []metrics.RequestStats `json:"requestStats"`
	Failures     []metrics.Failure      `json:"failures"`
	PhaseHistory []metrics.PhaseChange  `json:"phaseHistory,omitempty"`

	// StoppedUsers is how many shoppers ended themselves, e.g. after
	// failing to authenticate
	StoppedUsers int64 `json:"stoppedUsers"`
	SpawnedUsers int   `json:"spawnedUsers"`

	Passed     bool              `json:"passed"`
	Thresholds []ThresholdResult `json:"thresholds,omitempty"`

	// Error is set when the run failed catastrophically
	Error string `json:"error,omitempty"`
}

// NewEngine applies defaults to cfg, validates it and prepares the executor.
func NewEngine(cfg *config.Config, factory swarm.BehaviorFactory, opts ...Option) (*Engine, error) {
	if factory == nil {
		return nil, fmt.Errorf("behavior factory is required")
	}

	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	exec, execConfig, err := executor.CreateExecutorFromLoadConfig(context.Background(), cfg.Name, &cfg.Load)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:     cfg,
		factory:    factory,
		execConfig: execConfig,
		executor:   exec,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run executes the load test and returns its results. Cancelling ctx ends
// the run early; results collected so far are still returned.
func (e *Engine) Run(ctx context.Context) (*TestResult, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine is already running")
	}
	if e.runID != "" {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine has already run")
	}
	e.running = true
	e.runID = uuid.NewString()
	e.startTime = time.Now()
	e.metricsEngine = metrics.NewEngine()
	e.metricsEngine.SetObserver(e.observer)
	metricsEngine := e.metricsEngine
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()
	defer metricsEngine.Stop()

	logger := e.logger.With(zap.String("run_id", e.runID))
	scheduler := swarm.NewVUScheduler(e.factory, metricsEngine, e.schedulerConfig(logger))

	logger.Info("load run started",
		zap.String("host", e.config.Host),
		zap.String("executor", string(e.execConfig.Type)),
		zap.Int("max_users", executor.CalculateMaxVUs(e.execConfig)),
		zap.Duration("duration", e.execConfig.TotalDuration()))

	runErr := e.executor.Run(ctx, scheduler, metricsEngine)
	scheduler.Shutdown(e.execConfig.GracefulStop)

	snapshot := metricsEngine.GetSnapshot()
	thresholds := EvaluateThresholds(e.config.Thresholds, snapshot)

	result := &TestResult{
		RunID:        e.runID,
		Name:         e.config.Name,
		Host:         e.config.Host,
		Executor:     string(e.execConfig.Type),
		StartTime:    e.startTime,
		EndTime:      time.Now(),
		Duration:     time.Since(e.startTime),
		Metrics:      snapshot,
		TimeSeries:   metricsEngine.GetTimeSeries(),
		RequestStats: metricsEngine.GetRequestStats(),
		Failures:     metricsEngine.GetFailures(),
		PhaseHistory: metricsEngine.GetPhaseHistory(),
		StoppedUsers: snapshot.StoppedUsers,
		SpawnedUsers: scheduler.GetSpawnedCount(),
		Passed:       runErr == nil && AllPassed(thresholds),
		Thresholds:   thresholds,
	}
	if runErr != nil {
		result.Error = runErr.Error()
	}

	logger.Info("load run finished",
		zap.Int64("requests", snapshot.TotalRequests),
		zap.Int64("failures", snapshot.FailedRequests),
		zap.Int64("stopped_users", snapshot.StoppedUsers),
		zap.Bool("passed", result.Passed))

	return result, runErr
}

func (e *Engine) schedulerConfig(logger *zap.Logger) swarm.SchedulerConfig {
	httpConfig := swarm.DefaultHTTPClientConfig()
	httpConfig.Timeout = e.config.HTTP.Timeout.GetDuration(config.DefaultHTTPTimeout)
	if e.config.HTTP.MaxIdleConnsPerHost > 0 {
		httpConfig.MaxIdleConnsPerHost = e.config.HTTP.MaxIdleConnsPerHost
	}
	httpConfig.InsecureSkipVerify = e.config.HTTP.InsecureSkipVerify

	headers := map[string]string{}
	if e.config.HTTP.UserAgent != "" {
		headers["User-Agent"] = e.config.HTTP.UserAgent
	}

	return swarm.SchedulerConfig{
		Host: e.config.Host,
		HTTP: httpConfig,
		WaitTime: swarm.Between(
			e.config.WaitTime.Min.GetDuration(config.DefaultWaitMin),
			e.config.WaitTime.Max.GetDuration(config.DefaultWaitMax),
		),
		Seed:      e.config.Profile.Seed,
		Headers:   headers,
		RequestID: !e.config.HTTP.NoRequestID,
		Logger:    logger,
	}
}

// GetConfig returns the run configuration with defaults applied.
func (e *Engine) GetConfig() *config.Config {
	return e.config
}

// GetExecutorConfig returns the resolved executor configuration.
func (e *Engine) GetExecutorConfig() *executor.Config {
	return e.execConfig
}

// RunID returns the id of the current or last run, or "" before Run.
func (e *Engine) RunID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.runID
}

// GetMetrics returns the current metrics snapshot.
func (e *Engine) GetMetrics() *metrics.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.metricsEngine == nil {
		return nil
	}
	return e.metricsEngine.GetSnapshot()
}

// GetStats returns the executor's live statistics.
func (e *Engine) GetStats() *executor.Stats {
	return e.executor.GetStats()
}

// GetProgress returns the run progress (0.0 to 1.0).
func (e *Engine) GetProgress() float64 {
	return e.executor.GetProgress()
}

// IsRunning returns true if the engine is currently running.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Stop ends a running load test early.
func (e *Engine) Stop(ctx context.Context) error {
	if !e.IsRunning() {
		return nil
	}
	return e.executor.Stop(ctx)
}
