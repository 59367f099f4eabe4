package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/orderstorm/internal/swarm"
	"github.com/wesleyorama2/orderstorm/internal/swarm/metrics"
)

// ConstantVUs runs a fixed number of VUs for a specified duration.
//
// VUs are started at SpawnRate per second (all at once when zero) and keep
// running until the duration expires. A VU that stops itself is not
// replaced.
type ConstantVUs struct {
	config *Config

	mu         sync.RWMutex
	startTime  time.Time
	pool       *vuPool
	cancelFunc context.CancelFunc
	done       chan struct{}

	running atomic.Bool
}

// NewConstantVUs creates a new constant VUs executor.
func NewConstantVUs() *ConstantVUs {
	return &ConstantVUs{done: make(chan struct{})}
}

// Type returns the executor type.
func (e *ConstantVUs) Type() Type {
	return TypeConstantVUs
}

// Init initializes the executor with configuration.
func (e *ConstantVUs) Init(ctx context.Context, config *Config) error {
	if config.Type != TypeConstantVUs {
		return fmt.Errorf("invalid config type: expected %s, got %s", TypeConstantVUs, config.Type)
	}

	if err := config.Validate(); err != nil {
		return err
	}

	e.config = config
	return nil
}

// Run starts the executor and blocks until completion.
func (e *ConstantVUs) Run(ctx context.Context, scheduler *swarm.VUScheduler, metricsEngine *metrics.Engine) error {
	if e.config == nil {
		return fmt.Errorf("executor not initialized")
	}
	defer close(e.done)

	runCtx, cancel := context.WithTimeout(ctx, e.config.Duration)
	defer cancel()

	pool := newVUPool(ctx, scheduler, e.config.SpawnRate)

	e.mu.Lock()
	e.startTime = time.Now()
	e.pool = pool
	e.cancelFunc = cancel
	e.mu.Unlock()
	e.running.Store(true)

	if e.config.SpawnRate > 0 && e.config.VUs > 1 {
		metricsEngine.SetPhase(metrics.PhaseRampUp)
	} else {
		metricsEngine.SetPhase(metrics.PhaseSteady)
	}

	spawnErr := make(chan error, 1)
	go func() {
		err := pool.spawn(runCtx, e.config.VUs)
		if err != nil {
			cancel()
		} else if runCtx.Err() == nil {
			metricsEngine.SetPhase(metrics.PhaseSteady)
		}
		spawnErr <- err
	}()

	<-runCtx.Done()
	err := <-spawnErr

	metricsEngine.SetPhase(metrics.PhaseRampDown)
	pool.drain(gracefulStop(e.config))

	metricsEngine.SetPhase(metrics.PhaseDone)
	e.running.Store(false)

	if err != nil {
		return fmt.Errorf("failed to spawn virtual user: %w", err)
	}
	return nil
}

// GetProgress returns current progress (0.0 to 1.0).
func (e *ConstantVUs) GetProgress() float64 {
	e.mu.RLock()
	start := e.startTime
	e.mu.RUnlock()

	if !e.running.Load() {
		if start.IsZero() {
			return 0.0
		}
		return 1.0
	}

	progress := float64(time.Since(start)) / float64(e.config.Duration)
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

// GetActiveVUs returns current active VU count.
func (e *ConstantVUs) GetActiveVUs() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.pool == nil {
		return 0
	}
	return int(e.pool.active.Load())
}

// GetStats returns executor statistics.
func (e *ConstantVUs) GetStats() *Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := &Stats{
		StartTime:     e.startTime,
		CurrentTime:   time.Now(),
		TotalDuration: e.config.Duration,
		TargetVUs:     e.config.VUs,
	}
	if !e.startTime.IsZero() {
		stats.Elapsed = time.Since(e.startTime)
	}
	if e.pool != nil {
		stats.ActiveVUs = int(e.pool.active.Load())
		stats.SpawnedVUs = int(e.pool.spawned.Load())
	}
	return stats
}

// Stop ends the run early and waits for Run to return.
func (e *ConstantVUs) Stop(ctx context.Context) error {
	return stopAndWait(ctx, &e.mu, &e.cancelFunc, e.done, &e.running)
}

// stopAndWait cancels a running executor and waits for its Run to return.
func stopAndWait(ctx context.Context, mu *sync.RWMutex, cancel *context.CancelFunc, done <-chan struct{}, running *atomic.Bool) error {
	mu.RLock()
	cancelFunc := *cancel
	mu.RUnlock()

	if cancelFunc == nil || !running.Load() {
		return nil
	}
	cancelFunc()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ensure ConstantVUs implements Executor
var _ Executor = (*ConstantVUs)(nil)
