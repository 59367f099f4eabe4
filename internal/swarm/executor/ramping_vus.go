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

// controllerInterval is how often the VU count is re-evaluated.
const controllerInterval = 100 * time.Millisecond

// RampingVUs ramps VU count up and down according to stages.
//
// The target is interpolated linearly between the previous stage's target
// and the current one. VUs started beyond the target are asked to stop,
// newest first. A VU that stops itself keeps its slot until the next
// scale-down.
//
// Example stages:
//
//	stages:
//	  - duration: 30s
//	    target: 10     # Ramp from 0 to 10 VUs over 30s
//	  - duration: 2m
//	    target: 10     # Stay at 10 VUs for 2 minutes
//	  - duration: 30s
//	    target: 0      # Ramp down to 0 VUs over 30s
type RampingVUs struct {
	config *Config

	mu         sync.RWMutex
	startTime  time.Time
	pool       *vuPool
	cancelFunc context.CancelFunc
	done       chan struct{}

	targetVUs    atomic.Int32
	currentStage atomic.Int32
	running      atomic.Bool

	// VU tracking
	vus   []*swarm.VirtualUser
	vusMu sync.Mutex
}

// NewRampingVUs creates a new ramping VUs executor.
func NewRampingVUs() *RampingVUs {
	return &RampingVUs{
		vus:  make([]*swarm.VirtualUser, 0),
		done: make(chan struct{}),
	}
}

// Type returns the executor type.
func (e *RampingVUs) Type() Type {
	return TypeRampingVUs
}

// Init initializes the executor with configuration.
func (e *RampingVUs) Init(ctx context.Context, config *Config) error {
	if config.Type != TypeRampingVUs {
		return fmt.Errorf("invalid config type: expected %s, got %s", TypeRampingVUs, config.Type)
	}

	if err := config.Validate(); err != nil {
		return err
	}

	e.config = config
	return nil
}

// Run starts the executor and blocks until completion.
func (e *RampingVUs) Run(ctx context.Context, scheduler *swarm.VUScheduler, metricsEngine *metrics.Engine) error {
	if e.config == nil {
		return fmt.Errorf("executor not initialized")
	}
	defer close(e.done)

	runCtx, cancel := context.WithTimeout(ctx, e.config.TotalDuration())
	defer cancel()

	pool := newVUPool(ctx, scheduler, e.config.SpawnRate)

	e.mu.Lock()
	e.startTime = time.Now()
	e.pool = pool
	e.cancelFunc = cancel
	e.mu.Unlock()
	e.running.Store(true)

	err := e.vuController(runCtx, scheduler, metricsEngine)

	metricsEngine.SetPhase(metrics.PhaseRampDown)
	pool.drain(gracefulStop(e.config))

	metricsEngine.SetPhase(metrics.PhaseDone)
	e.running.Store(false)

	if err != nil {
		return fmt.Errorf("failed to spawn virtual user: %w", err)
	}
	return nil
}

// vuController adjusts VU count according to stages until ctx ends.
func (e *RampingVUs) vuController(ctx context.Context, scheduler *swarm.VUScheduler, metricsEngine *metrics.Engine) error {
	ticker := time.NewTicker(controllerInterval)
	defer ticker.Stop()

	for {
		target, stage := targetAt(e.config.Stages, time.Since(e.getStartTime()))
		e.targetVUs.Store(int32(target))
		e.currentStage.Store(int32(stage))

		if err := e.adjustVUs(scheduler, target); err != nil {
			return err
		}
		metricsEngine.SetPhase(phaseFor(e.config.Stages, stage))

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// targetAt returns the interpolated VU target and the stage index at
// elapsed. Past the last stage it returns the last target.
func targetAt(stages []Stage, elapsed time.Duration) (int, int) {
	var stageStart time.Duration
	prevTarget := 0

	for i, stage := range stages {
		stageEnd := stageStart + stage.Duration

		if elapsed < stageEnd {
			progress := float64(elapsed-stageStart) / float64(stage.Duration)
			if progress < 0 {
				progress = 0
			}

			target := float64(prevTarget) + float64(stage.Target-prevTarget)*progress
			return int(target + 0.5), i
		}

		prevTarget = stage.Target
		stageStart = stageEnd
	}

	if len(stages) == 0 {
		return 0, 0
	}
	return stages[len(stages)-1].Target, len(stages) - 1
}

// phaseFor classifies a stage by comparing its target with the previous one.
func phaseFor(stages []Stage, idx int) metrics.Phase {
	if idx >= len(stages) {
		return metrics.PhaseDone
	}

	prevTarget := 0
	if idx > 0 {
		prevTarget = stages[idx-1].Target
	}

	switch target := stages[idx].Target; {
	case target > prevTarget:
		return metrics.PhaseRampUp
	case target < prevTarget:
		return metrics.PhaseRampDown
	default:
		return metrics.PhaseSteady
	}
}

// adjustVUs moves the VU count toward target, spawning no faster than the
// pool's spawn rate allows.
func (e *RampingVUs) adjustVUs(scheduler *swarm.VUScheduler, target int) error {
	e.vusMu.Lock()
	defer e.vusMu.Unlock()

	current := len(e.vus)

	switch {
	case target > current:
		for n := e.pool.allow(target - current); n > 0; n-- {
			vu, err := scheduler.SpawnVU()
			if err != nil {
				return err
			}
			e.vus = append(e.vus, vu)
			e.pool.start(vu)
		}
	case target < current:
		for i := current - 1; i >= target; i-- {
			e.vus[i].RequestStop()
		}
		e.vus = e.vus[:target]
	}
	return nil
}

func (e *RampingVUs) getStartTime() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.startTime
}

// GetProgress returns current progress (0.0 to 1.0).
func (e *RampingVUs) GetProgress() float64 {
	start := e.getStartTime()
	if !e.running.Load() {
		if start.IsZero() {
			return 0.0
		}
		return 1.0
	}

	totalDuration := e.config.TotalDuration()
	if totalDuration == 0 {
		return 1.0
	}

	progress := float64(time.Since(start)) / float64(totalDuration)
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

// GetActiveVUs returns current active VU count.
func (e *RampingVUs) GetActiveVUs() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.pool == nil {
		return 0
	}
	return int(e.pool.active.Load())
}

// GetStats returns executor statistics.
func (e *RampingVUs) GetStats() *Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stageIdx := int(e.currentStage.Load())
	stageName := ""
	if stageIdx < len(e.config.Stages) {
		stageName = e.config.Stages[stageIdx].Name
	}

	stats := &Stats{
		StartTime:        e.startTime,
		CurrentTime:      time.Now(),
		TotalDuration:    e.config.TotalDuration(),
		TargetVUs:        int(e.targetVUs.Load()),
		CurrentStage:     stageIdx,
		CurrentStageName: stageName,
		TotalStages:      len(e.config.Stages),
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
func (e *RampingVUs) Stop(ctx context.Context) error {
	return stopAndWait(ctx, &e.mu, &e.cancelFunc, e.done, &e.running)
}

// Ensure RampingVUs implements Executor
var _ Executor = (*RampingVUs)(nil)
