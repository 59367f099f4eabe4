package swarm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"

	"github.com/wesleyorama2/orderstorm/internal/swarm/metrics"
)

// VUState represents the lifecycle state of a Virtual User.
type VUState int32

const (
	// VUStateIdle indicates the VU is created but not yet running.
	VUStateIdle VUState = iota
	// VUStateRunning indicates the VU is executing tasks.
	VUStateRunning
	// VUStateStopping indicates the VU has been asked to stop.
	VUStateStopping
	// VUStateStopped indicates the VU goroutine has exited.
	VUStateStopped
)

func (s VUState) String() string {
	switch s {
	case VUStateIdle:
		return "idle"
	case VUStateRunning:
		return "running"
	case VUStateStopping:
		return "stopping"
	case VUStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// VirtualUser is one simulated shopper.
type VirtualUser struct {
	ID int

	env      *Env
	behavior Behavior
	tasks    *TaskSet
	wait     WaitTime
	metrics  *metrics.Engine
	logger   *zap.Logger

	state  atomic.Int32
	stopCh chan struct{}
	doneCh chan struct{}

	iteration atomic.Int64
	stoppedBy atomic.Bool
}

// NewVirtualUser wires a behavior to its task set. It fails when the
// behavior's tasks cannot form a valid TaskSet.
func NewVirtualUser(env *Env, behavior Behavior, wait WaitTime, metricsEngine *metrics.Engine) (*VirtualUser, error) {
	tasks, err := NewTaskSet(behavior.Tasks())
	if err != nil {
		return nil, err
	}
	if wait == nil {
		wait = Constant(0)
	}
	if env.Faker == nil {
		env.Faker = gofakeit.New(0)
	}

	logger := env.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &VirtualUser{
		ID:       env.VUID,
		env:      env,
		behavior: behavior,
		tasks:    tasks,
		wait:     wait,
		metrics:  metricsEngine,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// GetState returns the current VU state.
func (vu *VirtualUser) GetState() VUState {
	return VUState(vu.state.Load())
}

// GetIteration returns the number of tasks executed so far.
func (vu *VirtualUser) GetIteration() int64 {
	return vu.iteration.Load()
}

// StoppedItself reports whether the behavior ended this VU with ErrStopUser.
func (vu *VirtualUser) StoppedItself() bool {
	return vu.stoppedBy.Load()
}

// Run executes OnStart once and then tasks until ctx is cancelled, the VU
// is asked to stop, or a task returns ErrStopUser. A stop request lets the
// current task finish; only the wait is interrupted.
func (vu *VirtualUser) Run(ctx context.Context) {
	if !vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateRunning)) {
		return
	}

	if err := vu.call(ctx, "on_start", vu.behavior.OnStart); err != nil {
		if vu.handleError("on_start", err) {
			return
		}
	}

	for {
		if vu.shouldStop(ctx) {
			return
		}

		task := vu.tasks.Pick(vu.env.Faker)
		err := vu.call(ctx, task.Name, task.Run)
		vu.iteration.Add(1)
		if vu.metrics != nil {
			vu.metrics.RecordIteration(task.Name)
		}

		if err != nil && vu.handleError(task.Name, err) {
			return
		}

		if !vu.sleep(ctx, vu.wait(vu.env.Faker)) {
			return
		}
	}
}

// call runs fn, converting a panic into an error so one broken task cannot
// take the process down.
func (vu *VirtualUser) call(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", name, r)
		}
	}()
	return fn(ctx)
}

// handleError logs err and reports whether the VU must exit.
func (vu *VirtualUser) handleError(task string, err error) bool {
	switch {
	case errors.Is(err, ErrStopUser):
		vu.stoppedBy.Store(true)
		if vu.metrics != nil {
			vu.metrics.RecordUserStopped()
		}
		vu.logger.Warn("virtual user stopped", zap.String("task", task), zap.Error(err))
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	default:
		vu.logger.Error("task error", zap.String("task", task), zap.Error(err))
		return false
	}
}

func (vu *VirtualUser) shouldStop(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-vu.stopCh:
		return true
	default:
		return false
	}
}

// sleep waits d and reports false if the VU was stopped meanwhile.
func (vu *VirtualUser) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !vu.shouldStop(ctx)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-vu.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

// RequestStop signals the VU to stop after its current task.
func (vu *VirtualUser) RequestStop() {
	if vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateStopping)) ||
		vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateStopping)) {
		close(vu.stopCh)
	}
}

// WaitForStop waits for the VU to stop with a timeout.
//
// Returns true if the VU stopped within the timeout, false otherwise.
func (vu *VirtualUser) WaitForStop(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-vu.doneCh:
		return true
	case <-timer.C:
		return false
	}
}

// Done is closed once the VU has stopped.
func (vu *VirtualUser) Done() <-chan struct{} {
	return vu.doneCh
}

// MarkStopped marks the VU as fully stopped. Called when the VU goroutine exits.
func (vu *VirtualUser) MarkStopped() {
	prev := VUState(vu.state.Swap(int32(VUStateStopped)))
	if prev == VUStateStopped {
		return
	}
	close(vu.doneCh)
}
