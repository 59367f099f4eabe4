package swarm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wesleyorama2/orderstorm/internal/swarm/metrics"
)

// scriptedBehavior runs a single task whose result is decided by fn.
type scriptedBehavior struct {
	started atomic.Int32
	runs    atomic.Int32
	onStart func(ctx context.Context) error
	fn      func(n int32) error
}

func (b *scriptedBehavior) OnStart(ctx context.Context) error {
	b.started.Add(1)
	if b.onStart != nil {
		return b.onStart(ctx)
	}
	return nil
}

func (b *scriptedBehavior) Tasks() []Task {
	return []Task{{
		Name:   "scripted",
		Weight: 1,
		Run: func(ctx context.Context) error {
			n := b.runs.Add(1)
			if b.fn != nil {
				return b.fn(n)
			}
			return nil
		},
	}}
}

func newTestVU(t *testing.T, b Behavior, engine *metrics.Engine, logger *zap.Logger) *VirtualUser {
	t.Helper()
	env := &Env{VUID: 1, Faker: gofakeit.New(1), Logger: logger}
	vu, err := NewVirtualUser(env, b, Constant(0), engine)
	require.NoError(t, err)
	return vu
}

func TestVUState_String(t *testing.T) {
	assert.Equal(t, "idle", VUStateIdle.String())
	assert.Equal(t, "running", VUStateRunning.String())
	assert.Equal(t, "stopping", VUStateStopping.String())
	assert.Equal(t, "stopped", VUStateStopped.String())
	assert.Equal(t, "unknown", VUState(42).String())
}

func TestVirtualUser_StopUserEndsOnlyThisVU(t *testing.T) {
	engine := metrics.NewEngine()
	defer engine.Stop()

	core, logs := observer.New(zapcore.WarnLevel)
	b := &scriptedBehavior{fn: func(n int32) error {
		if n == 3 {
			return ErrStopUser
		}
		return nil
	}}
	vu := newTestVU(t, b, engine, zap.New(core))

	vu.Run(context.Background())

	assert.Equal(t, int32(1), b.started.Load())
	assert.Equal(t, int32(3), b.runs.Load())
	assert.Equal(t, int64(3), vu.GetIteration())
	assert.True(t, vu.StoppedItself())

	snapshot := engine.GetSnapshot()
	assert.Equal(t, int64(1), snapshot.StoppedUsers)
	assert.Equal(t, int64(3), snapshot.Iterations)
	assert.Equal(t, 1, logs.FilterMessage("virtual user stopped").Len())
}

func TestVirtualUser_OnStartStopUser(t *testing.T) {
	b := &scriptedBehavior{onStart: func(context.Context) error { return ErrStopUser }}
	vu := newTestVU(t, b, nil, nil)

	vu.Run(context.Background())

	assert.Zero(t, b.runs.Load(), "no task may run after OnStart asked to stop")
	assert.True(t, vu.StoppedItself())
}

func TestVirtualUser_OnStartErrorContinues(t *testing.T) {
	b := &scriptedBehavior{
		onStart: func(context.Context) error { return errors.New("flaky") },
		fn: func(n int32) error {
			if n == 2 {
				return ErrStopUser
			}
			return nil
		},
	}
	vu := newTestVU(t, b, nil, nil)
	vu.Run(context.Background())
	assert.Equal(t, int32(2), b.runs.Load())
}

func TestVirtualUser_PanicIsRecovered(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	b := &scriptedBehavior{fn: func(n int32) error {
		if n == 1 {
			panic("boom")
		}
		return ErrStopUser
	}}
	vu := newTestVU(t, b, nil, zap.New(core))

	assert.NotPanics(t, func() { vu.Run(context.Background()) })
	assert.Equal(t, int32(2), b.runs.Load())

	entries := logs.FilterMessage("task error").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "panicked: boom")
}

func TestVirtualUser_ContextCancel(t *testing.T) {
	b := &scriptedBehavior{}
	env := &Env{VUID: 1, Faker: gofakeit.New(1)}
	vu, err := NewVirtualUser(env, b, Constant(time.Hour), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		vu.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return b.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("VU did not exit on context cancel")
	}
	assert.False(t, vu.StoppedItself())
}

func TestVirtualUser_RequestStopInterruptsWait(t *testing.T) {
	b := &scriptedBehavior{}
	env := &Env{VUID: 1, Faker: gofakeit.New(1)}
	vu, err := NewVirtualUser(env, b, Constant(time.Hour), nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		vu.Run(context.Background())
		vu.MarkStopped()
		close(done)
	}()

	require.Eventually(t, func() bool { return b.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	vu.RequestStop()
	vu.RequestStop()

	assert.True(t, vu.WaitForStop(time.Second))
	<-done
	assert.Equal(t, VUStateStopped, vu.GetState())
}

func TestVirtualUser_RequestStopBeforeRun(t *testing.T) {
	b := &scriptedBehavior{}
	vu := newTestVU(t, b, nil, nil)

	vu.RequestStop()
	vu.Run(context.Background())

	assert.Zero(t, b.started.Load())
	assert.Equal(t, VUStateStopping, vu.GetState())

	vu.MarkStopped()
	vu.MarkStopped()
	assert.True(t, vu.WaitForStop(10*time.Millisecond))
}

func TestNewVirtualUser_InvalidTasks(t *testing.T) {
	env := &Env{VUID: 1}
	_, err := NewVirtualUser(env, emptyBehavior{}, nil, nil)
	assert.Error(t, err)
}

type emptyBehavior struct{}

func (emptyBehavior) OnStart(context.Context) error { return nil }
func (emptyBehavior) Tasks() []Task                 { return nil }
