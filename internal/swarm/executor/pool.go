package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/wesleyorama2/orderstorm/internal/swarm"
)

// DefaultGracefulStop bounds how long in-flight tasks may run once a run ends.
const DefaultGracefulStop = 30 * time.Second

// vuPool starts VUs at a bounded rate and stops them together.
//
// VUs run on their own context, detached from the duration timer, so a
// task in flight when the run ends can finish within the graceful stop.
type vuPool struct {
	scheduler *swarm.VUScheduler
	limiter   *rate.Limiter

	vuCtx     context.Context
	cancelVUs context.CancelFunc
	wg        sync.WaitGroup

	active  atomic.Int32
	spawned atomic.Int32
}

func newVUPool(ctx context.Context, scheduler *swarm.VUScheduler, spawnRate float64) *vuPool {
	limit := rate.Inf
	if spawnRate > 0 {
		limit = rate.Limit(spawnRate)
	}

	vuCtx, cancel := context.WithCancel(ctx)
	return &vuPool{
		scheduler: scheduler,
		limiter:   rate.NewLimiter(limit, 1),
		vuCtx:     vuCtx,
		cancelVUs: cancel,
	}
}

// start runs vu in its own goroutine.
func (p *vuPool) start(vu *swarm.VirtualUser) {
	p.wg.Add(1)
	p.spawned.Add(1)
	p.active.Add(1)
	p.scheduler.UpdateMetrics()

	go func() {
		defer p.wg.Done()
		defer p.active.Add(-1)
		p.scheduler.RunVU(p.vuCtx, vu)
	}()
}

// spawn starts n VUs, pacing them with the limiter. It returns early and
// without error when ctx ends first.
func (p *vuPool) spawn(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil
		}
		vu, err := p.scheduler.SpawnVU()
		if err != nil {
			return err
		}
		p.start(vu)
	}
	return nil
}

// allow returns how many of want VUs may start right now.
func (p *vuPool) allow(want int) int {
	n := 0
	for n < want && p.limiter.Allow() {
		n++
	}
	return n
}

// drain asks every VU to stop after its current task and waits up to
// graceful. VUs still running after that have their context cancelled.
// Returns false if the graceful period ran out.
func (p *vuPool) drain(graceful time.Duration) bool {
	p.scheduler.StopAllVUs()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(graceful)
	defer timer.Stop()

	clean := true
	select {
	case <-done:
	case <-timer.C:
		clean = false
		p.cancelVUs()
		<-done
	}
	p.cancelVUs()
	return clean
}

func gracefulStop(cfg *Config) time.Duration {
	if cfg.GracefulStop > 0 {
		return cfg.GracefulStop
	}
	return DefaultGracefulStop
}
