// Package metrics aggregates shopper request outcomes: HDR latency
// histograms overall and per request name, success/failure counters, a
// grouped failures table and a one-second time series.
package metrics

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Observer receives every recorded event as it happens. The Prometheus
// exporter is the production implementation.
type Observer interface {
	ObserveRequest(name string, success bool, elapsed time.Duration, bytes int64)
	ObserveIteration(task string)
	SetActiveVUs(count int)
}

// Engine collects and aggregates request outcomes.
//
// Engine is safe for concurrent use. Counters are atomic, histograms and
// tables are mutex protected, and the bucket emitter runs in its own
// goroutine until Stop.
type Engine struct {
	// Range: 1 microsecond to 1 hour, 3 significant figures
	latencyHist   *hdrhistogram.Histogram
	latencyHistMu sync.Mutex

	requests   map[string]*requestEntry
	requestsMu sync.Mutex

	failures   map[failureKey]*Failure
	failuresMu sync.Mutex

	totalRequests   atomic.Int64
	successRequests atomic.Int64
	failedRequests  atomic.Int64
	totalBytes      atomic.Int64
	iterations      atomic.Int64
	stoppedUsers    atomic.Int64

	activeVUs atomic.Int32

	bucketStore *TimeBucketStore

	currentPhase Phase
	phaseMu      sync.RWMutex
	phaseHistory []PhaseChange

	startTime time.Time

	observer Observer

	emitterCtx    context.Context
	emitterCancel context.CancelFunc
	emitterWg     sync.WaitGroup
	stopOnce      sync.Once

	config EngineConfig
}

type requestEntry struct {
	hist      *hdrhistogram.Histogram
	successes int64
	failures  int64
	bytes     int64
}

type failureKey struct {
	name    string
	message string
}

// NewEngine creates a new metrics engine with default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates a new metrics engine and starts its bucket emitter.
func NewEngineWithConfig(config EngineConfig) *Engine {
	defaults := DefaultEngineConfig()
	if config.BucketInterval <= 0 {
		config.BucketInterval = defaults.BucketInterval
	}
	if config.HistogramMin <= 0 {
		config.HistogramMin = defaults.HistogramMin
	}
	if config.HistogramMax <= config.HistogramMin {
		config.HistogramMax = defaults.HistogramMax
	}
	if config.HistogramSigFigs <= 0 {
		config.HistogramSigFigs = defaults.HistogramSigFigs
	}
	if config.MaxFailureMessage <= 0 {
		config.MaxFailureMessage = defaults.MaxFailureMessage
	}

	ctx, cancel := context.WithCancel(context.Background())

	engine := &Engine{
		latencyHist:   hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		requests:      make(map[string]*requestEntry),
		failures:      make(map[failureKey]*Failure),
		bucketStore:   NewTimeBucketStore(config.MaxBuckets),
		currentPhase:  PhaseInit,
		startTime:     time.Now(),
		emitterCtx:    ctx,
		emitterCancel: cancel,
		config:        config,
	}

	engine.emitterWg.Add(1)
	go engine.runEmitter()

	return engine
}

// SetObserver attaches an observer. It must be called before recording starts.
func (e *Engine) SetObserver(o Observer) {
	e.observer = o
}

// RecordSuccess records a request that the profile classified as a success.
func (e *Engine) RecordSuccess(name string, elapsed time.Duration, bytes int64) {
	e.record(name, elapsed, bytes, true)
}

// RecordFailure records a reported failure. Identical messages for the same
// request name are grouped in the failures table.
func (e *Engine) RecordFailure(name string, elapsed time.Duration, bytes int64, message string) {
	e.record(name, elapsed, bytes, false)

	key := failureKey{name: name, message: e.truncate(message)}

	e.failuresMu.Lock()
	f, ok := e.failures[key]
	if !ok {
		f = &Failure{Name: key.name, Message: key.message}
		e.failures[key] = f
	}
	f.Occurrences++
	e.failuresMu.Unlock()
}

func (e *Engine) record(name string, elapsed time.Duration, bytes int64, success bool) {
	latencyMicros := e.clamp(elapsed.Microseconds())

	e.latencyHistMu.Lock()
	e.latencyHist.RecordValue(latencyMicros)
	e.latencyHistMu.Unlock()

	if name != "" {
		e.requestsMu.Lock()
		entry, ok := e.requests[name]
		if !ok {
			entry = &requestEntry{
				hist: hdrhistogram.New(e.config.HistogramMin, e.config.HistogramMax, e.config.HistogramSigFigs),
			}
			e.requests[name] = entry
		}
		entry.hist.RecordValue(latencyMicros)
		entry.bytes += bytes
		if success {
			entry.successes++
		} else {
			entry.failures++
		}
		e.requestsMu.Unlock()
	}

	e.totalRequests.Add(1)
	e.totalBytes.Add(bytes)
	if success {
		e.successRequests.Add(1)
	} else {
		e.failedRequests.Add(1)
	}

	e.bucketStore.RecordRequest(success)

	if e.observer != nil {
		e.observer.ObserveRequest(name, success, elapsed, bytes)
	}
}

func (e *Engine) clamp(v int64) int64 {
	if v < e.config.HistogramMin {
		return e.config.HistogramMin
	}
	if v > e.config.HistogramMax {
		return e.config.HistogramMax
	}
	return v
}

func (e *Engine) truncate(msg string) string {
	msg = strings.TrimSpace(msg)
	if utf8.RuneCountInString(msg) <= e.config.MaxFailureMessage {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:e.config.MaxFailureMessage]) + "..."
}

// RecordIteration counts one completed task execution.
func (e *Engine) RecordIteration(task string) {
	e.iterations.Add(1)
	if e.observer != nil {
		e.observer.ObserveIteration(task)
	}
}

// RecordUserStopped counts a virtual user that ended itself early.
func (e *Engine) RecordUserStopped() {
	e.stoppedUsers.Add(1)
}

// SetPhase updates the current phase. Executors call this on transitions.
func (e *Engine) SetPhase(phase Phase) {
	e.phaseMu.Lock()
	defer e.phaseMu.Unlock()

	if e.currentPhase == phase {
		return
	}

	e.currentPhase = phase
	e.phaseHistory = append(e.phaseHistory, PhaseChange{
		Phase:     phase,
		Timestamp: time.Now(),
		Requests:  e.totalRequests.Load(),
	})
}

// GetPhase returns the current phase.
func (e *Engine) GetPhase() Phase {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()
	return e.currentPhase
}

// SetActiveVUs updates the active VU count.
func (e *Engine) SetActiveVUs(count int) {
	e.activeVUs.Store(int32(count))
	if e.observer != nil {
		e.observer.SetActiveVUs(count)
	}
}

// GetActiveVUs returns the current active VU count.
func (e *Engine) GetActiveVUs() int {
	return int(e.activeVUs.Load())
}

func (e *Engine) runEmitter() {
	defer e.emitterWg.Done()

	ticker := time.NewTicker(e.config.BucketInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.emitterCtx.Done():
			return
		case <-ticker.C:
			e.emitBucket()
		}
	}
}

func (e *Engine) emitBucket() {
	e.bucketStore.CreateBucket(
		BucketTotals{
			Requests:  e.totalRequests.Load(),
			Successes: e.successRequests.Load(),
			Failures:  e.failedRequests.Load(),
			Bytes:     e.totalBytes.Load(),
		},
		e.GetLatencyPercentiles(),
		e.GetActiveVUs(),
		e.GetPhase(),
	)
}

// GetLatencyPercentiles returns current overall latency percentiles.
func (e *Engine) GetLatencyPercentiles() LatencyPercentiles {
	e.latencyHistMu.Lock()
	defer e.latencyHistMu.Unlock()

	return LatencyPercentiles{
		Min: micros(e.latencyHist.Min()),
		Max: micros(e.latencyHist.Max()),
		P50: micros(e.latencyHist.ValueAtQuantile(50)),
		P90: micros(e.latencyHist.ValueAtQuantile(90)),
		P95: micros(e.latencyHist.ValueAtQuantile(95)),
		P99: micros(e.latencyHist.ValueAtQuantile(99)),
	}
}

// GetSnapshot returns a point-in-time snapshot of all metrics.
func (e *Engine) GetSnapshot() *Snapshot {
	e.latencyHistMu.Lock()
	latency := latencyStats(e.latencyHist)
	e.latencyHistMu.Unlock()

	elapsed := time.Since(e.startTime)
	totalReqs := e.totalRequests.Load()
	failedReqs := e.failedRequests.Load()

	overallRPS := 0.0
	if elapsed.Seconds() > 0 {
		overallRPS = float64(totalReqs) / elapsed.Seconds()
	}

	steadyRPS, steadyBuckets := e.bucketStore.CalculateSteadyStateRPS()
	rps := overallRPS
	if steadyBuckets > 0 {
		rps = steadyRPS
	}

	errorRate := 0.0
	if totalReqs > 0 {
		errorRate = float64(failedReqs) / float64(totalReqs)
	}

	return &Snapshot{
		TotalRequests:   totalReqs,
		SuccessRequests: e.successRequests.Load(),
		FailedRequests:  failedReqs,
		TotalBytes:      e.totalBytes.Load(),
		Latency:         latency,
		RPS:             rps,
		SteadyStateRPS:  steadyRPS,
		ErrorRate:       errorRate,
		Iterations:      e.iterations.Load(),
		StoppedUsers:    e.stoppedUsers.Load(),
		ActiveVUs:       e.GetActiveVUs(),
		CurrentPhase:    e.GetPhase(),
		Elapsed:         elapsed,
		StartTime:       e.startTime,
		Timestamp:       time.Now(),
	}
}

// GetTimeSeries returns all retained time buckets.
func (e *Engine) GetTimeSeries() []*TimeBucket {
	return e.bucketStore.GetBuckets()
}

// GetPhaseHistory returns the history of phase changes.
func (e *Engine) GetPhaseHistory() []PhaseChange {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()

	result := make([]PhaseChange, len(e.phaseHistory))
	copy(result, e.phaseHistory)
	return result
}

// GetRequestStats returns per-request statistics sorted by name.
func (e *Engine) GetRequestStats() []RequestStats {
	e.requestsMu.Lock()
	defer e.requestsMu.Unlock()

	result := make([]RequestStats, 0, len(e.requests))
	for name, entry := range e.requests {
		result = append(result, RequestStats{
			Name:       name,
			Successes:  entry.successes,
			Failures:   entry.failures,
			TotalBytes: entry.bytes,
			Latency:    latencyStats(entry.hist),
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// GetFailures returns the failures table, most frequent first.
func (e *Engine) GetFailures() []Failure {
	e.failuresMu.Lock()
	defer e.failuresMu.Unlock()

	result := make([]Failure, 0, len(e.failures))
	for _, f := range e.failures {
		result = append(result, *f)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Occurrences != result[j].Occurrences {
			return result[i].Occurrences > result[j].Occurrences
		}
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].Message < result[j].Message
	})
	return result
}

// Stop stops the emitter and emits a final bucket. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.emitterCancel()
		e.emitterWg.Wait()
		e.emitBucket()
	})
}

// Reset resets all metrics to their initial state.
func (e *Engine) Reset() {
	e.latencyHistMu.Lock()
	e.latencyHist.Reset()
	e.latencyHistMu.Unlock()

	e.requestsMu.Lock()
	e.requests = make(map[string]*requestEntry)
	e.requestsMu.Unlock()

	e.failuresMu.Lock()
	e.failures = make(map[failureKey]*Failure)
	e.failuresMu.Unlock()

	e.totalRequests.Store(0)
	e.successRequests.Store(0)
	e.failedRequests.Store(0)
	e.totalBytes.Store(0)
	e.iterations.Store(0)
	e.stoppedUsers.Store(0)
	e.activeVUs.Store(0)

	e.phaseMu.Lock()
	e.currentPhase = PhaseInit
	e.phaseHistory = nil
	e.phaseMu.Unlock()

	e.bucketStore.Reset()
	e.startTime = time.Now()
}

func latencyStats(h *hdrhistogram.Histogram) LatencyStats {
	return LatencyStats{
		Min:    micros(h.Min()),
		Max:    micros(h.Max()),
		Mean:   time.Duration(h.Mean() * float64(time.Microsecond)),
		StdDev: time.Duration(h.StdDev() * float64(time.Microsecond)),
		P50:    micros(h.ValueAtQuantile(50)),
		P90:    micros(h.ValueAtQuantile(90)),
		P95:    micros(h.ValueAtQuantile(95)),
		P99:    micros(h.ValueAtQuantile(99)),
		Count:  h.TotalCount(),
	}
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
