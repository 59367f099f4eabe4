package swarm

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"

	stormhttp "github.com/wesleyorama2/orderstorm/internal/http"
	"github.com/wesleyorama2/orderstorm/internal/swarm/metrics"
)

// VUScheduler manages the lifecycle of Virtual Users.
//
// It owns the connection pool shared by every VU, builds a behavior and a
// private random source per VU, and coordinates graceful shutdown.
// Executors use it to control VU counts.
type VUScheduler struct {
	factory BehaviorFactory
	metrics *metrics.Engine
	config  SchedulerConfig
	logger  *zap.Logger

	vus   map[int]*VirtualUser
	vusMu sync.RWMutex

	nextVUID atomic.Int32

	sharedClient *http.Client

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	shutdownWg   sync.WaitGroup
}

// SchedulerConfig configures the VUs a scheduler spawns.
type SchedulerConfig struct {
	// Host is the base URL every VU's client is bound to
	Host string

	HTTP HTTPClientConfig

	// WaitTime is the pause between tasks; nil means no pause
	WaitTime WaitTime

	// Seed derives each VU's random source (seed+id); 0 seeds randomly
	Seed uint64

	// Headers are sent on every request (e.g. User-Agent)
	Headers map[string]string

	// RequestID adds an X-Request-ID header to every request
	RequestID bool

	Logger *zap.Logger
}

// HTTPClientConfig contains HTTP client configuration.
type HTTPClientConfig struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	DisableKeepAlives   bool
	InsecureSkipVerify  bool
}

// DefaultHTTPClientConfig returns sensible defaults for load testing.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     0, // unlimited
		IdleConnTimeout:     90 * time.Second,
	}
}

// NewVUScheduler creates a new VU scheduler.
func NewVUScheduler(factory BehaviorFactory, metricsEngine *metrics.Engine, config SchedulerConfig) *VUScheduler {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &VUScheduler{
		factory:      factory,
		metrics:      metricsEngine,
		config:       config,
		logger:       logger,
		vus:          make(map[int]*VirtualUser),
		sharedClient: NewHTTPClient(config.HTTP),
		shutdownCh:   make(chan struct{}),
	}
}

// NewHTTPClient builds the connection pool VUs share.
func NewHTTPClient(cfg HTTPClientConfig) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableKeepAlives:   cfg.DisableKeepAlives,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for test environments
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}

// SpawnVU builds a new Virtual User and registers it. The VU is not started;
// pass it to RunVU.
func (s *VUScheduler) SpawnVU() (*VirtualUser, error) {
	id := int(s.nextVUID.Add(1))

	seed := s.config.Seed
	if seed != 0 {
		seed += uint64(id)
	}

	opts := []stormhttp.ClientOption{
		stormhttp.WithHTTPClient(s.sharedClient),
		stormhttp.WithBaseURL(s.config.Host),
		stormhttp.WithRequestID(s.config.RequestID),
	}
	for k, v := range s.config.Headers {
		opts = append(opts, stormhttp.WithHeader(k, v))
	}

	env := &Env{
		VUID:      id,
		Client:    stormhttp.NewClient(opts...),
		Recorder:  s.metrics,
		Logger:    s.logger.With(zap.Int("vu", id)),
		Faker:     gofakeit.New(seed),
		UserCount: s.GetActiveVUCount,
	}

	vu, err := NewVirtualUser(env, s.factory(env), s.config.WaitTime, s.metrics)
	if err != nil {
		return nil, err
	}

	s.vusMu.Lock()
	s.vus[id] = vu
	s.vusMu.Unlock()

	return vu, nil
}

// RunVU runs vu until it stops, marks it stopped and forgets it.
func (s *VUScheduler) RunVU(ctx context.Context, vu *VirtualUser) {
	s.shutdownWg.Add(1)
	defer s.shutdownWg.Done()
	defer s.UpdateMetrics()
	defer s.release(vu)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.shutdownCh:
			vu.RequestStop()
		case <-ctx.Done():
		}
	}()

	vu.Run(ctx)
}

func (s *VUScheduler) release(vu *VirtualUser) {
	vu.MarkStopped()
	s.vusMu.Lock()
	delete(s.vus, vu.ID)
	s.vusMu.Unlock()
}

// GetVU returns a VU by ID, or nil if it is unknown or has stopped.
func (s *VUScheduler) GetVU(id int) *VirtualUser {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()
	return s.vus[id]
}

// GetActiveVUs returns all VUs that have not stopped. Stopped VUs are
// dropped as soon as RunVU returns; only spawned-but-never-run VUs are
// filtered here.
func (s *VUScheduler) GetActiveVUs() []*VirtualUser {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	result := make([]*VirtualUser, 0, len(s.vus))
	for _, vu := range s.vus {
		if vu.GetState() != VUStateStopped {
			result = append(result, vu)
		}
	}
	return result
}

// GetActiveVUCount returns the count of non-stopped VUs.
func (s *VUScheduler) GetActiveVUCount() int {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	count := 0
	for _, vu := range s.vus {
		if vu.GetState() != VUStateStopped {
			count++
		}
	}
	return count
}

// GetSpawnedCount returns how many VUs have been spawned in total.
func (s *VUScheduler) GetSpawnedCount() int {
	return int(s.nextVUID.Load())
}

// StopVU requests a specific VU to stop.
func (s *VUScheduler) StopVU(id int) {
	if vu := s.GetVU(id); vu != nil {
		vu.RequestStop()
	}
}

// StopAllVUs requests all VUs to stop.
func (s *VUScheduler) StopAllVUs() {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	for _, vu := range s.vus {
		vu.RequestStop()
	}
}

// WaitForAllVUs waits for all VUs to stop with a timeout.
//
// Returns the number of VUs that did not stop within the timeout.
func (s *VUScheduler) WaitForAllVUs(timeout time.Duration) int {
	deadline := time.Now().Add(timeout)

	s.vusMu.RLock()
	vus := make([]*VirtualUser, 0, len(s.vus))
	for _, vu := range s.vus {
		vus = append(vus, vu)
	}
	s.vusMu.RUnlock()

	notStopped := 0
	for _, vu := range vus {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			if vu.GetState() != VUStateStopped {
				notStopped++
			}
			continue
		}
		if !vu.WaitForStop(remaining) {
			notStopped++
		}
	}
	return notStopped
}

// Shutdown stops all VUs, waits up to timeout for them to exit and
// releases idle connections. Safe to call more than once.
func (s *VUScheduler) Shutdown(timeout time.Duration) {
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
	})
	s.StopAllVUs()

	done := make(chan struct{})
	go func() {
		s.shutdownWg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		s.logger.Warn("virtual users still running after graceful stop", zap.Int("active", s.GetActiveVUCount()))
	}

	s.sharedClient.CloseIdleConnections()
}

// UpdateMetrics publishes the active VU count to the metrics engine.
func (s *VUScheduler) UpdateMetrics() {
	if s.metrics != nil {
		s.metrics.SetActiveVUs(s.GetActiveVUCount())
	}
}
