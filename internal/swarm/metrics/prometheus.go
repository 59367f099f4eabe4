package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Prometheus metric names.
const (
	MetricRequestsTotal          = "orderstorm_requests_total"
	MetricRequestDurationSeconds = "orderstorm_request_duration_seconds"
	MetricResponseBytesTotal     = "orderstorm_response_bytes_total"
	MetricActiveUsers            = "orderstorm_active_users"
	MetricTaskIterationsTotal    = "orderstorm_task_iterations_total"
)

// PrometheusExporter serves run metrics on an HTTP endpoint while the run
// is in progress. It implements Observer.
type PrometheusExporter struct {
	mu sync.RWMutex

	addr     string
	path     string
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseBytes   prometheus.Counter
	activeUsers     prometheus.Gauge
	iterations      *prometheus.CounterVec

	server  *http.Server
	ln      net.Listener
	running bool

	lastError error
}

// NewPrometheusExporter creates an exporter that will listen on addr
// (":9464" style) and serve "/metrics". Nothing listens until Start.
func NewPrometheusExporter(addr string) *PrometheusExporter {
	e := &PrometheusExporter{
		addr:     addr,
		path:     "/metrics",
		registry: prometheus.NewRegistry(),
	}

	e.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricRequestsTotal,
		Help: "Shopper requests by request name and outcome (success or failure).",
	}, []string{"name", "outcome"})

	e.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    MetricRequestDurationSeconds,
		Help:    "Duration of shopper requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"name"})

	e.responseBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricResponseBytesTotal,
		Help: "Total response bytes received.",
	})

	e.activeUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MetricActiveUsers,
		Help: "Number of running virtual users.",
	})

	e.iterations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricTaskIterationsTotal,
		Help: "Completed task executions by task name.",
	}, []string{"task"})

	e.registry.MustRegister(
		e.requestsTotal,
		e.requestDuration,
		e.responseBytes,
		e.activeUsers,
		e.iterations,
	)

	return e
}

// Start begins serving the metrics endpoint.
func (e *PrometheusExporter) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil
	}

	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		return fmt.Errorf("starting Prometheus exporter: %w", err)
	}
	e.ln = ln

	mux := http.NewServeMux()
	mux.Handle(e.path, promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	e.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.mu.Lock()
			e.lastError = err
			e.mu.Unlock()
		}
	}()

	e.running = true
	return nil
}

// Stop shuts the HTTP server down.
func (e *PrometheusExporter) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return nil
	}
	e.running = false

	if e.server != nil {
		return e.server.Shutdown(ctx)
	}
	return nil
}

// URL returns the scrape URL once started.
func (e *PrometheusExporter) URL() string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.ln == nil {
		return ""
	}
	return "http://" + e.ln.Addr().String() + e.path
}

// IsRunning returns whether the exporter is serving.
func (e *PrometheusExporter) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// LastError returns the last serve error, if any.
func (e *PrometheusExporter) LastError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastError
}

// ObserveRequest implements Observer.
func (e *PrometheusExporter) ObserveRequest(name string, success bool, elapsed time.Duration, bytes int64) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	e.requestsTotal.WithLabelValues(name, outcome).Inc()
	e.requestDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if bytes > 0 {
		e.responseBytes.Add(float64(bytes))
	}
}

// ObserveIteration implements Observer.
func (e *PrometheusExporter) ObserveIteration(task string) {
	e.iterations.WithLabelValues(task).Inc()
}

// SetActiveVUs implements Observer.
func (e *PrometheusExporter) SetActiveVUs(count int) {
	e.activeUsers.Set(float64(count))
}

// Gather collects all metric families from the registry.
func (e *PrometheusExporter) Gather() ([]*dto.MetricFamily, error) {
	return e.registry.Gather()
}
