package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wesleyorama2/orderstorm/internal/config"
	stormhttp "github.com/wesleyorama2/orderstorm/internal/http"
	"github.com/wesleyorama2/orderstorm/internal/swarm"
	"github.com/wesleyorama2/orderstorm/internal/swarm/metrics"
)

// checkoutBehavior posts to /api/orders and fails every fifth request.
type checkoutBehavior struct {
	env *swarm.Env
}

func (b *checkoutBehavior) OnStart(context.Context) error { return nil }

func (b *checkoutBehavior) Tasks() []swarm.Task {
	return []swarm.Task{{
		Name:   "place_order",
		Weight: 1,
		Run: func(ctx context.Context) error {
			resp, err := b.env.Client.Do(ctx, stormhttp.Post("/api/orders"))
			if err != nil {
				return err
			}
			if resp.StatusCode == http.StatusAccepted {
				b.env.Recorder.RecordSuccess("POST /api/orders", resp.ResponseTime, resp.Size())
				return nil
			}
			b.env.Recorder.RecordFailure("POST /api/orders", resp.ResponseTime, resp.Size(), resp.BodyString())
			return nil
		},
	}}
}

func newCheckoutServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var count atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := count.Add(1)
		if n%5 == 0 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"queued"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &count
}

func checkoutFactory(env *swarm.Env) swarm.Behavior {
	return &checkoutBehavior{env: env}
}

func testConfig(host string) *config.Config {
	return &config.Config{
		Name: "engine test",
		Host: host,
		Load: config.LoadConfig{
			Executor: "constant-vus",
			Users:    2,
			Duration: "400ms",
		},
		WaitTime: config.WaitTimeConfig{
			Min: config.Duration(5 * time.Millisecond),
			Max: config.Duration(10 * time.Millisecond),
		},
	}
}

func TestNewEngine_AppliesDefaultsAndValidates(t *testing.T) {
	cfg := &config.Config{}
	eng, err := NewEngine(cfg, checkoutFactory)
	require.NoError(t, err)

	assert.Equal(t, config.DefaultHost, eng.GetConfig().Host)
	assert.Equal(t, 1, eng.GetExecutorConfig().VUs)
	assert.Equal(t, time.Minute, eng.GetExecutorConfig().Duration)
	assert.Equal(t, 30*time.Second, eng.GetExecutorConfig().GracefulStop)
	assert.False(t, eng.IsRunning())
	assert.Empty(t, eng.RunID())
	assert.Nil(t, eng.GetMetrics())
}

func TestNewEngine_Errors(t *testing.T) {
	_, err := NewEngine(&config.Config{}, nil)
	assert.Error(t, err)

	_, err = NewEngine(&config.Config{Host: "ftp://shop"}, checkoutFactory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	_, err = NewEngine(&config.Config{
		Load: config.LoadConfig{Stages: []config.StageConfig{{Duration: "0s", Target: 1}}},
	}, checkoutFactory)
	assert.Error(t, err, "zero-length stage is rejected by the executor")
}

func TestEngine_Run(t *testing.T) {
	srv, count := newCheckoutServer(t)

	cfg := testConfig(srv.URL)
	cfg.Thresholds = &config.ThresholdsConfig{
		HTTPReqs:      []string{"count > 0"},
		HTTPReqFailed: []string{"rate < 0.5"},
	}

	core, logs := observer.New(zapcore.InfoLevel)
	eng, err := NewEngine(cfg, checkoutFactory, WithLogger(zap.New(core)))
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	_, parseErr := uuid.Parse(result.RunID)
	assert.NoError(t, parseErr)
	assert.Equal(t, result.RunID, eng.RunID())
	assert.Equal(t, "engine test", result.Name)
	assert.Equal(t, srv.URL, result.Host)
	assert.Equal(t, "constant-vus", result.Executor)
	assert.Equal(t, 2, result.SpawnedUsers)
	assert.GreaterOrEqual(t, result.Duration, 400*time.Millisecond)

	assert.Equal(t, count.Load(), result.Metrics.TotalRequests)
	require.Len(t, result.RequestStats, 1)
	assert.Equal(t, "POST /api/orders", result.RequestStats[0].Name)

	if count.Load() >= 5 {
		require.NotEmpty(t, result.Failures)
		assert.Equal(t, "boom", result.Failures[0].Message)
	}

	assert.True(t, result.Passed)
	require.Len(t, result.Thresholds, 2)
	assert.Empty(t, result.Error)
	assert.Equal(t, metrics.PhaseDone, result.Metrics.CurrentPhase)

	assert.Equal(t, 1, logs.FilterMessage("load run started").Len())
	finished := logs.FilterMessage("load run finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, result.RunID, finished[0].ContextMap()["run_id"])

	_, err = eng.Run(context.Background())
	assert.Error(t, err, "an engine runs once")
}

func TestEngine_FailedThresholdFailsRun(t *testing.T) {
	srv, _ := newCheckoutServer(t)

	cfg := testConfig(srv.URL)
	cfg.Thresholds = &config.ThresholdsConfig{HTTPReqs: []string{"count > 1000000"}}

	eng, err := NewEngine(cfg, checkoutFactory)
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Passed)
	require.Len(t, result.Thresholds, 1)
	assert.False(t, result.Thresholds[0].Passed)
}

func TestEngine_StopEndsRunEarly(t *testing.T) {
	srv, _ := newCheckoutServer(t)

	cfg := testConfig(srv.URL)
	cfg.Load.Duration = "1m"

	eng, err := NewEngine(cfg, checkoutFactory)
	require.NoError(t, err)

	done := make(chan *TestResult, 1)
	go func() {
		result, _ := eng.Run(context.Background())
		done <- result
	}()

	require.Eventually(t, func() bool {
		m := eng.GetMetrics()
		return eng.IsRunning() && m != nil && m.TotalRequests > 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.Greater(t, eng.GetProgress(), 0.0)
	assert.Equal(t, 2, eng.GetStats().TargetVUs)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, eng.Stop(ctx))

	select {
	case result := <-done:
		require.NotNil(t, result)
		assert.Less(t, result.Duration, 10*time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.False(t, eng.IsRunning())
}

func TestEngine_ObserverReceivesOutcomes(t *testing.T) {
	srv, _ := newCheckoutServer(t)

	exporter := metrics.NewPrometheusExporter("127.0.0.1:0")
	eng, err := NewEngine(testConfig(srv.URL), checkoutFactory, WithObserver(exporter))
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)

	families, err := exporter.Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != "orderstorm_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(result.Metrics.TotalRequests), total)
}

func TestEngine_HostSeenByVUs(t *testing.T) {
	var sawAgent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAgent.Store(r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Load.Users = 1
	cfg.Load.Duration = "100ms"
	eng, err := NewEngine(cfg, checkoutFactory)
	require.NoError(t, err)

	_, err = eng.Run(context.Background())
	require.NoError(t, err)

	agent, _ := sawAgent.Load().(string)
	assert.True(t, strings.HasPrefix(agent, "orderstorm/"), "User-Agent = %q", agent)
}
