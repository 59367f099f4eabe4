package perf_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/orderstorm/internal/fakeshop"
	"github.com/wesleyorama2/orderstorm/perf"
)

func shortConfig(host string) *perf.Config {
	return &perf.Config{
		Host: host,
		Load: perf.Load{Executor: "constant-vus", Users: 2, Duration: "300ms"},
		WaitTime: perf.WaitTime{
			Min: perf.Duration(5 * time.Millisecond),
			Max: perf.Duration(10 * time.Millisecond),
		},
	}
}

func TestRunTest(t *testing.T) {
	shop := fakeshop.New(fakeshop.DefaultConfig())
	srv := httptest.NewServer(shop.Handler())
	t.Cleanup(srv.Close)

	result, err := perf.RunTest(context.Background(), shortConfig(srv.URL))
	require.NoError(t, err)

	assert.True(t, result.Passed)
	assert.Greater(t, result.Metrics.TotalRequests, int64(4))
	assert.Equal(t, 2, shop.Users())
}

func TestNewRunner_Invalid(t *testing.T) {
	_, err := perf.NewRunner(nil)
	assert.Error(t, err)

	cfg := shortConfig("ftp://shop")
	_, err = perf.NewRunner(cfg)
	assert.Error(t, err)
}

func TestRunner_WithPrometheus(t *testing.T) {
	shop := fakeshop.New(fakeshop.DefaultConfig())
	srv := httptest.NewServer(shop.Handler())
	t.Cleanup(srv.Close)

	exporter := perf.NewPrometheusExporter("127.0.0.1:0")
	runner, err := perf.NewRunner(shortConfig(srv.URL), perf.WithPrometheus(exporter))
	require.NoError(t, err)
	assert.Nil(t, runner.GetMetrics())

	_, err = runner.Run(context.Background())
	require.NoError(t, err)

	families, err := exporter.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "orderstorm_requests_total")
}

func TestRunner_WithNilPrometheus(t *testing.T) {
	shop := fakeshop.New(fakeshop.DefaultConfig())
	srv := httptest.NewServer(shop.Handler())
	t.Cleanup(srv.Close)

	runner, err := perf.NewRunner(shortConfig(srv.URL), perf.WithPrometheus(nil))
	require.NoError(t, err)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Positive(t, result.Metrics.TotalRequests)
}
