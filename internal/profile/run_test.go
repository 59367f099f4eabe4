package profile

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/orderstorm/internal/config"
	"github.com/wesleyorama2/orderstorm/internal/swarm/engine"
)

func shortRun(host string) *config.Config {
	return &config.Config{
		Name: "shopper run",
		Host: host,
		Load: config.LoadConfig{Executor: "constant-vus", Users: 3, Duration: "400ms"},
		WaitTime: config.WaitTimeConfig{
			Min: config.Duration(5 * time.Millisecond),
			Max: config.Duration(15 * time.Millisecond),
		},
	}
}

func TestShoppersUnderEngine(t *testing.T) {
	b, srv := newBackend(t)
	b.setDefault(PathOrders, reply{http.StatusBadRequest, `{"message":"庫存不足，訂單提交失敗"}`})

	cfg := shortRun(srv.URL)
	eng, err := engine.NewEngine(cfg, NewFactory(cfg.Profile))
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)

	names := map[string]int64{}
	for _, s := range result.RequestStats {
		names[s.Name] = s.Requests()
		assert.Zero(t, s.Failures, "%s should have no failures", s.Name)
	}
	assert.Equal(t, int64(3), names[NameRegister], "one registration per shopper")
	assert.Equal(t, int64(3), names[NameLogin])
	assert.Greater(t, names[NameOrder], int64(0))
	assert.Empty(t, result.Failures)
	assert.Zero(t, result.StoppedUsers)
	assert.True(t, result.Passed)
}

func TestShoppersStopWhenBackendRejectsRegistration(t *testing.T) {
	b, srv := newBackend(t)
	b.setDefault(PathRegister, reply{http.StatusInternalServerError, "down"})

	cfg := shortRun(srv.URL)
	eng, err := engine.NewEngine(cfg, NewFactory(cfg.Profile))
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.StoppedUsers, "every shopper gives up after one retry")
	assert.Equal(t, 6, b.hitCount(PathRegister))
	assert.Equal(t, 0, b.hitCount(PathLogin))
	assert.Equal(t, 0, b.hitCount(PathOrders))
	assert.Equal(t, 0, b.hitCount(PathMe))

	require.Len(t, result.Failures, 1)
	assert.Equal(t, NameRegister, result.Failures[0].Name)
	assert.Equal(t, "User registration failed: down", result.Failures[0].Message)
	assert.Equal(t, int64(6), result.Failures[0].Occurrences)
}
