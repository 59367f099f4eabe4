package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/orderstorm/internal/swarm/report"
)

func TestSampleReportRenders(t *testing.T) {
	result := createSampleTestResult(time.Now())
	require.Len(t, result.TimeSeries, 120)
	assert.Equal(t, result.StartTime, result.TimeSeries[0].Timestamp)

	html, err := report.GenerateHTMLString(result)
	require.NoError(t, err)
	assert.Contains(t, html, "checkout soak")
	assert.Contains(t, html, "POST /api/orders")
}
