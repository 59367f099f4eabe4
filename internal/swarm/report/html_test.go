package report

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wesleyorama2/orderstorm/internal/swarm/engine"
	"github.com/wesleyorama2/orderstorm/internal/swarm/metrics"
)

func createSampleResult() *engine.TestResult {
	start := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return &engine.TestResult{
		RunID:        "0b5d9a7e-1d4c-4c1e-9a61-3f1f5d0e2a10",
		Name:         "Checkout storm",
		Host:         "http://shop.local",
		Executor:     "ramping-vus",
		StartTime:    start,
		EndTime:      start.Add(2 * time.Minute),
		Duration:     2 * time.Minute,
		SpawnedUsers: 50,
		StoppedUsers: 3,
		Passed:       true,
		Metrics: &metrics.Snapshot{
			TotalRequests:   12000,
			SuccessRequests: 11880,
			FailedRequests:  120,
			TotalBytes:      3 * 1024 * 1024,
			ErrorRate:       0.01,
			RPS:             100,
			Iterations:      9000,
			Latency: metrics.LatencyStats{
				Min: 3 * time.Millisecond, Mean: 42 * time.Millisecond, P50: 35 * time.Millisecond,
				P90: 80 * time.Millisecond, P95: 120 * time.Millisecond, P99: 300 * time.Millisecond,
				Max: 900 * time.Millisecond, Count: 12000,
			},
		},
		TimeSeries: []*metrics.TimeBucket{
			{Timestamp: start.Add(time.Second), IntervalRPS: 90, LatencyP95: 110 * time.Millisecond, ActiveVUs: 10, Phase: metrics.PhaseRampUp},
			{Timestamp: start.Add(2 * time.Second), IntervalRPS: 110, LatencyP95: 130 * time.Millisecond, ActiveVUs: 20, Phase: metrics.PhaseSteady},
		},
		RequestStats: []metrics.RequestStats{
			{Name: "POST /api/orders", Successes: 8880, Failures: 120, TotalBytes: 2 * 1024 * 1024},
			{Name: "POST /api/me", Successes: 3000, TotalBytes: 1024 * 1024},
		},
		Failures: []metrics.Failure{
			{Name: "POST /api/orders", Message: "Order failed with status 503: <html>down</html>", Occurrences: 120},
		},
		PhaseHistory: []metrics.PhaseChange{
			{Phase: metrics.PhaseRampUp, Timestamp: start},
			{Phase: metrics.PhaseSteady, Timestamp: start.Add(30 * time.Second), Requests: 2500},
		},
		Thresholds: []engine.ThresholdResult{
			{Metric: "http_req_duration", Expression: "p95 < 500ms", Passed: true, Value: "120ms"},
		},
	}
}

func TestGenerateHTMLString(t *testing.T) {
	html, err := GenerateHTMLString(createSampleResult())
	if err != nil {
		t.Fatalf("GenerateHTMLString failed: %v", err)
	}

	expectedContents := []string{
		"<!DOCTYPE html>",
		"<title>Checkout storm - Load Run Report</title>",
		"✓ PASSED",
		"Target http://shop.local",
		"ramping-vus",
		"12,000",
		"100.0",
		"1.00",
		"3.00 MB",
		"POST /api/orders",
		"<th># Successes</th>",
		"<td>9,000</td>",
		"<td>8,880</td>",
		"120 (1.3%)",
		"75.00",
		"Aggregated",
		"100.00",
		"Failures",
		"p95 &lt; 500ms",
		"ramp-up",
		"2,500",
		"rpsChart",
		"usersChart",
		"timeSeriesData",
		`"intervalRPS":110`,
	}
	for _, expected := range expectedContents {
		if !strings.Contains(html, expected) {
			t.Errorf("HTML does not contain expected content: %s", expected)
		}
	}

	if strings.Contains(html, "<html>down</html>") {
		t.Error("failure messages must be escaped")
	}
}

func TestGenerateHTMLString_Failed(t *testing.T) {
	result := createSampleResult()
	result.Passed = false
	result.Error = "executor failed"
	result.TimeSeries = nil

	html, err := GenerateHTMLString(result)
	if err != nil {
		t.Fatalf("GenerateHTMLString failed: %v", err)
	}
	if !strings.Contains(html, "✗ FAILED") {
		t.Error("missing FAILED status")
	}
	if !strings.Contains(html, "Error: executor failed") {
		t.Error("missing run error")
	}
	if strings.Contains(html, `id="rpsChart"`) {
		t.Error("charts rendered without a time series")
	}
	if !strings.Contains(html, "const timeSeriesData = []") {
		t.Error("empty time series should render as []")
	}
}

func TestGenerateHTMLString_NoMetrics(t *testing.T) {
	result := &engine.TestResult{Name: "empty"}
	if _, err := GenerateHTMLString(result); err != nil {
		t.Fatalf("GenerateHTMLString failed on an empty result: %v", err)
	}
}

func TestGenerateHTMLStringNilResult(t *testing.T) {
	if _, err := GenerateHTMLString(nil); err == nil {
		t.Error("Expected error for nil result, got nil")
	}
}

func TestGenerateHTML(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "report.html")

	if err := GenerateHTML(createSampleResult(), outputPath); err != nil {
		t.Fatalf("GenerateHTML failed: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read HTML file: %v", err)
	}
	if !strings.Contains(string(content), "Checkout storm") {
		t.Error("HTML file does not contain the run name")
	}

	if err := GenerateHTML(createSampleResult(), filepath.Join(t.TempDir(), "missing", "report.html")); err == nil {
		t.Error("expected an error writing into a missing directory")
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, createSampleResult()); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded["runId"] != "0b5d9a7e-1d4c-4c1e-9a61-3f1f5d0e2a10" {
		t.Errorf("runId = %v", decoded["runId"])
	}
	if decoded["passed"] != true {
		t.Errorf("passed = %v", decoded["passed"])
	}
	stats, ok := decoded["requestStats"].([]any)
	if !ok || len(stats) != 2 {
		t.Fatalf("requestStats = %v", decoded["requestStats"])
	}

	if err := WriteJSON(&buf, nil); err == nil {
		t.Error("expected an error for a nil result")
	}
}

func TestGenerateJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	if err := GenerateJSON(createSampleResult(), path); err != nil {
		t.Fatalf("GenerateJSON failed: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), `"name": "Checkout storm"`) {
		t.Errorf("unexpected JSON: %s", content)
	}
}

func TestRequestRows(t *testing.T) {
	rows, total := requestRows(createSampleResult())
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	orders := rows[0]
	if orders.Requests != 9000 || orders.Successes != 8880 || orders.Failures != 120 {
		t.Errorf("orders row = %+v", orders)
	}
	if orders.RPS != 75 {
		t.Errorf("orders RPS = %v, want 75", orders.RPS)
	}

	if total == nil {
		t.Fatal("missing aggregated row")
	}
	if total.Requests != 12000 || total.Successes != 11880 || total.Failures != 120 {
		t.Errorf("aggregated row = %+v", total)
	}
	if math.Abs(total.FailurePct-1) > 1e-9 {
		t.Errorf("aggregated failure %% = %v, want 1", total.FailurePct)
	}
	if total.Latency.P95 != 120*time.Millisecond {
		t.Errorf("aggregated P95 = %v, want the overall histogram's", total.Latency.P95)
	}

	if rows, total := requestRows(&engine.TestResult{}); rows != nil || total != nil {
		t.Error("an empty result has no request rows")
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatNumber(1234567); got != "1,234,567" {
		t.Errorf("formatNumber = %q", got)
	}
	if got := formatLatency(1500 * time.Microsecond); got != "1.50ms" {
		t.Errorf("formatLatency = %q", got)
	}
	if got := formatLatency(0); got != "0" {
		t.Errorf("formatLatency(0) = %q", got)
	}
	if got := formatBytes(512); got != "512 B" {
		t.Errorf("formatBytes = %q", got)
	}
	if got := formatNumber(-1000); got != "-1,000" {
		t.Errorf("formatNumber(-1000) = %q", got)
	}
	if got := formatNumber(999); got != "999" {
		t.Errorf("formatNumber(999) = %q", got)
	}
	if got := formatLatency(42500 * time.Microsecond); got != "42.5ms" {
		t.Errorf("formatLatency = %q", got)
	}
	if got := formatLatency(1200 * time.Millisecond); got != "1.20s" {
		t.Errorf("formatLatency = %q", got)
	}
	if got := formatBytes(3 * 1024 * 1024); got != "3.00 MB" {
		t.Errorf("formatBytes = %q", got)
	}
	for d, want := range map[time.Duration]string{
		90 * time.Second:              "1m 30s",
		2 * time.Minute:               "2m",
		45 * time.Second:              "45s",
		time.Hour + 5*time.Minute + 9: "1h 5m",
	} {
		if got := formatDuration(d); got != want {
			t.Errorf("formatDuration(%v) = %q, want %q", d, got, want)
		}
	}
	if got := perSecond(300, 2*time.Minute); got != 2.5 {
		t.Errorf("perSecond = %v", got)
	}
	if got := perSecond(1, 0); got != 0 {
		t.Errorf("perSecond with zero duration = %v", got)
	}
}
