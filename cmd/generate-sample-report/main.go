// Command generate-sample-report writes an HTML report filled with made-up
// shopper results, for working on the report template.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/wesleyorama2/orderstorm/internal/profile"
	"github.com/wesleyorama2/orderstorm/internal/swarm/engine"
	"github.com/wesleyorama2/orderstorm/internal/swarm/metrics"
	"github.com/wesleyorama2/orderstorm/internal/swarm/report"
)

func main() {
	result := createSampleTestResult(time.Now())

	outputPath := "sample-report.html"
	if len(os.Args) > 1 {
		outputPath = os.Args[1]
	}

	if err := report.GenerateHTML(result, outputPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Sample report generated: %s\n", outputPath)
}

func latency(minMs, meanMs, p50Ms, p95Ms, p99Ms, maxMs int) metrics.LatencyStats {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	return metrics.LatencyStats{
		Min:  ms(minMs),
		Mean: ms(meanMs),
		P50:  ms(p50Ms),
		P90:  ms((p50Ms + p95Ms) / 2),
		P95:  ms(p95Ms),
		P99:  ms(p99Ms),
		Max:  ms(maxMs),
	}
}

func createSampleTestResult(now time.Time) *engine.TestResult {
	start := now.Add(-2 * time.Minute)

	overall := latency(6, 61, 44, 168, 402, 1210)
	overall.StdDev = 52 * time.Millisecond
	overall.Count = 9184

	return &engine.TestResult{
		RunID:     "3f2c9a1e-6b7d-4e08-9c55-0d1f5b8a7e42",
		Name:      "checkout soak",
		Host:      "https://shop.example.com",
		Executor:  "ramping-vus",
		StartTime: start,
		EndTime:   now,
		Duration:  2 * time.Minute,
		Passed:    true,
		Metrics: &metrics.Snapshot{
			TotalRequests:   9184,
			SuccessRequests: 9093,
			FailedRequests:  91,
			TotalBytes:      4718592,
			RPS:             76.5,
			SteadyStateRPS:  81.2,
			ErrorRate:       0.0099,
			Iterations:      8984,
			StoppedUsers:    2,
			ActiveVUs:       50,
			Latency:         overall,
		},
		SpawnedUsers: 52,
		StoppedUsers: 2,
		TimeSeries:   createSampleTimeSeries(start, 120),
		RequestStats: []metrics.RequestStats{
			{Name: profile.NameRegister, Successes: 102, Failures: 2, TotalBytes: 41600, Latency: latency(22, 88, 71, 190, 350, 610)},
			{Name: profile.NameLogin, Successes: 98, Failures: 0, TotalBytes: 58800, Latency: latency(18, 64, 55, 140, 260, 480)},
			{Name: profile.NameOrder, Successes: 6645, Failures: 84, TotalBytes: 3633660, Latency: latency(9, 66, 47, 181, 420, 1210)},
			{Name: profile.NameMe, Successes: 2248, Failures: 5, TotalBytes: 984532, Latency: latency(6, 39, 31, 92, 188, 355)},
		},
		Failures: []metrics.Failure{
			{Name: profile.NameOrder, Message: `Order failed with status 503: {"status":"error","message":"訂單處理系統忙碌，請稍後重試"}`, Occurrences: 79},
			{Name: profile.NameOrder, Message: "Order failed: Post \"https://shop.example.com/api/orders\": context deadline exceeded", Occurrences: 5},
			{Name: profile.NameMe, Message: `Failed to fetch user info: {"message":"Unauthenticated."}`, Occurrences: 5},
			{Name: profile.NameRegister, Message: "User registration failed: <html>502 Bad Gateway</html>", Occurrences: 2},
		},
		PhaseHistory: []metrics.PhaseChange{
			{Phase: metrics.PhaseRampUp, Timestamp: start, Requests: 0},
			{Phase: metrics.PhaseSteady, Timestamp: start.Add(20 * time.Second), Requests: 640},
			{Phase: metrics.PhaseRampDown, Timestamp: start.Add(100 * time.Second), Requests: 7820},
			{Phase: metrics.PhaseDone, Timestamp: now, Requests: 9184},
		},
		Thresholds: []engine.ThresholdResult{
			{Metric: "http_req_duration", Expression: "p95 < 200ms", Passed: true, Value: "168ms"},
			{Metric: "http_req_duration", Expression: "p99 < 500ms", Passed: true, Value: "402ms"},
			{Metric: "http_req_failed", Expression: "rate < 0.02", Passed: true, Value: "0.0099"},
			{Metric: "http_reqs", Expression: "rate > 50", Passed: true, Value: "76.50"},
		},
	}
}

func createSampleTimeSeries(start time.Time, seconds int) []*metrics.TimeBucket {
	buckets := make([]*metrics.TimeBucket, seconds)

	rampUpEnd := 20
	steadyEnd := seconds - 20

	var total, failures int64
	for i := 0; i < seconds; i++ {
		var phase metrics.Phase
		var vus int
		var rps float64

		switch {
		case i < rampUpEnd:
			phase = metrics.PhaseRampUp
			progress := float64(i) / float64(rampUpEnd)
			vus = int(progress * 50)
			rps = progress * 80
		case i < steadyEnd:
			phase = metrics.PhaseSteady
			vus = 50
			rps = 80 + float64(i%7) - 3
		default:
			phase = metrics.PhaseRampDown
			progress := float64(seconds-i) / float64(rampUpEnd)
			vus = int(progress * 50)
			rps = progress * 80
		}
		if vus < 1 {
			vus = 1
		}
		if rps < 1 {
			rps = 1
		}

		intervalFailures := int64(0)
		if i%4 == 0 {
			intervalFailures = 3
		}
		total += int64(rps)
		failures += intervalFailures

		buckets[i] = &metrics.TimeBucket{
			Timestamp:         start.Add(time.Duration(i) * time.Second),
			TotalRequests:     total,
			TotalSuccesses:    total - failures,
			TotalFailures:     failures,
			TotalBytes:        total * 514,
			IntervalRequests:  int64(rps),
			IntervalFailures:  intervalFailures,
			IntervalRPS:       rps,
			IntervalErrorRate: float64(intervalFailures) / rps,
			LatencyMin:        6 * time.Millisecond,
			LatencyMax:        time.Duration(300+i*7) * time.Millisecond,
			LatencyP50:        time.Duration(40+i%10) * time.Millisecond,
			LatencyP90:        time.Duration(110+i%20) * time.Millisecond,
			LatencyP95:        time.Duration(150+i%30) * time.Millisecond,
			LatencyP99:        time.Duration(380+i%50) * time.Millisecond,
			ActiveVUs:         vus,
			Phase:             phase,
		}
	}

	return buckets
}
