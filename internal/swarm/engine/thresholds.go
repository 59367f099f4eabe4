package engine

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/wesleyorama2/orderstorm/internal/config"
	"github.com/wesleyorama2/orderstorm/internal/swarm/metrics"
)

// ThresholdResult contains the result of a threshold evaluation.
type ThresholdResult struct {
	Metric     string `json:"metric"`
	Expression string `json:"expression"`
	Passed     bool   `json:"passed"`
	Value      string `json:"value"`
	Message    string `json:"message,omitempty"`
}

var thresholdExpr = regexp.MustCompile(`^(\w+)\s*([<>=!]+)\s*(.+)$`)

// unit decides how the right-hand side of an expression is parsed and how
// observed values are printed.
type unit int

const (
	unitDuration unit = iota
	unitRatio
	unitRate
	unitCount
)

func (u unit) parse(s string) (float64, error) {
	if u == unitDuration {
		d, err := time.ParseDuration(s)
		return float64(d), err
	}
	return strconv.ParseFloat(s, 64)
}

func (u unit) format(v float64) string {
	switch u {
	case unitDuration:
		return time.Duration(v).String()
	case unitRatio:
		return fmt.Sprintf("%.4f", v)
	case unitCount:
		return strconv.FormatFloat(v, 'f', 0, 64)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

// stat reads one number out of a snapshot.
type stat struct {
	unit unit
	read func(*metrics.Snapshot) float64
}

func latencyStat(pick func(metrics.LatencyStats) time.Duration) stat {
	return stat{unit: unitDuration, read: func(s *metrics.Snapshot) float64 {
		return float64(pick(s.Latency))
	}}
}

// thresholdMetric is one threshold section of the config and the stats an
// expression in it may name.
type thresholdMetric struct {
	name  string
	exprs func(*config.ThresholdsConfig) []string
	stats map[string]stat
}

var thresholdMetrics = []thresholdMetric{
	{
		name:  "http_req_duration",
		exprs: func(t *config.ThresholdsConfig) []string { return t.HTTPReqDuration },
		stats: map[string]stat{
			"min": latencyStat(func(l metrics.LatencyStats) time.Duration { return l.Min }),
			"max": latencyStat(func(l metrics.LatencyStats) time.Duration { return l.Max }),
			"avg": latencyStat(func(l metrics.LatencyStats) time.Duration { return l.Mean }),
			"med": latencyStat(func(l metrics.LatencyStats) time.Duration { return l.P50 }),
			"p50": latencyStat(func(l metrics.LatencyStats) time.Duration { return l.P50 }),
			"p90": latencyStat(func(l metrics.LatencyStats) time.Duration { return l.P90 }),
			"p95": latencyStat(func(l metrics.LatencyStats) time.Duration { return l.P95 }),
			"p99": latencyStat(func(l metrics.LatencyStats) time.Duration { return l.P99 }),
		},
	},
	{
		// Reclassified stock rejections are successes, so only real
		// failures count against this rate.
		name:  "http_req_failed",
		exprs: func(t *config.ThresholdsConfig) []string { return t.HTTPReqFailed },
		stats: map[string]stat{
			"rate": {unit: unitRatio, read: func(s *metrics.Snapshot) float64 { return s.ErrorRate }},
		},
	},
	{
		name:  "http_reqs",
		exprs: func(t *config.ThresholdsConfig) []string { return t.HTTPReqs },
		stats: map[string]stat{
			"count": {unit: unitCount, read: func(s *metrics.Snapshot) float64 { return float64(s.TotalRequests) }},
			"rate":  {unit: unitRate, read: func(s *metrics.Snapshot) float64 { return s.RPS }},
		},
	},
}

// EvaluateThresholds evaluates every configured threshold against snapshot,
// duration thresholds first, then failures, then request volume.
// A nil config yields no results.
func EvaluateThresholds(t *config.ThresholdsConfig, snapshot *metrics.Snapshot) []ThresholdResult {
	if t.IsEmpty() || snapshot == nil {
		return nil
	}

	var results []ThresholdResult
	for _, m := range thresholdMetrics {
		for _, expr := range m.exprs(t) {
			results = append(results, m.evaluate(expr, snapshot))
		}
	}
	return results
}

// AllPassed reports whether every threshold passed.
func AllPassed(results []ThresholdResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

func (m thresholdMetric) evaluate(expr string, snapshot *metrics.Snapshot) ThresholdResult {
	result := ThresholdResult{Metric: m.name, Expression: expr}

	name, op, raw, err := parseThresholdExpression(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	st, ok := m.stats[name]
	if !ok {
		result.Message = fmt.Sprintf("%s has no stat %q (want %s)", m.name, name, strings.Join(m.statNames(), ", "))
		return result
	}

	limit, err := st.unit.parse(raw)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	actual := st.read(snapshot)
	result.Value = st.unit.format(actual)
	result.Passed = compareValues(actual, op, limit)
	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %s, threshold: %s %s", name, result.Value, op, st.unit.format(limit))
	}
	return result
}

func (m thresholdMetric) statNames() []string {
	names := make([]string, 0, len(m.stats))
	for n := range m.stats {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// parseThresholdExpression splits an expression like "p95 < 500ms".
func parseThresholdExpression(expr string) (name, op, value string, err error) {
	matches := thresholdExpr.FindStringSubmatch(strings.TrimSpace(expr))
	if len(matches) != 4 {
		return "", "", "", fmt.Errorf("invalid expression format: %s", expr)
	}
	return matches[1], matches[2], strings.TrimSpace(matches[3]), nil
}

func compareValues(actual float64, op string, limit float64) bool {
	switch op {
	case "<":
		return actual < limit
	case "<=":
		return actual <= limit
	case ">":
		return actual > limit
	case ">=":
		return actual >= limit
	case "==", "=":
		return actual == limit
	case "!=", "<>":
		return actual != limit
	default:
		return false
	}
}
