// Package report writes load run results to HTML and JSON files.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wesleyorama2/orderstorm/internal/swarm/engine"
	"github.com/wesleyorama2/orderstorm/internal/swarm/metrics"
)

// ReportData contains all data needed to render the HTML report.
type ReportData struct {
	*engine.TestResult

	// Requests has one row per request name; Aggregated sums them
	Requests   []RequestRow
	Aggregated *RequestRow

	TimeSeriesJSON template.JS
}

// RequestRow is one line of the requests table, with the success and
// failure split shown separately.
type RequestRow struct {
	Name       string
	Requests   int64
	Successes  int64
	Failures   int64
	FailurePct float64
	Latency    metrics.LatencyStats
	RPS        float64
	TotalBytes int64
}

// TimeSeriesPoint represents a single point in the time series for JSON export.
type TimeSeriesPoint struct {
	Timestamp         string  `json:"timestamp"`
	TotalRequests     int64   `json:"totalRequests"`
	IntervalRequests  int64   `json:"intervalRequests"`
	IntervalRPS       float64 `json:"intervalRPS"`
	IntervalErrorRate float64 `json:"intervalErrorRate"`
	LatencyP50        int64   `json:"latencyP50"`
	LatencyP95        int64   `json:"latencyP95"`
	LatencyP99        int64   `json:"latencyP99"`
	ActiveVUs         int     `json:"activeVUs"`
	Phase             string  `json:"phase"`
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"formatDuration": formatDuration,
	"formatNumber":   formatNumber,
	"formatLatency":  formatLatency,
	"formatBytes":    formatBytes,
	"percent":        func(ratio float64) float64 { return ratio * 100 },
}).Parse(htmlTemplate))

// GenerateHTML generates an HTML report and writes it to outputPath.
func GenerateHTML(result *engine.TestResult, outputPath string) error {
	html, err := GenerateHTMLString(result)
	if err != nil {
		return fmt.Errorf("failed to generate HTML: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(html), 0644); err != nil {
		return fmt.Errorf("failed to write HTML file: %w", err)
	}

	return nil
}

// GenerateHTMLString renders the HTML report for result.
func GenerateHTMLString(result *engine.TestResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("result cannot be nil")
	}

	timeSeriesJSON, err := timeSeriesPoints(result.TimeSeries)
	if err != nil {
		return "", fmt.Errorf("failed to convert time series: %w", err)
	}

	data := ReportData{
		TestResult:     result,
		TimeSeriesJSON: template.JS(timeSeriesJSON),
	}
	data.Requests, data.Aggregated = requestRows(result)

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// requestRows builds the requests table. The aggregated row takes its
// latency from the overall histogram, not from an average of the rows.
func requestRows(result *engine.TestResult) ([]RequestRow, *RequestRow) {
	if len(result.RequestStats) == 0 {
		return nil, nil
	}

	rows := make([]RequestRow, 0, len(result.RequestStats))
	total := RequestRow{Name: "Aggregated"}
	for _, s := range result.RequestStats {
		row := RequestRow{
			Name:       s.Name,
			Requests:   s.Requests(),
			Successes:  s.Successes,
			Failures:   s.Failures,
			FailurePct: s.FailureRate() * 100,
			Latency:    s.Latency,
			RPS:        perSecond(s.Requests(), result.Duration),
			TotalBytes: s.TotalBytes,
		}
		rows = append(rows, row)

		total.Requests += row.Requests
		total.Successes += row.Successes
		total.Failures += row.Failures
		total.TotalBytes += row.TotalBytes
	}

	if total.Requests > 0 {
		total.FailurePct = float64(total.Failures) / float64(total.Requests) * 100
	}
	total.RPS = perSecond(total.Requests, result.Duration)
	if result.Metrics != nil {
		total.Latency = result.Metrics.Latency
	}
	return rows, &total
}

func timeSeriesPoints(buckets []*metrics.TimeBucket) (string, error) {
	points := make([]TimeSeriesPoint, 0, len(buckets))
	for _, b := range buckets {
		points = append(points, TimeSeriesPoint{
			Timestamp:         b.Timestamp.Format(time.RFC3339),
			TotalRequests:     b.TotalRequests,
			IntervalRequests:  b.IntervalRequests,
			IntervalRPS:       b.IntervalRPS,
			IntervalErrorRate: b.IntervalErrorRate,
			LatencyP50:        int64(b.LatencyP50),
			LatencyP95:        int64(b.LatencyP95),
			LatencyP99:        int64(b.LatencyP99),
			ActiveVUs:         b.ActiveVUs,
			Phase:             string(b.Phase),
		})
	}

	out, err := json.Marshal(points)
	if err != nil {
		return "[]", err
	}
	return string(out), nil
}

// formatDuration prints a run length as "1h 5m", "2m 30s" or "45s".
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return formatLatency(d)
	}
	d = d.Round(time.Second)

	h := d / time.Hour
	m := d % time.Hour / time.Minute
	s := d % time.Minute / time.Second

	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	if s > 0 && h == 0 {
		parts = append(parts, fmt.Sprintf("%ds", s))
	}
	return strings.Join(parts, " ")
}

// formatNumber groups digits in threes: 1234567 -> "1,234,567".
func formatNumber(n int64) string {
	digits := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, digits = "-", digits[1:]
	}

	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}

	var b strings.Builder
	b.WriteString(sign)
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// formatLatency picks the largest unit below the value and keeps three
// significant digits: 1.50ms, 42.5ms, 310ms, 1.20s.
func formatLatency(d time.Duration) string {
	if d <= 0 {
		return "0"
	}

	var v float64
	var unit string
	switch {
	case d < time.Microsecond:
		return strconv.FormatInt(int64(d), 10) + "ns"
	case d < time.Millisecond:
		v, unit = float64(d)/float64(time.Microsecond), "µs"
	case d < time.Second:
		v, unit = float64(d)/float64(time.Millisecond), "ms"
	default:
		v, unit = d.Seconds(), "s"
	}

	prec := 0
	switch {
	case v < 10:
		prec = 2
	case v < 100:
		prec = 1
	}
	return strconv.FormatFloat(v, 'f', prec, 64) + unit
}

var byteUnits = []string{"KB", "MB", "GB", "TB"}

// formatBytes prints a byte count in binary units.
func formatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	v := float64(n) / 1024
	i := 0
	for v >= 1024 && i < len(byteUnits)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", v, byteUnits[i])
}

func perSecond(n int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}
