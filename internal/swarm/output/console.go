// Package output renders a load run to the console: a live progress
// panel while shoppers run and a request/failure summary at the end.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	termout "github.com/wesleyorama2/orderstorm/internal/output"
	"github.com/wesleyorama2/orderstorm/internal/swarm/engine"
	"github.com/wesleyorama2/orderstorm/internal/swarm/metrics"
)

// ANSI escape codes for cursor control
const (
	cursorUp  = "\033[%dA"
	clearLine = "\033[2K"

	// Box drawing characters
	boxHorizontal  = "━"
	boxVertical    = "│"
	boxTopLeft     = "┌"
	boxTopRight    = "┐"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"

	// Progress bar characters
	progressFilled = "█"
	progressEmpty  = "░"
)

// LiveStats contains real-time statistics for display.
type LiveStats struct {
	// Progress tracking
	Progress  float64       // 0.0 to 1.0
	Elapsed   time.Duration // Time elapsed since test start
	Remaining time.Duration // Estimated time remaining

	// Shopper stats
	ActiveVUs    int
	TargetVUs    int
	StoppedUsers int64

	// Request stats
	CurrentRPS    float64
	TotalRequests int64
	Errors        int64
	ErrorRate     float64 // 0.0 to 1.0

	// Latency stats
	LatencyP95 time.Duration
	LatencyAvg time.Duration

	// Phase info
	CurrentPhase string
	CurrentStage int // 1-indexed
	TotalStages  int
}

// ConsoleOutput manages live console output during a load run.
type ConsoleOutput struct {
	testName      string
	host          string
	executorType  string
	totalDuration time.Duration
	writer        io.Writer
	isTTY         bool
	useColors     bool
	quiet         bool
	colors        *termout.ColorScheme

	mu          sync.Mutex
	linesOutput int // Number of lines in the live display
}

// ConsoleOutputConfig contains configuration for ConsoleOutput.
type ConsoleOutputConfig struct {
	TestName      string
	Host          string
	ExecutorType  string
	TotalDuration time.Duration
	Writer        io.Writer
	Quiet         bool
	NoColor       bool
	ForceColors   bool
	ForceTTY      bool
}

// NewConsoleOutput creates a new console output handler.
func NewConsoleOutput(config ConsoleOutputConfig) *ConsoleOutput {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}

	isTTY := config.ForceTTY || termout.IsTerminal(config.Writer)
	useColors := !config.NoColor && (config.ForceColors || (isTTY && termout.SupportsColors()))

	return &ConsoleOutput{
		testName:      config.TestName,
		host:          config.Host,
		executorType:  config.ExecutorType,
		totalDuration: config.TotalDuration,
		writer:        config.Writer,
		isTTY:         isTTY,
		useColors:     useColors,
		quiet:         config.Quiet,
		colors:        termout.SchemeFor(useColors),
	}
}

// PrintHeader prints the run header.
func (c *ConsoleOutput) PrintHeader() {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := strings.Repeat(boxHorizontal, 56)
	executorInfo := ""
	if c.executorType != "" {
		executorInfo = fmt.Sprintf(" [%s]", c.executorType)
	}

	c.writeln(c.colors.Info.Sprint(line))
	c.writeln(c.colors.Title.Sprintf("%s - Running%s", c.testName, executorInfo))
	if c.host != "" {
		c.writeln(c.colors.Dim.Sprintf("Target: %s", c.host))
	}
	c.writeln(c.colors.Info.Sprint(line))
	c.writeln("")
}

// Update redraws the live display in place. It is a no-op off a TTY.
func (c *ConsoleOutput) Update(stats *LiveStats) {
	if c.quiet || !c.isTTY {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLive()

	lines := c.renderLiveStats(stats)
	c.linesOutput = len(lines)
	for _, line := range lines {
		c.writeln(line)
	}
}

// clearLive erases the previous live panel. Callers hold c.mu.
func (c *ConsoleOutput) clearLive() {
	if c.linesOutput == 0 {
		return
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	for i := 0; i < c.linesOutput; i++ {
		c.write(clearLine + "\n")
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	c.linesOutput = 0
}

func (c *ConsoleOutput) renderLiveStats(stats *LiveStats) []string {
	var lines []string

	progressBar := renderProgressBar(stats.Progress, 40)
	progressPercent := fmt.Sprintf("%.0f%%", stats.Progress*100)
	timeInfo := fmt.Sprintf("%s / %s", formatDuration(stats.Elapsed), formatDuration(stats.Elapsed+stats.Remaining))

	lines = append(lines, fmt.Sprintf("Progress: %s %s | %s",
		c.colors.Success.Sprint(progressBar),
		c.colors.Title.Sprint(progressPercent),
		c.colors.Dim.Sprint(timeInfo)))

	phaseInfo := stats.CurrentPhase
	if stats.TotalStages > 0 {
		phaseInfo = fmt.Sprintf("%s (%d/%d)", stats.CurrentPhase, stats.CurrentStage, stats.TotalStages)
	}
	lines = append(lines, fmt.Sprintf("Stage:    %s", c.colors.Highlight.Sprint(phaseInfo)))
	lines = append(lines, "")

	boxWidth := 55
	lines = append(lines, c.colors.Dim.Sprint(boxTopLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxTopRight))

	usersStr := fmt.Sprintf("Users:   %s / %d", c.colors.Path.Sprint(stats.ActiveVUs), stats.TargetVUs)
	reqsStr := fmt.Sprintf("Requests:    %s", c.colors.Path.Sprint(formatNumber(stats.TotalRequests)))
	lines = append(lines, c.formatBoxRow(usersStr, reqsStr, boxWidth))

	errColor := c.errorColor(stats.ErrorRate)
	rpsStr := fmt.Sprintf("RPS:     %s", c.colors.Success.Sprintf("%.1f", stats.CurrentRPS))
	errStr := fmt.Sprintf("Fails:       %s (%s)",
		errColor.Sprint(stats.Errors),
		errColor.Sprintf("%.1f%%", stats.ErrorRate*100))
	lines = append(lines, c.formatBoxRow(rpsStr, errStr, boxWidth))

	p95Str := fmt.Sprintf("P95:     %s", c.colors.Info.Sprint(formatDurationShort(stats.LatencyP95)))
	avgStr := fmt.Sprintf("Avg:         %s", c.colors.Info.Sprint(formatDurationShort(stats.LatencyAvg)))
	lines = append(lines, c.formatBoxRow(p95Str, avgStr, boxWidth))

	if stats.StoppedUsers > 0 {
		stoppedStr := fmt.Sprintf("Stopped: %s", c.colors.Warn.Sprint(stats.StoppedUsers))
		lines = append(lines, c.formatBoxRow(stoppedStr, "", boxWidth))
	}

	lines = append(lines, c.colors.Dim.Sprint(boxBottomLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxBottomRight))

	return lines
}

func (c *ConsoleOutput) errorColor(rate float64) *color.Color {
	switch {
	case rate > 0.05:
		return c.colors.Error
	case rate > 0.01:
		return c.colors.Warn
	default:
		return c.colors.Success
	}
}

// formatBoxRow formats a row inside the stats box with two columns.
func (c *ConsoleOutput) formatBoxRow(left, right string, boxWidth int) string {
	colWidth := (boxWidth - 4) / 2 // 2 borders + 2 padding

	border := c.colors.Dim.Sprint(boxVertical)
	return fmt.Sprintf("%s %s %s %s %s",
		border,
		padVisible(left, colWidth),
		border,
		padVisible(right, colWidth),
		border)
}

func renderProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	filled := int(progress * float64(width))
	return "[" + strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, width-filled) + "]"
}

// PrintSummary prints the final run summary: totals, latency distribution,
// the per-request table, the failures table and threshold results.
func (c *ConsoleOutput) PrintSummary(result *engine.TestResult) {
	if c.quiet {
		if result.Passed {
			c.writeln(c.colors.Success.Sprint("PASSED"))
		} else {
			c.writeln(c.colors.Error.Sprint("FAILED"))
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isTTY {
		c.clearLive()
	}

	line := strings.Repeat(boxHorizontal, 56)
	status := c.colors.Success.Sprint("Completed ✓")
	if !result.Passed {
		status = c.colors.Error.Sprint("Failed ✗")
	}

	c.writeln("")
	c.writeln(c.colors.Info.Sprint(line))
	c.writeln(fmt.Sprintf("%s - %s", c.colors.Title.Sprint(result.Name), status))
	c.writeln(c.colors.Info.Sprint(line))
	c.writeln("")

	c.writeln(fmt.Sprintf("Run ID:        %s", c.colors.Dim.Sprint(result.RunID)))
	c.writeln(fmt.Sprintf("Duration:      %s", c.colors.Path.Sprint(formatDuration(result.Duration))))
	c.writeln(fmt.Sprintf("Users:         %s spawned, %s stopped",
		c.colors.Path.Sprint(result.SpawnedUsers),
		c.colors.Path.Sprint(result.StoppedUsers)))
	if m := result.Metrics; m != nil {
		c.writeln(fmt.Sprintf("Total Reqs:    %s", c.colors.Path.Sprint(formatNumber(m.TotalRequests))))
		c.writeln(fmt.Sprintf("Iterations:    %s", c.colors.Path.Sprint(formatNumber(m.Iterations))))

		successRate := 1.0 - m.ErrorRate
		successColor := c.colors.Success
		if successRate < 0.99 {
			successColor = c.colors.Warn
		}
		if successRate < 0.95 {
			successColor = c.colors.Error
		}
		c.writeln(fmt.Sprintf("Success Rate:  %s", successColor.Sprintf("%.1f%%", successRate*100)))
		c.writeln(fmt.Sprintf("Throughput:    %s", c.colors.Path.Sprintf("%.1f req/s", m.RPS)))
	}
	c.writeln("")

	if m := result.Metrics; m != nil && m.Latency.Count > 0 {
		c.writeln(c.colors.Title.Sprint("Latency Distribution:"))
		c.writeln(fmt.Sprintf("  Min:       %s", formatDurationShort(m.Latency.Min)))
		c.writeln(fmt.Sprintf("  P50:       %s", formatDurationShort(m.Latency.P50)))
		c.writeln(fmt.Sprintf("  P90:       %s", formatDurationShort(m.Latency.P90)))
		c.writeln(fmt.Sprintf("  P95:       %s", formatDurationShort(m.Latency.P95)))
		c.writeln(fmt.Sprintf("  P99:       %s", formatDurationShort(m.Latency.P99)))
		c.writeln(fmt.Sprintf("  Max:       %s", formatDurationShort(m.Latency.Max)))
		c.writeln("")
	}

	if len(result.RequestStats) > 0 {
		c.writeln(c.colors.Title.Sprint("Requests:"))
		c.writeRequestTable(result.RequestStats, result.Duration)
		c.writeln("")
	}

	if len(result.Failures) > 0 {
		c.writeln(c.colors.Title.Sprint("Failures:"))
		c.writeFailureTable(result.Failures)
		c.writeln("")
	}

	if len(result.Thresholds) > 0 {
		c.writeln(c.colors.Title.Sprint("Thresholds:"))
		for _, t := range result.Thresholds {
			mark := c.colors.Success.Sprint("✓")
			if !t.Passed {
				mark = c.colors.Error.Sprint("✗")
			}
			c.writeln(fmt.Sprintf("  %s %s %s (actual: %s)", mark, t.Metric, t.Expression, t.Value))
		}
		c.writeln("")
	}

	if result.Error != "" {
		c.writeln(fmt.Sprintf("%s %s", c.colors.Error.Sprint("Error:"), result.Error))
		c.writeln("")
	}
}

var requestColumns = []struct {
	title string
	width int
}{
	{"Name", 24}, {"# reqs", 8}, {"# fails", 12}, {"Avg", 8}, {"Min", 8},
	{"Max", 8}, {"Med", 8}, {"P95", 8}, {"req/s", 8}, {"Bytes", 10},
}

// writeRequestTable writes one row per request name plus an aggregated row.
func (c *ConsoleOutput) writeRequestTable(stats []metrics.RequestStats, elapsed time.Duration) {
	header := make([]string, len(requestColumns))
	for i, col := range requestColumns {
		header[i] = col.title
	}
	c.writeln("  " + c.colors.Dim.Sprint(c.tableRow(header)))

	var total metrics.RequestStats
	total.Name = "Aggregated"
	for _, s := range stats {
		c.writeln("  " + c.tableRow(c.requestCells(s, elapsed)))
		total.Successes += s.Successes
		total.Failures += s.Failures
		total.TotalBytes += s.TotalBytes
	}
	if len(stats) > 1 {
		c.writeln("  " + c.colors.Dim.Sprint(strings.Repeat("─", tableWidth())))
		cells := c.requestCells(total, elapsed)
		// Latency columns are per name; the aggregate row leaves them blank.
		for i := 3; i <= 7; i++ {
			cells[i] = ""
		}
		c.writeln("  " + c.tableRow(cells))
	}
}

func (c *ConsoleOutput) requestCells(s metrics.RequestStats, elapsed time.Duration) []string {
	fails := fmt.Sprintf("%d(%.1f%%)", s.Failures, s.FailureRate()*100)
	if s.Failures > 0 {
		fails = c.colors.Error.Sprint(fails)
	}
	rps := 0.0
	if elapsed > 0 {
		rps = float64(s.Requests()) / elapsed.Seconds()
	}
	return []string{
		s.Name,
		fmt.Sprintf("%d", s.Requests()),
		fails,
		formatDurationShort(s.Latency.Mean),
		formatDurationShort(s.Latency.Min),
		formatDurationShort(s.Latency.Max),
		formatDurationShort(s.Latency.P50),
		formatDurationShort(s.Latency.P95),
		fmt.Sprintf("%.2f", rps),
		formatBytes(s.TotalBytes),
	}
}

func (c *ConsoleOutput) tableRow(cells []string) string {
	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(padVisible(cell, requestColumns[i].width))
	}
	return strings.TrimRight(b.String(), " ")
}

func tableWidth() int {
	w := len(requestColumns) - 1
	for _, col := range requestColumns {
		w += col.width
	}
	return w
}

func (c *ConsoleOutput) writeFailureTable(failures []metrics.Failure) {
	c.writeln("  " + c.colors.Dim.Sprintf("%-13s %-24s %s", "# occurrences", "Name", "Message"))
	for _, f := range failures {
		c.writeln(fmt.Sprintf("  %s %s %s",
			padVisible(c.colors.Error.Sprint(f.Occurrences), 13),
			padVisible(f.Name, 24),
			f.Message))
	}
}

// PrintNonInteractiveUpdate prints a one-line status update for
// non-terminal output such as CI logs.
func (c *ConsoleOutput) PrintNonInteractiveUpdate(stats *LiveStats) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln(fmt.Sprintf("[%s] Progress: %.0f%% | Users: %d | Reqs: %d | RPS: %.1f | Fails: %d (%.1f%%) | P95: %s",
		formatDuration(stats.Elapsed),
		stats.Progress*100,
		stats.ActiveVUs,
		stats.TotalRequests,
		stats.CurrentRPS,
		stats.Errors,
		stats.ErrorRate*100,
		formatDurationShort(stats.LatencyP95)))
}

// IsTTY returns whether the output is a terminal.
func (c *ConsoleOutput) IsTTY() bool {
	return c.isTTY
}

func (c *ConsoleOutput) write(s string) {
	fmt.Fprint(c.writer, s)
}

func (c *ConsoleOutput) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// padVisible pads s to width visible runes, ignoring ANSI escapes.
func padVisible(s string, width int) string {
	n := len([]rune(stripANSI(s)))
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatDurationShort formats a duration in a short format.
func formatDurationShort(d time.Duration) string {
	if d < time.Microsecond {
		return "0ms"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// stripANSI removes ANSI escape codes from a string.
func stripANSI(s string) string {
	var result strings.Builder
	inEscape := false

	for i := 0; i < len(s); i++ {
		if s[i] == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if (s[i] >= 'a' && s[i] <= 'z') || (s[i] >= 'A' && s[i] <= 'Z') {
				inEscape = false
			}
			continue
		}
		result.WriteByte(s[i])
	}

	return result.String()
}

// StatsFromMetrics builds LiveStats from a metrics snapshot and executor progress.
func StatsFromMetrics(
	snapshot *metrics.Snapshot,
	progress float64,
	totalDuration time.Duration,
	targetVUs int,
	currentStage, totalStages int,
) *LiveStats {
	if snapshot == nil {
		return &LiveStats{
			Progress:     progress,
			TargetVUs:    targetVUs,
			CurrentStage: currentStage,
			TotalStages:  totalStages,
			CurrentPhase: "initializing",
		}
	}

	elapsed := snapshot.Elapsed
	remaining := time.Duration(0)
	if progress > 0 && progress < 1 {
		remaining = time.Duration(float64(elapsed) * (1 - progress) / progress)
	} else if totalDuration > 0 {
		remaining = totalDuration - elapsed
		if remaining < 0 {
			remaining = 0
		}
	}

	return &LiveStats{
		Progress:      progress,
		Elapsed:       elapsed,
		Remaining:     remaining,
		ActiveVUs:     snapshot.ActiveVUs,
		TargetVUs:     targetVUs,
		StoppedUsers:  snapshot.StoppedUsers,
		CurrentRPS:    snapshot.RPS,
		TotalRequests: snapshot.TotalRequests,
		Errors:        snapshot.FailedRequests,
		ErrorRate:     snapshot.ErrorRate,
		LatencyP95:    snapshot.Latency.P95,
		LatencyAvg:    snapshot.Latency.Mean,
		CurrentPhase:  string(snapshot.CurrentPhase),
		CurrentStage:  currentStage,
		TotalStages:   totalStages,
	}
}
