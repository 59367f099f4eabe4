package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/orderstorm/internal/config"
	"github.com/wesleyorama2/orderstorm/internal/profile"
	"github.com/wesleyorama2/orderstorm/internal/swarm/engine"
	"github.com/wesleyorama2/orderstorm/internal/swarm/metrics"
	"github.com/wesleyorama2/orderstorm/internal/swarm/output"
	"github.com/wesleyorama2/orderstorm/internal/swarm/report"
)

// ErrRunFailed is returned when a run completes but does not pass its
// thresholds.
var ErrRunFailed = errors.New("load test did not pass")

// progressInterval is how often the live console is refreshed.
var progressInterval = time.Second

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a load test against the shop backend",
		Long: `Spawn synthetic shoppers against the backend and report request
statistics when the run ends.

Config file mode:
  orderstorm run --config storm.yaml

Quick CLI mode:
  orderstorm run --host http://localhost:8080 --users 50 --spawn-rate 5 --duration 5m

Ramping mode:
  orderstorm run --host http://localhost:8080 --stages "1m:50,5m:50,30s:0"

Flags override the config file; ORDERSTORM_HOST overrides the file's host.`,
		Args: cobra.NoArgs,
		RunE: runLoadTest,
	}

	cmd.Flags().StringP("config", "c", "", "Configuration file (YAML or JSON)")
	cmd.Flags().String("host", "", "Base URL of the backend under test")
	cmd.Flags().IntP("users", "u", 0, "Number of concurrent shoppers")
	cmd.Flags().Float64P("spawn-rate", "r", 0, "Shoppers started per second (0 starts all at once)")
	cmd.Flags().StringP("duration", "d", "", "Run duration (e.g., 5m, 30s)")
	cmd.Flags().String("stages", "", "Ramping stages as 'duration:target,duration:target,...'")
	cmd.Flags().String("executor", "", "Executor type: constant-vus, ramping-vus")
	cmd.Flags().Duration("wait-min", 0, "Minimum wait between two tasks of a shopper")
	cmd.Flags().Duration("wait-max", 0, "Maximum wait between two tasks of a shopper")
	cmd.Flags().Uint64("seed", 0, "Seed for reproducible shopper randomness")

	// Reporting flags
	cmd.Flags().Bool("json", false, "Output results as JSON")
	cmd.Flags().Bool("html", false, "Generate HTML report")
	cmd.Flags().StringP("output", "o", "", "Output file for the report")
	cmd.Flags().BoolP("quiet", "q", false, "Disable live progress output, show only final summary")
	cmd.Flags().Bool("no-color", false, "Disable colored output")

	cmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().String("log-format", "", "Log format: console, json")
	cmd.Flags().String("prometheus-addr", "", "Serve Prometheus metrics on this address (e.g., :9464)")

	return cmd
}

// resolveConfig layers the config file, the environment, then any flag the
// user actually set, and applies defaults.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")

	cfg, err := loadRunConfig(path)
	if err != nil {
		return nil, err
	}

	if flags.Changed("host") {
		cfg.Host, _ = flags.GetString("host")
	}
	if flags.Changed("users") {
		cfg.Load.Users, _ = flags.GetInt("users")
	}
	if flags.Changed("spawn-rate") {
		cfg.Load.SpawnRate, _ = flags.GetFloat64("spawn-rate")
	}
	if flags.Changed("duration") {
		cfg.Load.Duration, _ = flags.GetString("duration")
	}
	if flags.Changed("stages") {
		raw, _ := flags.GetString("stages")
		stages, err := config.ParseStages(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --stages: %w", err)
		}
		cfg.Load.Stages = stages
		if !flags.Changed("executor") {
			cfg.Load.Executor = "ramping-vus"
		}
	}
	if flags.Changed("executor") {
		cfg.Load.Executor, _ = flags.GetString("executor")
	}
	if flags.Changed("wait-min") {
		d, _ := flags.GetDuration("wait-min")
		cfg.WaitTime.Min = config.Duration(d)
	}
	if flags.Changed("wait-max") {
		d, _ := flags.GetDuration("wait-max")
		cfg.WaitTime.Max = config.Duration(d)
	}
	if flags.Changed("seed") {
		cfg.Profile.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("prometheus-addr") {
		cfg.Prometheus.Addr, _ = flags.GetString("prometheus-addr")
		cfg.Prometheus.Enabled = cfg.Prometheus.Addr != ""
	}
	applyLogFlags(cmd, cfg)

	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runLoadTest runs a load test using the swarm engine
func runLoadTest(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	noColor, _ := cmd.Flags().GetBool("no-color")

	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	opts := []engine.Option{engine.WithLogger(log)}

	if cfg.Prometheus.Enabled {
		exporter := metrics.NewPrometheusExporter(cfg.Prometheus.Addr)
		if err := exporter.Start(); err != nil {
			return fmt.Errorf("failed to start Prometheus exporter: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := exporter.Stop(ctx); err != nil {
				log.Warn("prometheus exporter shutdown", zap.Error(err))
			}
		}()
		opts = append(opts, engine.WithObserver(exporter))
		log.Info("serving metrics", zap.String("url", exporter.URL()))
	}

	eng, err := engine.NewEngine(cfg, profile.NewFactory(cfg.Profile), opts...)
	if err != nil {
		return fmt.Errorf("error creating engine: %w", err)
	}

	totalDuration, _ := cfg.Load.TotalDuration()
	out := cmd.OutOrStdout()

	console := output.NewConsoleOutput(output.ConsoleOutputConfig{
		TestName:      cfg.Name,
		Host:          cfg.Host,
		ExecutorType:  cfg.Load.Executor,
		TotalDuration: totalDuration,
		Writer:        out,
		Quiet:         quiet,
		NoColor:       noColor,
	})
	console.PrintHeader()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		result *engine.TestResult
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		result, runErr = eng.Run(ctx)
	}()

	watchProgress(eng, console, totalDuration, quiet, done)

	if runErr != nil && result == nil {
		return fmt.Errorf("error running test: %w", runErr)
	}

	console.PrintSummary(result)

	if err := writeReports(cmd, out, result); err != nil {
		return err
	}

	if runErr != nil {
		return fmt.Errorf("error running test: %w", runErr)
	}
	if !result.Passed {
		return ErrRunFailed
	}
	return nil
}

// watchProgress refreshes the console until done is closed.
func watchProgress(eng *engine.Engine, console *output.ConsoleOutput, totalDuration time.Duration, quiet bool, done <-chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !eng.IsRunning() {
				continue
			}

			targetVUs, currentStage, totalStages := 0, 0, 0
			if st := eng.GetStats(); st != nil {
				targetVUs, currentStage, totalStages = st.TargetVUs, st.CurrentStage, st.TotalStages
			}
			stats := output.StatsFromMetrics(
				eng.GetMetrics(),
				eng.GetProgress(),
				totalDuration,
				targetVUs,
				currentStage,
				totalStages,
			)

			if console.IsTTY() {
				console.Update(stats)
			} else if !quiet {
				console.PrintNonInteractiveUpdate(stats)
			}
		}
	}
}

// writeReports writes the JSON and/or HTML report selected by the flags.
// --output with a .json or .html extension picks that format; without one
// both are written next to each other.
func writeReports(cmd *cobra.Command, out io.Writer, result *engine.TestResult) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	htmlOutput, _ := cmd.Flags().GetBool("html")
	outputPath, _ := cmd.Flags().GetString("output")

	ext := strings.ToLower(filepath.Ext(outputPath))
	isJSON := jsonOutput || ext == ".json"
	isHTML := htmlOutput || ext == ".html"

	switch {
	case isJSON && outputPath == "":
		return report.WriteJSON(out, result)
	case isJSON && !isHTML:
		return writeJSONReport(out, result, outputPath)
	case isHTML && !isJSON:
		if outputPath == "" {
			outputPath = defaultHTMLPath(result.Name, result.StartTime)
		}
		return writeHTMLReport(out, result, outputPath)
	case outputPath != "":
		base := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))
		if err := writeHTMLReport(out, result, base+".html"); err != nil {
			return err
		}
		return writeJSONReport(out, result, base+".json")
	}
	return nil
}

func writeJSONReport(out io.Writer, result *engine.TestResult, path string) error {
	if err := report.GenerateJSON(result, path); err != nil {
		return fmt.Errorf("error writing JSON report: %w", err)
	}
	fmt.Fprintf(out, "Results written to: %s\n", path)
	return nil
}

func writeHTMLReport(out io.Writer, result *engine.TestResult, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating report directory: %w", err)
		}
	}
	if err := report.GenerateHTML(result, path); err != nil {
		return fmt.Errorf("error generating HTML report: %w", err)
	}
	fmt.Fprintf(out, "HTML report written to: %s\n", path)
	return nil
}

// defaultHTMLPath names a report after the run and its start time.
func defaultHTMLPath(name string, start time.Time) string {
	safe := strings.ToLower(strings.NewReplacer(" ", "-", "/", "-").Replace(name))
	if safe == "" {
		safe = "run"
	}
	if start.IsZero() {
		start = time.Now()
	}
	return fmt.Sprintf("orderstorm-report-%s-%s.html", safe, start.Format("20060102-150405"))
}
