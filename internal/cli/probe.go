package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/orderstorm/internal/config"
	stormhttp "github.com/wesleyorama2/orderstorm/internal/http"
	"github.com/wesleyorama2/orderstorm/internal/output"
	"github.com/wesleyorama2/orderstorm/internal/profile"
	"github.com/wesleyorama2/orderstorm/internal/swarm"
)

// ErrProbeFailed is returned when any probe request was a reported failure.
var ErrProbeFailed = errors.New("probe failed")

func newProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Walk one shopper through every request once",
		Long: `Run a single shopper against the backend: register, log in, place
one order and fetch the profile, printing the outcome of each request.

Use it to check a backend before pointing a full run at it:
  orderstorm probe --host http://localhost:8080 -v`,
		Args: cobra.NoArgs,
		RunE: runProbe,
	}

	cmd.Flags().StringP("config", "c", "", "Configuration file (YAML or JSON)")
	cmd.Flags().String("host", "", "Base URL of the backend under test")
	cmd.Flags().BoolP("verbose", "v", false, "Print every request and response")
	cmd.Flags().Bool("no-color", false, "Disable colored output")
	cmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().String("log-format", "", "Log format: console, json")

	return cmd
}

func runProbe(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	noColor, _ := cmd.Flags().GetBool("no-color")

	cfg, err := loadRunConfig(path)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}
	applyLogFlags(cmd, cfg)
	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	out := cmd.OutOrStdout()
	formatter := output.NewFormatter(verbose, !output.UseColors(out, noColor))

	hc := swarm.NewHTTPClient(swarm.HTTPClientConfig{
		Timeout:             cfg.HTTP.Timeout.GetDuration(config.DefaultHTTPTimeout),
		MaxIdleConnsPerHost: cfg.HTTP.MaxIdleConnsPerHost,
		InsecureSkipVerify:  cfg.HTTP.InsecureSkipVerify,
	})
	if verbose {
		hc.Transport = &traceTransport{next: hc.Transport, formatter: formatter, out: out}
	}

	client := stormhttp.NewClient(
		stormhttp.WithHTTPClient(hc),
		stormhttp.WithBaseURL(cfg.Host),
		stormhttp.WithRequestID(!cfg.HTTP.NoRequestID),
		stormhttp.WithHeader("User-Agent", cfg.HTTP.UserAgent),
	)

	rec := &probeRecorder{out: out, formatter: formatter}
	env := &swarm.Env{
		VUID:      1,
		Client:    client,
		Recorder:  rec,
		Logger:    log.With(zap.Int("vu", 1)),
		Faker:     gofakeit.New(cfg.Profile.Seed),
		UserCount: func() int { return 1 },
	}
	user := profile.NewECommerceUser(env, cfg.Profile)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Fprintf(out, "Probing %s\n\n", cfg.Host)
	if err := probeShopper(ctx, user); err != nil {
		return err
	}

	total, failed := rec.counts()
	fmt.Fprintf(out, "\n%d requests, %d failed\n", total, failed)
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d requests failed", ErrProbeFailed, failed, total)
	}
	return nil
}

// probeShopper authenticates, then runs every task once in order.
func probeShopper(ctx context.Context, user *profile.ECommerceUser) error {
	if !user.Authenticate(ctx) {
		return fmt.Errorf("%w: shopper could not authenticate", ErrProbeFailed)
	}
	for _, task := range user.Tasks() {
		if err := task.Run(ctx); err != nil {
			return fmt.Errorf("task %s: %w", task.Name, err)
		}
	}
	return nil
}

// probeRecorder prints every outcome as it is recorded.
type probeRecorder struct {
	out       io.Writer
	formatter *output.Formatter

	mu       sync.Mutex
	total    int
	failures int
}

func (r *probeRecorder) RecordSuccess(name string, elapsed time.Duration, bytes int64) {
	r.record(output.Outcome{Name: name, Success: true, Elapsed: elapsed, Bytes: bytes})
}

func (r *probeRecorder) RecordFailure(name string, elapsed time.Duration, bytes int64, message string) {
	r.record(output.Outcome{Name: name, Elapsed: elapsed, Bytes: bytes, Message: message})
}

func (r *probeRecorder) record(o output.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	if !o.Success {
		r.failures++
	}
	fmt.Fprintln(r.out, r.formatter.FormatOutcome(o))
}

func (r *probeRecorder) counts() (total, failures int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total, r.failures
}

// traceTransport prints each exchange before handing the response on.
type traceTransport struct {
	next      http.RoundTripper
	formatter *output.Formatter
	out       io.Writer
}

func (t *traceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var reqBody []byte
	if req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			reqBody, _ = io.ReadAll(body)
			body.Close()
		}
	}
	fmt.Fprint(t.out, t.formatter.FormatRequest(req, reqBody))

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	fmt.Fprint(t.out, t.formatter.FormatResponse(resp, respBody, time.Since(start)))
	return resp, nil
}
