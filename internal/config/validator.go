package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/wesleyorama2/orderstorm/pkg/jsonpath"
	"github.com/wesleyorama2/orderstorm/pkg/jsonschema"
)

//go:embed schema.json
var schemaJSON string

var configSchema = jsonschema.MustCompile("config.schema.json", schemaJSON)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateDocument checks a raw JSON document against the embedded schema.
// Schema violations are returned as *ValidationErrors with dotted field names.
func ValidateDocument(doc []byte) error {
	err := configSchema.ValidateJSON(doc)
	if err == nil {
		return nil
	}

	var violations jsonschema.ValidationErrors
	if !errors.As(err, &violations) {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	errs := &ValidationErrors{}
	for _, v := range violations {
		errs.Add(pointerToField(v.Location), v.Message)
	}
	return errs
}

// pointerToField turns "/load/stages/0/target" into "load.stages[0].target".
func pointerToField(pointer string) string {
	var sb strings.Builder
	for _, part := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		if part == "" {
			continue
		}
		if isIndex(part) {
			sb.WriteString("[" + part + "]")
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(part)
	}
	return sb.String()
}

func isIndex(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Validate validates the configuration after defaults have been applied.
//
// Returns nil if valid, or a *ValidationErrors containing all validation errors.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	validateHost(c.Host, errs)
	validateLoad(&c.Load, errs)

	if c.WaitTime.Min < 0 || c.WaitTime.Max < 0 {
		errs.Add("waitTime", "wait time cannot be negative")
	} else if c.WaitTime.Min > c.WaitTime.Max {
		errs.Add("waitTime", "min must be less than or equal to max")
	}

	validateProfile(&c.Profile, errs)

	if c.HTTP.Timeout < 0 {
		errs.Add("http.timeout", "cannot be negative")
	}
	if c.HTTP.MaxIdleConnsPerHost < 0 {
		errs.Add("http.maxIdleConnsPerHost", "cannot be negative")
	}

	if c.Thresholds != nil {
		validateThresholds(c.Thresholds, errs)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateHost(host string, errs *ValidationErrors) {
	if host == "" {
		errs.Add("host", "host is required")
		return
	}

	u, err := url.Parse(host)
	if err != nil {
		errs.Add("host", fmt.Sprintf("invalid URL: %v", err))
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		errs.Add("host", fmt.Sprintf("unsupported scheme %q (expected http or https)", u.Scheme))
	}
	if u.Host == "" {
		errs.Add("host", "host is missing a hostname")
	}
}

func validateLoad(load *LoadConfig, errs *ValidationErrors) {
	switch load.Executor {
	case "constant-vus":
		if load.Users <= 0 {
			errs.Add("load.users", "users must be greater than 0")
		}
		if load.Duration == "" {
			errs.Add("load.duration", "duration is required for constant-vus executor")
		} else if d, err := ParseDurationString(load.Duration); err != nil {
			errs.Add("load.duration", fmt.Sprintf("invalid duration: %v", err))
		} else if d <= 0 {
			errs.Add("load.duration", "duration must be greater than 0")
		}
	case "ramping-vus":
		if len(load.Stages) == 0 {
			errs.Add("load.stages", "at least one stage is required for ramping-vus executor")
		}
	case "":
		errs.Add("load.executor", "executor type is required")
	default:
		errs.Add("load.executor", fmt.Sprintf("unknown executor type: %s", load.Executor))
	}

	if load.SpawnRate < 0 {
		errs.Add("load.spawnRate", "spawnRate cannot be negative")
	}

	if load.GracefulStop != "" {
		if _, err := ParseDurationString(load.GracefulStop); err != nil {
			errs.Add("load.gracefulStop", fmt.Sprintf("invalid gracefulStop: %v", err))
		}
	}

	for i, stage := range load.Stages {
		validateStage(fmt.Sprintf("load.stages[%d]", i), &stage, errs)
	}
}

// validateStage validates a single stage configuration.
func validateStage(prefix string, stage *StageConfig, errs *ValidationErrors) {
	if stage.Duration == "" {
		errs.Add(prefix+".duration", "duration is required")
	} else if _, err := ParseDurationString(stage.Duration); err != nil {
		errs.Add(prefix+".duration", fmt.Sprintf("invalid duration: %v", err))
	}

	if stage.Target < 0 {
		errs.Add(prefix+".target", "target cannot be negative")
	}
}

func validateProfile(p *ProfileConfig, errs *ValidationErrors) {
	if p.Password == "" {
		errs.Add("profile.password", "password is required")
	}
	if len(p.ProductIDs) == 0 {
		errs.Add("profile.productIds", "at least one product id is required")
	}
	if p.QuantityMin < 1 {
		errs.Add("profile.quantityMin", "quantityMin must be at least 1")
	}
	if p.QuantityMin > p.QuantityMax {
		errs.Add("profile.quantityMax", "quantityMax must be greater than or equal to quantityMin")
	}
	if p.OrderWeight < 0 {
		errs.Add("profile.orderWeight", "weight cannot be negative")
	}
	if p.ProfileWeight < 0 {
		errs.Add("profile.profileWeight", "weight cannot be negative")
	}
	if p.OrderWeight+p.ProfileWeight <= 0 {
		errs.Add("profile", "at least one task must have a positive weight")
	}
	if !jsonpath.Valid(p.TokenPath) {
		errs.Add("profile.tokenPath", fmt.Sprintf("invalid JSONPath: %q", p.TokenPath))
	}
}

// validateThresholds validates threshold configuration.
func validateThresholds(t *ThresholdsConfig, errs *ValidationErrors) {
	for i, threshold := range t.HTTPReqDuration {
		if err := validateThresholdExpression(threshold, durationMetrics); err != nil {
			errs.Add(fmt.Sprintf("thresholds.http_req_duration[%d]", i), err.Error())
		}
	}

	for i, threshold := range t.HTTPReqFailed {
		if err := validateThresholdExpression(threshold, []string{"rate"}); err != nil {
			errs.Add(fmt.Sprintf("thresholds.http_req_failed[%d]", i), err.Error())
		}
	}

	for i, threshold := range t.HTTPReqs {
		if err := validateThresholdExpression(threshold, []string{"count", "rate"}); err != nil {
			errs.Add(fmt.Sprintf("thresholds.http_reqs[%d]", i), err.Error())
		}
	}
}

var (
	durationMetrics = []string{"p50", "p90", "p95", "p99", "min", "max", "avg", "med"}
	thresholdExpr   = regexp.MustCompile(`^(\w+)\s*(<=|>=|==|!=|<|>)\s*(\S.*)$`)
)

// validateThresholdExpression validates a threshold expression.
//
// Valid formats:
//   - "p95 < 500ms"
//   - "avg < 200ms"
//   - "rate < 0.01"
//   - "count > 1000"
func validateThresholdExpression(expr string, metrics []string) error {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return fmt.Errorf("threshold expression cannot be empty")
	}

	m := thresholdExpr.FindStringSubmatch(expr)
	if m == nil {
		return fmt.Errorf("threshold must look like '<metric> <op> <value>' with op one of <, >, <=, >=, ==, !=")
	}

	for _, metric := range metrics {
		if m[1] == metric {
			return nil
		}
	}
	return fmt.Errorf("unsupported metric %q (expected one of %s)", m[1], strings.Join(metrics, ", "))
}
