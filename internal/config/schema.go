// Package config loads and validates orderstorm run configuration.
package config

import (
	"time"
)

// Default values applied by ApplyDefaults.
const (
	DefaultHost                    = "http://localhost:80"
	DefaultExecutor                = "constant-vus"
	DefaultDuration                = "1m"
	DefaultGracefulStop            = 30 * time.Second
	DefaultWaitMin                 = 1 * time.Second
	DefaultWaitMax                 = 2500 * time.Millisecond
	DefaultPassword                = "password"
	DefaultEmailPrefix             = "testuser_"
	DefaultEmailDomain             = "example.com"
	DefaultQuantityMin             = 1
	DefaultQuantityMax             = 5
	DefaultOrderWeight             = 3
	DefaultProfileWeight           = 1
	DefaultTokenPath               = "access_token"
	DefaultDuplicateEmailMarker    = "email has already been taken"
	DefaultInsufficientStockMarker = "庫存不足"
	DefaultHTTPTimeout             = 30 * time.Second
	DefaultMaxIdleConnsPerHost     = 100
	DefaultUserAgent               = "orderstorm/1.0"
	DefaultPrometheusAddr          = ":9464"
)

// DefaultProductIDs is the catalogue orders are drawn from.
var DefaultProductIDs = []int{1, 2}

// Config is the root configuration for a load run.
//
// Example YAML:
//
//	name: "checkout soak"
//	host: "https://shop.example.com"
//	load:
//	  executor: ramping-vus
//	  stages:
//	    - duration: 1m
//	      target: 50
//	    - duration: 5m
//	      target: 50
//	waitTime:
//	  min: 1s
//	  max: 2500ms
//	thresholds:
//	  http_req_duration: ["p95 < 800ms"]
type Config struct {
	// Name of the run (for reporting)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Host is the base URL of the backend under test
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	Load       LoadConfig        `json:"load,omitempty" yaml:"load,omitempty"`
	WaitTime   WaitTimeConfig    `json:"waitTime,omitempty" yaml:"waitTime,omitempty"`
	Profile    ProfileConfig     `json:"profile,omitempty" yaml:"profile,omitempty"`
	HTTP       HTTPConfig        `json:"http,omitempty" yaml:"http,omitempty"`
	Thresholds *ThresholdsConfig `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
	Log        LogConfig         `json:"log,omitempty" yaml:"log,omitempty"`
	Prometheus PrometheusConfig  `json:"prometheus,omitempty" yaml:"prometheus,omitempty"`
}

// LoadConfig describes how many shoppers run and for how long.
type LoadConfig struct {
	// Executor is "constant-vus" or "ramping-vus"
	Executor string `json:"executor,omitempty" yaml:"executor,omitempty"`

	// Users is the number of concurrent shoppers (constant-vus)
	Users int `json:"users,omitempty" yaml:"users,omitempty"`

	// SpawnRate is users started per second; 0 starts everyone at once
	SpawnRate float64 `json:"spawnRate,omitempty" yaml:"spawnRate,omitempty"`

	// Duration is how long to run (e.g., "30s", "2m", "1h")
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Stages defines ramping stages (ramping-vus)
	Stages []StageConfig `json:"stages,omitempty" yaml:"stages,omitempty"`

	// GracefulStop is how long to wait for in-flight tasks to finish
	GracefulStop string `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`
}

// StageConfig defines a single stage in a ramping executor.
type StageConfig struct {
	Duration string `json:"duration" yaml:"duration"`
	Target   int    `json:"target" yaml:"target"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
}

// WaitTimeConfig is the uniform pause between two tasks of the same shopper.
type WaitTimeConfig struct {
	Min Duration `json:"min,omitempty" yaml:"min,omitempty"`
	Max Duration `json:"max,omitempty" yaml:"max,omitempty"`
}

// ProfileConfig tunes the shopper behavior.
type ProfileConfig struct {
	Password    string `json:"password,omitempty" yaml:"password,omitempty"`
	EmailPrefix string `json:"emailPrefix,omitempty" yaml:"emailPrefix,omitempty"`
	EmailDomain string `json:"emailDomain,omitempty" yaml:"emailDomain,omitempty"`

	ProductIDs  []int `json:"productIds,omitempty" yaml:"productIds,omitempty"`
	QuantityMin int   `json:"quantityMin,omitempty" yaml:"quantityMin,omitempty"`
	QuantityMax int   `json:"quantityMax,omitempty" yaml:"quantityMax,omitempty"`

	// OrderWeight and ProfileWeight are the relative task weights.
	// Both zero means the 3:1 default.
	OrderWeight   int `json:"orderWeight,omitempty" yaml:"orderWeight,omitempty"`
	ProfileWeight int `json:"profileWeight,omitempty" yaml:"profileWeight,omitempty"`

	// TokenPath is the JSONPath of the bearer token in the login response
	TokenPath string `json:"tokenPath,omitempty" yaml:"tokenPath,omitempty"`

	DuplicateEmailMarker    string `json:"duplicateEmailMarker,omitempty" yaml:"duplicateEmailMarker,omitempty"`
	InsufficientStockMarker string `json:"insufficientStockMarker,omitempty" yaml:"insufficientStockMarker,omitempty"`

	// Seed makes the random source deterministic; 0 seeds from crypto/rand
	Seed uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// HTTPConfig controls the shared connection pool.
type HTTPConfig struct {
	Timeout             Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxIdleConnsPerHost int      `json:"maxIdleConnsPerHost,omitempty" yaml:"maxIdleConnsPerHost,omitempty"`
	InsecureSkipVerify  bool     `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
	UserAgent           string   `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`

	// NoRequestID disables the X-Request-ID header
	NoRequestID bool `json:"noRequestId,omitempty" yaml:"noRequestId,omitempty"`
}

// ThresholdsConfig defines pass/fail criteria for the run.
type ThresholdsConfig struct {
	// HTTPReqDuration thresholds for request duration
	// e.g., ["p95 < 500ms", "avg < 200ms"]
	HTTPReqDuration []string `json:"http_req_duration,omitempty" yaml:"http_req_duration,omitempty"`

	// HTTPReqFailed thresholds for failure rate
	// e.g., ["rate < 0.01"] (less than 1% failures)
	HTTPReqFailed []string `json:"http_req_failed,omitempty" yaml:"http_req_failed,omitempty"`

	// HTTPReqs thresholds for request count/rate
	// e.g., ["count > 1000", "rate > 100"]
	HTTPReqs []string `json:"http_reqs,omitempty" yaml:"http_reqs,omitempty"`
}

// IsEmpty reports whether no threshold is configured.
func (t *ThresholdsConfig) IsEmpty() bool {
	return t == nil || len(t.HTTPReqDuration)+len(t.HTTPReqFailed)+len(t.HTTPReqs) == 0
}

// LogConfig mirrors logger.Config.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
}

// PrometheusConfig enables the /metrics exporter.
type PrometheusConfig struct {
	Enabled bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Addr    string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings.
type Duration time.Duration

// GetDuration returns the duration or a default if empty.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "null" {
		s = ""
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}
