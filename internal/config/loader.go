package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// HostEnvVar overrides the configured host when set.
const HostEnvVar = "ORDERSTORM_HOST"

// Load reads a run configuration from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
//
// The document is checked against the embedded JSON Schema before it is
// decoded. Defaults are not applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data, path)
}

// ParseConfig parses configuration data.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension.
func ParseConfig(data []byte, path string) (*Config, error) {
	var config Config

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := ValidateDocument(data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		doc, err := yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
		if err := ValidateDocument(doc); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	return &config, nil
}

// yamlToJSON re-encodes a YAML document as JSON so it can be checked
// against the schema. An empty document becomes an empty object.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyEnvironment applies environment overrides. lookup is normally
// os.LookupEnv.
func ApplyEnvironment(cfg *Config, lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if host, ok := lookup(HostEnvVar); ok && strings.TrimSpace(host) != "" {
		cfg.Host = strings.TrimSpace(host)
	}
}

// ApplyDefaults applies default values to a Config.
func ApplyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Name == "" {
		cfg.Name = "orderstorm"
	}

	applyLoadDefaults(&cfg.Load)

	if cfg.WaitTime.Min == 0 && cfg.WaitTime.Max == 0 {
		cfg.WaitTime.Min = Duration(DefaultWaitMin)
		cfg.WaitTime.Max = Duration(DefaultWaitMax)
	} else if cfg.WaitTime.Max == 0 {
		cfg.WaitTime.Max = cfg.WaitTime.Min
	}

	applyProfileDefaults(&cfg.Profile)

	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = Duration(DefaultHTTPTimeout)
	}
	if cfg.HTTP.MaxIdleConnsPerHost == 0 {
		cfg.HTTP.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = DefaultUserAgent
	}

	if cfg.Prometheus.Enabled && cfg.Prometheus.Addr == "" {
		cfg.Prometheus.Addr = DefaultPrometheusAddr
	}
}

func applyLoadDefaults(load *LoadConfig) {
	if load.Executor == "" {
		if len(load.Stages) > 0 {
			load.Executor = "ramping-vus"
		} else {
			load.Executor = DefaultExecutor
		}
	}

	switch load.Executor {
	case "constant-vus":
		if load.Users == 0 {
			load.Users = 1
		}
		if load.Duration == "" {
			load.Duration = DefaultDuration
		}
	case "ramping-vus":
		// VUs determined by stages
	}

	if load.GracefulStop == "" {
		load.GracefulStop = DefaultGracefulStop.String()
	}
}

func applyProfileDefaults(p *ProfileConfig) {
	if p.Password == "" {
		p.Password = DefaultPassword
	}
	if p.EmailPrefix == "" {
		p.EmailPrefix = DefaultEmailPrefix
	}
	if p.EmailDomain == "" {
		p.EmailDomain = DefaultEmailDomain
	}
	if len(p.ProductIDs) == 0 {
		p.ProductIDs = append([]int(nil), DefaultProductIDs...)
	}
	if p.QuantityMin == 0 && p.QuantityMax == 0 {
		p.QuantityMin = DefaultQuantityMin
		p.QuantityMax = DefaultQuantityMax
	}
	if p.OrderWeight == 0 && p.ProfileWeight == 0 {
		p.OrderWeight = DefaultOrderWeight
		p.ProfileWeight = DefaultProfileWeight
	}
	if p.TokenPath == "" {
		p.TokenPath = DefaultTokenPath
	}
	if p.DuplicateEmailMarker == "" {
		p.DuplicateEmailMarker = DefaultDuplicateEmailMarker
	}
	if p.InsufficientStockMarker == "" {
		p.InsufficientStockMarker = DefaultInsufficientStockMarker
	}
}

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as integer: "30" (treated as 30 seconds)
//
// Returns the parsed duration or an error.
func ParseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	var seconds int
	var rest string
	if n, _ := fmt.Sscanf(s, "%d%s", &seconds, &rest); n == 1 {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// ParseStages parses the compact stage syntax used on the command line:
// "30s:10,1m:50,30s:0" (duration:target pairs).
func ParseStages(s string) ([]StageConfig, error) {
	var stages []StageConfig
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		fields := strings.Split(part, ":")
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid stage format %q (expected duration:target)", part)
		}

		if _, err := ParseDurationString(fields[0]); err != nil {
			return nil, fmt.Errorf("invalid stage duration %q: %w", fields[0], err)
		}

		var target int
		if _, err := fmt.Sscanf(fields[1], "%d", &target); err != nil {
			return nil, fmt.Errorf("invalid stage target %q: %w", fields[1], err)
		}

		stages = append(stages, StageConfig{Duration: fields[0], Target: target})
	}

	if len(stages) == 0 {
		return nil, fmt.Errorf("no stages in %q", s)
	}
	return stages, nil
}

// TotalDuration returns the run length: the explicit duration, or the sum
// of stage durations for ramping runs.
func (l *LoadConfig) TotalDuration() (time.Duration, error) {
	if l.Duration != "" && len(l.Stages) == 0 {
		return ParseDurationString(l.Duration)
	}

	if len(l.Stages) > 0 {
		var total time.Duration
		for _, stage := range l.Stages {
			stageDur, err := ParseDurationString(stage.Duration)
			if err != nil {
				return 0, fmt.Errorf("invalid stage duration: %w", err)
			}
			total += stageDur
		}
		return total, nil
	}

	return 0, fmt.Errorf("no duration specified and no stages defined")
}
