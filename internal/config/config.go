package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oriys/lambdaburst/internal/domain"
	"github.com/oriys/lambdaburst/internal/logging"
)

// ErrInvalid is returned by Validate for unusable settings.
var ErrInvalid = errors.New("invalid config")

// Defaults carried over from the demo application this harness drives.
const (
	DefaultFunctionName   = "StepFuncBatchWithProfiler-dev-async"
	DefaultProfilingGroup = "demoApplication"
	DefaultCount          = 1000
	DefaultPayload        = "{}"
	DefaultConcurrency    = 64
)

// AWSConfig holds SDK client settings. Empty fields fall back to the
// default credential and region chain.
type AWSConfig struct {
	Region          string `yaml:"region"`
	Profile         string `yaml:"profile"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	MaxAttempts     int    `yaml:"max_attempts"`
}

// BatchConfig describes the fan-out.
type BatchConfig struct {
	FunctionName   string                `yaml:"function_name"`
	Qualifier      string                `yaml:"qualifier"`
	Count          int                   `yaml:"count"`
	Payload        string                `yaml:"payload"`
	InvocationType domain.InvocationType `yaml:"invocation_type"`
	Concurrency    int                   `yaml:"concurrency"`
	InvokeTimeout  time.Duration         `yaml:"invoke_timeout"`
	TailLogs       bool                  `yaml:"tail_logs"`
	Progress       bool                  `yaml:"progress"`
}

// ProfilerConfig holds the profiling session settings.
type ProfilerConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ProfilingGroup string `yaml:"profiling_group"`
	Output         string `yaml:"output"`
}

// LoggingConfig holds operational logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Exporter   string  `yaml:"exporter"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate"`
}

// Config is the central configuration struct embedding all component configs
type Config struct {
	AWS      AWSConfig      `yaml:"aws"`
	Batch    BatchConfig    `yaml:"batch"`
	Profiler ProfilerConfig `yaml:"profiler"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Batch: BatchConfig{
			FunctionName:   DefaultFunctionName,
			Count:          DefaultCount,
			Payload:        DefaultPayload,
			InvocationType: domain.InvocationRequestResponse,
			Concurrency:    DefaultConcurrency,
			Progress:       true,
		},
		Profiler: ProfilerConfig{
			Enabled:        true,
			ProfilingGroup: DefaultProfilingGroup,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Namespace: "lambdaburst",
		},
		Tracing: TracingConfig{
			Exporter:   "otlp-http",
			Endpoint:   "localhost:4318",
			SampleRate: 1.0,
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("LAMBDABURST_FUNCTION"); v != "" {
		cfg.Batch.FunctionName = v
	}
	if v := os.Getenv("LAMBDABURST_QUALIFIER"); v != "" {
		cfg.Batch.Qualifier = v
	}
	if v := os.Getenv("LAMBDABURST_COUNT"); v != "" {
		setInt(&cfg.Batch.Count, "LAMBDABURST_COUNT", v)
	}
	if v := os.Getenv("LAMBDABURST_CONCURRENCY"); v != "" {
		setInt(&cfg.Batch.Concurrency, "LAMBDABURST_CONCURRENCY", v)
	}
	if v := os.Getenv("LAMBDABURST_PAYLOAD"); v != "" {
		cfg.Batch.Payload = v
	}
	if v := os.Getenv("LAMBDABURST_INVOKE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Batch.InvokeTimeout = d
		} else {
			logging.Op().Warn("ignoring env override", "key", "LAMBDABURST_INVOKE_TIMEOUT", "error", err)
		}
	}
	if v := os.Getenv("LAMBDABURST_PROFILING_GROUP"); v != "" {
		cfg.Profiler.ProfilingGroup = v
	}
	if v := os.Getenv("LAMBDABURST_PROFILER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Profiler.Enabled = b
		} else {
			logging.Op().Warn("ignoring env override", "key", "LAMBDABURST_PROFILER_ENABLED", "error", err)
		}
	}
	if v := os.Getenv("LAMBDABURST_AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("LAMBDABURST_AWS_ENDPOINT"); v != "" {
		cfg.AWS.Endpoint = v
	}
	if v := os.Getenv("LAMBDABURST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LAMBDABURST_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LAMBDABURST_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("LAMBDABURST_OTLP_ENDPOINT"); v != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Endpoint = v
	}
}

func setInt(dst *int, key, v string) {
	n, err := strconv.Atoi(v)
	if err != nil {
		logging.Op().Warn("ignoring env override", "key", key, "error", err)
		return
	}
	*dst = n
}

// Validate checks the settings needed to start a run.
func (c *Config) Validate() error {
	if c.Batch.FunctionName == "" {
		return fmt.Errorf("%w: function name is required", ErrInvalid)
	}
	if c.Batch.Count < 1 {
		return fmt.Errorf("%w: count must be at least 1, got %d", ErrInvalid, c.Batch.Count)
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalid, c.Batch.Concurrency)
	}
	if c.Batch.InvokeTimeout < 0 {
		return fmt.Errorf("%w: invoke timeout must not be negative", ErrInvalid)
	}
	if !json.Valid([]byte(c.Batch.Payload)) {
		return fmt.Errorf("%w: payload is not valid JSON: %q", ErrInvalid, c.Batch.Payload)
	}
	if !c.Batch.InvocationType.IsValid() {
		return fmt.Errorf("%w: unknown invocation type %q", ErrInvalid, c.Batch.InvocationType)
	}
	if c.Profiler.Enabled && c.Profiler.ProfilingGroup == "" {
		return fmt.Errorf("%w: profiling group is required when the profiler is enabled", ErrInvalid)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Logging.Format)
	}
	if (c.AWS.AccessKeyID == "") != (c.AWS.SecretAccessKey == "") {
		return fmt.Errorf("%w: access key id and secret access key must be set together", ErrInvalid)
	}
	return nil
}

// YAML renders the effective configuration with secrets masked.
func (c *Config) YAML() ([]byte, error) {
	masked := *c
	if masked.AWS.SecretAccessKey != "" {
		masked.AWS.SecretAccessKey = "********"
	}
	if masked.AWS.SessionToken != "" {
		masked.AWS.SessionToken = "********"
	}
	return yaml.Marshal(&masked)
}
