package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oriys/lambdaburst/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Batch.FunctionName != "StepFuncBatchWithProfiler-dev-async" {
		t.Fatalf("unexpected function name %q", cfg.Batch.FunctionName)
	}
	if cfg.Batch.Count != 1000 {
		t.Fatalf("expected 1000 invocations, got %d", cfg.Batch.Count)
	}
	if cfg.Batch.Payload != "{}" {
		t.Fatalf("expected empty JSON object payload, got %q", cfg.Batch.Payload)
	}
	if cfg.Profiler.ProfilingGroup != "demoApplication" || !cfg.Profiler.Enabled {
		t.Fatalf("unexpected profiler defaults: %+v", cfg.Profiler)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lambdaburst.yaml")
	data := `
batch:
  function_name: other-fn
  count: 10
  concurrency: 4
  invoke_timeout: 30s
  invocation_type: Event
profiler:
  enabled: false
aws:
  region: eu-west-1
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Batch.FunctionName != "other-fn" || cfg.Batch.Count != 10 || cfg.Batch.Concurrency != 4 {
		t.Fatalf("file values not applied: %+v", cfg.Batch)
	}
	if cfg.Batch.InvokeTimeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %s", cfg.Batch.InvokeTimeout)
	}
	if cfg.Batch.InvocationType != domain.InvocationEvent {
		t.Fatalf("expected Event, got %q", cfg.Batch.InvocationType)
	}
	if cfg.Profiler.Enabled {
		t.Fatal("profiler should be disabled by file")
	}
	// untouched keys keep their defaults
	if cfg.Batch.Payload != DefaultPayload || cfg.Profiler.ProfilingGroup != DefaultProfilingGroup {
		t.Fatalf("defaults lost: %+v %+v", cfg.Batch, cfg.Profiler)
	}
	if cfg.AWS.Region != "eu-west-1" {
		t.Fatalf("expected region override, got %q", cfg.AWS.Region)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LAMBDABURST_FUNCTION", "env-fn")
	t.Setenv("LAMBDABURST_COUNT", "25")
	t.Setenv("LAMBDABURST_CONCURRENCY", "not-a-number")
	t.Setenv("LAMBDABURST_PROFILER_ENABLED", "false")
	t.Setenv("LAMBDABURST_INVOKE_TIMEOUT", "2s")
	t.Setenv("LAMBDABURST_OTLP_ENDPOINT", "collector:4318")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.Batch.FunctionName != "env-fn" || cfg.Batch.Count != 25 {
		t.Fatalf("env overrides not applied: %+v", cfg.Batch)
	}
	if cfg.Batch.Concurrency != DefaultConcurrency {
		t.Fatalf("invalid concurrency override should be ignored, got %d", cfg.Batch.Concurrency)
	}
	if cfg.Profiler.Enabled {
		t.Fatal("profiler should be disabled by env")
	}
	if cfg.Batch.InvokeTimeout != 2*time.Second {
		t.Fatalf("expected 2s timeout, got %s", cfg.Batch.InvokeTimeout)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Endpoint != "collector:4318" {
		t.Fatalf("otlp endpoint should enable tracing: %+v", cfg.Tracing)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty function", func(c *Config) { c.Batch.FunctionName = "" }},
		{"zero count", func(c *Config) { c.Batch.Count = 0 }},
		{"zero concurrency", func(c *Config) { c.Batch.Concurrency = 0 }},
		{"negative timeout", func(c *Config) { c.Batch.InvokeTimeout = -time.Second }},
		{"bad payload", func(c *Config) { c.Batch.Payload = "{" }},
		{"bad invocation type", func(c *Config) { c.Batch.InvocationType = "Sync" }},
		{"missing group", func(c *Config) { c.Profiler.ProfilingGroup = "" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
		{"half credentials", func(c *Config) { c.AWS.AccessKeyID = "AKID" }},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		err := cfg.Validate()
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got %v", tt.name, err)
		}
	}
}

func TestYAMLMasksSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AWS.AccessKeyID = "AKID"
	cfg.AWS.SecretAccessKey = "supersecret"

	out, err := cfg.YAML()
	if err != nil {
		t.Fatalf("YAML: %v", err)
	}
	if strings.Contains(string(out), "supersecret") {
		t.Fatalf("secret leaked: %s", out)
	}
	if cfg.AWS.SecretAccessKey != "supersecret" {
		t.Fatal("YAML must not modify the config")
	}
	if !strings.Contains(string(out), "function_name: StepFuncBatchWithProfiler-dev-async") {
		t.Fatalf("unexpected yaml: %s", out)
	}
}
