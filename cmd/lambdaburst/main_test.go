package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigShowAppliesFileEnvAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("batch:\n  count: 7\n  concurrency: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LAMBDABURST_CONCURRENCY", "9")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "show", "--config", path, "--region", "ap-south-1"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config show failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{"count: 7", "concurrency: 9", "region: ap-south-1", "profiling_group: demoApplication"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in output:\n%s", want, got)
		}
	}
}

func TestRunRejectsInvalidFlags(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--count", "0", "--no-profiler"})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "count must be at least 1") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRootAcceptsRunFlags(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--invocation-type", "Sync", "--no-profiler"})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "unknown invocation type") {
		t.Fatalf("expected validation error from bare root command, got %v", err)
	}
}
