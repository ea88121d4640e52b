package preflight_test

import (
	"os"
	"path/filepath"
	"testing"

	"brickforge/internal/config"
	"brickforge/internal/preflight"
)

func statusByName(t *testing.T, results []preflight.Status, name string) preflight.Status {
	t.Helper()
	for _, status := range results {
		if status.Name == name {
			return status
		}
	}
	t.Fatalf("no status named %q", name)
	return preflight.Status{}
}

func TestRunWithWorkingEnvironment(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "host")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	script := filepath.Join(dir, "bridge.py")
	if err := os.WriteFile(script, []byte("pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Host.Binary = binary
	cfg.Host.BridgeScript = script
	cfg.Logging.Dir = filepath.Join(dir, "logs")

	results := preflight.Run(&cfg)
	if status := statusByName(t, results, "host binary"); !status.Passed {
		t.Fatalf("host binary check failed: %s", status.Detail)
	}
	if status := statusByName(t, results, "bridge script"); !status.Passed {
		t.Fatalf("bridge script check failed: %s", status.Detail)
	}
	if status := statusByName(t, results, "log directory"); !status.Passed {
		t.Fatalf("log directory check failed: %s", status.Detail)
	}
	if preflight.Failed(results) {
		t.Fatal("required checks should pass")
	}
}

func TestRunFlagsMissingRequirements(t *testing.T) {
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Host.Binary = filepath.Join(dir, "absent-host")
	cfg.Host.BridgeScript = filepath.Join(dir, "absent.py")
	cfg.Logging.Dir = filepath.Join(dir, "logs")

	results := preflight.Run(&cfg)
	if status := statusByName(t, results, "host binary"); status.Passed {
		t.Fatal("missing binary should fail")
	}
	if status := statusByName(t, results, "bridge script"); status.Passed {
		t.Fatal("missing script should fail")
	}
	if !preflight.Failed(results) {
		t.Fatal("run with missing required pieces must be flagged")
	}
}

func TestOptionalChecksDoNotFailTheRun(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "host")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	script := filepath.Join(dir, "bridge.py")
	if err := os.WriteFile(script, []byte("pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Host.Binary = binary
	cfg.Host.BridgeScript = script
	cfg.Logging.Dir = dir
	cfg.Pipeline.BrickDB = filepath.Join(dir, "missing-db")

	results := preflight.Run(&cfg)
	status := statusByName(t, results, "brick database")
	if status.Passed || !status.Optional {
		t.Fatalf("brick database should be an optional failure: %+v", status)
	}
	if preflight.Failed(results) {
		t.Fatal("optional failures must not fail the run")
	}
}
