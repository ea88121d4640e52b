package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"brickforge/internal/config"
)

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("BRICKFORGE_CONFIG", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Batch.Pattern != "*.lxf;*.lxfml" {
		t.Fatalf("unexpected default pattern: %q", cfg.Batch.Pattern)
	}
	if cfg.Batch.Jobs != 1 {
		t.Fatalf("unexpected default jobs: %d", cfg.Batch.Jobs)
	}
	if cfg.Batch.Device != "auto" {
		t.Fatalf("unexpected default device: %q", cfg.Batch.Device)
	}
	if cfg.Pipeline.PatchMode != "wrap" {
		t.Fatalf("unexpected default patch mode: %q", cfg.Pipeline.PatchMode)
	}
	wantBridge := filepath.Join(tempHome, ".config", "brickforge", "bridge.py")
	if cfg.Host.BridgeScript != wantBridge {
		t.Fatalf("bridge script not expanded: got %q want %q", cfg.Host.BridgeScript, wantBridge)
	}
}

func TestLoadParsesExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := strings.Join([]string{
		"[host]",
		`binary = "/opt/blender/blender"`,
		`bridge_script = "` + filepath.Join(dir, "bridge.py") + `"`,
		"[batch]",
		"jobs = 4",
		`device = "optix"`,
		"[pipeline]",
		`patch_mode = "stub"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution: exists=%v path=%q", exists, resolved)
	}
	if cfg.Host.Binary != "/opt/blender/blender" {
		t.Fatalf("unexpected binary: %q", cfg.Host.Binary)
	}
	if cfg.Batch.Jobs != 4 || cfg.Batch.Device != "optix" {
		t.Fatalf("unexpected batch settings: %+v", cfg.Batch)
	}
	if cfg.Pipeline.PatchMode != "stub" {
		t.Fatalf("unexpected patch mode: %q", cfg.Pipeline.PatchMode)
	}
	// Unset sections keep defaults.
	if cfg.Pipeline.ProcessOp != "lutb.process_model" {
		t.Fatalf("unexpected process op: %q", cfg.Pipeline.ProcessOp)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"zero jobs", func(c *config.Config) { c.Batch.Jobs = 0 }, "batch.jobs"},
		{"bad device", func(c *config.Config) { c.Batch.Device = "metal" }, "batch.device"},
		{"bad patch mode", func(c *config.Config) { c.Pipeline.PatchMode = "skip" }, "patch_mode"},
		{"bad operator id", func(c *config.Config) { c.Pipeline.BakeOp = "bake" }, "bake_op"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected overwrite refusal")
	}
}
