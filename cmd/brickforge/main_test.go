package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"brickforge/internal/batch"
	"brickforge/internal/pipeline"
)

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"plain error", errors.New("boom"), 1},
		{"bake stage", &pipeline.StageError{Stage: pipeline.StageBake, Code: pipeline.ExitBake, Err: errors.New("bake")}, 4},
		{"wrapped stage", errors.Join(errors.New("outer"), &pipeline.StageError{Code: pipeline.ExitExport, Err: errors.New("export")}), 5},
		{"no matches", withStatus(statusNoMatches, errors.New("no files")), 1},
		{"jobs failed", withStatus(statusJobsFailed, errors.New("2 failed")), 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCode(tc.err); got != tc.want {
				t.Fatalf("exitCode = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestLODFlagTokens(t *testing.T) {
	lods := lodFlags{lod0: true, lod2: true}
	tokens := lods.tokens()
	if strings.Join(tokens, " ") != "--lod0 --lod2" {
		t.Fatalf("tokens = %v", tokens)
	}
	if (&lodFlags{}).any() {
		t.Fatal("empty selection reports any")
	}
}

func TestConfigInitProvisionsBridgeScript(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	scriptPath := filepath.Join(dir, "bridge.py")

	cmd := newConfigInitCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--path", cfgPath, "--bridge-path", scriptPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}

	if _, err := os.Stat(cfgPath); err != nil {
		t.Fatalf("configuration not written: %v", err)
	}
	content, err := os.ReadFile(scriptPath)
	if err != nil {
		t.Fatalf("bridge script not written: %v", err)
	}
	if !strings.Contains(string(content), "def main():") {
		t.Fatal("bridge script content unexpected")
	}
	if !strings.Contains(out.String(), "Wrote host bridge script") {
		t.Fatalf("missing provisioning notice:\n%s", out.String())
	}
}

func TestConfigInitKeepsExistingBridgeScript(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "bridge.py")
	if err := os.WriteFile(scriptPath, []byte("# customized\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := newConfigInitCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--path", filepath.Join(dir, "config.toml"), "--bridge-path", scriptPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}

	content, err := os.ReadFile(scriptPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "# customized\n" {
		t.Fatal("existing bridge script was overwritten")
	}
	if !strings.Contains(out.String(), "already present") {
		t.Fatalf("missing skip notice:\n%s", out.String())
	}
}

func TestRenderSummaryTable(t *testing.T) {
	summary := batch.Summary{
		OK:     1,
		Failed: 1,
		Results: []batch.JobResult{
			{Job: batch.Job{Input: "/in/a.lxf", Output: "/out/a.nif"}, Success: true, Duration: 1200 * time.Millisecond, LogPath: "/out/a.nif.ok.log"},
			{Job: batch.Job{Input: "/in/b.lxf", Output: "/out/b.nif"}, ExitCode: 4, Duration: 3 * time.Second, LogPath: "/out/b.nif.err.log"},
		},
	}
	rendered := renderSummaryTable(summary)
	for _, want := range []string{"a.lxf", "fail (4)", "1.20s", "b.nif.err.log"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("table missing %q:\n%s", want, rendered)
		}
	}
}
