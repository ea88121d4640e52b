// Package preflight evaluates the environment a conversion run depends on
// before any worker is spawned.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"brickforge/internal/config"
)

// Check is one environment requirement.
type Check struct {
	Name        string
	Description string
	Optional    bool
	probe       func() (string, error)
}

// Status is the outcome of one check.
type Status struct {
	Name        string
	Description string
	Optional    bool
	Passed      bool
	Detail      string
}

// Run evaluates every check derived from the configuration.
func Run(cfg *config.Config) []Status {
	checks := buildChecks(cfg)
	results := make([]Status, 0, len(checks))
	for _, check := range checks {
		status := Status{
			Name:        check.Name,
			Description: check.Description,
			Optional:    check.Optional,
		}
		detail, err := check.probe()
		status.Detail = detail
		if err != nil {
			status.Passed = false
			if detail == "" {
				status.Detail = err.Error()
			}
		} else {
			status.Passed = true
		}
		results = append(results, status)
	}
	return results
}

// Failed reports whether any required check did not pass.
func Failed(results []Status) bool {
	for _, status := range results {
		if !status.Passed && !status.Optional {
			return true
		}
	}
	return false
}

func buildChecks(cfg *config.Config) []Check {
	return []Check{
		{
			Name:        "host binary",
			Description: "3D host executable used for worker processes",
			probe:       func() (string, error) { return probeExecutable(cfg.Host.Binary) },
		},
		{
			Name:        "bridge script",
			Description: "in-host driver script loaded with --python",
			probe:       func() (string, error) { return probeReadable(cfg.Host.BridgeScript) },
		},
		{
			Name:        "log directory",
			Description: "destination for run logs",
			probe:       func() (string, error) { return probeWritableDir(cfg.Logging.Dir) },
		},
		{
			Name:        "brick database",
			Description: "plugin brick database path",
			Optional:    true,
			probe:       func() (string, error) { return probeReadable(cfg.Pipeline.BrickDB) },
		},
		{
			Name:        "dds encoder",
			Description: "texture compressor for icon renders",
			Optional:    true,
			probe: func() (string, error) {
				return probeAnyExecutable(cfg.Render.Texconv, cfg.Render.NVCompress, cfg.Render.CompressonatorCLI, "texconv", "nvcompress", "compressonatorcli")
			},
		},
	}
}

// probeExecutable accepts either an absolute/relative path or a bare command
// name resolved through PATH.
func probeExecutable(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("not configured")
	}
	if !strings.ContainsRune(path, os.PathSeparator) {
		resolved, err := exec.LookPath(path)
		if err != nil {
			return "", fmt.Errorf("binary %q not found in PATH", path)
		}
		return resolved, nil
	}
	if err := unix.Access(path, unix.X_OK); err != nil {
		return "", fmt.Errorf("%s not executable: %w", path, err)
	}
	return path, nil
}

func probeReadable(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("not configured")
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return "", fmt.Errorf("%s not readable: %w", path, err)
	}
	return path, nil
}

// probeWritableDir checks the directory itself, or its nearest existing
// parent when it has not been created yet.
func probeWritableDir(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("not configured")
	}
	target := dir
	for {
		if _, err := os.Stat(target); err == nil {
			break
		}
		parent := filepath.Dir(target)
		if parent == target {
			break
		}
		target = parent
	}
	if err := unix.Access(target, unix.W_OK); err != nil {
		return "", fmt.Errorf("%s not writable: %w", target, err)
	}
	if target == dir {
		return dir, nil
	}
	return fmt.Sprintf("%s (will be created under %s)", dir, target), nil
}

func probeAnyExecutable(candidates ...string) (string, error) {
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if resolved, err := probeExecutable(candidate); err == nil {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("no encoder found; icon DDS conversion unavailable")
}
