package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Host contains the external 3D host invocation settings.
type Host struct {
	// Binary is the path to the host executable (Blender).
	Binary string `toml:"binary"`
	// BridgeScript is the host-side bridge the worker drives over stdio.
	BridgeScript string `toml:"bridge_script"`
	// LaunchArgs are prepended before the bridge script in headless mode.
	LaunchArgs []string `toml:"launch_args"`
}

// Batch contains orchestrator defaults.
type Batch struct {
	Pattern string `toml:"pattern"`
	Jobs    int    `toml:"jobs"`
	Device  string `toml:"device"`
	// WorkerCommand overrides the worker argv; empty means self-invoke
	// with the drive subcommand.
	WorkerCommand []string `toml:"worker_command"`
}

// Pipeline contains worker stage settings.
type Pipeline struct {
	ImportOp  string `toml:"import_op"`
	ProcessOp string `toml:"process_op"`
	BakeOp    string `toml:"bake_op"`
	// PatchMode selects the headless patch strategy: "wrap" preserves
	// plugin side effects behind a synthetic viewport, "stub" replaces the
	// patched methods with logged no-ops.
	PatchMode string `toml:"patch_mode"`
	// WaitIdleTimeout bounds the post-bake idle wait, in seconds.
	WaitIdleTimeout int `toml:"wait_idle_timeout"`
	// WaitIdlePollMillis is the idle-wait poll interval.
	WaitIdlePollMillis int `toml:"wait_idle_poll_millis"`
	// BrickDB is the plugin brick database path forwarded to the host.
	BrickDB string `toml:"brickdb"`
}

// Render contains UI-mode render and DDS conversion settings.
type Render struct {
	Texconv           string `toml:"texconv"`
	NVCompress        string `toml:"nvcompress"`
	CompressonatorCLI string `toml:"compressonatorcli"`
	Wine              string `toml:"wine"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Dir    string `toml:"dir"`
}

// Config encapsulates all configuration values for brickforge.
type Config struct {
	Host     Host     `toml:"host"`
	Batch    Batch    `toml:"batch"`
	Pipeline Pipeline `toml:"pipeline"`
	Render   Render   `toml:"render"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/brickforge/config.toml")
}

// DefaultBridgeScriptPath returns the absolute path the default configuration
// expects the host-side bridge script at.
func DefaultBridgeScriptPath() (string, error) {
	return ExpandPath(defaultBridgeScript)
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv("BRICKFORGE_CONFIG"))
	}
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists at %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates directories the tool expects to exist.
func (c *Config) EnsureDirectories() error {
	if c.Logging.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(c.Logging.Dir, 0o755); err != nil {
		return fmt.Errorf("ensure log directory: %w", err)
	}
	return nil
}

// ExpandPath expands a leading ~ and returns an absolute path.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("path is empty")
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}
	return abs, nil
}
