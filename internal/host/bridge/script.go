package bridge

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed bridge.py
var hostScript string

// HostScript returns the embedded host-side bridge script.
func HostScript() string {
	return hostScript
}

// WriteHostScript writes the embedded script to path, refusing to overwrite
// an existing file. Parent directories are created as needed.
func WriteHostScript(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("bridge script already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create bridge script directory: %w", err)
	}
	return os.WriteFile(path, []byte(hostScript), 0o644)
}
