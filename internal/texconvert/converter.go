// Package texconvert compresses rendered images to DXT5 DDS with a full
// mipmap chain, trying a fixed chain of external encoders.
package texconvert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"brickforge/internal/logging"
	"brickforge/internal/services"
)

// Paths carries explicit encoder locations. Empty fields fall back to the
// matching environment variable, then PATH.
type Paths struct {
	Texconv           string
	NVCompress        string
	CompressonatorCLI string
	Wine              string
}

// CommandRunner executes one encoder invocation. The default runs the real
// binary; tests substitute their own.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Option configures an Encoder.
type Option func(*Encoder)

// WithRunner replaces the process launcher.
func WithRunner(run CommandRunner) Option {
	return func(e *Encoder) {
		e.run = run
	}
}

// Encoder converts images to DDS.
type Encoder struct {
	paths  Paths
	logger *slog.Logger
	run    CommandRunner
}

// NewEncoder constructs an encoder over the given tool locations.
func NewEncoder(paths Paths, logger *slog.Logger, opts ...Option) *Encoder {
	e := &Encoder{
		paths:  paths,
		logger: logging.NewComponentLogger(logger, "texconvert"),
		run:    runCommand,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ConvertDXT5 compresses src into dst as DXT5 with full mipmaps. Encoders
// are tried in a fixed order; the first one that produces the target wins.
// On Linux a wine-wrapped texconv.exe (pointed at by TEXCONV) is the last
// resort.
func (e *Encoder) ConvertDXT5(ctx context.Context, src, dst string) error {
	src, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	dst, err = filepath.Abs(dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create dds directory: %w", err)
	}

	if tool := resolveTool(e.paths.Texconv, "TEXCONV", "texconv"); tool != "" {
		if e.tryTexconv(ctx, []string{tool}, src, dst) {
			return nil
		}
	}
	if tool := resolveTool(e.paths.NVCompress, "NVCOMPRESS", "nvcompress"); tool != "" {
		if e.try(ctx, tool, []string{"-bc3", src, dst}, dst) {
			return nil
		}
	}
	if tool := resolveTool(e.paths.CompressonatorCLI, "COMPRESSONATORCLI", "compressonatorcli"); tool != "" {
		if e.try(ctx, tool, []string{"-fd", "DXT5", "-miplevels", "0", src, dst}, dst) {
			return nil
		}
	}
	if runtime.GOOS == "linux" {
		wine := resolveTool(e.paths.Wine, "WINE", "wine")
		exe := os.Getenv("TEXCONV")
		if wine != "" && isFile(exe) {
			if e.tryTexconv(ctx, []string{wine, exe}, src, dst) {
				return nil
			}
		}
	}

	return services.Wrap(services.ErrExternalTool, "texconvert", "convert",
		fmt.Sprintf("no encoder produced %s", dst), nil)
}

// tryTexconv handles the texconv convention: the tool writes stem.dds into
// the output directory, which may need a move into place.
func (e *Encoder) tryTexconv(ctx context.Context, prefix []string, src, dst string) bool {
	outDir := filepath.Dir(dst)
	args := append(prefix[1:], "-nologo", "-y", "-f", "DXT5", "-m", "0", "-o", outDir, src)
	if err := e.run(ctx, prefix[0], args...); err != nil {
		e.logger.Warn("encoder failed", logging.String("tool", prefix[0]), logging.Error(err))
		return false
	}
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	produced := filepath.Join(outDir, stem+".dds")
	if !isFile(produced) {
		e.logger.Warn("encoder reported success without output", logging.String("tool", prefix[0]))
		return false
	}
	if produced != dst {
		if err := os.Rename(produced, dst); err != nil {
			e.logger.Warn("cannot move dds into place", logging.Error(err))
			return false
		}
	}
	e.logger.Info("dds written", logging.String("path", dst))
	return true
}

// try handles encoders that take the destination path directly.
func (e *Encoder) try(ctx context.Context, tool string, args []string, dst string) bool {
	if err := e.run(ctx, tool, args...); err != nil {
		e.logger.Warn("encoder failed", logging.String("tool", tool), logging.Error(err))
		return false
	}
	if !isFile(dst) {
		e.logger.Warn("encoder reported success without output", logging.String("tool", tool))
		return false
	}
	e.logger.Info("dds written", logging.String("path", dst))
	return true
}

// resolveTool picks the explicit path, the environment override or a PATH
// lookup, in that order. Empty means the tool is unavailable.
func resolveTool(explicit, envVar, name string) string {
	for _, candidate := range []string{explicit, os.Getenv(envVar)} {
		if candidate == "" {
			continue
		}
		if isFile(candidate) {
			return candidate
		}
		if resolved, err := exec.LookPath(candidate); err == nil {
			return resolved
		}
	}
	resolved, err := exec.LookPath(name)
	if err != nil {
		return ""
	}
	return resolved
}

func isFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
