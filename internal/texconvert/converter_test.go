package texconvert_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"brickforge/internal/services"
	"brickforge/internal/texconvert"
)

type call struct {
	name string
	args []string
}

func writeTool(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTexconvProducesAndMovesTheOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "icon.png")
	if err := os.WriteFile(src, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "out", "ICON.dds")

	var calls []call
	runner := func(ctx context.Context, name string, args ...string) error {
		calls = append(calls, call{name: name, args: args})
		// texconv convention: stem.dds lands in the output directory.
		return os.WriteFile(filepath.Join(filepath.Dir(dst), "icon.dds"), []byte("dds"), 0o644)
	}

	encoder := texconvert.NewEncoder(texconvert.Paths{
		Texconv: writeTool(t, dir, "texconv"),
	}, nil, texconvert.WithRunner(runner))

	if err := encoder.ConvertDXT5(context.Background(), src, dst); err != nil {
		t.Fatalf("ConvertDXT5: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("dds not moved into place: %v", err)
	}
}

func TestChainFallsThroughToNVCompress(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "icon.png")
	if err := os.WriteFile(src, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "icon.dds")

	texconv := writeTool(t, dir, "texconv")
	nvcompress := writeTool(t, dir, "nvcompress")

	var calls []call
	runner := func(ctx context.Context, name string, args ...string) error {
		calls = append(calls, call{name: name, args: args})
		if name == texconv {
			return errors.New("encoder crashed")
		}
		return os.WriteFile(dst, []byte("dds"), 0o644)
	}

	encoder := texconvert.NewEncoder(texconvert.Paths{
		Texconv:    texconv,
		NVCompress: nvcompress,
	}, nil, texconvert.WithRunner(runner))

	if err := encoder.ConvertDXT5(context.Background(), src, dst); err != nil {
		t.Fatalf("ConvertDXT5: %v", err)
	}
	if len(calls) != 2 || calls[1].name != nvcompress {
		t.Fatalf("calls = %+v", calls)
	}
	if calls[1].args[0] != "-bc3" {
		t.Fatalf("nvcompress args = %v", calls[1].args)
	}
}

func TestSilentEncoderFailureIsDetected(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "icon.png")
	if err := os.WriteFile(src, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "icon.dds")

	// The runner "succeeds" but never writes the target.
	runner := func(ctx context.Context, name string, args ...string) error {
		return nil
	}

	encoder := texconvert.NewEncoder(texconvert.Paths{
		NVCompress: writeTool(t, dir, "nvcompress"),
	}, nil, texconvert.WithRunner(runner))

	// Mask any encoders installed on the build machine.
	t.Setenv("PATH", dir)
	t.Setenv("TEXCONV", "")
	t.Setenv("NVCOMPRESS", "")
	t.Setenv("COMPRESSONATORCLI", "")
	t.Setenv("WINE", "")

	err := encoder.ConvertDXT5(context.Background(), src, dst)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("want ErrExternalTool, got %v", err)
	}
}
