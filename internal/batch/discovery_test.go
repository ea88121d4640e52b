package batch_test

import (
	"os"
	"path/filepath"
	"testing"

	"brickforge/internal/batch"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func names(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}

func TestDiscoverDirectoryOneLevel(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.lxf"))
	touch(t, filepath.Join(dir, "b.lxfml"))
	touch(t, filepath.Join(dir, "c.txt"))
	touch(t, filepath.Join(dir, "nested", "d.lxf"))

	found, err := batch.Discover(dir, "*.lxf;*.lxfml", false)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	got := names(found)
	want := []string{"a.lxf", "b.lxfml"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("found %v, want %v", got, want)
	}
}

func TestDiscoverRecursive(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.lxf"))
	touch(t, filepath.Join(dir, "nested", "deep", "d.lxf"))

	found, err := batch.Discover(dir, "*.lxf", true)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("found %v, want 2 entries", names(found))
	}
}

func TestDiscoverSingleFileEmptyPattern(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "model.weird")
	touch(t, file)

	found, err := batch.Discover(file, "", false)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(found) != 1 || found[0] != file {
		t.Fatalf("found %v, want just %s", found, file)
	}
}

func TestDiscoverSingleFileMustMatchNonEmptyPattern(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "model.txt")
	touch(t, file)

	found, err := batch.Discover(file, "*.lxf", false)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("found %v, want nothing", found)
	}
}

func TestDiscoverIgnoresCase(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "CASTLE.LXF"))

	found, err := batch.Discover(dir, "*.lxf", false)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("found %v, want the upper-case file", names(found))
	}
}

func TestDiscoverRejectsBadPattern(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.lxf"))

	if _, err := batch.Discover(dir, "[", false); err == nil {
		t.Fatal("malformed pattern should error")
	}
}
