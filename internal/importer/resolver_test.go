package importer_test

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"brickforge/internal/host"
	"brickforge/internal/hosttest"
	"brickforge/internal/importer"
)

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	zw := zip.NewWriter(file)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func kwargPath(kwargs host.Kwargs) string {
	if p, ok := kwargs["filepath"].(string); ok {
		return p
	}
	if p, ok := kwargs["path"].(string); ok {
		return p
	}
	if entries, ok := kwargs["files"].([]host.FileEntry); ok && len(entries) > 0 {
		return entries[0].Name
	}
	return ""
}

func TestFirstWorkingCandidateWins(t *testing.T) {
	fake := &hosttest.Fake{}
	fake.InvokeFunc = func(op host.OperatorID, kwargs host.Kwargs) error {
		if op.Action == "lxfml" {
			return nil
		}
		return host.ErrUnknownOperator
	}

	resolver := importer.NewResolver(fake, nil)
	override := host.OperatorID{Family: "import_scene", Action: "custom"}
	err := resolver.Import(context.Background(), "/models/castle.lxfml", importer.Options{Override: override})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	// override (3 conventions) + importldd (3) + lxfml first convention.
	if len(fake.Invocations) != 7 {
		t.Fatalf("invocations = %d, want 7", len(fake.Invocations))
	}
	last := fake.Invocations[len(fake.Invocations)-1]
	if last.Op.Action != "lxfml" {
		t.Fatalf("last op = %s", last.Op)
	}
}

func TestCallConventionOrder(t *testing.T) {
	fake := &hosttest.Fake{}
	fake.InvokeFunc = func(op host.OperatorID, kwargs host.Kwargs) error {
		if _, ok := kwargs["path"]; ok {
			return nil
		}
		return host.ErrBadKeyword
	}

	resolver := importer.NewResolver(fake, nil)
	if err := resolver.Import(context.Background(), "/models/ship.lxfml", importer.Options{}); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(fake.Invocations) != 2 {
		t.Fatalf("invocations = %d, want 2", len(fake.Invocations))
	}
	if _, ok := fake.Invocations[0].Kwargs["filepath"]; !ok {
		t.Fatal("first convention should pass filepath")
	}
	if _, ok := fake.Invocations[1].Kwargs["path"]; !ok {
		t.Fatal("second convention should pass path")
	}
}

func TestLODFlagsOnlyReachTheLDDImporter(t *testing.T) {
	fake := &hosttest.Fake{}
	fake.InvokeFunc = func(op host.OperatorID, kwargs host.Kwargs) error {
		if op.Action == "importldd" {
			return host.ErrOperatorFailed
		}
		return nil
	}

	lods := &importer.LODSelection{LOD0: true, LOD2: true}
	resolver := importer.NewResolver(fake, nil)
	if err := resolver.Import(context.Background(), "/models/rocket.lxfml", importer.Options{LODs: lods}); err != nil {
		t.Fatalf("Import: %v", err)
	}

	for _, inv := range fake.Invocations {
		_, hasLOD := inv.Kwargs["importLOD0"]
		if inv.Op.Action == "importldd" && !hasLOD {
			t.Fatalf("ldd importer missing LOD flags: %v", inv.Kwargs)
		}
		if inv.Op.Action != "importldd" && hasLOD {
			t.Fatalf("%s received LOD flags", inv.Op)
		}
	}
}

func TestArchiveFallbackFindsPayloadAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "model.lxf")
	writeZip(t, archive, map[string]string{
		"IMAGE100.PNG":       "png",
		"nested/MODEL.LXFML": "<lxfml/>",
	})

	tempRoot := t.TempDir()
	fake := &hosttest.Fake{}
	fake.InvokeFunc = func(op host.OperatorID, kwargs host.Kwargs) error {
		path := kwargPath(kwargs)
		if strings.HasSuffix(strings.ToLower(path), ".lxfml") {
			return nil
		}
		return host.ErrOperatorFailed
	}

	resolver := importer.NewResolver(fake, nil, importer.WithTempRoot(tempRoot))
	if err := resolver.Import(context.Background(), archive, importer.Options{}); err != nil {
		t.Fatalf("Import: %v", err)
	}

	entries, err := os.ReadDir(tempRoot)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("extraction directory not removed: %v", entries)
	}
}

func TestArchiveWithoutPayloadReportsLastError(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "empty.lxf")
	writeZip(t, archive, map[string]string{"readme.txt": "nothing here"})

	tempRoot := t.TempDir()
	fake := &hosttest.Fake{}
	fake.InvokeFunc = func(host.OperatorID, host.Kwargs) error {
		return host.ErrOperatorFailed
	}

	resolver := importer.NewResolver(fake, nil, importer.WithTempRoot(tempRoot))
	err := resolver.Import(context.Background(), archive, importer.Options{})
	if err == nil {
		t.Fatal("expected failure")
	}
	if !errors.Is(err, host.ErrOperatorFailed) {
		t.Fatalf("error should carry the last operator error, got %v", err)
	}
	entries, readErr := os.ReadDir(tempRoot)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("extraction directory not removed: %v", entries)
	}
}
