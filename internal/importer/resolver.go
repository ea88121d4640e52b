// Package importer resolves a source file into the host scene by trying an
// ordered chain of import operators and call conventions.
package importer

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"brickforge/internal/host"
	"brickforge/internal/logging"
)

var (
	opImportLDD   = host.OperatorID{Family: "import_scene", Action: "importldd"}
	opImportLXF   = host.OperatorID{Family: "import_scene", Action: "lxf"}
	opImportLXFML = host.OperatorID{Family: "import_scene", Action: "lxfml"}
)

// LODSelection carries per-level-of-detail inclusion flags. They are
// forwarded only to the LDD importer; other operators are called with their
// base signature.
type LODSelection struct {
	LOD0 bool
	LOD1 bool
	LOD2 bool
	LOD3 bool
}

func (l LODSelection) kwargs() host.Kwargs {
	return host.Kwargs{
		"importLOD0": l.LOD0,
		"importLOD1": l.LOD1,
		"importLOD2": l.LOD2,
		"importLOD3": l.LOD3,
	}
}

// Options adjusts one import resolution.
type Options struct {
	// Override is tried before the built-in candidate chain.
	Override host.OperatorID
	// LODs forwards level-of-detail flags to operators that accept them.
	LODs *LODSelection
}

// Invoker is the single host capability the resolver needs.
type Invoker interface {
	Invoke(ctx context.Context, op host.OperatorID, kwargs host.Kwargs) error
}

// Option configures a resolver.
type Option func(*Resolver)

// WithTempRoot places archive extraction directories under dir instead of
// the system temp directory.
func WithTempRoot(dir string) Option {
	return func(r *Resolver) {
		r.tempRoot = dir
	}
}

// Resolver tries import candidates until one succeeds.
type Resolver struct {
	host     Invoker
	logger   *slog.Logger
	tempRoot string
}

// NewResolver constructs a resolver bound to one host connection.
func NewResolver(invoker Invoker, logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		host:   invoker,
		logger: logging.NewComponentLogger(logger, "import"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Import resolves path through the candidate chain: the caller override
// first if set, then format-native operators, then the generic one. Each
// candidate is tried under every call convention; the first invocation that
// completes without error wins and the rest are discarded. For .lxf inputs
// whose direct candidates all fail, the file is unpacked as an archive and
// the payload retried. The imported result is never validated beyond "did
// not raise".
func (r *Resolver) Import(ctx context.Context, path string, opts Options) error {
	ext := strings.ToLower(filepath.Ext(path))

	var candidates []host.OperatorID
	if !opts.Override.IsZero() {
		candidates = append(candidates, opts.Override)
	}
	if ext == ".lxf" {
		candidates = append(candidates, opImportLDD, opImportLXF)
	} else {
		candidates = append(candidates, opImportLDD, opImportLXFML)
	}

	lastErr := r.tryCandidates(ctx, candidates, path, opts.LODs)
	if lastErr == nil {
		return nil
	}

	if ext == ".lxf" {
		err := r.importUnpacked(ctx, path, opts.LODs)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errNoPayload) {
			lastErr = err
		}
	}

	return fmt.Errorf("import %s: %w", path, lastErr)
}

// tryCandidates returns nil on the first successful invocation, else the
// most recent error.
func (r *Resolver) tryCandidates(ctx context.Context, candidates []host.OperatorID, path string, lods *LODSelection) error {
	conventions := []func(host.OperatorID) host.Kwargs{
		func(host.OperatorID) host.Kwargs {
			return host.Kwargs{"filepath": path}
		},
		func(host.OperatorID) host.Kwargs {
			return host.Kwargs{"path": path}
		},
		func(host.OperatorID) host.Kwargs {
			return host.Kwargs{
				"directory": filepath.Dir(path),
				"files":     []host.FileEntry{{Name: filepath.Base(path)}},
			}
		},
	}

	var lastErr error
	for _, op := range candidates {
		for _, build := range conventions {
			kwargs := build(op)
			if lods != nil && op == opImportLDD {
				for key, value := range lods.kwargs() {
					kwargs[key] = value
				}
			}
			if err := r.host.Invoke(ctx, op, kwargs); err != nil {
				lastErr = err
				continue
			}
			r.logger.Info("imported", logging.String(logging.FieldOperator, op.String()))
			return nil
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no import candidates")
	}
	return lastErr
}

var errNoPayload = errors.New("no payload file inside archive")

// importUnpacked unzips an .lxf archive into a private temp directory,
// locates the first .lxfml payload and retries the non-archive operators
// against it. The extraction directory is always removed.
func (r *Resolver) importUnpacked(ctx context.Context, path string, lods *LODSelection) error {
	tempDir, err := os.MkdirTemp(r.tempRoot, "lxf_unpacked_")
	if err != nil {
		return fmt.Errorf("create extraction directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	if err := unzip(path, tempDir); err != nil {
		return fmt.Errorf("unpack archive: %w", err)
	}

	payload, err := findPayload(tempDir, ".lxfml")
	if err != nil {
		return err
	}

	r.logger.Info("retrying import against unpacked payload",
		logging.String("payload", filepath.Base(payload)))
	return r.tryCandidates(ctx, []host.OperatorID{opImportLDD, opImportLXFML}, payload, lods)
}

// findPayload returns the first file with the companion extension found in
// a walk of root. Walk order is not guaranteed; first match wins.
func findPayload(root, ext string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ext) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search extracted archive: %w", err)
	}
	if found == "" {
		return "", errNoPayload
	}
	return found, nil
}

func unzip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	for _, entry := range reader.File {
		target := filepath.Join(destDir, filepath.Clean(entry.Name))
		if !strings.HasPrefix(target, destDir+string(os.PathSeparator)) && target != destDir {
			continue
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		src, err := entry.Open()
		if err != nil {
			return err
		}
		dst, err := os.Create(target)
		if err != nil {
			src.Close()
			return err
		}
		_, copyErr := io.Copy(dst, src) //nolint:gosec
		src.Close()
		if closeErr := dst.Close(); copyErr == nil {
			copyErr = closeErr
		}
		if copyErr != nil {
			return copyErr
		}
	}
	return nil
}
