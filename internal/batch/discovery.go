// Package batch discovers input files and fans them out to isolated worker
// processes, one per file.
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

var fold = cases.Fold()

// splitPatterns breaks a semicolon-separated glob list into its non-empty
// parts.
func splitPatterns(list string) []string {
	var pats []string
	for _, part := range strings.Split(list, ";") {
		if part = strings.TrimSpace(part); part != "" {
			pats = append(pats, part)
		}
	}
	return pats
}

// matchAny reports whether the base file name matches one of the patterns,
// ignoring case.
func matchAny(name string, patterns []string) (bool, error) {
	folded := fold.String(name)
	for _, pattern := range patterns {
		ok, err := filepath.Match(fold.String(pattern), folded)
		if err != nil {
			return false, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Discover resolves root into the sorted list of absolute input paths. A
// single-file root with an empty pattern list is accepted unconditionally; a
// directory is scanned one level deep unless recursive is set. Matching is
// case-insensitive on the base name.
func Discover(root, patterns string, recursive bool) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("input path: %w", err)
	}

	pats := splitPatterns(patterns)

	if !info.IsDir() {
		if len(pats) == 0 {
			return []string{absRoot}, nil
		}
		ok, err := matchAny(filepath.Base(absRoot), pats)
		if err != nil {
			return nil, err
		}
		if ok {
			return []string{absRoot}, nil
		}
		return nil, nil
	}

	var matches []string
	if recursive {
		err = filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ok, err := matchAny(d.Name(), pats)
			if err != nil {
				return err
			}
			if ok {
				matches = append(matches, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		entries, err := os.ReadDir(absRoot)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ok, err := matchAny(entry.Name(), pats)
			if err != nil {
				return nil, err
			}
			if ok {
				matches = append(matches, filepath.Join(absRoot, entry.Name()))
			}
		}
	}

	sort.Strings(matches)
	return matches, nil
}
