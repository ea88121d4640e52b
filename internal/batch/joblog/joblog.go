// Package joblog writes the per-job diagnostic log next to the derived
// output file. The log is written for every job, success or failure, with no
// truncation or redaction.
package joblog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	okSuffix  = ".ok.log"
	errSuffix = ".err.log"

	// noExportMarker keeps a run without export from clobbering the log of
	// a later run that does export.
	noExportMarker = ".noexport"
)

// BasePath returns the log base name for a job. When export is skipped the
// base carries a marker so it cannot collide with an exporting run over the
// same output directory.
func BasePath(output string, export bool) string {
	if export {
		return output
	}
	stem := strings.TrimSuffix(filepath.Base(output), filepath.Ext(output))
	return filepath.Join(filepath.Dir(output), stem+noExportMarker)
}

// Path returns the final log path for the given outcome.
func Path(base string, success bool) string {
	if success {
		return base + okSuffix
	}
	return base + errSuffix
}

// Write stores the log for one finished job and removes the opposite-outcome
// log from any prior run, so exactly one of the two suffixes exists
// afterwards. It returns the path written.
func Write(base string, success bool, cmdline string, exitCode int, duration time.Duration, stdout, stderr string) (string, error) {
	var content strings.Builder
	content.WriteString("CMD:\n")
	content.WriteString(cmdline + "\n\n")
	fmt.Fprintf(&content, "EXIT: %d  DURATION_S: %.2f\n\n", exitCode, duration.Seconds())
	content.WriteString("STDOUT:\n" + stdout + "\n\n")
	content.WriteString("STDERR:\n" + stderr + "\n")

	path := Path(base, success)
	if err := os.WriteFile(path, []byte(content.String()), 0o644); err != nil {
		return path, fmt.Errorf("write job log: %w", err)
	}
	if err := os.Remove(Path(base, !success)); err != nil && !os.IsNotExist(err) {
		return path, fmt.Errorf("remove stale job log: %w", err)
	}
	return path, nil
}

// Quote renders argv as a copy-pasteable shell command line.
func Quote(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = quoteToken(arg)
	}
	return strings.Join(quoted, " ")
}

func quoteToken(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsFunc(s, needsQuoting) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuoting(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case strings.ContainsRune("_@%+=:,./-", r):
		return false
	}
	return true
}
