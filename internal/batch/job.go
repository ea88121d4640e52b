package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"brickforge/internal/device"
)

// Job is one input file bound to its derived output and worker arguments.
// Jobs share nothing; each runs in its own worker process.
type Job struct {
	ID     string
	Input  string
	Output string
	Device device.Policy
	// ExtraArgs is appended verbatim to the worker command line.
	ExtraArgs []string
	// Export false omits the output flag, which makes the worker skip the
	// export stage.
	Export bool
}

// NewJob derives the output path (output_dir/stem + ".nif", absolute) and
// assigns a fresh job id.
func NewJob(input, outputDir string, policy device.Policy, extra []string, export bool) (Job, error) {
	absOut, err := filepath.Abs(outputDir)
	if err != nil {
		return Job{}, err
	}
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return Job{
		ID:        uuid.NewString(),
		Input:     input,
		Output:    filepath.Join(absOut, stem+".nif"),
		Device:    policy,
		ExtraArgs: extra,
		Export:    export,
	}, nil
}

// Command builds the worker argv: the worker command prefix, then this
// job's flags, then the pass-through arguments.
func (j Job) Command(worker []string) []string {
	argv := make([]string, 0, len(worker)+8+len(j.ExtraArgs))
	argv = append(argv, worker...)
	argv = append(argv, "--input", j.Input, "--device", string(j.Device))
	if j.Export {
		argv = append(argv, "--output", j.Output)
	}
	return append(argv, j.ExtraArgs...)
}

// DefaultWorkerCommand is the running binary invoking its own drive
// subcommand.
func DefaultWorkerCommand() ([]string, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate worker binary: %w", err)
	}
	return []string{exe, "drive"}, nil
}

// TokenizeArgs splits a pass-through argument string the way a POSIX shell
// would: whitespace separates tokens, single and double quotes group, a
// backslash escapes the next character outside single quotes.
func TokenizeArgs(s string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		started bool
		quote   rune
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			started = true
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			started = true
			quote = r
		case r == ' ' || r == '\t' || r == '\n':
			if started {
				tokens = append(tokens, current.String())
				current.Reset()
				started = false
			}
		default:
			started = true
			current.WriteRune(r)
		}
	}
	if escaped {
		return nil, errors.New("trailing backslash in argument string")
	}
	if quote != 0 {
		return nil, fmt.Errorf("unclosed %c quote in argument string", quote)
	}
	if started {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}
