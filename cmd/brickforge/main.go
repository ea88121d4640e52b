package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"brickforge/internal/pipeline"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process status. Worker stage failures carry
// their own codes (2..6); orchestrator statuses use 1 for "no inputs" and 2
// for job failures; everything else is 1.
func exitCode(err error) int {
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		return stageErr.ExitCode()
	}
	var status *statusError
	if errors.As(err, &status) {
		return status.code
	}
	return 1
}
