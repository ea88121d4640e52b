package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"brickforge/internal/batch"
	"brickforge/internal/device"
)

const (
	statusNoMatches  = 1
	statusJobsFailed = 2
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var (
		input      string
		output     string
		deviceFlag string
		pattern    string
		recursive  bool
		jobs       int
		extraArgs  string
		noExport   bool
		saveBlend  string
		brickDB    string
		lods       lodFlags
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Convert every matching file under a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			if deviceFlag == "" {
				deviceFlag = cfg.Batch.Device
			}
			policy, err := device.ParsePolicy(deviceFlag)
			if err != nil {
				return err
			}
			if pattern == "" {
				pattern = cfg.Batch.Pattern
			}
			if jobs == 0 {
				jobs = cfg.Batch.Jobs
			}

			driverArgs, err := batch.TokenizeArgs(extraArgs)
			if err != nil {
				return fmt.Errorf("--extra-driver-args: %w", err)
			}
			driverArgs = append(driverArgs, lods.tokens()...)
			if saveBlend != "" {
				driverArgs = append(driverArgs, "--save-blend", saveBlend)
			}
			if brickDB != "" {
				driverArgs = append(driverArgs, "--brickdb", brickDB)
			}

			runner := batch.NewRunner(batch.Options{
				Input:         input,
				OutputDir:     output,
				Pattern:       pattern,
				Recursive:     recursive,
				Jobs:          jobs,
				Device:        policy,
				ExtraArgs:     driverArgs,
				Export:        !noExport,
				WorkerCommand: cfg.Batch.WorkerCommand,
			}, logger, cmd.OutOrStdout())

			summary, err := runner.Run(cmd.Context())
			if errors.Is(err, batch.ErrNoMatches) {
				return withStatus(statusNoMatches, err)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderSummaryTable(summary))
			if summary.Failed > 0 {
				return withStatus(statusJobsFailed,
					fmt.Errorf("%d of %d jobs failed", summary.Failed, summary.OK+summary.Failed))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Input file or directory")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory")
	cmd.Flags().StringVar(&deviceFlag, "device", "", "Compute device policy: auto, cpu, cuda or optix")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Semicolon-separated glob list")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "Recurse into subdirectories")
	cmd.Flags().IntVar(&jobs, "jobs", 0, "Concurrent worker processes")
	cmd.Flags().StringVar(&extraArgs, "extra-driver-args", "", "Additional arguments passed to every worker")
	cmd.Flags().BoolVar(&noExport, "no-export", false, "Run the pipeline without exporting")
	cmd.Flags().StringVar(&saveBlend, "save-blend", "", "Save a project snapshot next to each output")
	cmd.Flags().StringVar(&brickDB, "brickdb", "", "Brick database path forwarded to the plugin")
	lods.register(cmd)
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

// renderSummaryTable builds the per-job outcome table shown after the
// progress lines.
func renderSummaryTable(summary batch.Summary) string {
	rows := make([][]string, 0, len(summary.Results))
	for _, result := range summary.Results {
		status := "ok"
		if !result.Success {
			status = fmt.Sprintf("fail (%d)", result.ExitCode)
		}
		rows = append(rows, []string{
			shortPath(result.Job.Input),
			status,
			formatSeconds(result.Duration),
			shortPath(result.LogPath),
		})
	}
	return renderTable(
		[]string{"Input", "Status", "Duration", "Log"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}
