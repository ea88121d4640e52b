package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"brickforge/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check the environment a conversion run depends on",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.Run(cfg)
			rows := make([][]string, 0, len(results))
			for _, status := range results {
				state := "ok"
				if !status.Passed {
					state = "missing"
					if status.Optional {
						state = "missing (optional)"
					}
				}
				rows = append(rows, []string{status.Name, state, status.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Check", "Status", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			if preflight.Failed(results) {
				return errors.New("preflight found missing requirements")
			}
			return nil
		},
	}
}
