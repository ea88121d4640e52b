package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "brickforge",
		Short:         "Batch converter for LXF/LXFML brick models",
		Long:          "brickforge converts LEGO digital designer models to NIF by driving isolated Blender worker processes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newBatchCommand(ctx))
	rootCmd.AddCommand(newDriveCommand(ctx))
	rootCmd.AddCommand(newRenderCommand(ctx))
	rootCmd.AddCommand(newPreflightCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

// lodFlags is shared between batch (token pass-through) and drive (parsed
// selection).
type lodFlags struct {
	lod0, lod1, lod2, lod3 bool
}

func (l *lodFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&l.lod0, "lod0", false, "Import LOD0 geometry")
	cmd.Flags().BoolVar(&l.lod1, "lod1", false, "Import LOD1 geometry")
	cmd.Flags().BoolVar(&l.lod2, "lod2", false, "Import LOD2 geometry")
	cmd.Flags().BoolVar(&l.lod3, "lod3", false, "Import LOD3 geometry")
}

func (l *lodFlags) any() bool {
	return l.lod0 || l.lod1 || l.lod2 || l.lod3
}

func (l *lodFlags) tokens() []string {
	var out []string
	if l.lod0 {
		out = append(out, "--lod0")
	}
	if l.lod1 {
		out = append(out, "--lod1")
	}
	if l.lod2 {
		out = append(out, "--lod2")
	}
	if l.lod3 {
		out = append(out, "--lod3")
	}
	return out
}
