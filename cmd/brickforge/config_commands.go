package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"brickforge/internal/config"
	"brickforge/internal/host/bridge"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, resolvedPath, exists, err := config.Load(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# config path: %s\n", resolvedPath)
			if !exists {
				fmt.Fprintln(out, "# file not found; showing defaults")
			}
			encoded, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = out.Write(encoded)
			return err
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var bridgePath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the sample configuration and the host bridge script",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}
			if err := config.WriteSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)

			script := strings.TrimSpace(bridgePath)
			if script == "" {
				defaultScript, err := config.DefaultBridgeScriptPath()
				if err != nil {
					return fmt.Errorf("determine default bridge script path: %w", err)
				}
				script = defaultScript
			} else {
				expanded, err := config.ExpandPath(script)
				if err != nil {
					return err
				}
				script = expanded
			}
			if _, err := os.Stat(script); err == nil {
				// A customized script survives re-init.
				fmt.Fprintf(cmd.OutOrStdout(), "Bridge script already present at %s\n", script)
				return nil
			}
			if err := bridge.WriteHostScript(script); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote host bridge script to %s\n", script)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().StringVar(&bridgePath, "bridge-path", "", "Destination for the host bridge script")
	return cmd
}
