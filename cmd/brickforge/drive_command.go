package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"brickforge/internal/config"
	"brickforge/internal/device"
	"brickforge/internal/headless"
	"brickforge/internal/host"
	"brickforge/internal/host/bridge"
	"brickforge/internal/importer"
	"brickforge/internal/logging"
	"brickforge/internal/pipeline"
)

func newDriveCommand(ctx *commandContext) *cobra.Command {
	var (
		input      string
		output     string
		deviceFlag string
		importOp   string
		processOp  string
		bakeOp     string
		patchMode  string
		brickDB    string
		saveBlend  string
		lods       lodFlags
	)

	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Convert one file in an isolated host process",
		Long: "drive launches the 3D host, runs the import/process/bake/export pipeline " +
			"against a single input and exits with the failing stage's code.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			opts, err := buildPipelineOptions(cfg, input, output, deviceFlag,
				importOp, processOp, bakeOp, patchMode, brickDB, saveBlend, &lods)
			if err != nil {
				return err
			}

			client, err := bridge.Launch(cmd.Context(), bridge.Options{
				Binary:     cfg.Host.Binary,
				Script:     cfg.Host.BridgeScript,
				LaunchArgs: cfg.Host.LaunchArgs,
				Logger:     logger,
			})
			if err != nil {
				return err
			}
			defer client.Close()

			machine := pipeline.New(client, opts, logger)
			runErr := machine.Run(cmd.Context())
			if quitErr := client.Quit(cmd.Context()); quitErr != nil {
				logger.Warn("host did not quit cleanly", logging.Error(quitErr))
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Input model file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output NIF path; omit to skip export")
	cmd.Flags().StringVar(&deviceFlag, "device", "", "Compute device policy: auto, cpu, cuda or optix")
	cmd.Flags().StringVar(&importOp, "import-op", "", "Import operator tried before the built-in chain")
	cmd.Flags().StringVar(&processOp, "process-op", "", "Process operator id")
	cmd.Flags().StringVar(&bakeOp, "bake-op", "", "Bake operator id")
	cmd.Flags().StringVar(&patchMode, "patch-mode", "", "Headless patch strategy: wrap or stub")
	cmd.Flags().StringVar(&brickDB, "brickdb", "", "Brick database path forwarded to the plugin")
	cmd.Flags().StringVar(&saveBlend, "save-blend", "", "Save a project snapshot after the pipeline")
	lods.register(cmd)
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func buildPipelineOptions(cfg *config.Config, input, output, deviceFlag,
	importOp, processOp, bakeOp, patchMode, brickDB, saveBlend string, lods *lodFlags) (pipeline.Options, error) {
	if deviceFlag == "" {
		deviceFlag = cfg.Batch.Device
	}
	policy, err := device.ParsePolicy(deviceFlag)
	if err != nil {
		return pipeline.Options{}, err
	}

	if importOp == "" {
		importOp = cfg.Pipeline.ImportOp
	}
	var override host.OperatorID
	if importOp != "" {
		if override, err = host.ParseOperatorID(importOp); err != nil {
			return pipeline.Options{}, fmt.Errorf("--import-op: %w", err)
		}
	}
	if processOp == "" {
		processOp = cfg.Pipeline.ProcessOp
	}
	process, err := host.ParseOperatorID(processOp)
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("--process-op: %w", err)
	}
	if bakeOp == "" {
		bakeOp = cfg.Pipeline.BakeOp
	}
	bake, err := host.ParseOperatorID(bakeOp)
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("--bake-op: %w", err)
	}

	if patchMode == "" {
		patchMode = cfg.Pipeline.PatchMode
	}
	strategy, err := headless.ParseStrategy(patchMode)
	if err != nil {
		return pipeline.Options{}, err
	}

	if brickDB == "" {
		brickDB = cfg.Pipeline.BrickDB
	}

	var selection *importer.LODSelection
	if lods.any() {
		selection = &importer.LODSelection{
			LOD0: lods.lod0, LOD1: lods.lod1, LOD2: lods.lod2, LOD3: lods.lod3,
		}
	}

	return pipeline.Options{
		Input:           input,
		Output:          output,
		Device:          policy,
		PatchStrategy:   strategy,
		ImportOverride:  override,
		LODs:            selection,
		ProcessOp:       process,
		BakeOp:          bake,
		BrickDB:         brickDB,
		SaveBlendPath:   saveBlend,
		WaitIdleTimeout: time.Duration(cfg.Pipeline.WaitIdleTimeout) * time.Second,
		WaitIdlePoll:    time.Duration(cfg.Pipeline.WaitIdlePollMillis) * time.Millisecond,
	}, nil
}
