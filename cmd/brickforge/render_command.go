package main

import (
	"errors"

	"github.com/spf13/cobra"

	"brickforge/internal/device"
	"brickforge/internal/host/bridge"
	"brickforge/internal/render"
	"brickforge/internal/texconvert"
)

const (
	statusRenderFailed  = 5
	statusImageNotFound = 6
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var (
		input        string
		output       string
		typeFlag     string
		deviceFlag   string
		resolution   float64
		framingScale float64
		dds          bool
		deleteBlend  bool
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a UGC icon from a saved project file",
		Long: "render launches the host with its interface attached (the icon operator " +
			"needs a window), opens the project and renders the icon image.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			ugcType, err := render.ParseUGCType(typeFlag)
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

			// No headless launch arguments: the render operator refuses to
			// run without a window.
			client, err := bridge.Launch(cmd.Context(), bridge.Options{
				Binary: cfg.Host.Binary,
				Script: cfg.Host.BridgeScript,
				Logger: logger,
			})
			if err != nil {
				return err
			}
			defer client.Close()

			encoder := texconvert.NewEncoder(texconvert.Paths{
				Texconv:           cfg.Render.Texconv,
				NVCompress:        cfg.Render.NVCompress,
				CompressonatorCLI: cfg.Render.CompressonatorCLI,
				Wine:              cfg.Render.Wine,
			}, logger)

			renderer := render.NewRenderer(client, encoder, logger)
			runErr := renderer.Run(cmd.Context(), render.Options{
				Input:        input,
				Output:       output,
				Type:         ugcType,
				Device:       policy,
				Resolution:   resolution,
				FramingScale: framingScale,
				ConvertDDS:   dds,
				DeleteBlend:  deleteBlend,
			})
			_ = client.Quit(cmd.Context())

			switch {
			case errors.Is(runErr, render.ErrImageNotFound):
				return withStatus(statusImageNotFound, runErr)
			case errors.Is(runErr, render.ErrRenderFailed), errors.Is(runErr, render.ErrNoUIWindow):
				return withStatus(statusRenderFailed, runErr)
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Input .blend file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output image path, extension optional")
	cmd.Flags().StringVar(&typeFlag, "type", "brickbuild", "Icon preset: brickbuild, rocket or car")
	cmd.Flags().StringVar(&deviceFlag, "device", "", "Compute device policy: auto, cpu, cuda or optix")
	cmd.Flags().Float64Var(&resolution, "res", 0, "Render resolution, rounded to an integer")
	cmd.Flags().Float64Var(&framingScale, "framing-scale", 0, "Framing margin around the model")
	cmd.Flags().BoolVar(&dds, "dds", false, "Convert the rendered image to DXT5 DDS")
	cmd.Flags().BoolVar(&deleteBlend, "delete-blend", false, "Delete the project file and its backups afterwards")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}
