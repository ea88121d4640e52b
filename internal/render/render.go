// Package render drives an interactive-mode host session that produces a
// UGC icon image from a saved project file.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"brickforge/internal/device"
	"brickforge/internal/host"
	"brickforge/internal/logging"
)

// UGCType selects the icon framing preset of the render operator.
type UGCType string

const (
	TypeBrickbuild UGCType = "BRICKBUILD"
	TypeRocket     UGCType = "ROCKET"
	TypeCar        UGCType = "CAR"
)

// ParseUGCType maps the CLI token to the operator enum value.
func ParseUGCType(s string) (UGCType, error) {
	switch s {
	case "brickbuild", "":
		return TypeBrickbuild, nil
	case "rocket":
		return TypeRocket, nil
	case "car":
		return TypeCar, nil
	}
	return "", fmt.Errorf("unknown ugc type %q (want brickbuild, rocket or car)", s)
}

var (
	// ErrRenderFailed maps to exit code 5 of the render command.
	ErrRenderFailed = errors.New("icon render failed")
	// ErrImageNotFound maps to exit code 6: the operator reported success
	// but no image could be located at or near the output path.
	ErrImageNotFound = errors.New("rendered image not found")
	// ErrNoUIWindow: the render operator needs an interactive window, so a
	// background host launch cannot serve it.
	ErrNoUIWindow = errors.New("no interactive window available")
)

// The icon operator registers under one of two namespaces depending on the
// plugin build.
var renderOps = []host.OperatorID{
	{Family: "luugc", Action: "render_icon"},
	{Family: "lu_ugc_render", Action: "render_icon"},
}

// Extensions the plugin is known to append when the output path has none.
var knownImageExts = []string{".png", ".jpg", ".jpeg", ".exr", ".tga"}

// Host is the surface the renderer drives. *bridge.Client satisfies it.
type Host interface {
	device.ComputeHost
	OpenProject(ctx context.Context, path string) error
	Capabilities(ctx context.Context) (host.Capabilities, error)
	Invoke(ctx context.Context, op host.OperatorID, kwargs host.Kwargs) error
}

// DDSConverter compresses the rendered image. *texconvert.Encoder satisfies
// it.
type DDSConverter interface {
	ConvertDXT5(ctx context.Context, src, dst string) error
}

// Options configures one icon render.
type Options struct {
	Input  string
	Output string
	Type   UGCType
	Device device.Policy
	// Resolution is rounded to the nearest integer; 0 leaves the operator
	// default.
	Resolution float64
	// FramingScale is forwarded as the operator margin; 0 leaves the
	// default.
	FramingScale float64
	// ConvertDDS compresses the rendered image and deletes the source only
	// when compression succeeds.
	ConvertDDS bool
	// DeleteBlend removes the project file and its numbered backups after
	// the render.
	DeleteBlend bool
}

// Renderer produces one icon per Run call.
type Renderer struct {
	host    Host
	encoder DDSConverter
	logger  *slog.Logger
}

// NewRenderer constructs a renderer. encoder may be nil when ConvertDDS is
// never requested.
func NewRenderer(h Host, encoder DDSConverter, logger *slog.Logger) *Renderer {
	return &Renderer{
		host:    h,
		encoder: encoder,
		logger:  logging.NewComponentLogger(logger, "render"),
	}
}

// Run opens the project, renders the icon and applies the optional DDS and
// cleanup steps.
func (r *Renderer) Run(ctx context.Context, opts Options) error {
	input, err := filepath.Abs(opts.Input)
	if err != nil {
		return err
	}
	output, err := filepath.Abs(opts.Output)
	if err != nil {
		return err
	}
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("project file: %w", err)
	}

	if err := r.host.OpenProject(ctx, input); err != nil {
		return fmt.Errorf("%w: open project: %w", ErrRenderFailed, err)
	}

	caps, err := r.host.Capabilities(ctx)
	if err != nil {
		return fmt.Errorf("%w: capability probe: %w", ErrRenderFailed, err)
	}
	if !caps.WindowManager {
		return ErrNoUIWindow
	}

	selector := device.NewSelector(r.host, caps, r.logger)
	selection := selector.Select(ctx, opts.Device)
	r.logger.Info("render device selected",
		logging.String(logging.FieldDevice, string(selection.Effective)))

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	kwargs := host.Kwargs{"ugc_type": string(opts.Type), "save_path": output}
	if opts.Resolution > 0 {
		kwargs["resolution"] = int(math.Round(opts.Resolution))
	}
	if opts.FramingScale > 0 {
		kwargs["margin"] = opts.FramingScale
	}
	if err := r.renderIcon(ctx, kwargs); err != nil {
		return fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}

	rendered, err := resolveRendered(output)
	if err != nil {
		return err
	}
	r.logger.Info("icon rendered", logging.String("path", rendered))

	if opts.ConvertDDS {
		r.convertToDDS(ctx, rendered)
	}
	if opts.DeleteBlend {
		r.deleteBlendWithBackups(input)
	}
	return nil
}

// renderIcon invokes the first registered operator namespace.
func (r *Renderer) renderIcon(ctx context.Context, kwargs host.Kwargs) error {
	var lastErr error
	for _, op := range renderOps {
		err := r.host.Invoke(ctx, op, kwargs)
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.Is(err, host.ErrUnknownOperator) {
			return err
		}
	}
	return lastErr
}

// resolveRendered finds the image the operator actually wrote: the exact
// path, the stem with a known extension appended, or any stem sibling.
func resolveRendered(output string) (string, error) {
	if isFile(output) {
		return output, nil
	}
	if filepath.Ext(output) == "" {
		for _, ext := range knownImageExts {
			if candidate := output + ext; isFile(candidate) {
				return candidate, nil
			}
		}
		siblings, err := filepath.Glob(output + ".*")
		if err == nil {
			for _, candidate := range siblings {
				if isFile(candidate) {
					return candidate, nil
				}
			}
		}
	}
	return "", fmt.Errorf("%w: nothing at or near %s", ErrImageNotFound, output)
}

// convertToDDS compresses the rendered image in place (stem.dds) and
// removes the source only on success.
func (r *Renderer) convertToDDS(ctx context.Context, rendered string) {
	if r.encoder == nil {
		r.logger.Warn("dds conversion requested without an encoder")
		return
	}
	target := rendered[:len(rendered)-len(filepath.Ext(rendered))] + ".dds"
	if err := r.encoder.ConvertDXT5(ctx, rendered, target); err != nil {
		r.logger.Warn("dds conversion failed; keeping original image", logging.Error(err))
		return
	}
	if err := os.Remove(rendered); err != nil {
		r.logger.Warn("converted to dds but cannot delete source", logging.Error(err))
		return
	}
	r.logger.Info("dds written", logging.String("path", target))
}

// deleteBlendWithBackups removes the project file and the numbered backup
// copies the host leaves next to it.
func (r *Renderer) deleteBlendWithBackups(blend string) {
	removed := 0
	candidates := []string{blend}
	for _, pattern := range []string{blend + "[0-9]", blend + "[0-9][0-9]"} {
		if matches, err := filepath.Glob(pattern); err == nil {
			candidates = append(candidates, matches...)
		}
	}
	for _, candidate := range candidates {
		if !isFile(candidate) {
			continue
		}
		if err := os.Remove(candidate); err != nil {
			r.logger.Warn("cannot delete project file", logging.String("path", candidate), logging.Error(err))
			continue
		}
		removed++
	}
	r.logger.Info("project files deleted", logging.Int("count", removed))
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
