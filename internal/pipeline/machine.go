// Package pipeline sequences one worker through the fixed content pipeline:
// import, process, bake, wait-idle, export.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"brickforge/internal/device"
	"brickforge/internal/headless"
	"brickforge/internal/host"
	"brickforge/internal/importer"
	"brickforge/internal/logging"
)

// Host is the full surface the stage machine drives. *bridge.Client
// satisfies it.
type Host interface {
	Invoke(ctx context.Context, op host.OperatorID, kwargs host.Kwargs) error
	EnableAddon(ctx context.Context, module string) error
	SetAddonPref(ctx context.Context, module, key string, value any) error
	Capabilities(ctx context.Context) (host.Capabilities, error)

	ComputeDevices(ctx context.Context) ([]host.Device, error)
	SetComputeBackend(ctx context.Context, backend string) error
	RefreshDevices(ctx context.Context) error
	SetDeviceUsed(ctx context.Context, index int, used bool) error
	SetSceneDeviceMode(ctx context.Context, mode string) error
	SetSceneProp(ctx context.Context, prop string, value any) error
	SceneEnumItems(ctx context.Context, prop string) ([]host.EnumItem, error)

	ActionHandlers(ctx context.Context, module string, methods []string) ([]host.Handler, error)
	InstallWrapper(ctx context.Context, module, class, method, mode string) error

	RunningJobs(ctx context.Context, kinds []string) (bool, error)
	UpdateDepsgraph(ctx context.Context) error

	Meshes(ctx context.Context) ([]host.Mesh, error)
	AddColorLayer(ctx context.Context, mesh, layer string, colorAttribute bool) error

	SaveAllImages(ctx context.Context) error
	SaveProject(ctx context.Context, path string) error
}

// Options configures one pipeline run.
type Options struct {
	Input string
	// Output empty skips the export stage entirely; that is not an error.
	Output string

	Device         device.Policy
	PatchStrategy  headless.Strategy
	ImportOverride host.OperatorID
	LODs           *importer.LODSelection

	ProcessOp host.OperatorID
	BakeOp    host.OperatorID

	// BrickDB, when set, is forwarded to the plugin preferences.
	BrickDB string
	// SaveBlendPath, when set, saves a project snapshot after the pipeline;
	// snapshot failures never change the exit code.
	SaveBlendPath string

	// WaitIdleTimeout bounds the post-bake idle wait; 0 disables the bound.
	WaitIdleTimeout time.Duration
	WaitIdlePoll    time.Duration
}

// Plugin modules enabled before the pipeline runs.
var requiredAddons = []string{"lu_toolbox", "io_scene_niftools"}

// Host job kinds polled by the idle wait.
var idleJobKinds = []string{"OBJECT_BAKE", "RENDER", "COMPOSITE"}

var opExportNIF = host.OperatorID{Family: "export_scene", Action: "nif"}

const (
	nifGameProp   = "niftools_scene.game"
	nifGameTarget = "LEGO_UNIVERSE"
	nifScaleProp  = "niftools_scene.scale_correction"
)

// Machine runs the linear stage sequence with per-stage failure policy.
type Machine struct {
	host   Host
	opts   Options
	logger *slog.Logger
}

// New constructs a stage machine bound to one host connection.
func New(h Host, opts Options, logger *slog.Logger) *Machine {
	if opts.WaitIdlePoll <= 0 {
		opts.WaitIdlePoll = 200 * time.Millisecond
	}
	return &Machine{
		host:   h,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Run executes the pipeline. A nil return means exit code 0; otherwise the
// returned *StageError carries the failing stage's exit code. DeviceSetup
// and HeadlessPatch never fail the run.
func (m *Machine) Run(ctx context.Context) error {
	m.prepare(ctx)

	caps, err := m.host.Capabilities(ctx)
	if err != nil {
		m.logger.Warn("capability probe failed; assuming minimal host", logging.Error(err))
		caps = host.Capabilities{}
	}

	m.stageStart(StageDeviceSetup)
	selector := device.NewSelector(m.host, caps, m.logger)
	selection := selector.Select(ctx, m.opts.Device)
	m.stageDone(StageDeviceSetup)

	m.stageStart(StageHeadlessPatch)
	if caps.WindowManager {
		m.logger.Info("interactive windows present; headless patch not needed")
	} else {
		patcher := headless.NewPatcher(m.host, m.opts.PatchStrategy, m.logger)
		patcher.Apply(ctx)
	}
	m.stageDone(StageHeadlessPatch)

	m.stageStart(StageImport)
	resolver := importer.NewResolver(m.host, m.logger)
	importOpts := importer.Options{Override: m.opts.ImportOverride, LODs: m.opts.LODs}
	if err := resolver.Import(ctx, m.opts.Input, importOpts); err != nil {
		return failed(StageImport, ExitImport, err)
	}
	m.stageDone(StageImport)

	m.stageStart(StageProcess)
	if err := m.host.Invoke(ctx, m.opts.ProcessOp, nil); err != nil {
		return failed(StageProcess, ExitProcess, err)
	}
	m.ensureVertexColors(ctx, caps)
	m.stageDone(StageProcess)

	m.stageStart(StageBake)
	if err := m.host.Invoke(ctx, m.opts.BakeOp, nil); err != nil {
		return failed(StageBake, ExitBake, err)
	}
	m.stageDone(StageBake)

	m.stageStart(StageWaitIdle)
	if err := m.waitIdle(ctx); err != nil {
		return failed(StageWaitIdle, ExitWaitIdle, err)
	}
	m.stageDone(StageWaitIdle)

	if m.opts.Output == "" {
		m.logger.Info("export skipped: no output path requested")
	} else {
		m.stageStart(StageExport)
		if err := m.export(ctx); err != nil {
			return failed(StageExport, ExitExport, err)
		}
		m.stageDone(StageExport)
	}

	m.saveSnapshot(ctx)
	m.logger.Info("pipeline complete",
		logging.String(logging.FieldDevice, string(selection.Effective)))
	return nil
}

// prepare enables the required plugins and forwards the brick database
// path. Everything here is best-effort.
func (m *Machine) prepare(ctx context.Context) {
	for _, module := range requiredAddons {
		if err := m.host.EnableAddon(ctx, module); err != nil {
			m.logger.Warn("cannot enable plugin", logging.String("module", module), logging.Error(err))
		}
	}
	if m.opts.BrickDB != "" {
		if err := m.host.SetAddonPref(ctx, "lu_toolbox", "brickdbpath", m.opts.BrickDB); err != nil {
			m.logger.Warn("cannot set brick database path", logging.Error(err))
		}
	}
}

// ensureVertexColors creates a default color layer on meshes lacking one so
// the bake stage has something to write into. Best-effort backstop.
func (m *Machine) ensureVertexColors(ctx context.Context, caps host.Capabilities) {
	meshes, err := m.host.Meshes(ctx)
	if err != nil {
		m.logger.Warn("cannot list meshes for vertex color backstop", logging.Error(err))
		return
	}
	created := 0
	for _, mesh := range meshes {
		switch {
		case caps.VertexColorLayers && mesh.VertexColorCount == 0:
			if err := m.host.AddColorLayer(ctx, mesh.Name, "Col", false); err != nil {
				m.logger.Warn("cannot create vertex color layer",
					logging.String("mesh", mesh.Name), logging.Error(err))
				continue
			}
			created++
		case !caps.VertexColorLayers && caps.ColorAttributes && mesh.ColorAttributes == 0:
			if err := m.host.AddColorLayer(ctx, mesh.Name, "Col", true); err != nil {
				m.logger.Warn("cannot create color attribute",
					logging.String("mesh", mesh.Name), logging.Error(err))
				continue
			}
			created++
		}
	}
	if created > 0 {
		m.logger.Info("created default color layers", logging.Int("count", created))
	}
}

// waitIdle polls the host job kinds until none report running, bounded by
// the configured deadline, then forces a scene-graph recompute.
func (m *Machine) waitIdle(ctx context.Context) error {
	var deadline time.Time
	if m.opts.WaitIdleTimeout > 0 {
		deadline = time.Now().Add(m.opts.WaitIdleTimeout)
	}

	for {
		running, err := m.host.RunningJobs(ctx, idleJobKinds)
		if err != nil {
			m.logger.Warn("job poll failed; treating host as idle", logging.Error(err))
			break
		}
		if !running {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("%w: background jobs still running after %s",
				host.ErrTimeout, m.opts.WaitIdleTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.opts.WaitIdlePoll):
		}
	}

	if err := m.host.UpdateDepsgraph(ctx); err != nil {
		m.logger.Warn("scene graph recompute failed", logging.Error(err))
	}
	return nil
}

// export writes the NIF, retrying without the scale keyword when the
// operator build does not accept it.
func (m *Machine) export(ctx context.Context) error {
	m.setNifGame(ctx)

	if err := m.host.SaveAllImages(ctx); err != nil {
		m.logger.Warn("cannot flush modified images", logging.Error(err))
	}

	kwargs := host.Kwargs{"filepath": m.opts.Output, "scale_correction": 1.0}
	err := m.host.Invoke(ctx, opExportNIF, kwargs)
	if err == nil {
		return nil
	}
	if !errors.Is(err, host.ErrBadKeyword) {
		return err
	}

	m.logger.Info("export operator rejected scale keyword; retrying via scene property")
	if propErr := m.host.SetSceneProp(ctx, nifScaleProp, 1.0); propErr != nil {
		m.logger.Warn("cannot set scale correction property", logging.Error(propErr))
	}
	return m.host.Invoke(ctx, opExportNIF, host.Kwargs{"filepath": m.opts.Output})
}

// setNifGame targets the export at the product identifier, scanning the
// game enum when the identifier assignment is rejected. Never fatal.
func (m *Machine) setNifGame(ctx context.Context) {
	if err := m.host.SetSceneProp(ctx, nifGameProp, nifGameTarget); err == nil {
		return
	}
	items, err := m.host.SceneEnumItems(ctx, nifGameProp)
	if err != nil {
		m.logger.Warn("cannot enumerate export game property; continuing", logging.Error(err))
		return
	}
	for _, item := range items {
		name := strings.ToLower(item.Name)
		if strings.Contains(name, "lego") && strings.Contains(name, "universe") {
			if err := m.host.SetSceneProp(ctx, nifGameProp, item.Identifier); err != nil {
				m.logger.Warn("cannot set export game property", logging.Error(err))
			}
			return
		}
	}
	m.logger.Warn("export game property has no matching item; continuing")
}

func (m *Machine) saveSnapshot(ctx context.Context) {
	if m.opts.SaveBlendPath == "" {
		return
	}
	if err := m.host.SaveProject(ctx, m.opts.SaveBlendPath); err != nil {
		m.logger.Warn("project snapshot failed",
			logging.String("path", m.opts.SaveBlendPath), logging.Error(err))
		return
	}
	m.logger.Info("project snapshot saved", logging.String("path", m.opts.SaveBlendPath))
}

func (m *Machine) stageStart(stage Stage) {
	m.logger.Info("stage started", logging.String(logging.FieldStage, string(stage)))
}

func (m *Machine) stageDone(stage Stage) {
	m.logger.Info("stage completed", logging.String(logging.FieldStage, string(stage)))
}
