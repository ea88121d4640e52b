package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"brickforge/internal/device"
	"brickforge/internal/headless"
	"brickforge/internal/host"
	"brickforge/internal/hosttest"
	"brickforge/internal/pipeline"
)

func baseOptions() pipeline.Options {
	return pipeline.Options{
		Input:         "/models/castle.lxf",
		Output:        "/out/castle.nif",
		Device:        device.PolicyCPU,
		PatchStrategy: headless.StrategyWrap,
		ProcessOp:     host.OperatorID{Family: "lutb", Action: "process_model"},
		BakeOp:        host.OperatorID{Family: "lutb", Action: "bake_lighting"},
		WaitIdlePoll:  time.Millisecond,
	}
}

func TestSuccessfulRunInvokesStagesInOrder(t *testing.T) {
	fake := &hosttest.Fake{}
	machine := pipeline.New(fake, baseOptions(), nil)
	if err := machine.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ops := fake.InvokedOps()
	var filtered []string
	for _, op := range ops {
		switch op {
		case "lutb.process_model", "lutb.bake_lighting", "export_scene.nif":
			filtered = append(filtered, op)
		}
	}
	want := []string{"lutb.process_model", "lutb.bake_lighting", "export_scene.nif"}
	if len(filtered) != len(want) {
		t.Fatalf("plugin ops = %v, want %v", filtered, want)
	}
	for i := range want {
		if filtered[i] != want[i] {
			t.Fatalf("plugin ops = %v, want %v", filtered, want)
		}
	}
	if fake.DepsgraphUpdates != 1 {
		t.Fatalf("depsgraph updates = %d, want 1", fake.DepsgraphUpdates)
	}
}

func TestBakeFailureExitsWithCode4AndSkipsExport(t *testing.T) {
	fake := &hosttest.Fake{}
	fake.InvokeFunc = func(op host.OperatorID, _ host.Kwargs) error {
		if op.Action == "bake_lighting" {
			return host.ErrOperatorFailed
		}
		return nil
	}

	machine := pipeline.New(fake, baseOptions(), nil)
	err := machine.Run(context.Background())

	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("want StageError, got %v", err)
	}
	if stageErr.Stage != pipeline.StageBake || stageErr.ExitCode() != pipeline.ExitBake {
		t.Fatalf("stage=%s code=%d", stageErr.Stage, stageErr.ExitCode())
	}
	for _, op := range fake.InvokedOps() {
		if op == "export_scene.nif" {
			t.Fatal("export must not run after bake failure")
		}
	}
}

func TestImportFailureExitsWithCode2(t *testing.T) {
	fake := &hosttest.Fake{}
	fake.InvokeFunc = func(op host.OperatorID, _ host.Kwargs) error {
		if op.Family == "import_scene" {
			return host.ErrUnknownOperator
		}
		return nil
	}

	machine := pipeline.New(fake, baseOptions(), nil)
	err := machine.Run(context.Background())

	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("want StageError, got %v", err)
	}
	if stageErr.ExitCode() != pipeline.ExitImport {
		t.Fatalf("code = %d, want %d", stageErr.ExitCode(), pipeline.ExitImport)
	}
}

func TestExportSkippedWithoutOutputPath(t *testing.T) {
	fake := &hosttest.Fake{}
	opts := baseOptions()
	opts.Output = ""

	machine := pipeline.New(fake, opts, nil)
	if err := machine.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, op := range fake.InvokedOps() {
		if op == "export_scene.nif" {
			t.Fatal("export invoked despite empty output path")
		}
	}
}

func TestExportRetriesWithoutScaleKeyword(t *testing.T) {
	fake := &hosttest.Fake{}
	fake.InvokeFunc = func(op host.OperatorID, kwargs host.Kwargs) error {
		if op.Action == "nif" {
			if _, ok := kwargs["scale_correction"]; ok {
				return host.ErrBadKeyword
			}
		}
		return nil
	}

	machine := pipeline.New(fake, baseOptions(), nil)
	if err := machine.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fake.SceneProps["niftools_scene.scale_correction"] != 1.0 {
		t.Fatalf("scale property not set: %v", fake.SceneProps)
	}
	exports := 0
	for _, op := range fake.InvokedOps() {
		if op == "export_scene.nif" {
			exports++
		}
	}
	if exports != 2 {
		t.Fatalf("export invoked %d times, want 2", exports)
	}
}

func TestWaitIdleTimesOutWithCode6(t *testing.T) {
	fake := &hosttest.Fake{RunningPolls: 1 << 30}
	opts := baseOptions()
	opts.WaitIdleTimeout = 5 * time.Millisecond
	opts.WaitIdlePoll = time.Millisecond

	machine := pipeline.New(fake, opts, nil)
	err := machine.Run(context.Background())

	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("want StageError, got %v", err)
	}
	if stageErr.Stage != pipeline.StageWaitIdle || stageErr.ExitCode() != pipeline.ExitWaitIdle {
		t.Fatalf("stage=%s code=%d", stageErr.Stage, stageErr.ExitCode())
	}
	if !errors.Is(err, host.ErrTimeout) {
		t.Fatalf("want ErrTimeout in chain, got %v", err)
	}
}

func TestWaitIdleDrainsBeforeExport(t *testing.T) {
	fake := &hosttest.Fake{RunningPolls: 3}
	opts := baseOptions()
	opts.WaitIdleTimeout = time.Second

	machine := pipeline.New(fake, opts, nil)
	if err := machine.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fake.DepsgraphUpdates != 1 {
		t.Fatalf("depsgraph updates = %d, want 1", fake.DepsgraphUpdates)
	}
}

func TestColorBackstopFillsMeshesWithoutLayers(t *testing.T) {
	fake := &hosttest.Fake{
		Caps: host.Capabilities{ColorAttributes: true},
		MeshList: []host.Mesh{
			{Name: "brick.000", ColorAttributes: 0},
			{Name: "brick.001", ColorAttributes: 2},
		},
	}
	machine := pipeline.New(fake, baseOptions(), nil)
	if err := machine.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fake.AddedLayers) != 1 || fake.AddedLayers[0] != "brick.000:Col" {
		t.Fatalf("added layers = %v", fake.AddedLayers)
	}
}

func TestDeviceProblemsAreNonFatal(t *testing.T) {
	fake := &hosttest.Fake{
		DevicesErr: errors.New("accelerator subsystem missing"),
		BackendErr: errors.New("accelerator subsystem missing"),
	}
	opts := baseOptions()
	opts.Device = device.PolicyOptiX

	machine := pipeline.New(fake, opts, nil)
	if err := machine.Run(context.Background()); err != nil {
		t.Fatalf("device problems must not fail the run: %v", err)
	}
}

func TestProjectSnapshotSavedWhenRequested(t *testing.T) {
	fake := &hosttest.Fake{}
	opts := baseOptions()
	opts.SaveBlendPath = "/out/castle.blend"

	machine := pipeline.New(fake, opts, nil)
	if err := machine.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fake.SavedProjects) != 1 || fake.SavedProjects[0] != "/out/castle.blend" {
		t.Fatalf("saved projects = %v", fake.SavedProjects)
	}
}
