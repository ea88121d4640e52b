package device_test

import (
	"context"
	"errors"
	"testing"

	"brickforge/internal/device"
	"brickforge/internal/host"
	"brickforge/internal/hosttest"
)

func TestAutoPrefersOptiXFromSavedPrefs(t *testing.T) {
	fake := &hosttest.Fake{
		Caps: host.Capabilities{RefreshDevices: true},
		Devices: []host.Device{
			{Kind: host.DeviceCPU, Name: "cpu0", Used: true},
			{Kind: host.DeviceCUDA, Name: "gpu0", Used: true},
			{Kind: host.DeviceOptiX, Name: "gpu0-optix", Used: true},
		},
	}
	sel := device.NewSelector(fake, fake.Caps, nil).Select(context.Background(), device.PolicyAuto)

	if sel.Effective != device.PolicyOptiX {
		t.Fatalf("effective = %q, want optix", sel.Effective)
	}
	if !sel.GPU {
		t.Fatal("expected GPU broadcast true")
	}
	if fake.DeviceMode != "GPU" {
		t.Fatalf("scene device mode = %q, want GPU", fake.DeviceMode)
	}
	// auto never mutates the in-use flags.
	for _, d := range fake.Devices {
		if !d.Used {
			t.Fatalf("auto mutated device flags: %+v", fake.Devices)
		}
	}
}

func TestAutoIgnoresPresentButUnusedGPUs(t *testing.T) {
	fake := &hosttest.Fake{
		Devices: []host.Device{
			{Kind: host.DeviceCPU, Name: "cpu0", Used: true},
			{Kind: host.DeviceCUDA, Name: "gpu0", Used: false},
		},
	}
	sel := device.NewSelector(fake, fake.Caps, nil).Select(context.Background(), device.PolicyAuto)

	if sel.Effective != device.PolicyCPU {
		t.Fatalf("effective = %q, want cpu", sel.Effective)
	}
	if fake.DeviceMode != "CPU" {
		t.Fatalf("scene device mode = %q, want CPU", fake.DeviceMode)
	}
}

func TestForcedCUDADowngradesWhenNoDevices(t *testing.T) {
	fake := &hosttest.Fake{
		Devices: []host.Device{
			{Kind: host.DeviceCPU, Name: "cpu0"},
		},
	}
	sel := device.NewSelector(fake, fake.Caps, nil).Select(context.Background(), device.PolicyCUDA)

	if sel.Effective != device.PolicyCPU {
		t.Fatalf("effective = %q, want cpu downgrade", sel.Effective)
	}
	if sel.GPU {
		t.Fatal("GPU broadcast should be false after downgrade")
	}
	if fake.SceneProps["lutb_process_use_gpu"] != false || fake.SceneProps["lutb_bake_use_gpu"] != false {
		t.Fatalf("gpu toggles not broadcast false: %v", fake.SceneProps)
	}
	if !fake.Devices[0].Used {
		t.Fatal("CPU device should be marked in use")
	}
}

func TestForcedOptiXEnablesMatchingDevices(t *testing.T) {
	fake := &hosttest.Fake{
		Devices: []host.Device{
			{Kind: host.DeviceCPU, Name: "cpu0"},
			{Kind: host.DeviceOptiX, Name: "gpu0"},
			{Kind: host.DeviceCUDA, Name: "gpu0-cuda"},
		},
	}
	sel := device.NewSelector(fake, fake.Caps, nil).Select(context.Background(), device.PolicyOptiX)

	if sel.Effective != device.PolicyOptiX {
		t.Fatalf("effective = %q, want optix", sel.Effective)
	}
	if fake.Backend != "OPTIX" {
		t.Fatalf("backend = %q, want OPTIX", fake.Backend)
	}
	if !fake.Devices[0].Used || !fake.Devices[1].Used {
		t.Fatalf("cpu and optix devices should be in use: %+v", fake.Devices)
	}
	if fake.Devices[2].Used {
		t.Fatal("cuda device should stay untouched under optix request")
	}
	if fake.SceneProps["lutb_process_use_gpu"] != true {
		t.Fatalf("gpu toggle not broadcast: %v", fake.SceneProps)
	}
}

func TestProbeErrorsDegradeToCPU(t *testing.T) {
	fake := &hosttest.Fake{
		DevicesErr: errors.New("no accelerator subsystem"),
		BackendErr: errors.New("no accelerator subsystem"),
	}
	sel := device.NewSelector(fake, fake.Caps, nil).Select(context.Background(), device.PolicyCUDA)
	if sel.Effective != device.PolicyCPU || sel.GPU {
		t.Fatalf("expected cpu fallback, got %+v", sel)
	}
}
