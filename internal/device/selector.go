// Package device resolves the requested compute-device policy against the
// host's accelerator inventory.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"brickforge/internal/host"
	"brickforge/internal/logging"
)

// Policy is the requested compute-device policy.
type Policy string

const (
	PolicyAuto  Policy = "auto"
	PolicyCPU   Policy = "cpu"
	PolicyCUDA  Policy = "cuda"
	PolicyOptiX Policy = "optix"
)

// ParsePolicy validates a policy string.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case PolicyAuto:
		return PolicyAuto, nil
	case PolicyCPU, "":
		return PolicyCPU, nil
	case PolicyCUDA:
		return PolicyCUDA, nil
	case PolicyOptiX:
		return PolicyOptiX, nil
	default:
		return "", fmt.Errorf("unknown device policy %q", value)
	}
}

// Selection is the resolved outcome of a policy.
type Selection struct {
	Requested Policy
	Effective Policy
	// GPU mirrors the two plugin-visible toggle broadcasts.
	GPU bool
}

// ComputeHost is the accelerator surface the selector needs from the host.
type ComputeHost interface {
	ComputeDevices(ctx context.Context) ([]host.Device, error)
	SetComputeBackend(ctx context.Context, backend string) error
	RefreshDevices(ctx context.Context) error
	SetDeviceUsed(ctx context.Context, index int, used bool) error
	SetSceneDeviceMode(ctx context.Context, mode string) error
	SetSceneProp(ctx context.Context, prop string, value any) error
}

// Scene properties the plugin reads to decide GPU usage per stage.
const (
	propProcessUseGPU = "lutb_process_use_gpu"
	propBakeUseGPU    = "lutb_bake_use_gpu"
)

// Selector applies a device policy. Probe or mutation errors never
// propagate; the selector always returns a selection, degrading to CPU.
type Selector struct {
	host   ComputeHost
	caps   host.Capabilities
	logger *slog.Logger
}

// NewSelector constructs a selector bound to one host connection.
func NewSelector(computeHost ComputeHost, caps host.Capabilities, logger *slog.Logger) *Selector {
	return &Selector{
		host:   computeHost,
		caps:   caps,
		logger: logging.NewComponentLogger(logger, "device"),
	}
}

// Select resolves the policy and broadcasts the GPU toggles.
func (s *Selector) Select(ctx context.Context, requested Policy) Selection {
	var effective Policy
	if requested == PolicyAuto {
		effective = s.selectAuto(ctx)
	} else {
		effective = s.selectForced(ctx, requested)
	}

	selection := Selection{Requested: requested, Effective: effective, GPU: effective != PolicyCPU}
	s.broadcastGPU(ctx, selection.GPU)
	s.logger.Info("device selected",
		logging.String("requested", string(requested)),
		logging.String(logging.FieldDevice, string(effective)),
		logging.Bool("gpu", selection.GPU),
	)
	return selection
}

// selectAuto trusts the saved preference flags: a device counts only when it
// is present and already marked in use. Never toggles the flags itself.
func (s *Selector) selectAuto(ctx context.Context) Policy {
	s.refresh(ctx)
	devices, err := s.host.ComputeDevices(ctx)
	if err != nil {
		s.logger.Warn("device inventory unavailable; auto selects cpu", logging.Error(err))
		s.setMode(ctx, "CPU")
		return PolicyCPU
	}

	anyOptiX := false
	anyCUDA := false
	for _, d := range devices {
		if !d.Used {
			continue
		}
		switch d.Kind {
		case host.DeviceOptiX:
			anyOptiX = true
		case host.DeviceCUDA:
			anyCUDA = true
		}
	}

	switch {
	case anyOptiX:
		s.setMode(ctx, "GPU")
		return PolicyOptiX
	case anyCUDA:
		s.setMode(ctx, "GPU")
		return PolicyCUDA
	default:
		s.setMode(ctx, "CPU")
		return PolicyCPU
	}
}

// selectForced mutates the enabled-device set to enable exactly the
// requested backend, plus every CPU device.
func (s *Selector) selectForced(ctx context.Context, requested Policy) Policy {
	backend := "NONE"
	switch requested {
	case PolicyCUDA:
		backend = "CUDA"
	case PolicyOptiX:
		backend = "OPTIX"
	}

	if err := s.host.SetComputeBackend(ctx, backend); err != nil {
		s.logger.Warn("cannot set compute backend; using cpu",
			logging.String("backend", backend), logging.Error(err))
		backend = "NONE"
		if err := s.host.SetComputeBackend(ctx, backend); err != nil {
			s.logger.Warn("cannot reset compute backend", logging.Error(err))
		}
	}
	s.refresh(ctx)

	foundGPU := false
	devices, err := s.host.ComputeDevices(ctx)
	if err != nil {
		s.logger.Warn("device inventory unavailable", logging.Error(err))
	}
	for i, d := range devices {
		switch {
		case d.Kind == host.DeviceCPU:
			s.setUsed(ctx, i, d)
		case backend != "NONE" && string(d.Kind) == backend:
			s.setUsed(ctx, i, d)
			foundGPU = true
		}
	}

	if backend == "NONE" {
		s.setMode(ctx, "CPU")
		return PolicyCPU
	}
	if !foundGPU {
		s.logger.Warn("requested backend has no devices; downgrading to cpu",
			logging.String("backend", backend))
		s.setMode(ctx, "CPU")
		return PolicyCPU
	}
	s.setMode(ctx, "GPU")
	return requested
}

func (s *Selector) refresh(ctx context.Context) {
	if !s.caps.RefreshDevices {
		return
	}
	if err := s.host.RefreshDevices(ctx); err != nil {
		s.logger.Warn("device refresh failed", logging.Error(err))
	}
}

func (s *Selector) setUsed(ctx context.Context, index int, d host.Device) {
	if err := s.host.SetDeviceUsed(ctx, index, true); err != nil {
		s.logger.Warn("cannot mark device in use",
			logging.String("name", d.Name), logging.Error(err))
	}
}

func (s *Selector) setMode(ctx context.Context, mode string) {
	if err := s.host.SetSceneDeviceMode(ctx, mode); err != nil {
		s.logger.Warn("cannot set scene device mode",
			logging.String("mode", mode), logging.Error(err))
	}
}

func (s *Selector) broadcastGPU(ctx context.Context, gpu bool) {
	for _, prop := range []string{propProcessUseGPU, propBakeUseGPU} {
		if err := s.host.SetSceneProp(ctx, prop, gpu); err != nil {
			s.logger.Warn("cannot set gpu toggle",
				logging.String("prop", prop), logging.Error(err))
		}
	}
}
