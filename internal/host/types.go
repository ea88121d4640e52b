package host

import (
	"fmt"
	"strings"
)

// OperatorID names a host or plugin operation by its two-part identifier.
type OperatorID struct {
	Family string
	Action string
}

// ParseOperatorID splits a "family.action" identifier.
func ParseOperatorID(id string) (OperatorID, error) {
	trimmed := strings.TrimSpace(id)
	family, action, ok := strings.Cut(trimmed, ".")
	if !ok || family == "" || action == "" {
		return OperatorID{}, fmt.Errorf("bad operator id %q: want family.action", id)
	}
	return OperatorID{Family: family, Action: action}, nil
}

func (o OperatorID) String() string {
	return o.Family + "." + o.Action
}

// IsZero reports whether the identifier is unset.
func (o OperatorID) IsZero() bool {
	return o.Family == "" && o.Action == ""
}

// Kwargs carries keyword arguments for an operator invocation.
type Kwargs map[string]any

// FileEntry is the element type of the directory+file-list call convention.
type FileEntry struct {
	Name string `json:"name"`
}

// DeviceKind identifies a compute device family reported by the host.
type DeviceKind string

const (
	DeviceCPU   DeviceKind = "CPU"
	DeviceCUDA  DeviceKind = "CUDA"
	DeviceOptiX DeviceKind = "OPTIX"
)

// Device describes one entry of the host's compute device inventory.
type Device struct {
	Kind DeviceKind
	Name string
	// Used reflects the host preference flag marking the device in use.
	Used bool
}

// Capabilities is the per-host-version feature surface probed once at worker
// startup instead of duck-typing the host API per call.
type Capabilities struct {
	// VertexColorLayers reports the legacy mesh vertex-color layer API.
	VertexColorLayers bool
	// ColorAttributes reports the newer mesh color-attribute API.
	ColorAttributes bool
	// RefreshDevices reports whether the compute preferences expose an
	// inventory refresh.
	RefreshDevices bool
	// TempOverride reports context-override support for UI operators.
	TempOverride bool
	// WindowManager reports whether any interactive window exists; false
	// means the host runs headless.
	WindowManager bool
}

// Mesh summarizes one mesh datablock for the vertex-color backstop.
type Mesh struct {
	Name             string
	VertexColorCount int
	ColorAttributes  int
}

// Handler identifies one plugin action-handler class and the subset of
// patchable methods it defines.
type Handler struct {
	Class   string
	Methods []string
}

// EnumItem is one identifier/name pair of a host enum property.
type EnumItem struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
}
