// Package hosttest provides a scriptable in-memory host for component tests.
package hosttest

import (
	"context"
	"fmt"
	"sync"

	"brickforge/internal/host"
)

// Invocation records one operator call the fake received.
type Invocation struct {
	Op     host.OperatorID
	Kwargs host.Kwargs
}

// WrapCall records one wrapper installation.
type WrapCall struct {
	Module string
	Class  string
	Method string
	Mode   string
}

// Fake implements the narrow host interfaces of the device, headless,
// importer, pipeline and render packages. The zero value is usable; script
// behavior by setting the Func fields or the canned data.
type Fake struct {
	mu sync.Mutex

	// InvokeFunc scripts operator behavior; nil means every operator succeeds.
	InvokeFunc  func(op host.OperatorID, kwargs host.Kwargs) error
	Invocations []Invocation

	Caps    host.Capabilities
	CapsErr error

	Devices       []host.Device
	DevicesErr    error
	Backend       string
	BackendErr    error
	Refreshed     int
	DeviceMode    string
	SceneProps    map[string]any
	ScenePropsErr map[string]error
	EnumItems     map[string][]host.EnumItem

	EnabledAddons []string
	AddonPrefs    map[string]any

	HandlersByModule map[string][]host.Handler
	HandlersErr      error
	Wrapped          []WrapCall
	WrapErr          error

	// RunningPolls is the number of RunningJobs calls that report work
	// still running before the fake goes idle.
	RunningPolls     int
	runningSeen      int
	DepsgraphUpdates int

	MeshList    []host.Mesh
	AddedLayers []string

	ImagesSaved    int
	SavedProjects  []string
	OpenedProjects []string
}

func (f *Fake) Invoke(ctx context.Context, op host.OperatorID, kwargs host.Kwargs) error {
	f.mu.Lock()
	f.Invocations = append(f.Invocations, Invocation{Op: op, Kwargs: kwargs})
	fn := f.InvokeFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(op, kwargs)
	}
	return nil
}

// InvokedOps returns the operator ids invoked so far, in order.
func (f *Fake) InvokedOps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ops := make([]string, 0, len(f.Invocations))
	for _, inv := range f.Invocations {
		ops = append(ops, inv.Op.String())
	}
	return ops
}

func (f *Fake) Capabilities(ctx context.Context) (host.Capabilities, error) {
	return f.Caps, f.CapsErr
}

func (f *Fake) EnableAddon(ctx context.Context, module string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.EnabledAddons = append(f.EnabledAddons, module)
	return nil
}

func (f *Fake) SetAddonPref(ctx context.Context, module, key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AddonPrefs == nil {
		f.AddonPrefs = make(map[string]any)
	}
	f.AddonPrefs[module+"."+key] = value
	return nil
}

func (f *Fake) ComputeDevices(ctx context.Context) ([]host.Device, error) {
	if f.DevicesErr != nil {
		return nil, f.DevicesErr
	}
	out := make([]host.Device, len(f.Devices))
	copy(out, f.Devices)
	return out, nil
}

func (f *Fake) SetComputeBackend(ctx context.Context, backend string) error {
	if f.BackendErr != nil {
		return f.BackendErr
	}
	f.Backend = backend
	return nil
}

func (f *Fake) RefreshDevices(ctx context.Context) error {
	f.Refreshed++
	return nil
}

func (f *Fake) SetDeviceUsed(ctx context.Context, index int, used bool) error {
	if index < 0 || index >= len(f.Devices) {
		return fmt.Errorf("device index %d out of range", index)
	}
	f.Devices[index].Used = used
	return nil
}

func (f *Fake) SetSceneDeviceMode(ctx context.Context, mode string) error {
	f.DeviceMode = mode
	return nil
}

func (f *Fake) SetSceneProp(ctx context.Context, prop string, value any) error {
	if err := f.ScenePropsErr[prop]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SceneProps == nil {
		f.SceneProps = make(map[string]any)
	}
	f.SceneProps[prop] = value
	return nil
}

func (f *Fake) SceneEnumItems(ctx context.Context, prop string) ([]host.EnumItem, error) {
	items, ok := f.EnumItems[prop]
	if !ok {
		return nil, host.ErrUnknownOperator
	}
	return items, nil
}

func (f *Fake) ActionHandlers(ctx context.Context, module string, methods []string) ([]host.Handler, error) {
	if f.HandlersErr != nil {
		return nil, f.HandlersErr
	}
	return f.HandlersByModule[module], nil
}

func (f *Fake) InstallWrapper(ctx context.Context, module, class, method, mode string) error {
	if f.WrapErr != nil {
		return f.WrapErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Wrapped = append(f.Wrapped, WrapCall{Module: module, Class: class, Method: method, Mode: mode})
	return nil
}

func (f *Fake) RunningJobs(ctx context.Context, kinds []string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runningSeen < f.RunningPolls {
		f.runningSeen++
		return true, nil
	}
	return false, nil
}

func (f *Fake) UpdateDepsgraph(ctx context.Context) error {
	f.DepsgraphUpdates++
	return nil
}

func (f *Fake) Meshes(ctx context.Context) ([]host.Mesh, error) {
	out := make([]host.Mesh, len(f.MeshList))
	copy(out, f.MeshList)
	return out, nil
}

func (f *Fake) AddColorLayer(ctx context.Context, mesh, layer string, colorAttribute bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AddedLayers = append(f.AddedLayers, mesh+":"+layer)
	return nil
}

func (f *Fake) SaveAllImages(ctx context.Context) error {
	f.ImagesSaved++
	return nil
}

func (f *Fake) SaveProject(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SavedProjects = append(f.SavedProjects, path)
	return nil
}

func (f *Fake) OpenProject(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OpenedProjects = append(f.OpenedProjects, path)
	return nil
}
