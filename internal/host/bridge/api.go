package bridge

import (
	"context"

	"brickforge/internal/host"
)

// Invoke runs a host operator with keyword arguments.
func (c *Client) Invoke(ctx context.Context, op host.OperatorID, kwargs host.Kwargs) error {
	params := struct {
		Family string      `json:"family"`
		Action string      `json:"action"`
		Kwargs host.Kwargs `json:"kwargs,omitempty"`
	}{op.Family, op.Action, kwargs}
	return c.call(ctx, "invoke", params, nil)
}

// EnableAddon enables a host plugin module. Missing modules report
// host.ErrUnknownOperator.
func (c *Client) EnableAddon(ctx context.Context, module string) error {
	return c.call(ctx, "addon.enable", map[string]string{"module": module}, nil)
}

// SetAddonPref sets one plugin preference value.
func (c *Client) SetAddonPref(ctx context.Context, module, key string, value any) error {
	params := map[string]any{"module": module, "key": key, "value": value}
	return c.call(ctx, "addon.set_pref", params, nil)
}

// Capabilities probes the host feature surface once per worker.
func (c *Client) Capabilities(ctx context.Context) (host.Capabilities, error) {
	var result struct {
		VertexColorLayers bool `json:"vertex_color_layers"`
		ColorAttributes   bool `json:"color_attributes"`
		RefreshDevices    bool `json:"refresh_devices"`
		TempOverride      bool `json:"temp_override"`
		WindowManager     bool `json:"window_manager"`
	}
	if err := c.call(ctx, "capabilities", nil, &result); err != nil {
		return host.Capabilities{}, err
	}
	return host.Capabilities{
		VertexColorLayers: result.VertexColorLayers,
		ColorAttributes:   result.ColorAttributes,
		RefreshDevices:    result.RefreshDevices,
		TempOverride:      result.TempOverride,
		WindowManager:     result.WindowManager,
	}, nil
}

// ComputeDevices lists the host's compute device inventory.
func (c *Client) ComputeDevices(ctx context.Context) ([]host.Device, error) {
	var result []struct {
		Type string `json:"type"`
		Name string `json:"name"`
		Use  bool   `json:"use"`
	}
	if err := c.call(ctx, "devices.list", nil, &result); err != nil {
		return nil, err
	}
	devices := make([]host.Device, 0, len(result))
	for _, d := range result {
		devices = append(devices, host.Device{Kind: host.DeviceKind(d.Type), Name: d.Name, Used: d.Use})
	}
	return devices, nil
}

// SetComputeBackend sets the compute preference backend family
// ("NONE", "CUDA", "OPTIX").
func (c *Client) SetComputeBackend(ctx context.Context, backend string) error {
	return c.call(ctx, "devices.set_backend", map[string]string{"backend": backend}, nil)
}

// RefreshDevices re-enumerates the compute device inventory.
func (c *Client) RefreshDevices(ctx context.Context) error {
	return c.call(ctx, "devices.refresh", nil, nil)
}

// SetDeviceUsed flips the in-use flag of one inventory entry.
func (c *Client) SetDeviceUsed(ctx context.Context, index int, used bool) error {
	return c.call(ctx, "devices.set_use", map[string]any{"index": index, "use": used}, nil)
}

// SetSceneDeviceMode sets the scene's active device mode ("CPU" or "GPU").
func (c *Client) SetSceneDeviceMode(ctx context.Context, mode string) error {
	return c.call(ctx, "scene.set_device_mode", map[string]string{"mode": mode}, nil)
}

// SetSceneProp assigns a scene property by dotted path.
func (c *Client) SetSceneProp(ctx context.Context, prop string, value any) error {
	return c.call(ctx, "scene.set", map[string]any{"prop": prop, "value": value}, nil)
}

// SceneEnumItems lists the items of a scene enum property.
func (c *Client) SceneEnumItems(ctx context.Context, prop string) ([]host.EnumItem, error) {
	var result []host.EnumItem
	if err := c.call(ctx, "scene.enum_items", map[string]string{"prop": prop}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// RunningJobs reports whether any of the given host job kinds is running.
func (c *Client) RunningJobs(ctx context.Context, kinds []string) (bool, error) {
	var result struct {
		Running bool `json:"running"`
	}
	if err := c.call(ctx, "jobs.running", map[string]any{"kinds": kinds}, &result); err != nil {
		return false, err
	}
	return result.Running, nil
}

// UpdateDepsgraph forces a scene-graph recompute.
func (c *Client) UpdateDepsgraph(ctx context.Context) error {
	return c.call(ctx, "depsgraph.update", nil, nil)
}

// SaveAllImages flushes modified in-memory images to disk.
func (c *Client) SaveAllImages(ctx context.Context) error {
	return c.call(ctx, "images.save_all", nil, nil)
}

// SaveProject writes the current project file to path.
func (c *Client) SaveProject(ctx context.Context, path string) error {
	return c.call(ctx, "project.save", map[string]string{"path": path}, nil)
}

// OpenProject loads a project file.
func (c *Client) OpenProject(ctx context.Context, path string) error {
	return c.call(ctx, "project.open", map[string]string{"path": path}, nil)
}

// Meshes lists mesh datablocks with their color layer counts.
func (c *Client) Meshes(ctx context.Context) ([]host.Mesh, error) {
	var result []struct {
		Name              string `json:"name"`
		VertexColorLayers int    `json:"vertex_color_layers"`
		ColorAttributes   int    `json:"color_attributes"`
	}
	if err := c.call(ctx, "meshes.list", nil, &result); err != nil {
		return nil, err
	}
	meshes := make([]host.Mesh, 0, len(result))
	for _, m := range result {
		meshes = append(meshes, host.Mesh{Name: m.Name, VertexColorCount: m.VertexColorLayers, ColorAttributes: m.ColorAttributes})
	}
	return meshes, nil
}

// AddColorLayer creates a default color layer on one mesh. colorAttribute
// selects the newer color-attribute API over legacy vertex-color layers.
func (c *Client) AddColorLayer(ctx context.Context, mesh, layer string, colorAttribute bool) error {
	params := map[string]any{"mesh": mesh, "layer": layer, "color_attribute": colorAttribute}
	return c.call(ctx, "meshes.add_color_layer", params, nil)
}

// ActionHandlers lists a plugin module's operator classes and which of the
// requested methods each defines.
func (c *Client) ActionHandlers(ctx context.Context, module string, methods []string) ([]host.Handler, error) {
	var result []struct {
		Class   string   `json:"class"`
		Methods []string `json:"methods"`
	}
	params := map[string]any{"module": module, "methods": methods}
	if err := c.call(ctx, "handlers.list", params, &result); err != nil {
		return nil, err
	}
	handlers := make([]host.Handler, 0, len(result))
	for _, h := range result {
		handlers = append(handlers, host.Handler{Class: h.Class, Methods: h.Methods})
	}
	return handlers, nil
}

// InstallWrapper installs the headless wrapper for one (class, method) pair.
// Mode is "wrap" or "stub".
func (c *Client) InstallWrapper(ctx context.Context, module, class, method, mode string) error {
	params := map[string]string{"module": module, "class": class, "method": method, "mode": mode}
	return c.call(ctx, "handlers.wrap", params, nil)
}

// Quit asks the bridge script to exit cleanly.
func (c *Client) Quit(ctx context.Context) error {
	return c.call(ctx, "quit", nil, nil)
}
