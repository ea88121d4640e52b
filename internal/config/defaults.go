package config

const (
	defaultHostBinary         = "blender"
	defaultBridgeScript       = "~/.config/brickforge/bridge.py"
	defaultPattern            = "*.lxf;*.lxfml"
	defaultJobs               = 1
	defaultDevice             = "auto"
	defaultImportOp           = ""
	defaultProcessOp          = "lutb.process_model"
	defaultBakeOp             = "lutb.bake_lighting"
	defaultPatchMode          = "wrap"
	defaultWaitIdleTimeout    = 900
	defaultWaitIdlePollMillis = 200
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogDir             = "~/.local/share/brickforge/logs"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Host: Host{
			Binary:       defaultHostBinary,
			BridgeScript: defaultBridgeScript,
			LaunchArgs:   []string{"-b", "--factory-startup"},
		},
		Batch: Batch{
			Pattern: defaultPattern,
			Jobs:    defaultJobs,
			Device:  defaultDevice,
		},
		Pipeline: Pipeline{
			ImportOp:           defaultImportOp,
			ProcessOp:          defaultProcessOp,
			BakeOp:             defaultBakeOp,
			PatchMode:          defaultPatchMode,
			WaitIdleTimeout:    defaultWaitIdleTimeout,
			WaitIdlePollMillis: defaultWaitIdlePollMillis,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
			Dir:    defaultLogDir,
		},
	}
}
