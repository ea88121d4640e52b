package config

import (
	"errors"
	"fmt"
	"strings"
)

var validDevices = map[string]struct{}{
	"auto":  {},
	"cpu":   {},
	"cuda":  {},
	"optix": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateHost(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateHost() error {
	if c.Host.Binary == "" {
		return errors.New("host.binary must be set")
	}
	if c.Host.BridgeScript == "" {
		return errors.New("host.bridge_script must be set")
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.Jobs < 1 {
		return errors.New("batch.jobs must be at least 1")
	}
	if _, ok := validDevices[c.Batch.Device]; !ok {
		return fmt.Errorf("batch.device must be one of auto, cpu, cuda, optix; got %q", c.Batch.Device)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	switch c.Pipeline.PatchMode {
	case "wrap", "stub":
	default:
		return fmt.Errorf("pipeline.patch_mode must be wrap or stub; got %q", c.Pipeline.PatchMode)
	}
	for _, op := range []struct {
		key   string
		value string
	}{
		{"pipeline.process_op", c.Pipeline.ProcessOp},
		{"pipeline.bake_op", c.Pipeline.BakeOp},
	} {
		if strings.TrimSpace(op.value) == "" {
			return fmt.Errorf("%s must be set", op.key)
		}
		if !strings.Contains(op.value, ".") {
			return fmt.Errorf("%s must be a family.action operator id; got %q", op.key, op.value)
		}
	}
	if c.Pipeline.ImportOp != "" && !strings.Contains(c.Pipeline.ImportOp, ".") {
		return fmt.Errorf("pipeline.import_op must be a family.action operator id; got %q", c.Pipeline.ImportOp)
	}
	if c.Pipeline.WaitIdleTimeout < 0 {
		return errors.New("pipeline.wait_idle_timeout must not be negative")
	}
	if c.Pipeline.WaitIdlePollMillis < 1 {
		return errors.New("pipeline.wait_idle_poll_millis must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json; got %q", c.Logging.Format)
	}
	return nil
}
