package config

import (
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	c.Batch.Pattern = strings.TrimSpace(c.Batch.Pattern)
	c.Batch.Device = strings.ToLower(strings.TrimSpace(c.Batch.Device))
	c.Pipeline.PatchMode = strings.ToLower(strings.TrimSpace(c.Pipeline.PatchMode))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	for _, field := range []*string{
		&c.Host.BridgeScript,
		&c.Pipeline.BrickDB,
		&c.Logging.Dir,
	} {
		trimmed := strings.TrimSpace(*field)
		if trimmed == "" {
			*field = ""
			continue
		}
		expanded, err := ExpandPath(trimmed)
		if err != nil {
			return err
		}
		*field = expanded
	}

	// The host binary may be a bare name resolved via PATH; only expand
	// values that look like paths.
	binary := strings.TrimSpace(c.Host.Binary)
	if strings.ContainsRune(binary, filepath.Separator) || strings.HasPrefix(binary, "~") {
		expanded, err := ExpandPath(binary)
		if err != nil {
			return err
		}
		binary = expanded
	}
	c.Host.Binary = binary

	return nil
}
