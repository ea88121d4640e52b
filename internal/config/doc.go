// Package config loads and validates brickforge configuration from TOML.
package config
