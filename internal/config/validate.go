package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateGoogle(); err != nil {
		return err
	}
	if err := c.validateRotation(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.SnapshotPath) == "" {
		return errors.New("paths.snapshot_path must be set")
	}
	if strings.TrimSpace(c.Paths.OutputPath) == "" {
		return errors.New("paths.output_path must be set")
	}
	if c.Paths.SnapshotPath == c.Paths.OutputPath {
		return errors.New("paths.output_path must differ from paths.snapshot_path")
	}
	return nil
}

func (c *Config) validateGoogle() error {
	if !c.Google.Enabled {
		return nil
	}
	if c.Google.APIKey == "" {
		return errors.New("google.api_key must be set when google.enabled is true")
	}
	if c.Google.EngineID == "" {
		return errors.New("google.engine_id must be set when google.enabled is true")
	}
	return nil
}

func (c *Config) validateRotation() error {
	if c.Rotation.Size > c.Rotation.PoolSize {
		return fmt.Errorf("rotation.size (%d) cannot exceed rotation.pool_size (%d)", c.Rotation.Size, c.Rotation.PoolSize)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
}
