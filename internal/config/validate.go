package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateCorrection(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.Binary == "" {
		return errors.New("engine.binary must be set")
	}
	if c.Engine.TimeoutSeconds <= 0 {
		return errors.New("engine.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.TargetCount <= 0 {
		return errors.New("batch.target_count must be positive")
	}
	if c.Batch.Workers <= 0 {
		return errors.New("batch.workers must be positive (or -1 for all CPUs)")
	}
	return nil
}

func (c *Config) validateCorrection() error {
	if c.Correction.ExtentThreshold <= 0 {
		return errors.New("correction.extent_threshold must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
