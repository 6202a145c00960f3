package config

import (
	"go.viam.com/fieldvision/logging"
)

// ApplyLogConfig re-levels every logger in registry. With Debug set, loggers not named by a Log
// pattern log at DEBUG instead of INFO.
func (c *Config) ApplyLogConfig(registry *logging.Registry, logger logging.Logger) error {
	patterns := c.Log
	if c.Debug {
		patterns = append([]logging.LoggerPatternConfig{{Pattern: "*", Level: "debug"}}, c.Log...)
	}
	return registry.UpdateConfig(patterns, logger)
}
