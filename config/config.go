// Package config reads the tuning of the vision pipeline from JSON or YAML files.
package config

import (
	"fmt"

	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/fieldvision/logging"
	"go.viam.com/fieldvision/rimage/transform"
	"go.viam.com/fieldvision/vision/objectdetection"
	"go.viam.com/fieldvision/vision/segmentation"
)

// Config is the complete pipeline configuration. A Config handed to the pipeline is never
// modified; reconfiguring swaps in a new one.
type Config struct {
	Classifier segmentation.ClassifierConfig `json:"classifier"`
	Goals      objectdetection.GoalConfig    `json:"goals"`
	// Calibration places the camera on the head for tools that build poses from joint readings.
	Calibration transform.Calibration `json:"calibration"`

	// LookUpTable is the path of the colour table file to load, if any.
	LookUpTable string `json:"lookup_table,omitempty"`
	// Debug lowers every logger to DEBUG unless a Log pattern says otherwise.
	Debug bool                          `json:"debug,omitempty"`
	Log   []logging.LoggerPatternConfig `json:"log,omitempty"`
}

// Default returns the configuration used when a file sets nothing.
func Default() *Config {
	return &Config{
		Classifier: segmentation.DefaultClassifierConfig(),
		Goals:      objectdetection.DefaultGoalConfig(),
	}
}

// ConfigurationError reports a configuration that cannot be used. A pipeline given one keeps its
// previous configuration.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + e.Err.Error()
}

// Unwrap returns the underlying validation errors.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Validate checks every section. All problems are reported together in a ConfigurationError.
func (c *Config) Validate() error {
	err := multierr.Combine(
		c.Classifier.Validate("classifier"),
		c.Goals.Validate("goals"),
	)
	for i, lpc := range c.Log {
		if _, levelErr := logging.LevelFromString(lpc.Level); levelErr != nil {
			err = multierr.Append(err, goutils.NewConfigValidationError(fmt.Sprintf("log.%d", i), levelErr))
		}
	}
	if err != nil {
		return &ConfigurationError{Err: err}
	}
	return nil
}
