package config

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gopkg.in/yaml.v3"

	"go.viam.com/fieldvision/logging"
)

var sections = []string{"classifier", "goals"}

// Read reads a config from the given file.
func Read(filePath string, logger logging.Logger) (*Config, error) {
	//nolint:gosec
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	return FromReader(filePath, f, logger)
}

// FromReader reads a config from the given reader. Files ending in .yaml or .yml are YAML,
// everything else JSON. Anything the file leaves out keeps its default.
func FromReader(originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	am, err := readAttributes(originalPath, r)
	if err != nil {
		return nil, err
	}
	for _, section := range sections {
		if !am.Has(section) {
			logger.Infow("config section missing, using defaults", "path", originalPath, "section", section)
		}
	}

	cfg := Default()
	if err := am.Decode(cfg); err != nil {
		return nil, &ConfigurationError{Err: errors.Wrapf(err, "cannot decode %s", originalPath)}
	}
	if cfg.LookUpTable != "" && !filepath.IsAbs(cfg.LookUpTable) {
		cfg.LookUpTable = filepath.Join(filepath.Dir(originalPath), cfg.LookUpTable)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readAttributes(originalPath string, r io.Reader) (AttributeMap, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", originalPath)
	}
	am := AttributeMap{}
	switch strings.ToLower(filepath.Ext(originalPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &am)
	default:
		err = json.Unmarshal(data, &am)
	}
	if err != nil {
		return nil, &ConfigurationError{Err: errors.Wrapf(err, "cannot parse %s", originalPath)}
	}
	return am, nil
}
