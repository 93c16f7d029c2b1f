package config

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/vaultfunk/vaultfunk/internal/strategy"
)

// strategiesSchemaMajor is the supported major version of the strategies
// file schema.
const strategiesSchemaMajor = 1

// StrategiesFile is the on-disk shape of the strategies YAML.
type StrategiesFile struct {
	SchemaVersion string            `yaml:"schema_version"`
	Strategies    []strategy.Config `yaml:"strategies"`
}

// LoadStrategies reads, schema-checks, and validates the strategies file.
// Any failure is a configuration error; the agent must not start on one.
func LoadStrategies(path string) ([]strategy.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, strategy.Configf("read strategies file %s: %v", path, err)
	}
	return ParseStrategies(raw)
}

// ParseStrategies validates strategies YAML content.
func ParseStrategies(raw []byte) ([]strategy.Config, error) {
	var file StrategiesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, strategy.Configf("parse strategies file: %v", err)
	}

	if file.SchemaVersion == "" {
		return nil, strategy.Configf("strategies file: schema_version is required")
	}
	ver, err := semver.NewVersion(file.SchemaVersion)
	if err != nil {
		return nil, strategy.Configf("strategies file: invalid schema_version %q: %v", file.SchemaVersion, err)
	}
	if ver.Major() != strategiesSchemaMajor {
		return nil, strategy.Configf("strategies file: unsupported schema_version %s (want major %d)",
			file.SchemaVersion, strategiesSchemaMajor)
	}

	if len(file.Strategies) == 0 {
		return nil, strategy.Configf("strategies file: at least one strategy is required")
	}

	// BuildSet re-validates; running it here surfaces bad configs at load
	// time with the file as context.
	if _, _, err := strategy.BuildSet(file.Strategies); err != nil {
		return nil, fmt.Errorf("strategies file: %w", err)
	}

	return file.Strategies, nil
}
