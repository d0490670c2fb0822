// Package config provides YAML-based configuration loading with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// Load loads configuration from a YAML file with environment variable
// expansion into target, which should already hold the defaults. An empty
// filename keeps the defaults. Overrides run after the file is decoded and
// before validation, so command-line values win over file values.
func Load[T any](filename string, target *T, overrides ...func(*T)) error {
	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read config file %s: %w", filename, err)
		}

		expandedData := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expandedData), target); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", filename, err)
		}
	}

	for _, override := range overrides {
		override(target)
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}

// LoadOptional behaves like Load but treats a missing file as empty.
func LoadOptional[T any](filename string, target *T, overrides ...func(*T)) error {
	if filename != "" {
		if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
			filename = ""
		}
	}
	return Load(filename, target, overrides...)
}
