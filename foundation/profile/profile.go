// Package profile loads layered YAML configuration profiles. A default
// profile is read first and the profile for the run mode is applied on top.
package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EnvRunMode names the environment variable that selects the profile.
const EnvRunMode = "RUN_MODE"

// DefaultMode is the profile used when no run mode is set.
const DefaultMode = "development"

// DefaultName is the profile every run mode is layered on top of.
const DefaultName = "default"

// Mode returns the run mode from the environment.
func Mode() string {
	if mode := os.Getenv(EnvRunMode); mode != "" {
		return mode
	}
	return DefaultMode
}

// Load decodes the default profile and then the profile for the specified
// mode from dir into dst. Missing profiles are skipped, keys missing from a
// profile leave dst untouched. The names of the files that were applied are
// returned in the order they were applied.
func Load(dir string, mode string, dst any) ([]string, error) {
	names := []string{DefaultName}
	if mode != "" && mode != DefaultName {
		names = append(names, mode)
	}

	var applied []string
	for _, name := range names {
		path := filepath.Join(dir, name+".yaml")

		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return applied, fmt.Errorf("reading profile %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, dst); err != nil {
			return applied, fmt.Errorf("decoding profile %s: %w", path, err)
		}

		applied = append(applied, path)
	}

	return applied, nil
}
