package config

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Manifest is a parsed .pre-commit-hooks.yaml: the hooks a repository offers
type Manifest []Hook

// ParseManifest decodes a manifest document without validating it
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: failed to parse manifest: %v", ErrInvalidConfig, err)
	}
	return m, nil
}

// LoadManifest reads, parses and validates the manifest at path
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Validate checks every hook is a complete definition
func (m Manifest) Validate() error {
	if len(m) == 0 {
		return invalid("", "manifest must list at least one hook")
	}
	var errs error
	for i, h := range m {
		path := fmt.Sprintf("[%d]", i)
		errs = multierr.Append(errs, h.validateCommon(path))
		errs = multierr.Append(errs, h.validateDefinition(path))
	}
	return errs
}

// Lookup returns the manifest hook with the given id
func (m Manifest) Lookup(id string) (Hook, bool) {
	for _, h := range m {
		if h.ID == id {
			return h, true
		}
	}
	return Hook{}, false
}
