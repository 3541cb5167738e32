// Package config loads and validates pre-commit hook configuration documents
// (.pre-commit-config.yaml) and hook repository manifests (.pre-commit-hooks.yaml).
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigFile is the conventional config file name at a repository root
	ConfigFile = ".pre-commit-config.yaml"

	// ManifestFile is the file a hook repository publishes its hooks in
	ManifestFile = ".pre-commit-hooks.yaml"

	// RepoLocal marks hooks defined entirely in the config
	RepoLocal = "local"

	// RepoMeta marks the built-in hooks that inspect the config itself
	RepoMeta = "meta"
)

// ErrInvalidConfig is wrapped by every parse and validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Config is a parsed .pre-commit-config.yaml
type Config struct {
	Files                  string            `yaml:"files"`
	Exclude                string            `yaml:"exclude"`
	FailFast               bool              `yaml:"fail_fast"`
	DefaultStages          []string          `yaml:"default_stages"`
	DefaultLanguageVersion map[string]string `yaml:"default_language_version"`
	Repos                  []Repo            `yaml:"repos"`

	// excludeSet records an explicit exclude key, so exclude: '' keeps its
	// meaning of excluding everything
	excludeSet bool
}

// ExcludePattern returns the config-wide exclude, "^$" when none was given
func (c *Config) ExcludePattern() string {
	if c.Exclude == "" && !c.excludeSet {
		return "^$"
	}
	return c.Exclude
}

// Repo is a hook repository entry: where the hooks come from and which of
// them are enabled.
type Repo struct {
	Repo  string `yaml:"repo"`
	Rev   string `yaml:"rev"`
	Hooks []Hook `yaml:"hooks"`
}

// IsLocal reports whether the repo entry defines its hooks inline
func (r Repo) IsLocal() bool {
	return r.Repo == RepoLocal
}

// IsMeta reports whether the repo entry selects built-in meta hooks
func (r Repo) IsMeta() bool {
	return r.Repo == RepoMeta
}

// IsRemote reports whether the hooks have to be fetched from r.Repo
func (r Repo) IsRemote() bool {
	return !r.IsLocal() && !r.IsMeta()
}

// Parse decodes a config document. It does not validate it.
func Parse(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidConfig, err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: repos is required", ErrInvalidConfig)
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping", ErrInvalidConfig)
	}
	if !hasKey(root, "repos") {
		return nil, fmt.Errorf("%w: repos is required", ErrInvalidConfig)
	}

	var cfg Config
	if err := root.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.excludeSet = hasKey(root, "exclude")
	if !cfg.excludeSet {
		cfg.Exclude = "^$"
	}
	return &cfg, nil
}

// Load reads, parses and validates the config at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// UnknownKeys returns top-level keys the loader does not understand. They are
// tolerated so newer configs still load.
func UnknownKeys(data []byte) []string {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil || len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil
	}

	var unknown []string
	for i := 0; i+1 < len(root.Content); i += 2 {
		switch key := root.Content[i].Value; key {
		case "files", "exclude", "fail_fast", "default_stages", "default_language_version", "repos":
		default:
			unknown = append(unknown, key)
		}
	}
	return unknown
}

func hasKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return true
		}
	}
	return false
}

// SampleConfig is printed by the sample-config command
const SampleConfig = `# See https://pre-commit.com for more information
files: ^(screenpy|examples)/
fail_fast: true
repos:
-   repo: https://github.com/pre-commit/pre-commit-hooks
    rev: v4.6.0
    hooks:
    -   id: trailing-whitespace
    -   id: end-of-file-fixer
    -   id: check-yaml
-   repo: local
    hooks:
    -   id: pylint
        name: pylint
        entry: pylint
        language: system
        types: [python]
`
