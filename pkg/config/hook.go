package config

import (
	"gopkg.in/yaml.v3"

	"github.com/codysoyland/precommit/pkg/hook"
)

// Hook is a hook definition, either from a config repo entry or from a
// repository manifest.
type Hook struct {
	ID                     string   `yaml:"id"`
	Alias                  string   `yaml:"alias"`
	Name                   string   `yaml:"name"`
	Description            string   `yaml:"description"`
	Entry                  string   `yaml:"entry"`
	Language               string   `yaml:"language"`
	LanguageVersion        string   `yaml:"language_version"`
	AdditionalDependencies []string `yaml:"additional_dependencies"`
	Files                  string   `yaml:"files"`
	Exclude                string   `yaml:"exclude"`
	Types                  []string `yaml:"types"`
	TypesOr                []string `yaml:"types_or"`
	ExcludeTypes           []string `yaml:"exclude_types"`
	Args                   []string `yaml:"args"`
	PassFilenames          bool     `yaml:"pass_filenames"`
	AlwaysRun              bool     `yaml:"always_run"`
	RequireSerial          bool     `yaml:"require_serial"`
	Stages                 []string `yaml:"stages"`
	Verbose                bool     `yaml:"verbose"`

	// set records the keys present in the source document
	set map[string]bool
}

// UnmarshalYAML decodes a hook and remembers which keys were given, so
// config overrides only replace what the user actually wrote.
func (h *Hook) UnmarshalYAML(value *yaml.Node) error {
	type plain Hook
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*h = Hook(p)
	h.set = make(map[string]bool)
	if value.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(value.Content); i += 2 {
			h.set[value.Content[i].Value] = true
		}
	}
	return nil
}

// IsSet reports whether key was present when the hook was decoded
func (h Hook) IsSet(key string) bool {
	return h.set[key]
}

// Merge overlays the keys set in override onto a manifest hook. The id always
// comes from the manifest.
func Merge(manifest, override Hook) Hook {
	out := manifest
	out.set = make(map[string]bool, len(manifest.set)+len(override.set))
	for k := range manifest.set {
		out.set[k] = true
	}

	for key := range override.set {
		out.set[key] = true
		switch key {
		case "alias":
			out.Alias = override.Alias
		case "name":
			out.Name = override.Name
		case "description":
			out.Description = override.Description
		case "entry":
			out.Entry = override.Entry
		case "language":
			out.Language = override.Language
		case "language_version":
			out.LanguageVersion = override.LanguageVersion
		case "additional_dependencies":
			out.AdditionalDependencies = override.AdditionalDependencies
		case "files":
			out.Files = override.Files
		case "exclude":
			out.Exclude = override.Exclude
		case "types":
			out.Types = override.Types
		case "types_or":
			out.TypesOr = override.TypesOr
		case "exclude_types":
			out.ExcludeTypes = override.ExcludeTypes
		case "args":
			out.Args = override.Args
		case "pass_filenames":
			out.PassFilenames = override.PassFilenames
		case "always_run":
			out.AlwaysRun = override.AlwaysRun
		case "require_serial":
			out.RequireSerial = override.RequireSerial
		case "stages":
			out.Stages = override.Stages
		case "verbose":
			out.Verbose = override.Verbose
		}
	}
	return out
}

// WithDefaults fills every key the hook did not set with its default value,
// taking config-wide defaults from cfg.
func (h Hook) WithDefaults(cfg *Config) Hook {
	if h.Name == "" {
		h.Name = h.ID
	}
	if !h.IsSet("exclude") {
		h.Exclude = "^$"
	}
	if !h.IsSet("types") {
		h.Types = []string{"file"}
	}
	if !h.IsSet("pass_filenames") {
		h.PassFilenames = true
	}
	if !h.IsSet("stages") || len(h.Stages) == 0 {
		if cfg != nil && len(cfg.DefaultStages) > 0 {
			h.Stages = cfg.DefaultStages
		} else {
			h.Stages = nil
			for _, st := range hook.AllStages {
				h.Stages = append(h.Stages, string(st))
			}
		}
	}
	if h.LanguageVersion == "" {
		h.LanguageVersion = "default"
		if cfg != nil {
			if v, ok := cfg.DefaultLanguageVersion[h.Language]; ok && v != "" {
				h.LanguageVersion = v
			}
		}
	}
	return h
}

// RunsAt reports whether the hook is enabled for stage. Stage names are
// assumed valid; Validate rejects unknown ones.
func (h Hook) RunsAt(stage hook.Stage) bool {
	for _, s := range h.Stages {
		st, err := hook.ParseStage(s)
		if err == nil && st == stage {
			return true
		}
	}
	return false
}

// Matches reports whether the hook answers to name, by id or alias
func (h Hook) Matches(name string) bool {
	return name == h.ID || (h.Alias != "" && name == h.Alias)
}
