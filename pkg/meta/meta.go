// Package meta implements the built-in hooks available under repo: meta,
// which check the config against the repository instead of checking files.
package meta

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"github.com/codysoyland/precommit/pkg/config"
	"github.com/codysoyland/precommit/pkg/filter"
	"github.com/codysoyland/precommit/pkg/hook"
)

const (
	CheckHooksApply      = "check-hooks-apply"
	CheckUselessExcludes = "check-useless-excludes"
	Identity             = "identity"
)

// configFiles limits the config checks to runs that touch the config
var configFiles = "^" + regexp.QuoteMeta(config.ConfigFile) + "$"

var definitions = map[string]config.Hook{
	CheckHooksApply: {
		ID:       CheckHooksApply,
		Name:     "Check hooks apply to the repository",
		Language: "system",
		Files:    configFiles,
	},
	CheckUselessExcludes: {
		ID:       CheckUselessExcludes,
		Name:     "Check for useless excludes",
		Language: "system",
		Files:    configFiles,
	},
	Identity: {
		ID:       Identity,
		Name:     "identity",
		Language: "system",
		Verbose:  true,
	},
}

// Definition returns the built-in definition of a meta hook
func Definition(id string) (config.Hook, bool) {
	def, ok := definitions[id]
	return def, ok
}

// Env is what the meta hooks inspect
type Env struct {
	Config *config.Config
	// Hooks are the non-meta hooks of the config, merged and with defaults
	Hooks []config.Hook
	// Classifier covers every tracked file of the repository
	Classifier *filter.Classifier
}

// Hook is a meta hook bound to an Env
type Hook struct {
	def config.Hook
	env Env
}

// New binds def, one of the meta definitions, to env
func New(def config.Hook, env Env) *Hook {
	return &Hook{def: def, env: env}
}

// ID returns the hook id
func (h *Hook) ID() string {
	return h.def.ID
}

// Name returns the hook name
func (h *Hook) Name() string {
	return h.def.Name
}

// Run executes the meta check
func (h *Hook) Run(ctx context.Context, req *hook.Request) (*hook.Response, error) {
	var out bytes.Buffer
	switch h.def.ID {
	case Identity:
		for _, f := range req.Files {
			fmt.Fprintln(&out, f)
		}
		return &hook.Response{Output: out.Bytes()}, nil
	case CheckHooksApply:
		h.checkHooksApply(&out)
	case CheckUselessExcludes:
		if err := h.checkUselessExcludes(&out); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown meta hook %q", h.def.ID)
	}

	resp := &hook.Response{Output: out.Bytes()}
	if out.Len() > 0 {
		resp.ExitCode = 1
	}
	return resp, nil
}

// topLevel returns the files that pass the config-wide files/exclude
func (h *Hook) topLevel() ([]string, error) {
	include, err := filter.Compile(h.env.Config.Files)
	if err != nil {
		return nil, err
	}
	exclude, err := filter.Compile(h.env.Config.ExcludePattern())
	if err != nil {
		return nil, err
	}
	return filter.Include(h.env.Classifier.Paths(), include, exclude), nil
}

func (h *Hook) checkHooksApply(out *bytes.Buffer) {
	for _, def := range h.env.Hooks {
		// guards that fail on sight and hooks that ignore files always apply
		if def.AlwaysRun || def.Language == "fail" {
			continue
		}
		files, err := Select(h.env, def)
		if err != nil || len(files) == 0 {
			fmt.Fprintf(out, "%s does not apply to this repository\n", def.ID)
		}
	}
}

func (h *Hook) checkUselessExcludes(out *bytes.Buffer) error {
	exclude := h.env.Config.ExcludePattern()
	if !isNoop(exclude) {
		p, err := filter.Compile(exclude)
		if err != nil {
			return err
		}
		if !anyMatch(p, h.env.Classifier.Paths()) {
			fmt.Fprintf(out, "The global exclude pattern %q does not match any files\n", exclude)
		}
	}

	files, err := h.topLevel()
	if err != nil {
		return err
	}
	for _, def := range h.env.Hooks {
		if isNoop(def.Exclude) {
			continue
		}
		include, err := filter.Compile(def.Files)
		if err != nil {
			return err
		}
		p, err := filter.Compile(def.Exclude)
		if err != nil {
			return err
		}
		types := filter.Types{All: def.Types, Any: def.TypesOr, Exclude: def.ExcludeTypes}
		candidates := h.env.Classifier.Subset(files).Select(include, nil, types)
		if !anyMatch(p, candidates) {
			fmt.Fprintf(out, "The exclude pattern %q for %s does not match any files\n", def.Exclude, def.ID)
		}
	}
	return nil
}

// Select applies the config-wide and hook-level filters of def to the
// classifier's files
func Select(env Env, def config.Hook) ([]string, error) {
	topInclude, err := filter.Compile(env.Config.Files)
	if err != nil {
		return nil, err
	}
	topExclude, err := filter.Compile(env.Config.ExcludePattern())
	if err != nil {
		return nil, err
	}
	include, err := filter.Compile(def.Files)
	if err != nil {
		return nil, err
	}
	exclude, err := filter.Compile(def.Exclude)
	if err != nil {
		return nil, err
	}

	files := filter.Include(env.Classifier.Paths(), topInclude, topExclude)
	return env.Classifier.Subset(files).Select(include, exclude, filter.Types{All: def.Types, Any: def.TypesOr, Exclude: def.ExcludeTypes}), nil
}

func isNoop(expr string) bool {
	return expr == "" || expr == "^$"
}

func anyMatch(p *filter.Pattern, paths []string) bool {
	for _, path := range paths {
		if p.Match(path) {
			return true
		}
	}
	return false
}
