package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/multierr"

	"github.com/codysoyland/precommit/pkg/filter"
	"github.com/codysoyland/precommit/pkg/hook"
	"github.com/codysoyland/precommit/pkg/identify"
)

// MetaHooks lists the hook ids available under repo: meta
var MetaHooks = []string{"check-hooks-apply", "check-useless-excludes", "identity"}

// scpURL matches git's scp-like syntax, e.g. git@github.com:psf/black
var scpURL = regexp.MustCompile(`^[\w.-]+@[\w.-]+:[^/].*$`)

// ValidationError describes one problem at a location in a document
type ValidationError struct {
	Path string // e.g. repos[2].hooks[0]
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Msg
	}
	return e.Path + ": " + e.Msg
}

// Unwrap lets callers match any validation failure with errors.Is
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

func invalid(path, format string, args ...any) error {
	return &ValidationError{Path: path, Msg: fmt.Sprintf(format, args...)}
}

// Validate checks the config against the hook config schema and returns every
// violation found, combined.
func (c *Config) Validate() error {
	var errs error

	errs = multierr.Append(errs, validatePattern("files", c.Files))
	errs = multierr.Append(errs, validatePattern("exclude", c.Exclude))
	errs = multierr.Append(errs, validateStages("default_stages", c.DefaultStages))

	for i, repo := range c.Repos {
		errs = multierr.Append(errs, repo.validate(fmt.Sprintf("repos[%d]", i)))
	}
	return errs
}

func (r Repo) validate(path string) error {
	var errs error

	switch {
	case r.Repo == "":
		errs = multierr.Append(errs, invalid(path, "repo is required"))
	case r.IsLocal(), r.IsMeta():
		if r.Rev != "" {
			errs = multierr.Append(errs, invalid(path, "rev is not allowed for repo %q", r.Repo))
		}
	default:
		if !ValidRepoURL(r.Repo) {
			errs = multierr.Append(errs, invalid(path, "repo %q is not a valid URL", r.Repo))
		}
		if strings.TrimSpace(r.Rev) == "" {
			errs = multierr.Append(errs, invalid(path, "rev is required"))
		}
	}

	if len(r.Hooks) == 0 {
		errs = multierr.Append(errs, invalid(path, "hooks must be a non-empty list"))
	}

	for i, h := range r.Hooks {
		hookPath := fmt.Sprintf("%s.hooks[%d]", path, i)
		errs = multierr.Append(errs, h.validateCommon(hookPath))
		switch {
		case r.IsLocal():
			errs = multierr.Append(errs, h.validateDefinition(hookPath))
		case r.IsMeta():
			if h.ID != "" && !isMetaHook(h.ID) {
				errs = multierr.Append(errs, invalid(hookPath, "unknown meta hook %q", h.ID))
			}
		}
	}
	return errs
}

// validateCommon checks the keys any hook entry may carry
func (h Hook) validateCommon(path string) error {
	var errs error

	if strings.TrimSpace(h.ID) == "" {
		errs = multierr.Append(errs, invalid(path, "id is required"))
	}
	errs = multierr.Append(errs, validatePattern(path+".files", h.Files))
	errs = multierr.Append(errs, validatePattern(path+".exclude", h.Exclude))
	errs = multierr.Append(errs, validateTags(path+".types", h.Types))
	errs = multierr.Append(errs, validateTags(path+".types_or", h.TypesOr))
	errs = multierr.Append(errs, validateTags(path+".exclude_types", h.ExcludeTypes))
	errs = multierr.Append(errs, validateStages(path+".stages", h.Stages))
	if h.IsSet("language") && !IsKnownLanguage(h.Language) {
		errs = multierr.Append(errs, invalid(path, "unknown language %q", h.Language))
	}
	return errs
}

// validateDefinition checks the keys a full hook definition must have, as in
// local hooks and manifests
func (h Hook) validateDefinition(path string) error {
	var errs error
	if strings.TrimSpace(h.Name) == "" {
		errs = multierr.Append(errs, invalid(path, "name is required"))
	}
	if strings.TrimSpace(h.Entry) == "" {
		errs = multierr.Append(errs, invalid(path, "entry is required"))
	}
	if strings.TrimSpace(h.Language) == "" {
		errs = multierr.Append(errs, invalid(path, "language is required"))
	}
	return errs
}

func validatePattern(path, expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := filter.Compile(expr); err != nil {
		return invalid(path, "%v", err)
	}
	return nil
}

func validateTags(path string, tags []string) error {
	var errs error
	for _, tag := range tags {
		if !identify.IsKnown(tag) {
			errs = multierr.Append(errs, invalid(path, "unknown file type %q", tag))
		}
	}
	return errs
}

func validateStages(path string, stages []string) error {
	var errs error
	for _, s := range stages {
		if _, err := hook.ParseStage(s); err != nil {
			errs = multierr.Append(errs, invalid(path, "%v", err))
		}
	}
	return errs
}

// ValidRepoURL reports whether s names a fetchable git repository
func ValidRepoURL(s string) bool {
	if scpURL.MatchString(s) {
		return true
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "file":
		return u.Path != ""
	case "http", "https", "git", "ssh":
		return u.Host != ""
	default:
		return false
	}
}

func isMetaHook(id string) bool {
	for _, m := range MetaHooks {
		if m == id {
			return true
		}
	}
	return false
}

// Languages lists the language tags a hook may declare
var Languages = []string{
	"conda", "coursier", "dart", "docker", "docker_image", "dotnet", "fail",
	"golang", "haskell", "lua", "node", "perl", "pygrep", "python", "r",
	"ruby", "rust", "script", "swift", "system",
}

// IsKnownLanguage reports whether lang is a supported language tag
func IsKnownLanguage(lang string) bool {
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}
