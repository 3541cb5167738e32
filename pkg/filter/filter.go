// Package filter selects the files a hook applies to, using Python-style
// regular expressions and identify file tags.
package filter

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/codysoyland/precommit/pkg/identify"
)

// matchTimeout bounds a single regex evaluation against a path
const matchTimeout = time.Second

// Pattern is a compiled files/exclude expression matched with search
// semantics: a path matches when the expression is found anywhere in it.
type Pattern struct {
	source string
	re     *regexp2.Regexp
}

// Compile parses a files/exclude expression
func Compile(expr string) (*Pattern, error) {
	re, err := regexp2.Compile(expr, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", expr, err)
	}
	re.MatchTimeout = matchTimeout
	return &Pattern{source: expr, re: re}, nil
}

// MustCompile is Compile for expressions known to be valid
func MustCompile(expr string) *Pattern {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the original expression
func (p *Pattern) String() string {
	return p.source
}

// Match reports whether the expression occurs in path. Timeouts count as a
// non-match.
func (p *Pattern) Match(path string) bool {
	ok, err := p.re.MatchString(filepath.ToSlash(path))
	return err == nil && ok
}

// Include keeps the paths that match include and do not match exclude. A nil
// pattern does not filter.
func Include(paths []string, include, exclude *Pattern) []string {
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		if include != nil && !include.Match(path) {
			continue
		}
		if exclude != nil && exclude.Match(path) {
			continue
		}
		out = append(out, path)
	}
	return out
}

// Types describes the tag filters of a hook
type Types struct {
	All     []string // every tag must be present (types)
	Any     []string // at least one tag must be present when non-empty (types_or)
	Exclude []string // none of the tags may be present (exclude_types)
}

// Accepts reports whether tags satisfy the filters
func (t Types) Accepts(tags identify.Tags) bool {
	for _, tag := range t.All {
		if !tags.Has(tag) {
			return false
		}
	}
	if len(t.Any) > 0 {
		found := false
		for _, tag := range t.Any {
			if tags.Has(tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, tag := range t.Exclude {
		if tags.Has(tag) {
			return false
		}
	}
	return true
}
