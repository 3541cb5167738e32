package filter

import (
	"path/filepath"
	"sync"

	"github.com/codysoyland/precommit/pkg/identify"
)

// tagCache memoizes identify results; it is shared by a classifier and
// its subsets
type tagCache struct {
	mu   sync.Mutex
	tags map[string]identify.Tags
}

// Classifier selects files for hooks from a fixed set of paths, caching
// file tags so every hook in a run can filter on types without re-reading
// files.
type Classifier struct {
	root  string
	paths []string
	cache *tagCache
}

// NewClassifier creates a classifier for paths relative to root
func NewClassifier(root string, paths []string) *Classifier {
	return &Classifier{
		root:  root,
		paths: paths,
		cache: &tagCache{tags: make(map[string]identify.Tags)},
	}
}

// Subset returns a classifier over paths sharing this classifier's cache
func (c *Classifier) Subset(paths []string) *Classifier {
	return &Classifier{root: c.root, paths: paths, cache: c.cache}
}

// Paths returns the paths the classifier was created with
func (c *Classifier) Paths() []string {
	return c.paths
}

// Tags returns the cached tags for path. Paths that no longer exist (deleted
// in the working tree) have no tags.
func (c *Classifier) Tags(path string) identify.Tags {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()

	if tags, ok := c.cache.tags[path]; ok {
		return tags
	}
	tags, err := identify.Path(filepath.Join(c.root, path))
	if err != nil {
		tags = identify.Tags{}
	}
	c.cache.tags[path] = tags
	return tags
}

// Select returns the paths matching include/exclude whose tags are accepted
// by types, preserving order.
func (c *Classifier) Select(include, exclude *Pattern, types Types) []string {
	candidates := Include(c.paths, include, exclude)
	out := make([]string, 0, len(candidates))
	for _, path := range candidates {
		if types.Accepts(c.Tags(path)) {
			out = append(out, path)
		}
	}
	return out
}
