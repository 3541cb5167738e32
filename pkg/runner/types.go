package runner

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/codysoyland/precommit/pkg/config"
	"github.com/codysoyland/precommit/pkg/git"
	"github.com/codysoyland/precommit/pkg/hook"
	"github.com/codysoyland/precommit/pkg/report"
)

// ErrHooksFailed is returned by callers that turn a failed summary into an
// error, such as the CLI
var ErrHooksFailed = errors.New("hooks failed")

// RepoSource provides checkouts of remote hook repositories
type RepoSource interface {
	Repo(ctx context.Context, url, rev string) (string, error)
}

// Runner executes the hooks of one config against a git working tree
type Runner struct {
	config   *Config
	cfg      *config.Config
	repo     *git.Repo
	printer  *report.Printer
	narrator *report.Narrator
	logger   *zap.Logger
	resolved []resolved
}

// Config holds all run options
type Config struct {
	Logger  *zap.Logger
	Verbose bool
	Stage   hook.Stage
	// HookID limits the run to the hook with this id or alias
	HookID string
	// Skip lists hook ids or aliases reported as skipped
	Skip []string
	// Files, when non-empty, is used instead of the staged files
	Files    []string
	AllFiles bool
	// FromRef and ToRef select the files changed between two revisions
	FromRef string
	ToRef   string
	Source  RepoSource
	Output  io.Writer
	Color   report.ColorMode
	// Jobs bounds concurrent batches per hook; zero means one per CPU
	Jobs int
	// RepoRoot is any directory inside the working tree; defaults to "."
	RepoRoot          string
	ShowDiffOnFailure bool
	// Adapters receive each result after it is printed
	Adapters []report.Adapter
}

// Option represents a functional option for configuration
type Option func(*Config) error

// Summary is the outcome of a run
type Summary struct {
	Results []*hook.Result
}

// Failed reports whether any hook failed
func (s *Summary) Failed() bool {
	for _, r := range s.Results {
		if r.Failed() {
			return true
		}
	}
	return false
}

// resolved is a config hook ready to run
type resolved struct {
	def  config.Hook
	impl hook.Hook
}
