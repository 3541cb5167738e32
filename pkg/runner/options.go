package runner

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/codysoyland/precommit/pkg/hook"
	"github.com/codysoyland/precommit/pkg/report"
)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.Logger = logger
		return nil
	}
}

// WithVerbose shows the output of every hook, not only failing ones
func WithVerbose(v bool) Option {
	return func(c *Config) error {
		c.Verbose = v
		return nil
	}
}

// WithStage selects which hooks run by stage
func WithStage(stage hook.Stage) Option {
	return func(c *Config) error {
		if _, err := hook.ParseStage(string(stage)); err != nil {
			return err
		}
		c.Stage = stage
		return nil
	}
}

// WithHookID runs only the hook with this id or alias
func WithHookID(id string) Option {
	return func(c *Config) error {
		c.HookID = id
		return nil
	}
}

// WithSkip reports the given hooks as skipped
func WithSkip(ids ...string) Option {
	return func(c *Config) error {
		c.Skip = append(c.Skip, ids...)
		return nil
	}
}

// WithFiles runs hooks on the given paths instead of the staged files
func WithFiles(files ...string) Option {
	return func(c *Config) error {
		c.Files = append(c.Files, files...)
		return nil
	}
}

// WithAllFiles runs hooks on every tracked file
func WithAllFiles(all bool) Option {
	return func(c *Config) error {
		c.AllFiles = all
		return nil
	}
}

// WithRefs runs hooks on the files changed between from and to
func WithRefs(from, to string) Option {
	return func(c *Config) error {
		if (from == "") != (to == "") {
			return fmt.Errorf("from-ref and to-ref must be given together")
		}
		c.FromRef = from
		c.ToRef = to
		return nil
	}
}

// WithSource sets where remote hook repositories are checked out from
func WithSource(src RepoSource) Option {
	return func(c *Config) error {
		c.Source = src
		return nil
	}
}

// WithOutput sets where the report is written
func WithOutput(w io.Writer) Option {
	return func(c *Config) error {
		c.Output = w
		return nil
	}
}

// WithColor sets the report color mode
func WithColor(mode report.ColorMode) Option {
	return func(c *Config) error {
		c.Color = mode
		return nil
	}
}

// WithJobs bounds concurrent batches per hook
func WithJobs(n int) Option {
	return func(c *Config) error {
		if n < 0 {
			return fmt.Errorf("jobs cannot be negative")
		}
		c.Jobs = n
		return nil
	}
}

// WithRepoRoot sets the working tree to run in
func WithRepoRoot(dir string) Option {
	return func(c *Config) error {
		c.RepoRoot = dir
		return nil
	}
}

// WithShowDiffOnFailure prints the working tree diff when hooks fail
func WithShowDiffOnFailure(show bool) Option {
	return func(c *Config) error {
		c.ShowDiffOnFailure = show
		return nil
	}
}

// WithAdapter adds a receiver for every hook result next to the printed
// report
func WithAdapter(a report.Adapter) Option {
	return func(c *Config) error {
		if a == nil {
			return fmt.Errorf("adapter cannot be nil")
		}
		c.Adapters = append(c.Adapters, a)
		return nil
	}
}
