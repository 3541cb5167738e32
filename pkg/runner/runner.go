// Package runner executes the hooks of a pre-commit config against a git
// working tree and reports the results.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/codysoyland/precommit/pkg/config"
	"github.com/codysoyland/precommit/pkg/executor"
	"github.com/codysoyland/precommit/pkg/filter"
	"github.com/codysoyland/precommit/pkg/git"
	"github.com/codysoyland/precommit/pkg/hook"
	"github.com/codysoyland/precommit/pkg/meta"
	"github.com/codysoyland/precommit/pkg/report"
)

// Run executes cfg with the provided options (simple API)
func Run(ctx context.Context, cfg *config.Config, opts ...Option) (*Summary, error) {
	r, err := New(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx)
}

// New creates a runner for cfg inside the configured working tree
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("must provide config")
	}

	c := &Config{
		Logger:   zap.NewNop(),
		Stage:    hook.StagePreCommit,
		Output:   os.Stdout,
		Color:    report.ColorAuto,
		RepoRoot: ".",
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	repo, err := git.Open(ctx, c.RepoRoot)
	if err != nil {
		return nil, err
	}

	printer := report.NewPrinter(c.Output, c.Color)
	return &Runner{
		config:   c,
		cfg:      cfg,
		repo:     repo,
		printer:  printer,
		narrator: report.NewNarrator(append([]report.Adapter{printer}, c.Adapters...)...),
		logger:   c.Logger,
	}, nil
}

// Run resolves and executes every selected hook in config order
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if err := r.resolve(ctx); err != nil {
		return nil, err
	}

	files, err := r.files(ctx)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Collected files", zap.Int("count", len(files)), zap.String("stage", string(r.config.Stage)))

	include, err := filter.Compile(r.cfg.Files)
	if err != nil {
		return nil, err
	}
	exclude, err := filter.Compile(r.cfg.ExcludePattern())
	if err != nil {
		return nil, err
	}
	classifier := filter.NewClassifier(r.repo.Dir, filter.Include(files, include, exclude))

	if r.config.HookID != "" && !slices.ContainsFunc(r.resolved, func(res resolved) bool {
		return res.def.Matches(r.config.HookID)
	}) {
		return nil, fmt.Errorf("no hook with id `%s` in stage `%s`", r.config.HookID, r.config.Stage)
	}

	summary := &Summary{}
	for _, res := range r.resolved {
		if r.config.HookID != "" && !res.def.Matches(r.config.HookID) {
			continue
		}
		if !res.def.RunsAt(r.config.Stage) {
			continue
		}

		result, err := r.runHook(ctx, res, files, classifier)
		if err != nil {
			return summary, err
		}
		summary.Results = append(summary.Results, result)
		r.narrator.Result(result)

		if result.Failed() && r.cfg.FailFast {
			r.logger.Debug("Stopping after first failure", zap.String("id", result.ID))
			break
		}
	}

	if summary.Failed() && r.config.ShowDiffOnFailure {
		r.showDiff(ctx)
	}
	return summary, nil
}

func (r *Runner) runHook(ctx context.Context, res resolved, files []string, classifier *filter.Classifier) (*hook.Result, error) {
	def := res.def
	result := &hook.Result{
		ID:      def.ID,
		Name:    def.Name,
		Verbose: def.Verbose || r.config.Verbose,
	}

	if r.skipped(def) {
		result.Status = hook.StatusSkipped
		return result, nil
	}

	var selected []string
	if r.config.Stage == hook.StageCommitMsg || r.config.Stage == hook.StagePrepareCommitMsg {
		// the message file is passed through unfiltered
		selected = files
	} else {
		include, err := filter.Compile(def.Files)
		if err != nil {
			return nil, err
		}
		exclude, err := filter.Compile(def.Exclude)
		if err != nil {
			return nil, err
		}
		selected = classifier.Select(include, exclude, filter.Types{
			All:     def.Types,
			Any:     def.TypesOr,
			Exclude: def.ExcludeTypes,
		})
	}

	if len(selected) == 0 && !def.AlwaysRun {
		result.Status = hook.StatusSkipped
		result.Reason = "(no files to check)"
		return result, nil
	}

	before, err := r.repo.Diff(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := res.impl.Run(ctx, &hook.Request{
		Stage: r.config.Stage,
		Files: selected,
		Dir:   r.repo.Dir,
	})
	result.Duration = time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn("Hook errored", zap.String("id", def.ID), zap.Error(err))
		resp = &hook.Response{ExitCode: 1, Output: []byte(err.Error())}
	}

	after, err := r.repo.Diff(ctx)
	if err != nil {
		return nil, err
	}

	result.ExitCode = resp.ExitCode
	result.Output = resp.Output
	result.Modified = !bytes.Equal(before, after)
	if result.ExitCode != 0 || result.Modified {
		result.Status = hook.StatusFailed
	} else {
		result.Status = hook.StatusPassed
	}

	r.logger.Debug("Hook finished",
		zap.String("id", def.ID),
		zap.String("status", string(result.Status)),
		zap.Int("files", len(selected)),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (r *Runner) skipped(def config.Hook) bool {
	for _, id := range r.config.Skip {
		if def.Matches(id) {
			return true
		}
	}
	return false
}

// files returns the paths the run applies to
func (r *Runner) files(ctx context.Context) ([]string, error) {
	switch {
	case len(r.config.Files) > 0:
		return r.relativeFiles(r.config.Files)
	case r.config.AllFiles:
		return r.repo.AllFiles(ctx)
	case r.config.FromRef != "":
		return r.repo.ChangedFiles(ctx, r.config.FromRef, r.config.ToRef)
	default:
		return r.repo.StagedFiles(ctx)
	}
}

// relativeFiles makes explicitly given paths relative to the repository root
func (r *Runner) relativeFiles(files []string) ([]string, error) {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if !filepath.IsAbs(f) {
			out = append(out, filepath.ToSlash(filepath.Clean(f)))
			continue
		}
		if evaluated, err := filepath.EvalSymlinks(f); err == nil {
			f = evaluated
		}
		root := r.repo.Dir
		if evaluated, err := filepath.EvalSymlinks(root); err == nil {
			root = evaluated
		}
		rel, err := filepath.Rel(root, f)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out, nil
}

func (r *Runner) showDiff(ctx context.Context) {
	diff, err := r.repo.Diff(ctx)
	if err != nil || len(diff) == 0 {
		return
	}
	r.printer.Line("All changes made by hooks:")
	r.printer.Line("%s", bytes.TrimRight(diff, "\n"))
}

// resolve turns every hook of the config into something runnable. Remote
// repositories are fetched only when one of their hooks can run.
func (r *Runner) resolve(ctx context.Context) error {
	r.resolved = nil
	var metaHooks []int

	for _, repo := range r.cfg.Repos {
		if !r.anySelected(repo) {
			continue
		}

		var manifest config.Manifest
		var repoDir string
		if repo.IsRemote() {
			if r.config.Source == nil {
				return fmt.Errorf("no repository source configured for %s", repo.Repo)
			}
			dir, err := r.config.Source.Repo(ctx, repo.Repo, repo.Rev)
			if err != nil {
				return err
			}
			manifest, err = config.LoadManifest(filepath.Join(dir, config.ManifestFile))
			if err != nil {
				return err
			}
			repoDir = dir
		}

		for _, h := range repo.Hooks {
			var def config.Hook
			switch {
			case repo.IsLocal():
				def = h
			case repo.IsMeta():
				base, ok := meta.Definition(h.ID)
				if !ok {
					return fmt.Errorf("unknown meta hook %q", h.ID)
				}
				def = config.Merge(base, h)
			default:
				base, ok := manifest.Lookup(h.ID)
				if !ok {
					return fmt.Errorf("`%s` is not present in repository %s. Typo? Perhaps it is introduced in a newer version?", h.ID, repo.Repo)
				}
				def = config.Merge(base, h)
			}
			def = def.WithDefaults(r.cfg)

			if repo.IsMeta() {
				metaHooks = append(metaHooks, len(r.resolved))
				r.resolved = append(r.resolved, resolved{def: def})
				continue
			}
			r.resolved = append(r.resolved, resolved{
				def: def,
				impl: executor.New(def,
					executor.WithRepoDir(repoDir),
					executor.WithJobs(r.config.Jobs),
					executor.WithLogger(r.logger)),
			})
		}
	}

	if len(metaHooks) == 0 {
		return nil
	}
	env, err := r.metaEnv(ctx)
	if err != nil {
		return err
	}
	for _, i := range metaHooks {
		r.resolved[i].impl = meta.New(r.resolved[i].def, env)
	}
	return nil
}

// anySelected reports whether a hook of repo can run with the current
// stage and hook id selection
func (r *Runner) anySelected(repo config.Repo) bool {
	for _, h := range repo.Hooks {
		if r.config.HookID != "" && !h.Matches(r.config.HookID) {
			continue
		}
		if len(h.Stages) > 0 && !h.RunsAt(r.config.Stage) {
			continue
		}
		return true
	}
	return false
}

func (r *Runner) metaEnv(ctx context.Context) (meta.Env, error) {
	all, err := r.repo.AllFiles(ctx)
	if err != nil {
		return meta.Env{}, err
	}
	env := meta.Env{
		Config:     r.cfg,
		Classifier: filter.NewClassifier(r.repo.Dir, all),
	}
	for _, res := range r.resolved {
		if res.impl != nil {
			env.Hooks = append(env.Hooks, res.def)
		}
	}
	return env, nil
}
