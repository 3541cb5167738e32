package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codysoyland/precommit/pkg/config"
	"github.com/codysoyland/precommit/pkg/git"
	"github.com/codysoyland/precommit/pkg/hook"
	"github.com/codysoyland/precommit/pkg/report"
	"github.com/codysoyland/precommit/pkg/runner"
	"github.com/codysoyland/precommit/pkg/store"
)

// allowNoConfigEnv lets hook-impl pass when the config file is missing
const allowNoConfigEnv = "PRECOMMIT_ALLOW_NO_CONFIG"

type runFlags struct {
	allFiles          bool
	files             []string
	stage             string
	fromRef           string
	toRef             string
	showDiffOnFailure bool
	jobs              int
}

func newRunCmd(c *cli) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run [hook-id]",
		Short: "Run hooks",
		Long: `Runs the configured hooks on the staged files, or on the files selected
with --all-files, --files or --from-ref/--to-ref. Pass a hook id or alias to
run a single hook.

Hooks listed in the comma separated SKIP environment variable are reported
as skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := c.enterRepoRoot(cmd.Context(), f.files)
			if err != nil {
				return err
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			stage, err := hook.ParseStage(f.stage)
			if err != nil {
				return err
			}
			opts := []runner.Option{
				runner.WithStage(stage),
				runner.WithAllFiles(f.allFiles),
				runner.WithFiles(files...),
				runner.WithRefs(f.fromRef, f.toRef),
				runner.WithShowDiffOnFailure(f.showDiffOnFailure),
				runner.WithJobs(f.jobs),
			}
			if len(args) == 1 {
				opts = append(opts, runner.WithHookID(args[0]))
			}
			return c.execute(cmd, cfg, opts...)
		},
	}

	cmd.Flags().BoolVarP(&f.allFiles, "all-files", "a", false, "Run on all files in the repo")
	cmd.Flags().StringSliceVar(&f.files, "files", nil, "Specific filenames to run hooks on")
	cmd.Flags().StringVar(&f.stage, "hook-stage", string(hook.StagePreCommit), "The stage during which the hook is fired")
	cmd.Flags().StringVarP(&f.fromRef, "from-ref", "s", "", "The original ref in a from-ref...to-ref diff expression")
	cmd.Flags().StringVarP(&f.toRef, "to-ref", "o", "", "The edited ref in a from-ref...to-ref diff expression")
	cmd.Flags().BoolVar(&f.showDiffOnFailure, "show-diff-on-failure", false, "When hooks fail, run git diff directly afterward")
	cmd.Flags().IntVarP(&f.jobs, "jobs", "j", 0, "Number of concurrent processes per hook (default: number of CPUs)")
	cmd.MarkFlagsMutuallyExclusive("all-files", "files")
	cmd.MarkFlagsRequiredTogether("from-ref", "to-ref")
	return cmd
}

func newHookImplCmd(c *cli) *cobra.Command {
	var (
		hookType            string
		skipOnMissingConfig bool
	)

	cmd := &cobra.Command{
		Use:    "hook-impl [flags] -- [hook args...]",
		Short:  "Entry point of installed git hook scripts",
		Hidden: true,
		Args:   cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := hook.ParseStage(hookType)
			if err != nil {
				return err
			}
			if _, err := c.enterRepoRoot(cmd.Context(), nil); err != nil {
				return err
			}

			if _, err := os.Stat(c.configPath); os.IsNotExist(err) {
				if skipOnMissingConfig || os.Getenv(allowNoConfigEnv) != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "`%s` config file not found. Skipping `precommit`.\n", c.configPath)
					return nil
				}
				return fmt.Errorf("no %s file was found; run `precommit uninstall` to remove the hook or set %s=1 to skip it", c.configPath, allowNoConfigEnv)
			}

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			opts, ok, err := hookArgs(cmd.Context(), stage, args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if !ok {
				c.logger.Debug("Nothing to check", zap.String("hook_type", hookType))
				return nil
			}
			return c.execute(cmd, cfg, append(opts, runner.WithStage(stage))...)
		},
	}

	cmd.Flags().StringVar(&hookType, "hook-type", string(hook.StagePreCommit), "The git hook being run")
	cmd.Flags().BoolVar(&skipOnMissingConfig, "skip-on-missing-config", false, "Pass when the config file is missing")
	return cmd
}

// hookArgs turns the arguments git passes a hook into run options. ok is
// false when there is nothing to run, such as a push that only deletes refs.
func hookArgs(ctx context.Context, stage hook.Stage, args []string, stdin io.Reader) (opts []runner.Option, ok bool, err error) {
	switch stage {
	case hook.StageCommitMsg, hook.StagePrepareCommitMsg:
		if len(args) == 0 {
			return nil, false, fmt.Errorf("%s hook needs the commit message file", stage)
		}
		return []runner.Option{runner.WithFiles(args[0])}, true, nil

	case hook.StagePostCheckout:
		if len(args) >= 2 && args[0] != git.ZeroSHA {
			return []runner.Option{runner.WithRefs(args[0], args[1])}, true, nil
		}
		return nil, true, nil

	case hook.StagePrePush:
		if len(args) == 0 {
			return nil, false, fmt.Errorf("pre-push hook needs the remote name")
		}
		repo, err := git.Open(ctx, ".")
		if err != nil {
			return nil, false, err
		}
		return pushRange(ctx, repo, args[0], stdin)

	default:
		return nil, true, nil
	}
}

// pushRange reads the "<local ref> <local sha> <remote ref> <remote sha>"
// lines git writes to a pre-push hook and selects the files being pushed
func pushRange(ctx context.Context, repo *git.Repo, remote string, stdin io.Reader) ([]runner.Option, bool, error) {
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 4 {
			continue
		}
		localSHA, remoteSHA := fields[1], fields[3]
		if localSHA == git.ZeroSHA {
			// deleting a remote ref
			continue
		}
		if remoteSHA != git.ZeroSHA {
			return []runner.Option{runner.WithRefs(remoteSHA, localSHA)}, true, nil
		}

		// new branch: check everything the remote has not seen yet
		first, err := repo.FirstUnpushed(ctx, localSHA, remote)
		if err != nil {
			return nil, false, err
		}
		if first == "" {
			continue
		}
		isRoot, err := repo.IsRoot(ctx, first)
		if err != nil {
			return nil, false, err
		}
		if isRoot {
			return []runner.Option{runner.WithAllFiles(true)}, true, nil
		}
		return []runner.Option{runner.WithRefs(first+"^", localSHA)}, true, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to read pushed refs: %w", err)
	}
	return nil, false, nil
}

// enterRepoRoot changes to the root of the working tree, the directory hooks
// run from. A config and files given relative to the current directory are
// made absolute first; a config that does not exist here is looked up at the
// root.
func (c *cli) enterRepoRoot(ctx context.Context, files []string) ([]string, error) {
	repo, err := git.Open(ctx, ".")
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(c.configPath); err == nil {
		if c.configPath, err = filepath.Abs(c.configPath); err != nil {
			return nil, err
		}
	}
	abs := make([]string, 0, len(files))
	for _, f := range files {
		p, err := filepath.Abs(f)
		if err != nil {
			return nil, err
		}
		abs = append(abs, p)
	}

	if err := os.Chdir(repo.Dir); err != nil {
		return nil, fmt.Errorf("failed to enter repository root: %w", err)
	}
	c.logger.Debug("Running from repository root", zap.String("root", repo.Dir))
	return abs, nil
}

// loadConfig reads and validates the config named by --config
func (c *cli) loadConfig() (*config.Config, error) {
	data, err := os.ReadFile(c.configPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no %s file was found; run `precommit sample-config` to get started", c.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	for _, key := range config.UnknownKeys(data) {
		c.logger.Debug("Ignoring unknown config key", zap.String("key", key), zap.String("config", c.configPath))
	}

	cfg, err := config.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", c.configPath, err)
	}
	return cfg, nil
}

// execute runs cfg and turns a failed summary into runner.ErrHooksFailed
func (c *cli) execute(cmd *cobra.Command, cfg *config.Config, opts ...runner.Option) error {
	src := &lazyStore{logger: c.logger}
	defer src.Close()

	base := []runner.Option{
		runner.WithLogger(c.logger),
		runner.WithVerbose(c.verbose),
		runner.WithOutput(cmd.OutOrStdout()),
		runner.WithColor(c.colorMode()),
		runner.WithSource(src),
		runner.WithSkip(skipFromEnv()...),
		runner.WithAdapter(report.NewLogAdapter(c.logger)),
	}

	summary, err := runner.Run(cmd.Context(), cfg, append(base, opts...)...)
	if err != nil {
		return err
	}
	if summary.Failed() {
		return runner.ErrHooksFailed
	}
	return nil
}

// skipFromEnv parses the comma separated SKIP environment variable
func skipFromEnv() []string {
	var ids []string
	for _, id := range strings.Split(os.Getenv("SKIP"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// lazyStore opens the repository cache the first time a remote repo is
// needed, so configs with only local hooks never touch it
type lazyStore struct {
	logger *zap.Logger

	mu    sync.Mutex
	store *store.Store
}

func (l *lazyStore) Repo(ctx context.Context, url, rev string) (string, error) {
	st, err := l.open()
	if err != nil {
		return "", err
	}
	return st.Repo(ctx, url, rev)
}

func (l *lazyStore) open() (*store.Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store != nil {
		return l.store, nil
	}

	dir, err := store.DefaultDir()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(dir, store.WithLogger(l.logger))
	if err != nil {
		return nil, err
	}
	l.store = st
	return st, nil
}

func (l *lazyStore) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}
