package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/codysoyland/precommit/pkg/config"
	"github.com/codysoyland/precommit/pkg/report"
	"github.com/codysoyland/precommit/pkg/runner"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// cli holds the global flags and the logger shared by every command
type cli struct {
	configPath string
	color      string
	verbose    bool

	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// failed hooks have already been reported
		if !errors.Is(err, runner.ErrHooksFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "precommit",
		Short: "Run the hooks of a .pre-commit-config.yaml against a git repository",
		Long: `precommit loads a .pre-commit-config.yaml, fetches the hook repositories
it names and runs their hooks on the files of the current git repository.

Install it as a git hook with "precommit install", or run it by hand with
"precommit run".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := report.ParseColorMode(c.color); err != nil {
				return err
			}

			// Initialize logger
			cfg := zap.NewProductionConfig()
			if c.verbose {
				cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			} else {
				cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			}
			logger, err := cfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = c.logger.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", config.ConfigFile, "Path to the config file")
	root.PersistentFlags().StringVar(&c.color, "color", string(report.ColorAuto), "Whether to use color in output (auto, always, never)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Show hook output and debug logs")

	root.AddCommand(
		newRunCmd(c),
		newHookImplCmd(c),
		newInstallCmd(c),
		newUninstallCmd(c),
		newValidateConfigCmd(c),
		newValidateManifestCmd(c),
		newSampleConfigCmd(),
		newCleanCmd(c),
		newListCacheCmd(c),
		newVersionCmd(),
	)
	return root
}

func (c *cli) colorMode() report.ColorMode {
	mode, err := report.ParseColorMode(c.color)
	if err != nil {
		return report.ColorAuto
	}
	return mode
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "precommit %s\n", version)
		},
	}
}

func newSampleConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sample-config",
		Short: "Print a sample .pre-commit-config.yaml",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			io.WriteString(cmd.OutOrStdout(), config.SampleConfig)
		},
	}
}
