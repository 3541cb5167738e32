package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codysoyland/precommit/pkg/git"
	"github.com/codysoyland/precommit/pkg/hook"
	"github.com/codysoyland/precommit/pkg/install"
)

func newInstallCmd(c *cli) *cobra.Command {
	var (
		hookTypes []string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the git hook scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stages, err := parseHookTypes(hookTypes)
			if err != nil {
				return err
			}
			hooksDir, err := gitHooksDir(cmd)
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("failed to locate precommit executable: %w", err)
			}

			for _, stage := range stages {
				path, err := install.Install(install.Options{
					HooksDir:   hooksDir,
					HookType:   stage,
					ConfigPath: c.configPath,
					Command:    []string{exe},
					Overwrite:  overwrite,
				})
				if err != nil {
					return err
				}
				c.logger.Debug("Installed hook", zap.String("path", path))
				fmt.Fprintf(cmd.OutOrStdout(), "precommit installed at %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&hookTypes, "hook-type", "t", []string{string(hook.StagePreCommit)}, "Git hook types to install")
	cmd.Flags().BoolVarP(&overwrite, "overwrite", "f", false, "Replace existing hook scripts instead of chaining them")
	return cmd
}

func newUninstallCmd(c *cli) *cobra.Command {
	var hookTypes []string

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the git hook scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stages, err := parseHookTypes(hookTypes)
			if err != nil {
				return err
			}
			hooksDir, err := gitHooksDir(cmd)
			if err != nil {
				return err
			}

			for _, stage := range stages {
				installed, err := install.IsInstalled(hooksDir, stage)
				if err != nil {
					return err
				}
				if !installed {
					c.logger.Debug("Hook not installed", zap.String("hook_type", string(stage)))
					continue
				}
				if err := install.Uninstall(hooksDir, stage); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s uninstalled\n", stage)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&hookTypes, "hook-type", "t", []string{string(hook.StagePreCommit)}, "Git hook types to uninstall")
	return cmd
}

func parseHookTypes(names []string) ([]hook.Stage, error) {
	stages := make([]hook.Stage, 0, len(names))
	for _, name := range names {
		stage, err := hook.ParseStage(name)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

func gitHooksDir(cmd *cobra.Command) (string, error) {
	repo, err := git.Open(cmd.Context(), ".")
	if err != nil {
		return "", err
	}
	return repo.HooksDir(cmd.Context())
}
