package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/codysoyland/precommit/pkg/config"
)

// errInvalidFiles is returned once every problem has been printed
var errInvalidFiles = errors.New("validation failed")

func newValidateConfigCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config [file...]",
		Short: "Validate .pre-commit-config.yaml files",
		Long:  "Validates each file, or the file named by --config when none are given, and prints every problem found.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{c.configPath}
			}
			return validateFiles(cmd.ErrOrStderr(), args, func(data []byte) error {
				cfg, err := config.Parse(data)
				if err != nil {
					return err
				}
				return cfg.Validate()
			})
		},
	}
}

func newValidateManifestCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-manifest [file...]",
		Short: "Validate .pre-commit-hooks.yaml files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{config.ManifestFile}
			}
			return validateFiles(cmd.ErrOrStderr(), args, func(data []byte) error {
				m, err := config.ParseManifest(data)
				if err != nil {
					return err
				}
				return m.Validate()
			})
		},
	}
}

// validateFiles prints one line per problem and fails if any file had one
func validateFiles(w io.Writer, paths []string, validate func([]byte) error) error {
	failed := false
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err == nil {
			err = validate(data)
		}
		for _, e := range multierr.Errors(err) {
			fmt.Fprintf(w, "%s: %v\n", path, e)
			failed = true
		}
	}
	if failed {
		return errInvalidFiles
	}
	return nil
}
