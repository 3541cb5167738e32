package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codysoyland/precommit/pkg/store"
)

func newCleanCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Delete the cache of hook repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := store.DefaultDir()
			if err != nil {
				return err
			}
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return nil
			}

			st, err := store.Open(dir, store.WithLogger(c.logger))
			if err != nil {
				return err
			}
			if err := st.Clean(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleaned %s.\n", dir)
			return nil
		},
	}
}

func newListCacheCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list-cache",
		Short: "List the cached hook repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := store.DefaultDir()
			if err != nil {
				return err
			}
			st, err := store.Open(dir, store.WithLogger(c.logger))
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s@%s\t%s\n", e.Repo, e.Ref, e.Path)
			}
			return nil
		},
	}
}
