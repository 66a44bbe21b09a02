package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"itassist/internal/app"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or query the semantic index snapshot",
	}
	cmd.AddCommand(newIndexBuildCmd(), newIndexQueryCmd())
	return cmd
}

func newIndexBuildCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Load the snapshot, building it from the corpus when missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			deps, err := app.Bootstrap(cmd.Context(), cfg, app.BootstrapOptions{ForceRebuild: force})
			if err != nil {
				return err
			}
			defer deps.Close()

			m := deps.Index.Manifest()
			state := "loaded"
			if deps.Built {
				state = "built"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "index %s: %d documents, %d chunks, model %s (%d dims), snapshot %s\n",
				state, deps.Index.Documents(), m.ChunkCount, m.Model, m.Dimension, deps.Store.Target())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Rebuild and overwrite an existing snapshot")
	return cmd
}

func newIndexQueryCmd() *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Print the nearest chunks for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			deps, err := app.Bootstrap(cmd.Context(), cfg, app.BootstrapOptions{})
			if err != nil {
				return err
			}
			defer deps.Close()

			matches, err := deps.Index.Query(cmd.Context(), joinArgs(args), k)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, m := range matches {
				fmt.Fprintf(out, "%d. %.4f  %s  %s\n", i+1, m.Score, m.Chunk.ID, m.Chunk.Metadata["title"])
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "top-k", "k", 3, "Number of chunks to return")
	return cmd
}
