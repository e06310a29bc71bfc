package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tan-yong-sheng/code-context/internal/index"
)

func newIndexCmd() *cobra.Command {
	var force bool
	var incremental bool

	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Index a codebase for semantic search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			_, orchestrator, provider, err := buildEngine()
			if err != nil {
				return err
			}
			defer func() { _ = orchestrator.Close() }()
			defer func() { _ = provider.Close() }()

			progress := func(p index.Progress) {
				fmt.Printf("\r%s: %d/%d (%.0f%%)", p.Phase, p.Current, p.Total, p.Percentage)
			}

			if incremental {
				result, err := orchestrator.ReindexByChange(cmd.Context(), path, progress)
				fmt.Println()
				if err != nil {
					return err
				}
				fmt.Printf("Reindexed %s: %d added, %d modified, %d removed (%s)\n",
					path, result.Added, result.Modified, result.Removed, result.Status)
				return nil
			}

			result, err := orchestrator.IndexCodebase(cmd.Context(), path, progress, force)
			fmt.Println()
			if err != nil {
				return err
			}
			fmt.Printf("Indexed %s: %d files, %d chunks (%s)\n",
				path, result.IndexedFiles, result.TotalChunks, result.Status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Drop and rebuild the index even if one exists")
	cmd.Flags().BoolVar(&incremental, "incremental", false, "Apply only the changes since the last run")

	return cmd
}
