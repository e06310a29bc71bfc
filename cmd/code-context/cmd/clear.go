package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <path>",
		Short: "Remove a codebase's index and stored vectors",
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

			if err := orchestrator.ClearIndex(cmd.Context(), path, nil); err != nil {
				return err
			}
			fmt.Printf("Cleared index for %s\n", path)
			return nil
		},
	}
}
