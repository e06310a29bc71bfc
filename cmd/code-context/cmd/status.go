package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tan-yong-sheng/code-context/internal/registry"
)

func newStatusCmd() *cobra.Command {
	var cleanup bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List indexed codebases and their store sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, orchestrator, provider, err := buildEngine()
			if err != nil {
				return err
			}
			defer func() { _ = orchestrator.Close() }()
			defer func() { _ = provider.Close() }()

			reg := registry.New(cfg.Storage.BaseDir, cfg.Storage.VectorsDir)

			if cleanup {
				removed, err := reg.CleanupOrphans()
				if err != nil {
					return err
				}
				for _, id := range removed {
					fmt.Printf("Removed orphaned index %s\n", id)
				}
			}

			entries, err := reg.List()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No indexed codebases.")
				return nil
			}

			fmt.Printf("Provider: %s (dimension %d)\n\n", provider.ProviderName(), provider.Dimensions())
			for _, e := range entries {
				fmt.Printf("%s  %-50s %8.1f KB  %s\n",
					e.ID, e.Path, float64(e.Size)/1024, e.ModTime.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "Remove indexes whose codebase path no longer exists")

	return cmd
}
