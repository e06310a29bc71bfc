// Package cmd provides the CLI commands for code-context.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tan-yong-sheng/code-context/internal/config"
	"github.com/tan-yong-sheng/code-context/internal/embed"
	"github.com/tan-yong-sheng/code-context/internal/index"
	"github.com/tan-yong-sheng/code-context/internal/logging"
	"github.com/tan-yong-sheng/code-context/internal/registry"
	"github.com/tan-yong-sheng/code-context/internal/splitter"
)

// Version is the CLI version.
const Version = "0.1.0"

var (
	configPath     string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the code-context CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "code-context",
		Short: "Semantic code search for AI coding assistants",
		Long: `code-context indexes codebases into a local vector store and serves
semantic search over MCP to AI clients like Claude Code and Cursor.

Run 'code-context serve' to start the MCP server, or use the index and
search commands directly.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("code-context version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.code-context/config.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := ""
		if debugMode {
			level = "debug"
		}
		cleanup, err := logging.SetupDefault(level)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		loggingCleanup = cleanup
		return nil
	}
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// buildEngine wires the configuration into an orchestrator.
func buildEngine() (*config.Config, *index.Orchestrator, embed.Provider, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	provider, err := embed.New(cfg.Embedding)
	if err != nil {
		return nil, nil, nil, err
	}

	reg := registry.New(cfg.Storage.BaseDir, cfg.Storage.VectorsDir)
	split := splitter.NewStructuralSplitter(splitter.Options{
		ChunkSize:    cfg.Splitter.ChunkSize,
		ChunkOverlap: cfg.Splitter.ChunkOverlap,
	})

	return cfg, index.New(cfg, reg, provider, split), provider, nil
}
