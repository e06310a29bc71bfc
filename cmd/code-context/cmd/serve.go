package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tan-yong-sheng/code-context/internal/ignore"
	"github.com/tan-yong-sheng/code-context/internal/mcp"
	"github.com/tan-yong-sheng/code-context/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var watchPath string
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, orchestrator, provider, err := buildEngine()
			if err != nil {
				return err
			}
			defer func() { _ = orchestrator.Close() }()
			defer func() { _ = provider.Close() }()

			server, err := mcp.NewServer(orchestrator, provider)
			if err != nil {
				return err
			}

			if watchPath != "" {
				engine, err := ignore.NewEngine(watchPath, ignore.Options{
					CustomPatterns:   cfg.Ignore.CustomPatterns,
					CustomExtensions: cfg.Ignore.CustomExtensions,
				})
				if err != nil {
					return err
				}
				w := watcher.New(watchPath, engine, debounce, func(ctx context.Context) {
					if _, err := orchestrator.ReindexByChange(ctx, watchPath, nil); err != nil {
						slog.Warn("watch-triggered reindex failed", slog.String("error", err.Error()))
					}
				})
				go func() {
					if err := w.Run(ctx); err != nil && ctx.Err() == nil {
						slog.Warn("watcher stopped", slog.String("error", err.Error()))
					}
				}()
			}

			return server.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&watchPath, "watch", "", "Codebase path to watch for changes and reindex incrementally")
	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "Quiet period before a change burst triggers reindexing")

	return cmd
}
