package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tan-yong-sheng/code-context/internal/index"
)

func newSearchCmd() *cobra.Command {
	var topK int
	var threshold float64
	var filter string

	cmd := &cobra.Command{
		Use:   "search <path> <query>",
		Short: "Search an indexed codebase",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			query := strings.Join(args[1:], " ")

			_, orchestrator, provider, err := buildEngine()
			if err != nil {
				return err
			}
			defer func() { _ = orchestrator.Close() }()
			defer func() { _ = provider.Close() }()

			hits, err := orchestrator.SemanticSearch(cmd.Context(), path, query, index.SearchOptions{
				TopK:       topK,
				Threshold:  threshold,
				FilterExpr: filter,
			})
			if err != nil {
				return err
			}

			if len(hits) == 0 {
				fmt.Println("No results.")
				return nil
			}
			for i, h := range hits {
				fmt.Printf("%d. %s:%d-%d (%.3f)\n", i+1, h.RelativePath, h.StartLine, h.EndLine, h.Score)
				content := h.Content
				if len(content) > 400 {
					content = content[:400] + "..."
				}
				fmt.Println(indent(content, "   "))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "limit", 10, "Maximum number of results")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.3, "Minimum similarity score")
	cmd.Flags().StringVar(&filter, "filter", "", `Filter expression, e.g. "fileExtension IN ['.go']"`)

	return cmd
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
