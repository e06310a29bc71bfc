// Package mcp exposes the indexing engine to AI clients over the Model
// Context Protocol. The protocol surface is thin glue: each tool maps onto
// one orchestrator method.
package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tan-yong-sheng/code-context/internal/embed"
	ctxerr "github.com/tan-yong-sheng/code-context/internal/errors"
	"github.com/tan-yong-sheng/code-context/internal/index"
)

// Version is the server version reported to clients.
const Version = "0.1.0"

// Server bridges MCP clients with the index orchestrator.
type Server struct {
	mcp          *mcp.Server
	orchestrator *index.Orchestrator
	provider     embed.Provider
	logger       *slog.Logger
}

// NewServer creates the MCP server and registers its tools.
func NewServer(orchestrator *index.Orchestrator, provider embed.Provider) (*Server, error) {
	if orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}

	s := &Server{
		orchestrator: orchestrator,
		provider:     provider,
		logger:       slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "code-context",
			Version: Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_codebase",
		Description: "Index a codebase for semantic search. Walks the tree, splits files into semantic chunks, embeds them, and stores vectors locally. Run once per codebase; use search_code afterwards.",
	}, s.indexHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_code",
		Description: "Semantic code search over an indexed codebase. Finds code by meaning, not just keywords; returns ranked spans with file paths and line ranges.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Check whether a codebase is indexed and which embedding provider is active.",
	}, s.statusHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "clear_index",
		Description: "Remove a codebase's index, snapshot, and stored vectors.",
	}, s.clearHandler)

	s.logger.Debug("MCP tools registered", slog.Int("count", 4))
}

func (s *Server) indexHandler(ctx context.Context, _ *mcp.CallToolRequest, input IndexInput) (
	*mcp.CallToolResult,
	IndexOutput,
	error,
) {
	if input.Path == "" {
		return nil, IndexOutput{}, errors.New("path parameter is required")
	}

	result, err := s.orchestrator.IndexCodebase(ctx, input.Path, nil, input.Force)
	if err != nil {
		return nil, IndexOutput{}, err
	}
	return nil, IndexOutput{
		IndexedFiles: result.IndexedFiles,
		TotalChunks:  result.TotalChunks,
		Status:       string(result.Status),
	}, nil
}

func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Path == "" {
		return nil, SearchOutput{}, errors.New("path parameter is required")
	}
	if input.Query == "" {
		return nil, SearchOutput{}, errors.New("query parameter is required")
	}

	hits, err := s.orchestrator.SemanticSearch(ctx, input.Path, input.Query, index.SearchOptions{
		TopK:       input.Limit,
		Threshold:  input.Threshold,
		FilterExpr: input.Filter,
	})
	if err != nil {
		if ctxerr.IsNotIndexed(err) {
			// Not-indexed is a user-facing signal, not a server failure.
			return nil, SearchOutput{Results: []SearchResultOutput{}}, err
		}
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{Results: make([]SearchResultOutput, 0, len(hits))}
	for _, h := range hits {
		output.Results = append(output.Results, SearchResultOutput{
			FilePath:  h.RelativePath,
			StartLine: h.StartLine,
			EndLine:   h.EndLine,
			Language:  h.Language,
			Score:     h.Score,
			Content:   h.Content,
		})
	}
	return nil, output, nil
}

func (s *Server) statusHandler(ctx context.Context, _ *mcp.CallToolRequest, input StatusInput) (
	*mcp.CallToolResult,
	StatusOutput,
	error,
) {
	if input.Path == "" {
		return nil, StatusOutput{}, errors.New("path parameter is required")
	}

	indexed, err := s.orchestrator.HasIndex(ctx, input.Path)
	if err != nil {
		return nil, StatusOutput{}, err
	}

	out := StatusOutput{
		Status:  string(s.orchestrator.Status(input.Path)),
		Indexed: indexed,
	}
	if indexed && out.Status == string(index.StatusAbsent) {
		// A collection from a previous process is searchable even though
		// this process has not indexed it.
		out.Status = string(index.StatusCompleted)
	}
	if s.provider != nil {
		out.Provider = s.provider.ProviderName()
		out.Dimension = s.provider.Dimensions()
	}
	return nil, out, nil
}

func (s *Server) clearHandler(ctx context.Context, _ *mcp.CallToolRequest, input ClearInput) (
	*mcp.CallToolResult,
	ClearOutput,
	error,
) {
	if input.Path == "" {
		return nil, ClearOutput{}, errors.New("path parameter is required")
	}

	if err := s.orchestrator.ClearIndex(ctx, input.Path, nil); err != nil {
		return nil, ClearOutput{}, err
	}
	return nil, ClearOutput{Cleared: true}, nil
}

// Serve runs the server over stdio until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}
