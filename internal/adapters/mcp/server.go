// Package mcpadapter exposes retrieval as Model Context Protocol tools so an
// assistant can ground its answers in survey report passages.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
	"github.com/kirillkom/pbs-retrieval/internal/core/ports"
	"github.com/kirillkom/pbs-retrieval/internal/core/usecase"
)

const (
	serverName = "pbs-retrieval"

	toolRetrieve = "retrieve_passages"
	toolAnalyze  = "analyze_query"
)

type Server struct {
	retriever ports.Retriever
	analyzer  ports.QueryAnalyzer
	defaults  domain.RetrievalConfig
	logger    *slog.Logger
}

func NewServer(
	retriever ports.Retriever,
	analyzer ports.QueryAnalyzer,
	defaults domain.RetrievalConfig,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		retriever: retriever,
		analyzer:  analyzer,
		defaults:  defaults,
		logger:    logger,
	}
}

// MCPServer builds an MCP server with both tools registered.
func (s *Server) MCPServer(version string) *server.MCPServer {
	srv := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool(toolRetrieve,
		mcp.WithDescription("Search Feed the Future population-based survey reports. Country, phase and survey round named in the query narrow the search."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free-text question, e.g. 'stunting prevalence in Kenya phase 2 endline'")),
		mcp.WithNumber("top_k", mcp.Description("Number of passages to return"), mcp.Min(1), mcp.Max(50)),
		mcp.WithBoolean("rerank", mcp.Description("Reorder candidates with the cross-encoder when it is loaded")),
	), s.handleRetrieve)

	srv.AddTool(mcp.NewTool(toolAnalyze,
		mcp.WithDescription("Show the countries, phases, survey rounds and years detected in a query and the metadata filter they produce."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free-text question")),
	), s.handleAnalyze)

	return srv
}

// ServeStdio serves the tools over stdin and stdout until the client
// disconnects.
func (s *Server) ServeStdio(version string) error {
	return server.ServeStdio(s.MCPServer(version))
}

type retrieveOutput struct {
	Status    domain.RetrievalStatus `json:"status"`
	Filter    domain.MetadataFilter  `json:"filter"`
	Citations []domain.Citation      `json:"citations"`
	Passages  []domain.Passage       `json:"passages"`
	Backends  domain.BackendReport   `json:"backends"`
}

func (s *Server) handleRetrieve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cfg := s.defaults
	cfg.FinalTopK = req.GetInt("top_k", cfg.FinalTopK)
	cfg.RerankEnabled = req.GetBool("rerank", cfg.RerankEnabled)

	result, err := s.retriever.Retrieve(ctx, query, cfg)
	if err != nil {
		s.logger.Warn("mcp_retrieve_failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("retrieve: %v", err)), nil
	}

	return jsonResult(retrieveOutput{
		Status:    result.Status,
		Filter:    result.Filter,
		Citations: usecase.BuildCitations(result.Passages),
		Passages:  result.Passages,
		Backends:  result.Backends,
	})
}

type analyzeOutput struct {
	Entities domain.QueryEntities  `json:"entities"`
	Filter   domain.MetadataFilter `json:"filter"`
}

func (s *Server) handleAnalyze(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entities := s.analyzer.Analyze(query)
	return jsonResult(analyzeOutput{
		Entities: entities,
		Filter:   domain.FilterFromEntities(entities),
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
