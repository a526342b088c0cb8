package server

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mikeboe/research-crew/pkg/research"
)

// MCPVersion is the MCP server version.
const MCPVersion = "0.1.0"

// MCPServer exposes the advanced search and the full crew as MCP tools.
type MCPServer struct {
	service *Service
	server  *mcp.Server
}

func NewMCPServer(s *Service) *MCPServer {
	m := &MCPServer{
		service: s,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "research-crew",
			Version: MCPVersion,
		}, nil),
	}

	mcp.AddTool(m.server, &mcp.Tool{
		Name:        "advanced_search",
		Description: "Search the web with query expansion and relevance re-ranking",
	}, m.handleSearch)
	mcp.AddTool(m.server, &mcp.Tool{
		Name:        "run_research",
		Description: "Plan, research and write a cited report for a research goal. Takes several minutes.",
	}, m.handleResearch)

	return m
}

// Handler serves the streamable HTTP transport.
func (m *MCPServer) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return m.server
	}, nil)
}

// SearchInput is the input schema for the advanced_search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the research query"`
}

// SearchOutput is the output schema for the advanced_search tool.
type SearchOutput struct {
	Results []research.SearchResult `json:"results"`
	Count   int                     `json:"count"`
}

func (m *MCPServer) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	results, err := m.service.Search(ctx, input.Query)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	if results == nil {
		results = []research.SearchResult{}
	}
	return nil, SearchOutput{Results: results, Count: len(results)}, nil
}

// ResearchInput is the input schema for the run_research tool.
type ResearchInput struct {
	Goal string `json:"goal" jsonschema:"the high-level research goal"`
}

// ResearchOutput is the output schema for the run_research tool.
type ResearchOutput struct {
	Report  string   `json:"report"`
	Queries []string `json:"queries"`
}

func (m *MCPServer) handleResearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ResearchInput,
) (*mcp.CallToolResult, ResearchOutput, error) {
	res, err := m.service.RunResearch(ctx, input.Goal)
	if err != nil {
		return nil, ResearchOutput{}, err
	}
	return nil, ResearchOutput{Report: res.Report, Queries: res.Queries}, nil
}
