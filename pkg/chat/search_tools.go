package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"github.com/mikeboe/research-crew/pkg/research"
)

// Searcher runs the advanced web search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]research.SearchResult, error)
}

type SearchToolset struct {
	Searcher Searcher
}

func NewSearchToolset(searcher Searcher) *SearchToolset {
	return &SearchToolset{Searcher: searcher}
}

func (t *SearchToolset) Name() string {
	return "search_tools"
}

func (t *SearchToolset) Tools(ctx agent.ReadonlyContext) ([]tool.Tool, error) {
	searchTool, err := functiontool.New[AdvancedSearchArgs, AdvancedSearchResp](
		functiontool.Config{
			Name:        "advanced_search",
			Description: "Search the web with query expansion and relevance re-ranking. Returns the most relevant passages with their source URLs.",
		},
		t.advancedSearchTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search tool: %w", err)
	}

	return []tool.Tool{searchTool}, nil
}

type AdvancedSearchArgs struct {
	Query string `json:"query" description:"The research query"`
}

type AdvancedSearchResp struct {
	Results string `json:"results"`
	Count   int    `json:"count"`
}

// Wrapper for ADK tool interface
func (t *SearchToolset) advancedSearchTool(ctx tool.Context, args AdvancedSearchArgs) (AdvancedSearchResp, error) {
	return t.AdvancedSearch(ctx, args)
}

func (t *SearchToolset) AdvancedSearch(ctx context.Context, args AdvancedSearchArgs) (AdvancedSearchResp, error) {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return AdvancedSearchResp{}, fmt.Errorf("query must not be empty")
	}

	slog.Info("Advanced search", "query", query)

	results, err := t.Searcher.Search(ctx, query)
	if err != nil {
		return AdvancedSearchResp{}, fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		return AdvancedSearchResp{Results: "No results found."}, nil
	}

	formatted := make([]string, 0, len(results))
	for _, r := range results {
		formatted = append(formatted, fmt.Sprintf("[Source]: %s\n[Content]: %s", r.Source, r.Content))
	}
	return AdvancedSearchResp{Results: strings.Join(formatted, "\n\n"), Count: len(results)}, nil
}
