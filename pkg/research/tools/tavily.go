package tools

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// TavilyResult is a single web search hit.
type TavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type tavilyRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth,omitempty"`
}

type tavilyResponse struct {
	Query   string         `json:"query"`
	Results []TavilyResult `json:"results"`
}

// TavilyClient queries the Tavily search API.
type TavilyClient struct {
	APIKey      string
	BaseURL     string
	SearchDepth string
	HTTPClient  *http.Client
}

func NewTavilyClient(apiKey, baseURL string) (*TavilyClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: TAVILY_API_KEY is not set", ErrSearchUnavailable)
	}
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	return &TavilyClient{
		APIKey:      apiKey,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		SearchDepth: "basic",
		HTTPClient:  &http.Client{Timeout: defaultHTTPTimeout},
	}, nil
}

// Search returns up to maxResults hits in Tavily's relevance order.
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) ([]TavilyResult, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	slog.Debug("Searching web", "query", query, "max_results", maxResults)

	var resp tavilyResponse
	err := postJSON(ctx, c.HTTPClient, c.BaseURL+"/search", c.APIKey, tavilyRequest{
		Query:       query,
		MaxResults:  maxResults,
		SearchDepth: c.SearchDepth,
	}, &resp, ErrSearchUnavailable)
	if err != nil {
		return nil, err
	}

	if len(resp.Results) > maxResults {
		resp.Results = resp.Results[:maxResults]
	}
	return resp.Results, nil
}
