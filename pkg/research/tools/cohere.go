package tools

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// RerankResult points at one input document by index.
type RerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type cohereRerankRequest struct {
	Model           string   `json:"model"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	TopN            int      `json:"top_n"`
	ReturnDocuments bool     `json:"return_documents"`
}

type cohereRerankResponse struct {
	Results []RerankResult `json:"results"`
}

// CohereClient scores documents against a query with the Cohere rerank API.
type CohereClient struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

func NewCohereClient(apiKey, baseURL, model string) (*CohereClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: COHERE_API_KEY is not set", ErrRerankUnavailable)
	}
	if baseURL == "" {
		baseURL = "https://api.cohere.com"
	}
	if model == "" {
		model = "rerank-english-v3.0"
	}
	return &CohereClient{
		APIKey:     apiKey,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Model:      model,
		HTTPClient: &http.Client{Timeout: defaultHTTPTimeout},
	}, nil
}

// Rerank returns at most topN results in descending relevance order.
// Indices outside the documents slice are dropped.
func (c *CohereClient) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}

	var resp cohereRerankResponse
	err := postJSON(ctx, c.HTTPClient, c.BaseURL+"/v1/rerank", c.APIKey, cohereRerankRequest{
		Model:     c.Model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	}, &resp, ErrRerankUnavailable)
	if err != nil {
		return nil, err
	}

	results := make([]RerankResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			continue
		}
		results = append(results, r)
	}
	if len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}
