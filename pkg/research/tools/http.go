package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mikeboe/research-crew/pkg/clients"
)

var (
	ErrSearchUnavailable = errors.New("search unavailable")
	ErrRerankUnavailable = errors.New("rerank unavailable")
)

const defaultHTTPTimeout = 60 * time.Second

// postJSON sends payload as JSON with a bearer token and decodes the response
// into out. Failures wrap kind; 429 responses additionally wrap clients.ErrRateLimited.
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, payload, out any, kind error) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("%w: failed to create HTTP request: %w", kind, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to make API request: %w", kind, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %w", kind, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w: status %d, body: %s", kind, clients.ErrRateLimited, resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: API returned non-200 status code: %d, body: %s", kind, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to unmarshal response: %w", kind, err)
	}
	return nil
}
