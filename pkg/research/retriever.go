package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mikeboe/research-crew/pkg/research/tools"
	"github.com/mikeboe/research-crew/pkg/logging"
	"github.com/mikeboe/research-crew/pkg/retry"
)

// Retriever fetches the top k documents for a query in upstream ranking order.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Document, error)
}

type webSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]tools.TavilyResult, error)
}

// WebRetriever adapts the web search service to Documents.
type WebRetriever struct {
	Client   webSearcher
	Governor *retry.Governor
	Logger   *slog.Logger
}

func NewWebRetriever(client webSearcher, governor *retry.Governor) *WebRetriever {
	return &WebRetriever{Client: client, Governor: governor, Logger: slog.Default()}
}

func (r *WebRetriever) Retrieve(ctx context.Context, query string, k int) ([]Document, error) {
	if k <= 0 {
		k = 1
	}

	var hits []tools.TavilyResult
	err := r.Governor.Do(ctx, func(ctx context.Context) error {
		res, err := r.Client.Search(ctx, query, k)
		if err != nil {
			return err
		}
		hits = res
		return nil
	})
	if err != nil {
		if !errors.Is(err, tools.ErrSearchUnavailable) {
			err = fmt.Errorf("%w: %w", tools.ErrSearchUnavailable, err)
		}
		return nil, err
	}

	if len(hits) > k {
		hits = hits[:k]
	}
	docs := make([]Document, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, Document{
			Content: h.Content,
			Source:  h.URL,
			Metadata: map[string]string{
				"source": h.URL,
				"title":  h.Title,
				"score":  strconv.FormatFloat(h.Score, 'f', -1, 64),
			},
		})
	}

	logging.FromContext(ctx, r.Logger).Debug("Retrieved documents", "query", query, "count", len(docs))
	return docs, nil
}
