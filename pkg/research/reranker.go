package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strconv"

	"github.com/mikeboe/research-crew/pkg/research/tools"
	"github.com/mikeboe/research-crew/pkg/logging"
	"github.com/mikeboe/research-crew/pkg/retry"
)

// Reranker orders documents by relevance to query and keeps the best topM.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []Document, topM int) ([]Document, error)
}

type rerankClient interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]tools.RerankResult, error)
}

// ServiceReranker scores documents with the rerank service.
type ServiceReranker struct {
	Client   rerankClient
	Governor *retry.Governor
	Logger   *slog.Logger
}

func NewServiceReranker(client rerankClient, governor *retry.Governor) *ServiceReranker {
	return &ServiceReranker{Client: client, Governor: governor, Logger: slog.Default()}
}

// Rerank never calls the service for an empty pool.
func (r *ServiceReranker) Rerank(ctx context.Context, query string, docs []Document, topM int) ([]Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if topM <= 0 {
		topM = 1
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	var scored []tools.RerankResult
	err := r.Governor.Do(ctx, func(ctx context.Context) error {
		res, err := r.Client.Rerank(ctx, query, texts, topM)
		if err != nil {
			return err
		}
		scored = res
		return nil
	})
	if err != nil {
		if !errors.Is(err, tools.ErrRerankUnavailable) {
			err = fmt.Errorf("%w: %w", tools.ErrRerankUnavailable, err)
		}
		return nil, err
	}

	out := make([]Document, 0, min(topM, len(scored)))
	for _, s := range scored {
		if len(out) == topM {
			break
		}
		if s.Index < 0 || s.Index >= len(docs) {
			continue
		}
		doc := docs[s.Index]
		meta := maps.Clone(doc.Metadata)
		if meta == nil {
			meta = map[string]string{}
		}
		meta["relevance_score"] = strconv.FormatFloat(s.RelevanceScore, 'f', -1, 64)
		doc.Metadata = meta
		out = append(out, doc)
	}

	logging.FromContext(ctx, r.Logger).Info("Reranked documents", "query", query, "candidates", len(docs), "kept", len(out))
	return out, nil
}
