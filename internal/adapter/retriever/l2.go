package retriever

import (
	"context"
	"fmt"
	"log/slog"

	"docqa/internal/adapter/store"
	"docqa/internal/domain"
	"docqa/internal/port"
)

var _ port.Retriever = (*L2Retriever)(nil)

// L2Retriever embeds a query and runs an exact nearest-neighbour search
// over a loaded index.
type L2Retriever struct {
	index    *store.Index
	embedder port.Embedder
	logger   *slog.Logger
}

func NewL2Retriever(index *store.Index, embedder port.Embedder, logger *slog.Logger) *L2Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &L2Retriever{
		index:    index,
		embedder: embedder,
		logger:   logger,
	}
}

func (r *L2Retriever) Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrRetrieval, k)
	}
	if r.index.Len() == 0 {
		return nil, fmt.Errorf("%w: index is not loaded or empty", domain.ErrRetrieval)
	}
	if r.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", domain.ErrEmbedding)
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("%w: expected 1 query vector, got %d", domain.ErrEmbedding, len(embeddings))
	}

	results, err := r.index.Search(embeddings[0], k)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("retrieved chunks", "k", k, "results", len(results))
	return results, nil
}
