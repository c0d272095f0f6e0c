package port

import (
	"context"

	"docqa/internal/domain"
)

// Retriever defines the interface for searching indexed content.
type Retriever interface {
	// Search returns the k chunks closest to the query, nearest first.
	Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error)
}
