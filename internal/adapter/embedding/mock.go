package embedding

import (
	"context"
	"fmt"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/port"
)

var _ port.Embedder = (*MockEmbedder)(nil)

// MockEmbedder derives a deterministic vector from the text's characters.
// It is used by tests and for running the pipeline without a model.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 8
	}
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateInputs(texts); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
	}

	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = make([]float32, e.dimension)

		for j, r := range []rune(strings.ToLower(texts[i])) {
			embeddings[i][j%e.dimension] += float32(r) / 1000.0
		}
	}
	return embeddings, nil
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}

// validateInputs rejects texts that are empty after trimming. Skipping them
// instead would shift every later vector out of alignment with its chunk.
func validateInputs(texts []string) error {
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: input %d is empty", domain.ErrEmbedding, i)
		}
	}
	return nil
}
