package store

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"docqa/internal/domain"
)

// Index holds embedding vectors and the chunks they were computed from.
// Vector i belongs to chunk i. An Index is read-only once built, so it is
// safe for concurrent searches.
type Index struct {
	vectors  [][]float32
	chunks   []domain.Chunk
	manifest domain.Manifest
}

// BuildMeta carries the ingestion settings recorded in the manifest.
type BuildMeta struct {
	EmbeddingModel string
	ChunkSize      int
}

// Build validates that vectors and chunks line up and assembles an Index.
func Build(vectors [][]float32, chunks []domain.Chunk, meta BuildMeta) (*Index, error) {
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: %d vectors for %d chunks", domain.ErrIndexBuild, len(vectors), len(chunks))
	}

	dimension := 0
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: vector %d is empty", domain.ErrIndexBuild, i)
		}
		if i == 0 {
			dimension = len(v)
			continue
		}
		if len(v) != dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, expected %d",
				domain.ErrIndexBuild, i, len(v), dimension)
		}
	}

	for i, c := range chunks {
		if c.Position != i {
			return nil, fmt.Errorf("%w: chunk at %d has position %d", domain.ErrIndexBuild, i, c.Position)
		}
	}

	return &Index{
		vectors: vectors,
		chunks:  chunks,
		manifest: domain.Manifest{
			SchemaVersion:  CurrentSchemaVersion,
			Count:          len(chunks),
			Dimension:      dimension,
			Checksum:       Checksum(chunks),
			EmbeddingModel: meta.EmbeddingModel,
			ChunkSize:      meta.ChunkSize,
			CreatedAt:      time.Now().UTC(),
		},
	}, nil
}

func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.chunks)
}

func (idx *Index) Manifest() domain.Manifest {
	return idx.manifest
}

func (idx *Index) Chunks() []domain.Chunk {
	return idx.chunks
}

// Search returns the k chunks nearest to query by Euclidean distance,
// nearest first. Equal distances keep ascending chunk position. k larger
// than the index returns every chunk.
func (idx *Index) Search(query []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrRetrieval, k)
	}
	if idx.Len() == 0 {
		return nil, fmt.Errorf("%w: index is empty", domain.ErrRetrieval)
	}
	if len(idx.vectors) != len(idx.chunks) {
		return nil, fmt.Errorf("%w: index has %d vectors but %d chunks",
			domain.ErrRetrieval, len(idx.vectors), len(idx.chunks))
	}
	if len(query) != idx.manifest.Dimension {
		return nil, fmt.Errorf("%w: query dimension mismatch: expected %d, got %d",
			domain.ErrRetrieval, idx.manifest.Dimension, len(query))
	}

	scores := make([]domain.ScoredChunk, len(idx.vectors))
	for i, v := range idx.vectors {
		scores[i] = domain.ScoredChunk{
			Chunk:    idx.chunks[i],
			Distance: l2Distance(query, v),
		}
	}

	slices.SortFunc(scores, func(a, b domain.ScoredChunk) int {
		return cmp.Or(
			cmp.Compare(a.Distance, b.Distance),
			cmp.Compare(a.Chunk.Position, b.Chunk.Position),
		)
	})

	return scores[:min(k, len(scores))], nil
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
