package port

import "docqa/internal/domain"

type Chunker interface {
	Chunk(docs []domain.Document) []domain.Chunk
}
