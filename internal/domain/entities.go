package domain

import "time"

// Document is the raw text of one source unit: a PDF page or a whole text file.
type Document struct {
	Source string
	Page   int // 1-based for PDF pages, 0 for plain text files
	Text   string
}

// Chunk is a fixed-size window of a Document. Position is its identity in the
// persisted chunk sequence and matches the vector index position.
type Chunk struct {
	Position int    `json:"position"`
	Source   string `json:"source"`
	Text     string `json:"text"`
}

type ScoredChunk struct {
	Chunk    Chunk   `json:"chunk"`
	Distance float64 `json:"distance"`
}

type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Manifest is written into both persisted artifacts so a reader can verify
// they were produced by the same ingestion run.
type Manifest struct {
	SchemaVersion  int       `json:"schema_version"`
	Count          int       `json:"count"`
	Dimension      int       `json:"dimension"`
	Checksum       string    `json:"checksum"`
	EmbeddingModel string    `json:"embedding_model"`
	ChunkSize      int       `json:"chunk_size"`
	CreatedAt      time.Time `json:"created_at"`
}
