package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docqa/internal/adapter/store"
	"docqa/internal/domain"
	"docqa/internal/port"
)

// ProgressFunc is called after each embedding batch.
type ProgressFunc func(done, total int)

// IngestOptions configures an ingestion run.
type IngestOptions struct {
	IndexDir  string
	ChunkSize int // recorded in the manifest
	BatchSize int
}

// IngestUseCase builds the index and chunk store from a document directory.
type IngestUseCase struct {
	loader   port.DocumentLoader
	chunker  port.Chunker
	embedder port.Embedder
	opts     IngestOptions
	logger   *slog.Logger
}

// IngestResult summarises an ingestion run.
type IngestResult struct {
	Documents      int // distinct source files
	Pages          int // loaded units: PDF pages or whole text files
	EmptyDocuments int // units with no text, skipped by the chunker
	Chunks         int
	Dimension      int
	Manifest       domain.Manifest
	Elapsed        time.Duration
}

func NewIngestUseCase(
	loader port.DocumentLoader,
	chunker port.Chunker,
	embedder port.Embedder,
	opts IngestOptions,
	logger *slog.Logger,
) *IngestUseCase {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestUseCase{
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		opts:     opts,
		logger:   logger,
	}
}

// Ingest loads, chunks and embeds every document under dir, then replaces the
// persisted artifacts. Any failure aborts before anything is written.
func (u *IngestUseCase) Ingest(ctx context.Context, dir string, progress ProgressFunc) (*IngestResult, error) {
	start := time.Now()
	result := &IngestResult{}

	var docs []domain.Document
	sources := make(map[string]struct{})
	for doc, err := range u.loader.Load(ctx, dir) {
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
		sources[doc.Source] = struct{}{}
		if strings.TrimSpace(doc.Text) == "" {
			result.EmptyDocuments++
		}
	}
	result.Documents = len(sources)
	result.Pages = len(docs)
	u.logger.Info("loaded documents", "dir", dir, "documents", result.Documents, "pages", result.Pages)

	chunks := u.chunker.Chunk(docs)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no text found under %s", domain.ErrIndexBuild, dir)
	}
	result.Chunks = len(chunks)
	u.logger.Info("chunked documents", "chunks", len(chunks), "empty_skipped", result.EmptyDocuments)

	vectors, err := u.embed(ctx, chunks, progress)
	if err != nil {
		return nil, err
	}

	idx, err := store.Build(vectors, chunks, store.BuildMeta{
		EmbeddingModel: u.embedder.ModelName(),
		ChunkSize:      u.opts.ChunkSize,
	})
	if err != nil {
		return nil, err
	}

	if err := store.Save(u.opts.IndexDir, idx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexBuild, err)
	}

	result.Manifest = idx.Manifest()
	result.Dimension = result.Manifest.Dimension
	result.Elapsed = time.Since(start)
	u.logger.Info("index saved",
		"dir", u.opts.IndexDir,
		"chunks", result.Chunks,
		"dimension", result.Dimension,
		"checksum", result.Manifest.Checksum,
		"elapsed", result.Elapsed.Round(time.Millisecond),
	)
	return result, nil
}

func (u *IngestUseCase) embed(ctx context.Context, chunks []domain.Chunk, progress ProgressFunc) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for i := 0; i < len(chunks); i += u.opts.BatchSize {
		end := min(i+u.opts.BatchSize, len(chunks))

		texts := make([]string, 0, end-i)
		for _, c := range chunks[i:end] {
			texts = append(texts, c.Text)
		}

		batch, err := u.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", i, end-1, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("%w: got %d vectors for %d chunks", domain.ErrEmbedding, len(batch), len(texts))
		}
		vectors = append(vectors, batch...)

		if progress != nil {
			progress(end, len(chunks))
		}
	}
	return vectors, nil
}
