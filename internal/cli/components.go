package cli

import (
	"fmt"
	"io"

	"docqa/config"
	"docqa/internal/adapter/cache"
	"docqa/internal/adapter/embedding"
	"docqa/internal/adapter/llm"
	"docqa/internal/adapter/retriever"
	"docqa/internal/adapter/store"
	"docqa/internal/port"
	"docqa/internal/usecase"
)

// pipeline is the loaded query side: index, embedder, retriever and model.
type pipeline struct {
	index     *store.Index
	embedder  port.Embedder
	retriever port.Retriever
	answer    *usecase.AnswerUseCase
}

func (p *pipeline) Close() {
	if c, ok := p.embedder.(io.Closer); ok {
		c.Close()
	}
}

func indexDir(cfg *config.Config) string {
	return config.ResolvePath(GetRootDir(), cfg.Index.Dir)
}

func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	ecfg := cfg.Embedding
	ecfg.ModelDir = config.ResolvePath(GetRootDir(), ecfg.ModelDir)

	emb, err := embedding.New(ecfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return emb, nil
}

// loadPipeline loads the persisted index and wires the query pipeline. The
// model client is only created when withLLM is set, so retrieval-only
// commands need no API key.
func loadPipeline(cfg *config.Config, withLLM bool) (*pipeline, error) {
	dir := indexDir(cfg)
	if !store.Exists(dir) {
		return nil, fmt.Errorf("no index found in %s. Run 'docqa ingest' first", dir)
	}

	idx, err := store.Load(dir)
	if err != nil {
		return nil, err
	}

	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	usecase.WarnOnModelMismatch(idx.Manifest(), emb, log)

	p := &pipeline{index: idx, embedder: emb}

	var r port.Retriever = retriever.NewL2Retriever(idx, emb, log)
	if cfg.Retrieve.CacheSize > 0 {
		r = cache.NewCachedRetriever(r, cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL), idx.Manifest().Checksum)
	}
	p.retriever = r

	if withLLM {
		client, err := llm.New(cfg.LLM)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to create llm client: %w", err)
		}
		p.answer = usecase.NewAnswerUseCase(r, client, cfg.Retrieve.TopK, log)
	}
	return p, nil
}
