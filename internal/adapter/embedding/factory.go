package embedding

import (
	"fmt"

	"docqa/config"
	"docqa/internal/port"
)

// New builds the embedder selected by cfg.Provider.
func New(cfg config.EmbeddingConfig) (port.Embedder, error) {
	switch cfg.Provider {
	case "hugot":
		return NewHugotEmbedder(HugotOptions{
			Model:     cfg.Model,
			ModelDir:  cfg.ModelDir,
			Dimension: cfg.Dimension,
			BatchSize: cfg.BatchSize,
		})
	case "openai", "jina":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
			if cfg.Provider == "jina" {
				baseURL = "https://api.jina.ai/v1"
			}
		}
		return newFromEnv(cfg.APIKeyEnv, OpenAIOptions{
			BaseURL:           baseURL,
			Model:             cfg.Model,
			BatchSize:         cfg.BatchSize,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
	case "ollama":
		return NewOllamaEmbedder(cfg.Model, cfg.BaseURL)
	case "mock":
		return NewMockEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
