package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Index.ChunkSize != 500 {
		t.Errorf("expected ChunkSize=500, got %d", cfg.Index.ChunkSize)
	}
	if cfg.Retrieve.TopK != 3 {
		t.Errorf("expected TopK=3, got %d", cfg.Retrieve.TopK)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Errorf("expected Temperature=0.2, got %f", cfg.LLM.Temperature)
	}
	if cfg.LLM.APIKeyEnv != "GROQ_API_KEY" {
		t.Errorf("expected APIKeyEnv=GROQ_API_KEY, got %s", cfg.LLM.APIKeyEnv)
	}
	if cfg.Embedding.Dimension != 384 {
		t.Errorf("expected Dimension=384, got %d", cfg.Embedding.Dimension)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "docqa.yaml")

	content := `
index:
  chunk_size: 256
retrieve:
  top_k: 5
llm:
  timeout: 15s
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Index.ChunkSize != 256 {
		t.Errorf("expected ChunkSize=256, got %d", cfg.Index.ChunkSize)
	}
	if cfg.Retrieve.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieve.TopK)
	}
	if cfg.LLM.Timeout != 15*time.Second {
		t.Errorf("expected Timeout=15s, got %s", cfg.LLM.Timeout)
	}
	if cfg.Index.Dir != "vector_store" {
		t.Errorf("unset fields should keep defaults, got Index.Dir=%s", cfg.Index.Dir)
	}
}

func TestLoad_RejectsInvalidChunkSize(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "docqa.yaml")

	if err := os.WriteFile(configPath, []byte("index:\n  chunk_size: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for chunk_size 0")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DOCQA_TOP_K", "7")
	t.Setenv("DOCQA_INDEX_DIR", "/tmp/idx")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retrieve.TopK != 7 {
		t.Errorf("expected TopK=7, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Index.Dir != "/tmp/idx" {
		t.Errorf("expected Index.Dir=/tmp/idx, got %s", cfg.Index.Dir)
	}
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("DOCQA_CHUNK_SIZE", "lots")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for non-numeric DOCQA_CHUNK_SIZE")
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, ".docqa"), 0755); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(tmpDir, ".docqa", "config.yaml")

	content := `
embedding:
  provider: mock
  dimension: 8
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Embedding.Provider != "mock" || cfg.Embedding.Dimension != 8 {
		t.Errorf("expected mock/8, got %s/%d", cfg.Embedding.Provider, cfg.Embedding.Dimension)
	}
}

func TestValidate_UnknownProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Provider = "word2vec"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown embedding provider")
	}

	cfg = DefaultConfig()
	cfg.LLM.Provider = "custom"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for custom llm provider without base_url")
	}
	cfg.LLM.BaseURL = "http://localhost:9999/v1"
	if err := cfg.Validate(); err != nil {
		t.Errorf("custom provider with base_url should validate: %v", err)
	}
}

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("/srv/app", "vector_store"); got != filepath.Join("/srv/app", "vector_store") {
		t.Errorf("unexpected relative resolution: %s", got)
	}
	if got := ResolvePath("/srv/app", "/data/idx"); got != "/data/idx" {
		t.Errorf("absolute path should be kept, got %s", got)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "docqa.yaml")

	cfg := DefaultConfig()
	cfg.Index.ChunkSize = 250
	cfg.Retrieve.CacheTTL = 90 * time.Second
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Index.ChunkSize != 250 {
		t.Errorf("expected chunk size 250, got %d", loaded.Index.ChunkSize)
	}
	if loaded.Retrieve.CacheTTL != 90*time.Second {
		t.Errorf("expected cache ttl 90s, got %v", loaded.Retrieve.CacheTTL)
	}
	if loaded.Embedding.Provider != "hugot" {
		t.Errorf("expected provider hugot, got %s", loaded.Embedding.Provider)
	}
}
