package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for docqa.
type Config struct {
	Documents DocumentsConfig `yaml:"documents"`
	Index     IndexConfig     `yaml:"index"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DocumentsConfig describes where source documents are read from.
type DocumentsConfig struct {
	Dir      string   `yaml:"dir"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// IndexConfig holds indexing configuration.
type IndexConfig struct {
	Dir       string `yaml:"dir"`        // holds index.db and chunks.db
	ChunkSize int    `yaml:"chunk_size"` // characters per chunk
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK      int           `yaml:"top_k"`
	CacheSize int           `yaml:"cache_size"` // 0 disables the result cache
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"` // "hugot", "openai", "jina", "ollama", "mock"
	Model             string  `yaml:"model"`
	ModelDir          string  `yaml:"model_dir"` // hugot download directory
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Dimension         int     `yaml:"dimension"`
	BatchSize         int     `yaml:"batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
}

// LLMConfig holds chat-completion configuration.
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // "groq", "openai", "local"
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Documents: DocumentsConfig{
			Dir:      "data/documents",
			Includes: []string{"**/*.pdf", "**/*.txt", "**/*.md"},
			Excludes: []string{"**/.git/**", "**/node_modules/**"},
		},
		Index: IndexConfig{
			Dir:       "vector_store",
			ChunkSize: 500,
		},
		Retrieve: RetrieveConfig{
			TopK:      3,
			CacheSize: 0,
			CacheTTL:  5 * time.Minute,
		},
		Embedding: EmbeddingConfig{
			Provider:  "hugot",
			Model:     "sentence-transformers/all-MiniLM-L6-v2",
			ModelDir:  "models",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 384,
			BatchSize: 32,
		},
		LLM: LLMConfig{
			Provider:    "groq",
			Model:       "llama-3.1-8b-instant",
			APIKeyEnv:   "GROQ_API_KEY",
			Temperature: 0.2,
			Timeout:     60 * time.Second,
		},
		Server: ServerConfig{
			Addr:              ":8000",
			AllowedOrigins:    []string{"*"},
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file and applies DOCQA_* environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadFromDir loads configuration from a directory (looks for docqa.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "docqa.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".docqa", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// No file; Load still applies env overrides.
	return Load(filepath.Join(dir, "docqa.yaml"))
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Index.ChunkSize <= 0 {
		return fmt.Errorf("index.chunk_size must be > 0, got %d", c.Index.ChunkSize)
	}
	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("retrieve.top_k must be > 0, got %d", c.Retrieve.TopK)
	}
	switch c.Embedding.Provider {
	case "hugot", "openai", "jina", "ollama", "mock":
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}
	switch c.LLM.Provider {
	case "groq", "openai", "local":
	default:
		if c.LLM.BaseURL == "" {
			return fmt.Errorf("unsupported llm provider %q (set llm.base_url for custom endpoints)", c.LLM.Provider)
		}
	}
	if c.Embedding.Provider == "mock" && c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be > 0 for the mock provider")
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("DOCQA_DOCUMENTS_DIR"); v != "" {
		c.Documents.Dir = v
	}
	if v := os.Getenv("DOCQA_INDEX_DIR"); v != "" {
		c.Index.Dir = v
	}
	if v := os.Getenv("DOCQA_CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DOCQA_CHUNK_SIZE: %w", err)
		}
		c.Index.ChunkSize = n
	}
	if v := os.Getenv("DOCQA_TOP_K"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DOCQA_TOP_K: %w", err)
		}
		c.Retrieve.TopK = n
	}
	if v := os.Getenv("DOCQA_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("DOCQA_EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("DOCQA_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("DOCQA_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("DOCQA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// ResolvePath resolves p against dir unless it is already absolute.
func ResolvePath(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
