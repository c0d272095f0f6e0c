package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/config"
	"docqa/internal/domain"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func setupWorkspace(t *testing.T, llmURL string) string {
	t.Helper()
	root := t.TempDir()

	docs := filepath.Join(root, "data", "documents")
	require.NoError(t, os.MkdirAll(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "sky.txt"), []byte("The sky is blue."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "grass.md"), []byte("Grass is green."), 0o644))

	yaml := `embedding:
  provider: mock
  dimension: 16
llm:
  provider: openai
  base_url: ` + llmURL + `
  api_key_env: DOCQA_TEST_LLM_KEY
logging:
  level: error
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "docqa.yaml"), []byte(yaml), 0o644))
	t.Setenv("DOCQA_TEST_LLM_KEY", "test")
	return root
}

func TestIngestQueryStatsAsk(t *testing.T) {
	llmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"The sky is blue."}}]}`))
	}))
	defer llmSrv.Close()

	root := setupWorkspace(t, llmSrv.URL)

	out, err := run(t, "--dir", root, "ingest")
	require.NoError(t, err)
	assert.Contains(t, out, "Ingestion complete")
	assert.FileExists(t, filepath.Join(root, "vector_store", "index.db"))
	assert.FileExists(t, filepath.Join(root, "vector_store", "chunks.db"))

	out, err = run(t, "--dir", root, "query", "-q", "The sky is blue.", "-k", "5", "--json")
	require.NoError(t, err)
	var results []domain.ScoredChunk
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "The sky is blue.", results[0].Chunk.Text)

	out, err = run(t, "--dir", root, "stats", "--json")
	require.NoError(t, err)
	var m domain.Manifest
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, 2, m.Count)
	assert.Equal(t, 16, m.Dimension)
	assert.Equal(t, "mock", m.EmbeddingModel)

	out, err = run(t, "--dir", root, "ask", "-q", "What color is the sky?")
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.\n", out)
}

func TestQueryWithoutIndex(t *testing.T) {
	root := setupWorkspace(t, "http://127.0.0.1:1")

	_, err := run(t, "--dir", root, "query", "-q", "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docqa ingest")
}

func TestInitWritesDefaultConfig(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "docqa.yaml")

	out, err := run(t, "--dir", root, "init")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), loaded)

	require.NoError(t, os.WriteFile(path, []byte("index:\n  chunk_size: 100\n"), 0o644))
	_, err = run(t, "--dir", root, "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "chunk_size: 100", "existing file is kept")

	_, err = run(t, "--dir", root, "init", "--force")
	require.NoError(t, err)
	loaded, err = config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Index.ChunkSize, loaded.Index.ChunkSize)
}
