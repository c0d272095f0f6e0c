package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/adapter/chunker"
	"docqa/internal/adapter/embedding"
	"docqa/internal/adapter/fs"
	"docqa/internal/adapter/loader"
	"docqa/internal/adapter/retriever"
	"docqa/internal/adapter/store"
	"docqa/internal/domain"
	"docqa/internal/port"
)

// stubLLM answers from the prompt's context block, or with the fallback
// sentence when the question's keyword is not in it.
type stubLLM struct {
	mu      sync.Mutex
	prompts []string
	err     error
}

func (s *stubLLM) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, userPrompt)
	s.mu.Unlock()

	if s.err != nil {
		return "", s.err
	}
	if systemPrompt != SystemPrompt {
		return "", errors.New("unexpected system prompt")
	}
	if strings.Contains(userPrompt, "sky") && strings.Contains(userPrompt, "The sky is blue.") &&
		!strings.Contains(userPrompt, "capital") {
		return "The sky is blue.", nil
	}
	return FallbackAnswer, nil
}

func (s *stubLLM) ModelName() string { return "stub" }

type errRetriever struct{ err error }

func (r errRetriever) Search(context.Context, string, int) ([]domain.ScoredChunk, error) {
	return nil, r.err
}

func writeDocs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func newIngest(t *testing.T, indexDir string, chunkSize int) *IngestUseCase {
	t.Helper()
	c, err := chunker.NewWindowChunker(chunkSize)
	require.NoError(t, err)
	l := loader.NewLoader(fs.NewWalker([]string{"**/*.txt", "**/*.md", "**/*.pdf"}, nil))
	return NewIngestUseCase(l, c, embedding.NewMockEmbedder(16), IngestOptions{
		IndexDir:  indexDir,
		ChunkSize: chunkSize,
		BatchSize: 2,
	}, nil)
}

func newAnswer(t *testing.T, indexDir string, llm *stubLLM) *AnswerUseCase {
	t.Helper()
	idx, err := store.Load(indexDir)
	require.NoError(t, err)
	return NewAnswerUseCase(retriever.NewL2Retriever(idx, embedding.NewMockEmbedder(16), nil), llm, 3, nil)
}

func TestIngestAndAnswerSkyIsBlue(t *testing.T) {
	docs := writeDocs(t, map[string]string{"sky.txt": "The sky is blue."})
	indexDir := t.TempDir()

	var progress [][2]int
	res, err := newIngest(t, indexDir, 500).Ingest(context.Background(), docs, func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Documents)
	assert.Equal(t, 1, res.Chunks)
	assert.Equal(t, 16, res.Dimension)
	assert.Equal(t, [][2]int{{1, 1}}, progress)

	idx, err := store.Load(indexDir)
	require.NoError(t, err)
	require.Equal(t, 1, idx.Len())
	assert.Equal(t, "The sky is blue.", idx.Chunks()[0].Text)

	llm := &stubLLM{}
	ans, err := newAnswer(t, indexDir, llm).Answer(context.Background(), "  What color is the sky?  ")
	require.NoError(t, err)
	assert.Equal(t, "  What color is the sky?  ", ans.Question, "question is echoed as sent")
	assert.Contains(t, ans.Answer, "blue")

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "The sky is blue.")
	assert.Contains(t, llm.prompts[0], "Question:\nWhat color is the sky?\n")
}

func TestAnswerFallbackWhenContextLacksAnswer(t *testing.T) {
	docs := writeDocs(t, map[string]string{"sky.txt": "The sky is blue."})
	indexDir := t.TempDir()
	_, err := newIngest(t, indexDir, 500).Ingest(context.Background(), docs, nil)
	require.NoError(t, err)

	ans, err := newAnswer(t, indexDir, &stubLLM{}).Answer(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, ans.Answer)
}

func TestIngestBatchesProgress(t *testing.T) {
	docs := writeDocs(t, map[string]string{
		"a.txt": strings.Repeat("a", 25),
		"b.md":  "bbbb",
		"e.txt": "   ",
	})
	indexDir := t.TempDir()

	var calls int
	res, err := newIngest(t, indexDir, 10).Ingest(context.Background(), docs, func(done, total int) {
		calls++
		assert.Equal(t, 4, total)
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Documents)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, 1, res.EmptyDocuments)
	assert.Equal(t, 4, res.Chunks)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "mock", res.Manifest.EmbeddingModel)
	assert.Equal(t, 10, res.Manifest.ChunkSize)
}

func TestIngestFailureKeepsPreviousArtifacts(t *testing.T) {
	indexDir := t.TempDir()
	_, err := newIngest(t, indexDir, 500).Ingest(context.Background(), writeDocs(t, map[string]string{"sky.txt": "The sky is blue."}), nil)
	require.NoError(t, err)

	_, err = newIngest(t, indexDir, 500).Ingest(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	require.ErrorIs(t, err, domain.ErrLoad)

	_, err = newIngest(t, indexDir, 500).Ingest(context.Background(), writeDocs(t, map[string]string{"blank.txt": " \n "}), nil)
	require.ErrorIs(t, err, domain.ErrIndexBuild)

	idx, err := store.Load(indexDir)
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", idx.Chunks()[0].Text)
}

func TestAnswerRejectsBlankQuestion(t *testing.T) {
	u := NewAnswerUseCase(errRetriever{}, &stubLLM{}, 3, nil)

	_, err := u.Answer(context.Background(), "   ")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	var stageErr *domain.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, domain.StageReceive, stageErr.Stage)
}

func TestAnswerStageAttribution(t *testing.T) {
	tests := []struct {
		name     string
		retErr   error
		llmErr   error
		stage    domain.Stage
		sentinel error
	}{
		{"embedding", errors.Join(domain.ErrEmbedding, errors.New("model offline")), nil, domain.StageEmbed, domain.ErrEmbedding},
		{"retrieval", domain.ErrRetrieval, nil, domain.StageRetrieve, domain.ErrRetrieval},
		{"llm", nil, &domain.LLMError{Reason: domain.LLMReasonAuth, StatusCode: 401, Err: errors.New("bad key")}, domain.StageLLM, domain.ErrLLMService},
		{"llm untyped", nil, errors.New("socket closed"), domain.StageLLM, domain.ErrLLMService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r port.Retriever = errRetriever{err: tt.retErr}
			if tt.retErr == nil {
				idx, err := store.Build([][]float32{make([]float32, 16)}, []domain.Chunk{{Text: "x"}}, store.BuildMeta{})
				require.NoError(t, err)
				r = retriever.NewL2Retriever(idx, embedding.NewMockEmbedder(16), nil)
			}

			_, err := NewAnswerUseCase(r, &stubLLM{err: tt.llmErr}, 3, nil).Answer(context.Background(), "q")
			require.ErrorIs(t, err, tt.sentinel)

			var stageErr *domain.StageError
			require.True(t, errors.As(err, &stageErr))
			assert.Equal(t, tt.stage, stageErr.Stage)
		})
	}
}

func TestAnswerConcurrent(t *testing.T) {
	docs := writeDocs(t, map[string]string{"sky.txt": "The sky is blue."})
	indexDir := t.TempDir()
	_, err := newIngest(t, indexDir, 500).Ingest(context.Background(), docs, nil)
	require.NoError(t, err)

	llm := &stubLLM{}
	u := newAnswer(t, indexDir, llm)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ans, err := u.Answer(context.Background(), "What color is the sky?")
			assert.NoError(t, err)
			assert.Equal(t, "The sky is blue.", ans.Answer)
		}()
	}
	wg.Wait()
	assert.Len(t, llm.prompts, 8)
}
