package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func testChunks(texts ...string) []domain.Chunk {
	chunks := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = domain.Chunk{Position: i, Source: "doc.txt", Text: t}
	}
	return chunks
}

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Build(
		[][]float32{{0, 0}, {3, 4}, {1, 0}},
		testChunks("origin", "far", "near"),
		BuildMeta{EmbeddingModel: "mock", ChunkSize: 500},
	)
	require.NoError(t, err)
	return idx
}

func TestBuildRejectsMismatchedInput(t *testing.T) {
	_, err := Build([][]float32{{1, 2}}, testChunks("a", "b"), BuildMeta{})
	assert.ErrorIs(t, err, domain.ErrIndexBuild)

	_, err = Build([][]float32{{1, 2}, {1, 2, 3}}, testChunks("a", "b"), BuildMeta{})
	assert.ErrorIs(t, err, domain.ErrIndexBuild)

	chunks := testChunks("a", "b")
	chunks[1].Position = 7
	_, err = Build([][]float32{{1}, {2}}, chunks, BuildMeta{})
	assert.ErrorIs(t, err, domain.ErrIndexBuild)
}

func TestBuildManifest(t *testing.T) {
	idx := buildTestIndex(t)
	m := idx.Manifest()

	assert.Equal(t, CurrentSchemaVersion, m.SchemaVersion)
	assert.Equal(t, 3, m.Count)
	assert.Equal(t, 2, m.Dimension)
	assert.Equal(t, "mock", m.EmbeddingModel)
	assert.Equal(t, Checksum(idx.Chunks()), m.Checksum)
	assert.Len(t, m.Checksum, 16)
}

func TestSearchOrdersByDistance(t *testing.T) {
	idx := buildTestIndex(t)

	results, err := idx.Search([]float32{0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "origin", results[0].Chunk.Text)
	assert.Equal(t, "near", results[1].Chunk.Text)
	assert.Equal(t, "far", results[2].Chunk.Text)
	assert.InDelta(t, 0, results[0].Distance, 1e-9)
	assert.InDelta(t, 1, results[1].Distance, 1e-9)
	assert.InDelta(t, 5, results[2].Distance, 1e-9)
}

func TestSearchTiesKeepPositionOrder(t *testing.T) {
	idx, err := Build(
		[][]float32{{1, 0}, {0, 1}, {-1, 0}},
		testChunks("a", "b", "c"),
		BuildMeta{},
	)
	require.NoError(t, err)

	results, err := idx.Search([]float32{0, 0}, 3)
	require.NoError(t, err)
	for i, r := range results {
		assert.Equal(t, i, r.Chunk.Position)
	}
}

func TestSearchKBounds(t *testing.T) {
	idx := buildTestIndex(t)

	results, err := idx.Search([]float32{0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	_, err = idx.Search([]float32{0, 0}, 0)
	assert.ErrorIs(t, err, domain.ErrRetrieval)

	_, err = idx.Search([]float32{0, 0, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrRetrieval)
}

func TestSearchEmptyIndex(t *testing.T) {
	idx, err := Build(nil, nil, BuildMeta{})
	require.NoError(t, err)

	_, err = idx.Search([]float32{1}, 3)
	assert.ErrorIs(t, err, domain.ErrRetrieval)

	var nilIdx *Index
	_, err = nilIdx.Search([]float32{1}, 3)
	assert.ErrorIs(t, err, domain.ErrRetrieval)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	idx := buildTestIndex(t)

	require.NoError(t, Save(dir, idx))
	assert.True(t, Exists(dir))
	assert.NoFileExists(t, filepath.Join(dir, IndexFile+".tmp"))
	assert.NoFileExists(t, filepath.Join(dir, ChunksFile+".tmp"))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, idx.Chunks(), loaded.Chunks())
	assert.Equal(t, idx.Manifest().Checksum, loaded.Manifest().Checksum)
	assert.Equal(t, idx.Manifest().Dimension, loaded.Manifest().Dimension)

	before, err := idx.Search([]float32{0.9, 0.1}, 3)
	require.NoError(t, err)
	after, err := loaded.Search([]float32{0.9, 0.1}, 3)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLoadMissingArtifacts(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir)
	assert.ErrorIs(t, err, domain.ErrRetrieval)
	assert.False(t, Exists(dir))
}

func TestLoadEmptyStore(t *testing.T) {
	dir := t.TempDir()
	idx, err := Build(nil, nil, BuildMeta{})
	require.NoError(t, err)
	require.NoError(t, Save(dir, idx))

	_, err = Load(dir)
	assert.ErrorIs(t, err, domain.ErrRetrieval)
}

func TestLoadDetectsMismatchedPair(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	require.NoError(t, Save(first, buildTestIndex(t)))

	other, err := Build([][]float32{{1, 1}}, testChunks("other"), BuildMeta{})
	require.NoError(t, err)
	require.NoError(t, Save(second, other))

	// chunks.db from another run
	data, err := os.ReadFile(filepath.Join(second, ChunksFile))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(first, ChunksFile), data, 0o600))

	_, err = Load(first)
	assert.ErrorIs(t, err, domain.ErrRetrieval)
}

func TestFailedSaveKeepsPreviousArtifacts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, buildTestIndex(t)))

	// a non-empty directory where the chunk temp file goes makes the second write fail
	blocker := filepath.Join(dir, ChunksFile+".tmp")
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "x"), 0o755))

	replacement, err := Build([][]float32{{9, 9}}, testChunks("replacement"), BuildMeta{})
	require.NoError(t, err)
	require.Error(t, Save(dir, replacement))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())
	assert.Equal(t, "origin", loaded.Chunks()[0].Text)
	assert.NoFileExists(t, filepath.Join(dir, IndexFile+".tmp"))
}

func TestSaveReplacesWholesale(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, buildTestIndex(t)))

	replacement, err := Build([][]float32{{9, 9}}, testChunks("replacement"), BuildMeta{})
	require.NoError(t, err)
	require.NoError(t, Save(dir, replacement))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
	assert.Equal(t, "replacement", loaded.Chunks()[0].Text)
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{1.5, -2.25, 0, 3.4028235e38}
	got, err := decodeVector(encodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
