package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kansofy/docintel-mcp/pkg/types"
)

func TestVectorSerializationRoundTrip(t *testing.T) {
	vector := []float32{0.1, -0.5, 3.14159, 0, -0}
	blob := SerializeVector(vector)
	require.Len(t, blob, len(vector)*4)
	assert.Equal(t, vector, DeserializeVector(blob))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// Symmetry.
	a, b := []float32{0.3, 0.8, -0.1}, []float32{-0.2, 0.5, 0.9}
	assert.Equal(t, CosineSimilarity(a, b), CosineSimilarity(b, a))

	// Dimension mismatch and zero vectors degrade to 0.
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

func seedEmbeddedDocument(t *testing.T, s *SQLiteStorage, filename string, vectors [][]float32) *types.Document {
	t.Helper()
	ctx := context.Background()

	doc := completedDocument(t, s, filename, "text for "+filename)
	chunks := make([]*types.Chunk, len(vectors))
	for i := range vectors {
		chunks[i] = &types.Chunk{Index: i, Text: "chunk", ByteLength: 5, Hash: filename + string(rune('a'+i))}
	}
	require.NoError(t, s.ReplaceChunks(ctx, doc.ID, chunks))
	for i, v := range vectors {
		require.NoError(t, s.UpsertEmbedding(ctx, &types.Embedding{
			ChunkID: chunks[i].ID, Vector: v, Model: "test-model", Filename: filename,
		}))
	}
	return doc
}

func TestSearchVectorRanksBySimilarity(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	near := seedEmbeddedDocument(t, s, "near.txt", [][]float32{{1, 0, 0}})
	mid := seedEmbeddedDocument(t, s, "mid.txt", [][]float32{{0.7, 0.7, 0}})
	far := seedEmbeddedDocument(t, s, "far.txt", [][]float32{{0, 0, 1}})

	results, err := s.SearchVector(ctx, []float32{1, 0, 0}, "test-model", 10, -1)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, near.ID, results[0].DocumentID)
	assert.Equal(t, mid.ID, results[1].DocumentID)
	assert.Equal(t, far.ID, results[2].DocumentID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
}

func TestSearchVectorThresholdAndLimit(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	seedEmbeddedDocument(t, s, "a.txt", [][]float32{{1, 0, 0}})
	seedEmbeddedDocument(t, s, "b.txt", [][]float32{{0.9, 0.43589, 0}})
	seedEmbeddedDocument(t, s, "c.txt", [][]float32{{0, 1, 0}})

	// Raising the threshold can only shrink the result set.
	loose, err := s.SearchVector(ctx, []float32{1, 0, 0}, "test-model", 10, 0.0)
	require.NoError(t, err)
	tight, err := s.SearchVector(ctx, []float32{1, 0, 0}, "test-model", 10, 0.95)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(loose), len(tight))
	require.Len(t, tight, 1)
	assert.Equal(t, "a.txt", tight[0].Filename)

	limited, err := s.SearchVector(ctx, []float32{1, 0, 0}, "test-model", 1, -1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSearchVectorExcludesNonCompleted(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	doc := seedEmbeddedDocument(t, s, "soon-gone.txt", [][]float32{{1, 0, 0}})
	require.NoError(t, s.SoftDeleteDocument(ctx, doc.ID))

	results, err := s.SearchVector(ctx, []float32{1, 0, 0}, "test-model", 10, -1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchVectorModelIsolation(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	seedEmbeddedDocument(t, s, "v1doc.txt", [][]float32{{1, 0, 0}})

	results, err := s.SearchVector(ctx, []float32{1, 0, 0}, "other-model", 10, -1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestListCorpusEmbeddingsExcludesSource(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	source := seedEmbeddedDocument(t, s, "source.txt", [][]float32{{1, 0, 0}})
	other := seedEmbeddedDocument(t, s, "other.txt", [][]float32{{0, 1, 0}, {0, 0, 1}})

	corpus, err := s.ListCorpusEmbeddings(ctx, "test-model", source.ID)
	require.NoError(t, err)
	require.Len(t, corpus, 2)
	for _, ce := range corpus {
		assert.Equal(t, other.ID, ce.DocumentID)
		assert.Equal(t, "other.txt", ce.Filename)
	}
}
