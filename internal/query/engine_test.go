package query

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kansofy/docintel-mcp/internal/embedder"
	"github.com/kansofy/docintel-mcp/internal/hasher"
	"github.com/kansofy/docintel-mcp/internal/index"
	"github.com/kansofy/docintel-mcp/internal/storage"
	"github.com/kansofy/docintel-mcp/pkg/types"
)

func newFixture(t *testing.T) (*Engine, storage.Storage, embedder.Embedder) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "query.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.NewLocalProvider("", embedder.NewCache(100))
	require.NoError(t, err)

	return NewEngine(store, emb, DefaultPolicy()), store, emb
}

// seedDocument stores a completed, indexed, embedded document whose single
// chunk is the full content, so querying the exact content yields a vector
// similarity of 1.0 with the deterministic local model.
func seedDocument(t *testing.T, store storage.Storage, emb embedder.Embedder, filename, content string) *types.Document {
	t.Helper()
	ctx := context.Background()

	doc := &types.Document{
		Filename:         filename,
		OriginalFilename: filename,
		FilePath:         "/uploads/" + filename,
		FileSize:         int64(len(content)),
	}
	require.NoError(t, store.CreateDocument(ctx, doc))
	doc.Status = types.StatusCompleted
	doc.Content = content
	require.NoError(t, store.UpdateDocument(ctx, doc))
	require.NoError(t, index.NewSync(store).OnDocumentCompleted(ctx, doc))

	chunk := &types.Chunk{Index: 0, Text: content, ByteLength: len(content), Hash: hasher.Chunk(doc.ID, 0, content)}
	require.NoError(t, store.ReplaceChunks(ctx, doc.ID, []*types.Chunk{chunk}))

	vec, err := emb.GenerateEmbedding(ctx, embedder.Request{Text: content})
	require.NoError(t, err)
	require.NoError(t, store.UpsertEmbedding(ctx, &types.Embedding{
		ChunkID: chunk.ID, Vector: vec.Vector, Model: emb.Model(), Filename: filename,
	}))
	return doc
}

func TestValidateRequest(t *testing.T) {
	e, _, _ := newFixture(t)
	ctx := context.Background()

	_, err := e.Search(ctx, Request{Query: "   "})
	assert.True(t, errors.Is(err, types.ErrInvalidInput))

	_, err = e.Search(ctx, Request{Query: "ok", Modalities: []Modality{"telepathy"}})
	assert.True(t, errors.Is(err, types.ErrInvalidInput))

	_, err = e.Search(ctx, Request{Query: "ok", Threshold: 1.5})
	assert.True(t, errors.Is(err, types.ErrInvalidInput))

	long := make([]byte, MaxQueryLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = e.Search(ctx, Request{Query: string(long)})
	assert.True(t, errors.Is(err, types.ErrInvalidInput))
}

func TestSingleModalityBypassesFusion(t *testing.T) {
	e, store, emb := newFixture(t)
	ctx := context.Background()

	seedDocument(t, store, emb, "doc.txt", "unique fulltext marker phrase")

	resp, err := e.Search(ctx, Request{Query: "marker", Modalities: []Modality{ModalityFulltext}})
	require.NoError(t, err)
	assert.Equal(t, StateComplete, resp.State)
	require.Len(t, resp.Results, 1)
	// The raw subscore is the final score: no weights applied.
	assert.Equal(t, resp.Results[0].FTSScore, resp.Results[0].FinalScore)
	assert.Zero(t, resp.Results[0].VectorScore)
	assert.Zero(t, resp.Results[0].RecencyBoost)
}

func TestVectorSearchExactMatch(t *testing.T) {
	e, store, emb := newFixture(t)
	ctx := context.Background()

	content := "bulk carrier charter terms"
	doc := seedDocument(t, store, emb, "charter.txt", content)
	seedDocument(t, store, emb, "other.txt", "completely different material")

	hits, err := e.SearchVector(ctx, content, 10, 0.9)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, doc.ID, hits[0].DocumentID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-4)
}

func TestHybridFusionScoring(t *testing.T) {
	e, store, emb := newFixture(t)
	ctx := context.Background()

	content := "harbor pilotage invoice charges"
	doc := seedDocument(t, store, emb, "pilotage.txt", content)

	resp, err := e.Search(ctx, Request{Query: content, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, StateComplete, resp.State)
	assert.Equal(t, "weighted-sum/v1", resp.Policy)
	require.Len(t, resp.Results, 1)

	r := resp.Results[0]
	assert.Equal(t, doc.ID, r.DocumentID)
	assert.Greater(t, r.FTSScore, 0.0)
	assert.InDelta(t, 1.0, r.VectorScore, 1e-4)
	// Freshly uploaded: near-maximum recency boost.
	assert.Greater(t, r.RecencyBoost, 0.19)
	expected := e.Policy().Fuse(r.FTSScore, r.VectorScore, r.RecencyBoost)
	assert.InDelta(t, expected, r.FinalScore, 1e-9)
	assert.LessOrEqual(t, r.FinalScore, 1.0)
}

func TestHybridRanksTwoModalityMatchFirst(t *testing.T) {
	e, store, emb := newFixture(t)
	ctx := context.Background()

	both := seedDocument(t, store, emb, "both.txt", "gantry crane maintenance schedule")
	textOnly := seedDocument(t, store, emb, "textonly.txt", "crane mentioned in passing amid unrelated telemetry noise")

	resp, err := e.Search(ctx, Request{Query: "gantry crane maintenance schedule", Limit: 10})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(resp.Results), 1)
	assert.Equal(t, both.ID, resp.Results[0].DocumentID)
	for _, r := range resp.Results[1:] {
		assert.LessOrEqual(t, r.FinalScore, resp.Results[0].FinalScore)
		_ = textOnly
	}
}

type failingEmbedder struct{}

func (f *failingEmbedder) GenerateEmbedding(ctx context.Context, req embedder.Request) (*embedder.Embedding, error) {
	return nil, fmt.Errorf("%w: model offline", types.ErrModelUnavailable)
}

func (f *failingEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchRequest) (*embedder.BatchResponse, error) {
	return nil, fmt.Errorf("%w: model offline", types.ErrModelUnavailable)
}

func (f *failingEmbedder) Dimension() int   { return embedder.LocalDimension }
func (f *failingEmbedder) Provider() string { return "failing" }
func (f *failingEmbedder) Model() string    { return "failing-model" }
func (f *failingEmbedder) Close() error     { return nil }

func TestHybridDegradesWhenVectorFails(t *testing.T) {
	_, store, emb := newFixture(t)
	ctx := context.Background()

	seedDocument(t, store, emb, "survivor.txt", "degradation survivor content")

	broken := NewEngine(store, &failingEmbedder{}, DefaultPolicy())
	resp, err := broken.Search(ctx, Request{Query: "survivor", Limit: 5})
	require.NoError(t, err)

	assert.Equal(t, StateDegraded, resp.State)
	require.Len(t, resp.Degraded, 1)
	assert.Equal(t, ModalityVector, resp.Degraded[0].Modality)
	assert.Equal(t, "model_unavailable", resp.Degraded[0].Kind)

	require.Len(t, resp.Results, 1)
	assert.Zero(t, resp.Results[0].VectorScore)
	assert.Greater(t, resp.Results[0].FTSScore, 0.0)
}

func TestHybridFailsWhenAllModalitiesFail(t *testing.T) {
	_, store, _ := newFixture(t)

	broken := NewEngine(store, &failingEmbedder{}, DefaultPolicy())
	// "AND OR" compiles to no searchable terms, failing the fulltext
	// modality alongside the broken embedder.
	_, err := broken.Search(context.Background(), Request{Query: "AND OR", Limit: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all search modalities failed")
}

func TestSearchCache(t *testing.T) {
	e, store, emb := newFixture(t)
	ctx := context.Background()

	seedDocument(t, store, emb, "cached.txt", "cacheable search target")

	req := Request{Query: "cacheable", Limit: 5, UseCache: true}
	first, err := e.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := e.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Results, second.Results)

	// Expired entries miss.
	e.now = func() time.Time { return time.Now().Add(time.Hour) }
	third, err := e.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
}

func TestDegradedResponsesNotCached(t *testing.T) {
	_, store, emb := newFixture(t)
	ctx := context.Background()

	seedDocument(t, store, emb, "flaky.txt", "partially available search content")

	broken := NewEngine(store, &failingEmbedder{}, DefaultPolicy())
	req := Request{Query: "partially", Limit: 5, UseCache: true}

	first, err := broken.Search(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StateDegraded, first.State)
	assert.False(t, first.CacheHit)

	// A degraded result must not be served from cache once the outage ends.
	second, err := broken.Search(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StateDegraded, second.State)
	assert.False(t, second.CacheHit)
}

func TestLimitClamping(t *testing.T) {
	e, store, emb := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		seedDocument(t, store, emb, fmt.Sprintf("doc%d.txt", i), fmt.Sprintf("clamp target number %d", i))
	}

	resp, err := e.Search(ctx, Request{Query: "clamp target", Limit: 2, Modalities: []Modality{ModalityFulltext}})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(resp.Results), 2)

	resp, err = e.Search(ctx, Request{Query: "clamp target", Limit: 0, Modalities: []Modality{ModalityFulltext}})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(resp.Results), DefaultLimit)
}
