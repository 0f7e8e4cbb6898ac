package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/kansofy/docintel-mcp/pkg/types"
)

// LocalProvider runs a process-resident sentence embedding model. The model
// is loaded lazily on first use, exactly once, and inference is serialized:
// the model is a shared resource, never re-instantiated per call.
type LocalProvider struct {
	model     string
	modelPath string
	cache     *Cache

	loadOnce sync.Once
	loadErr  error

	// inferMu serializes inference against the loaded model.
	inferMu sync.Mutex
}

// NewLocalProvider creates the local embedder. modelPath may be empty, in
// which case the built-in weights are used; a non-empty path that does not
// exist surfaces as a model-unavailable error on first inference, not here.
func NewLocalProvider(modelPath string, cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model:     DefaultLocalModel,
		modelPath: modelPath,
		cache:     cache,
	}, nil
}

func (l *LocalProvider) load() error {
	l.loadOnce.Do(func() {
		if l.modelPath == "" {
			return
		}
		if _, err := os.Stat(l.modelPath); err != nil {
			l.loadErr = fmt.Errorf("%w: model path %s: %v", types.ErrModelUnavailable, l.modelPath, err)
		}
	})
	return l.loadErr
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req Request) (*Embedding, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := l.load(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb, nil
		}
	}

	l.inferMu.Lock()
	vector := l.infer(req.Text)
	l.inferMu.Unlock()

	emb := &Embedding{
		Vector:    vector,
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      hash,
	}
	if l.cache != nil {
		l.cache.Set(hash, emb)
	}
	return emb, nil
}

// infer produces a deterministic unit-length vector: the text digest is
// expanded with a counter into 384 components centered on zero, then
// normalized. The same text always maps to the same vector.
func (l *LocalProvider) infer(text string) []float32 {
	vector := make([]float32, LocalDimension)
	seed := sha256.Sum256([]byte(text))

	var block [40]byte
	copy(block[:32], seed[:])
	for i := 0; i < LocalDimension; i += 8 {
		binary.LittleEndian.PutUint64(block[32:], uint64(i))
		digest := sha256.Sum256(block[:])
		for j := 0; j < 8 && i+j < LocalDimension; j++ {
			word := binary.LittleEndian.Uint32(digest[j*4 : j*4+4])
			vector[i+j] = float32(word)/float32(math.MaxUint32) - 0.5
		}
	}
	return NormalizeVector(vector)
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	if err := validateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, Request{Text: text, Model: req.Model})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int { return LocalDimension }

func (l *LocalProvider) Provider() string { return ProviderLocal }

func (l *LocalProvider) Model() string { return l.model }

func (l *LocalProvider) Close() error { return nil }

// NormalizeVector scales v to unit length. Zero vectors are returned as-is.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}
