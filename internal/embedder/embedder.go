// Package embedder generates vector embeddings for chunk text. The default
// backend is a process-resident local model; Jina and OpenAI HTTP backends
// are available when API keys are configured. All backends share an LRU
// cache keyed by content hash.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kansofy/docintel-mcp/pkg/types"
)

const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultLocalModel  = "all-MiniLM-L6-v2"

	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// MaxBatchSize caps the number of texts in a single batch call.
	MaxBatchSize = 100

	// DefaultCacheSize is the embedding cache capacity when unconfigured.
	DefaultCacheSize = 10000
)

// Embedding is a generated vector plus the provenance needed to store it.
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // content hash, also the cache key
}

// Request asks for a single embedding.
type Request struct {
	Text  string
	Model string // optional model override
}

// BatchRequest asks for embeddings of several texts in one call.
type BatchRequest struct {
	Texts []string
	Model string
}

// BatchResponse carries the embeddings of a batch call in input order.
type BatchResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder generates embeddings. Implementations must be safe for
// concurrent use.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, req Request) (*Embedding, error)
	GenerateBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error)

	// Dimension returns the vector length this backend produces.
	Dimension() int
	Provider() string
	Model() string

	// Close releases backend resources (HTTP connections, model weights).
	Close() error
}

// Cache is an LRU embedding cache keyed by content hash.
type Cache struct {
	cache *lru.Cache[string, *Embedding]
}

// NewCache creates a cache with the given capacity. Non-positive capacities
// fall back to DefaultCacheSize.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	cache, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		cache, _ = lru.New[string, *Embedding](DefaultCacheSize)
	}
	return &Cache{cache: cache}
}

// Get returns a deep copy of the cached embedding so callers cannot mutate
// the cached vector.
func (c *Cache) Get(hash string) (*Embedding, bool) {
	emb, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	vec := make([]float32, len(emb.Vector))
	copy(vec, emb.Vector)
	return &Embedding{
		Vector:    vec,
		Dimension: emb.Dimension,
		Provider:  emb.Provider,
		Model:     emb.Model,
		Hash:      emb.Hash,
	}, true
}

// Set stores an embedding, evicting the least recently used entry at
// capacity.
func (c *Cache) Set(hash string, emb *Embedding) {
	c.cache.Add(hash, emb)
}

// Size returns the number of cached embeddings.
func (c *Cache) Size() int { return c.cache.Len() }

// Clear empties the cache.
func (c *Cache) Clear() { c.cache.Purge() }

// ComputeHash returns the hex SHA-256 of text, the cache key.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

func validateRequest(req Request) error {
	if req.Text == "" {
		return fmt.Errorf("%w: text cannot be empty", types.ErrInvalidInput)
	}
	return nil
}

func validateBatchRequest(req BatchRequest) error {
	if len(req.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", types.ErrInvalidInput)
	}
	if len(req.Texts) > MaxBatchSize {
		return fmt.Errorf("%w: batch of %d exceeds max %d", types.ErrInvalidInput, len(req.Texts), MaxBatchSize)
	}
	for i, text := range req.Texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", types.ErrInvalidInput, i)
		}
	}
	return nil
}
