package embedder

import (
	"fmt"
	"os"
	"strings"

	"github.com/kansofy/docintel-mcp/pkg/types"
)

// Config holds embedder construction settings.
type Config struct {
	Provider  string
	APIKey    string
	ModelPath string
	CacheSize int
}

// New creates an embedder from explicit configuration.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderJina:
		return NewJinaProvider(cfg.APIKey, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cache)
	case ProviderLocal, "":
		return NewLocalProvider(cfg.ModelPath, cache)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", types.ErrConfiguration, cfg.Provider)
	}
}

// NewFromEnv creates an embedder from environment variables.
// Priority:
//  1. DOCINTEL_EMBEDDING_PROVIDER (jina, openai, local)
//  2. available API keys: JINA_API_KEY, then OPENAI_API_KEY
//  3. the local model
func NewFromEnv() (Embedder, error) {
	provider := os.Getenv("DOCINTEL_EMBEDDING_PROVIDER")
	jinaKey := os.Getenv("JINA_API_KEY")
	openaiKey := os.Getenv("OPENAI_API_KEY")

	cache := NewCache(DefaultCacheSize)

	if provider != "" {
		switch strings.ToLower(provider) {
		case ProviderJina:
			return NewJinaProvider(jinaKey, cache)
		case ProviderOpenAI:
			return NewOpenAIProvider(openaiKey, cache)
		case ProviderLocal:
			return NewLocalProvider(os.Getenv("DOCINTEL_MODEL_PATH"), cache)
		default:
			return nil, fmt.Errorf("%w: unknown embedding provider %q", types.ErrConfiguration, provider)
		}
	}

	if jinaKey != "" {
		return NewJinaProvider(jinaKey, cache)
	}
	if openaiKey != "" {
		return NewOpenAIProvider(openaiKey, cache)
	}
	return NewLocalProvider(os.Getenv("DOCINTEL_MODEL_PATH"), cache)
}

// DetectProvider reports which provider NewFromEnv would pick.
func DetectProvider() string {
	if provider := os.Getenv("DOCINTEL_EMBEDDING_PROVIDER"); provider != "" {
		return strings.ToLower(provider)
	}
	if os.Getenv("JINA_API_KEY") != "" {
		return ProviderJina
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
