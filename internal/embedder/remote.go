package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kansofy/docintel-mcp/pkg/types"
)

const (
	jinaEndpoint   = "https://api.jina.ai/v1/embeddings"
	openaiEndpoint = "https://api.openai.com/v1/embeddings"

	requestTimeout = 30 * time.Second
)

// remoteProvider is the shared HTTP embedding backend. Jina and OpenAI use
// the same wire shape, so a provider is just an endpoint, a default model,
// and a declared dimension.
type remoteProvider struct {
	name      string
	endpoint  string
	apiKey    string
	model     string
	dimension int

	httpClient *http.Client
	cache      *Cache
	retry      RetryConfig
}

// NewJinaProvider creates an embedder backed by the Jina AI API.
func NewJinaProvider(apiKey string, cache *Cache) (Embedder, error) {
	return newRemoteProvider(ProviderJina, jinaEndpoint, apiKey, DefaultJinaModel, JinaDimension, cache)
}

// NewOpenAIProvider creates an embedder backed by the OpenAI API.
func NewOpenAIProvider(apiKey string, cache *Cache) (Embedder, error) {
	return newRemoteProvider(ProviderOpenAI, openaiEndpoint, apiKey, DefaultOpenAIModel, OpenAIDimension, cache)
}

func newRemoteProvider(name, endpoint, apiKey, model string, dimension int, cache *Cache) (*remoteProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: no API key for provider %s", types.ErrConfiguration, name)
	}
	return &remoteProvider{
		name:       name,
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: requestTimeout},
		cache:      cache,
		retry:      DefaultRetryConfig(),
	}, nil
}

func (r *remoteProvider) GenerateEmbedding(ctx context.Context, req Request) (*Embedding, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Text)
	if r.cache != nil {
		if emb, ok := r.cache.Get(hash); ok {
			return emb, nil
		}
	}

	resp, err := r.GenerateBatch(ctx, BatchRequest{Texts: []string{req.Text}, Model: req.Model})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: %s returned no embeddings", types.ErrModelUnavailable, r.name)
	}
	return resp.Embeddings[0], nil
}

func (r *remoteProvider) GenerateBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	if err := validateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = r.model
	}

	embeddings, err := retryWithBackoff(ctx, r.retry, func() ([]*Embedding, error) {
		return r.callAPI(ctx, req.Texts, model)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s after %d attempts: %v", types.ErrModelUnavailable, r.name, r.retry.MaxRetries, err)
	}

	if r.cache != nil {
		for i, emb := range embeddings {
			hash := ComputeHash(req.Texts[i])
			emb.Hash = hash
			r.cache.Set(hash, emb)
		}
	}

	return &BatchResponse{
		Embeddings: embeddings,
		Provider:   r.name,
		Model:      model,
	}, nil
}

func (r *remoteProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	body, err := json.Marshal(map[string]any{
		"input": texts,
		"model": model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	embeddings := make([]*Embedding, len(apiResp.Data))
	for i, data := range apiResp.Data {
		embeddings[i] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  r.name,
			Model:     apiResp.Model,
		}
	}
	return embeddings, nil
}

func (r *remoteProvider) Dimension() int { return r.dimension }

func (r *remoteProvider) Provider() string { return r.name }

func (r *remoteProvider) Model() string { return r.model }

func (r *remoteProvider) Close() error {
	r.httpClient.CloseIdleConnections()
	return nil
}
