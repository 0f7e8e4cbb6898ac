// Package query answers search requests: single-modality full-text and
// vector lookups, plus hybrid search that fans out to both modalities
// concurrently and fuses the rankings under a scoring policy.
package query

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kansofy/docintel-mcp/internal/dedup"
	"github.com/kansofy/docintel-mcp/internal/embedder"
	"github.com/kansofy/docintel-mcp/internal/storage"
	"github.com/kansofy/docintel-mcp/pkg/types"
)

// Modality identifies one retrieval backend.
type Modality string

const (
	ModalityFulltext Modality = "fulltext"
	ModalityVector   Modality = "vector"
)

// Request limits.
const (
	MaxQueryLength = 1000
	MaxLimit       = 100
	DefaultLimit   = 10

	defaultCacheTTL = 5 * time.Minute
	cacheSize       = 1000
)

// States reported on a hybrid response.
const (
	StateComplete = "complete"
	StateDegraded = "degraded"
)

// Request is a hybrid search request.
type Request struct {
	Query string
	Limit int
	// Modalities defaults to both when empty.
	Modalities []Modality
	// Threshold is the minimum display similarity for vector hits.
	Threshold float64
	UseCache  bool
}

// ModalityFailure describes a modality that could not contribute.
type ModalityFailure struct {
	Modality Modality `json:"modality"`
	Kind     string   `json:"kind"`
	Message  string   `json:"message"`
}

// Result is one fused document hit.
type Result struct {
	DocumentID   int64   `json:"document_id"`
	Filename     string  `json:"filename"`
	FTSScore     float64 `json:"fts_score"`
	VectorScore  float64 `json:"vector_score"`
	RecencyBoost float64 `json:"recency_boost"`
	FinalScore   float64 `json:"final_score"`
	Snippet      string  `json:"snippet,omitempty"`
}

// Response carries fused results plus provenance.
type Response struct {
	Results  []Result          `json:"results"`
	State    string            `json:"state"`
	Policy   string            `json:"policy"`
	Degraded []ModalityFailure `json:"degraded,omitempty"`
	CacheHit bool              `json:"cache_hit"`
	Duration time.Duration     `json:"-"`
}

// VectorHit is one chunk-level similarity hit with display-range score.
type VectorHit struct {
	DocumentID int64   `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Similarity float64 `json:"similarity"`
	Preview    string  `json:"preview"`
}

type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Engine coordinates retrieval across modalities.
type Engine struct {
	store   storage.Storage
	embed   embedder.Embedder
	policy  ScoringPolicy
	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
	now     func() time.Time
}

// NewEngine creates a query engine with the given scoring policy.
func NewEngine(store storage.Storage, embed embedder.Embedder, policy ScoringPolicy) *Engine {
	cache, err := lru.New[[32]byte, *cacheEntry](cacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Engine{
		store:  store,
		embed:  embed,
		policy: policy,
		cache:  cache,
		now:    time.Now,
	}
}

// Policy returns the active scoring policy.
func (e *Engine) Policy() ScoringPolicy { return e.policy }

// SearchFulltext runs a pure full-text query.
func (e *Engine) SearchFulltext(ctx context.Context, query string, limit int) ([]storage.TextResult, error) {
	if err := validateQuery(query); err != nil {
		return nil, err
	}
	return e.store.SearchText(ctx, query, clampLimit(limit))
}

// SearchVector runs a pure vector query. threshold is a display similarity
// in [0,1]; hits below it are excluded.
func (e *Engine) SearchVector(ctx context.Context, query string, limit int, threshold float64) ([]VectorHit, error) {
	if err := validateQuery(query); err != nil {
		return nil, err
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %.2f outside [0,1]", types.ErrInvalidInput, threshold)
	}

	emb, err := e.embed.GenerateEmbedding(ctx, embedder.Request{Text: query})
	if err != nil {
		return nil, fmt.Errorf("generate query embedding: %w", err)
	}

	// Display threshold t maps back to raw cosine 2t-1.
	raw, err := e.store.SearchVector(ctx, emb.Vector, e.embed.Model(), clampLimit(limit), 2*threshold-1)
	if err != nil {
		return nil, err
	}

	hits := make([]VectorHit, len(raw))
	for i, r := range raw {
		hits[i] = VectorHit{
			DocumentID: r.DocumentID,
			Filename:   r.Filename,
			ChunkIndex: r.ChunkIndex,
			Similarity: dedup.DisplaySimilarity(r.Similarity),
			Preview:    preview(r.Text),
		}
	}
	return hits, nil
}

// Search runs a hybrid search. With a single requested modality the raw
// subscore ranking is returned untouched; with both, modalities run
// concurrently and results are fused under the scoring policy. If one
// modality fails the response degrades to the survivor and says so; if all
// fail the search fails.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	started := e.now()

	if err := e.validateRequest(&req); err != nil {
		return nil, err
	}

	if req.UseCache {
		if cached := e.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = e.now().Sub(started)
			return cached, nil
		}
	}

	var resp *Response
	var err error
	if len(req.Modalities) == 1 {
		resp, err = e.searchSingle(ctx, req)
	} else {
		resp, err = e.searchHybrid(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	resp.Policy = e.policy.ID()
	resp.Duration = e.now().Sub(started)

	// Degraded responses are never cached: a transient modality outage
	// must not keep serving partial results after recovery.
	if req.UseCache && resp.State != StateDegraded {
		e.storeInCache(req, resp)
	}
	return resp, nil
}

func (e *Engine) validateRequest(req *Request) error {
	if err := validateQuery(req.Query); err != nil {
		return err
	}
	req.Limit = clampLimit(req.Limit)
	if req.Threshold < 0 || req.Threshold > 1 {
		return fmt.Errorf("%w: threshold %.2f outside [0,1]", types.ErrInvalidInput, req.Threshold)
	}
	if len(req.Modalities) == 0 {
		req.Modalities = []Modality{ModalityFulltext, ModalityVector}
	}
	seen := make(map[Modality]bool, len(req.Modalities))
	for _, m := range req.Modalities {
		if m != ModalityFulltext && m != ModalityVector {
			return fmt.Errorf("%w: unknown modality %q", types.ErrInvalidInput, m)
		}
		if seen[m] {
			return fmt.Errorf("%w: duplicate modality %q", types.ErrInvalidInput, m)
		}
		seen[m] = true
	}
	return nil
}

func validateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: query cannot be empty", types.ErrInvalidInput)
	}
	if len(query) > MaxQueryLength {
		return fmt.Errorf("%w: query exceeds %d characters", types.ErrInvalidInput, MaxQueryLength)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// searchSingle bypasses fusion: the modality's own subscore is the final
// ranking.
func (e *Engine) searchSingle(ctx context.Context, req Request) (*Response, error) {
	switch req.Modalities[0] {
	case ModalityFulltext:
		text, err := e.store.SearchText(ctx, req.Query, req.Limit)
		if err != nil {
			return nil, err
		}
		results := make([]Result, len(text))
		for i, r := range text {
			results[i] = Result{
				DocumentID: r.DocumentID,
				Filename:   r.Filename,
				FTSScore:   r.Score,
				FinalScore: r.Score,
				Snippet:    r.Snippet,
			}
		}
		return &Response{Results: results, State: StateComplete}, nil

	default: // ModalityVector
		hits, err := e.SearchVector(ctx, req.Query, req.Limit, req.Threshold)
		if err != nil {
			return nil, err
		}
		// Collapse chunk hits to documents, keeping each document's
		// best chunk.
		best := make(map[int64]*Result)
		for _, h := range hits {
			if r, ok := best[h.DocumentID]; !ok || h.Similarity > r.VectorScore {
				best[h.DocumentID] = &Result{
					DocumentID:  h.DocumentID,
					Filename:    h.Filename,
					VectorScore: h.Similarity,
					FinalScore:  h.Similarity,
					Snippet:     h.Preview,
				}
			}
		}
		results := collectSorted(best, req.Limit)
		return &Response{Results: results, State: StateComplete}, nil
	}
}

type modalityOutcome struct {
	modality Modality
	text     []storage.TextResult
	vector   []VectorHit
	err      error
}

func (e *Engine) searchHybrid(ctx context.Context, req Request) (*Response, error) {
	outcomes := make(chan modalityOutcome, 2)

	// Each modality fetches extra candidates so fusion has overlap to
	// work with before the final truncation.
	fetch := req.Limit * 2

	go func() {
		text, err := e.store.SearchText(ctx, req.Query, fetch)
		select {
		case outcomes <- modalityOutcome{modality: ModalityFulltext, text: text, err: err}:
		case <-ctx.Done():
		}
	}()
	go func() {
		hits, err := e.SearchVector(ctx, req.Query, fetch, req.Threshold)
		select {
		case outcomes <- modalityOutcome{modality: ModalityVector, vector: hits, err: err}:
		case <-ctx.Done():
		}
	}()

	var text []storage.TextResult
	var vector []VectorHit
	var failures []ModalityFailure
	for i := 0; i < 2; i++ {
		select {
		case out := <-outcomes:
			if out.err != nil {
				failures = append(failures, ModalityFailure{
					Modality: out.modality,
					Kind:     types.ErrorKind(out.err),
					Message:  out.err.Error(),
				})
				continue
			}
			if out.modality == ModalityFulltext {
				text = out.text
			} else {
				vector = out.vector
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if len(failures) == 2 {
		return nil, fmt.Errorf("all search modalities failed: %s; %s", failures[0].Message, failures[1].Message)
	}

	results, err := e.fuse(ctx, text, vector, req.Limit)
	if err != nil {
		return nil, err
	}

	resp := &Response{Results: results, State: StateComplete, Degraded: failures}
	if len(failures) > 0 {
		resp.State = StateDegraded
	}
	return resp, nil
}

// fuse merges modality rankings into final document scores.
func (e *Engine) fuse(ctx context.Context, text []storage.TextResult, vector []VectorHit, limit int) ([]Result, error) {
	merged := make(map[int64]*Result)

	for _, r := range text {
		merged[r.DocumentID] = &Result{
			DocumentID: r.DocumentID,
			Filename:   r.Filename,
			FTSScore:   r.Score,
			Snippet:    r.Snippet,
		}
	}
	for _, h := range vector {
		r, ok := merged[h.DocumentID]
		if !ok {
			r = &Result{DocumentID: h.DocumentID, Filename: h.Filename}
			merged[h.DocumentID] = r
		}
		if h.Similarity > r.VectorScore {
			r.VectorScore = h.Similarity
		}
		if r.Snippet == "" {
			r.Snippet = h.Preview
		}
	}

	now := e.now()
	for id, r := range merged {
		doc, err := e.store.GetDocument(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load document %d for fusion: %w", id, err)
		}
		r.RecencyBoost = e.policy.RecencyBoost(now.Sub(doc.UploadedAt))
		r.FinalScore = e.policy.Fuse(r.FTSScore, r.VectorScore, r.RecencyBoost)
	}

	return collectSorted(merged, limit), nil
}

// collectSorted orders results by final score descending, document ID
// ascending on ties, and truncates to limit.
func collectSorted(merged map[int64]*Result, limit int) []Result {
	results := make([]Result, 0, len(merged))
	for _, r := range merged {
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		return results[i].DocumentID < results[j].DocumentID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Cache plumbing.

func (e *Engine) cacheKey(req Request) [32]byte {
	parts := make([]string, 0, len(req.Modalities)+3)
	parts = append(parts, req.Query, fmt.Sprintf("%d", req.Limit), fmt.Sprintf("%.4f", req.Threshold))
	for _, m := range req.Modalities {
		parts = append(parts, string(m))
	}
	return sha256.Sum256([]byte(strings.Join(parts, "|")))
}

func (e *Engine) checkCache(req Request) *Response {
	e.cacheMu.RLock()
	defer e.cacheMu.RUnlock()

	entry, ok := e.cache.Get(e.cacheKey(req))
	if !ok || e.now().After(entry.expiresAt) {
		return nil
	}
	cp := *entry.response
	cp.Results = append([]Result(nil), entry.response.Results...)
	return &cp
}

func (e *Engine) storeInCache(req Request, resp *Response) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	cp := *resp
	cp.Results = append([]Result(nil), resp.Results...)
	e.cache.Add(e.cacheKey(req), &cacheEntry{
		response:  &cp,
		expiresAt: e.now().Add(defaultCacheTTL),
	})
}

func preview(text string) string {
	const max = 160
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}
