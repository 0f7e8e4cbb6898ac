package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/kansofy/docintel-mcp/internal/chunker"
	"github.com/kansofy/docintel-mcp/internal/config"
	"github.com/kansofy/docintel-mcp/internal/dedup"
	"github.com/kansofy/docintel-mcp/internal/embedder"
	"github.com/kansofy/docintel-mcp/internal/index"
	"github.com/kansofy/docintel-mcp/internal/ingest"
	"github.com/kansofy/docintel-mcp/internal/query"
	"github.com/kansofy/docintel-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "docintel-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	embed    embedder.Embedder
	index    *index.Sync
	detector *dedup.Detector
	pipeline *ingest.Pipeline
	engine   *query.Engine
}

// NewServer wires the full application from configuration: storage, the
// shared embedder, the ingest pipeline, the duplicate detector, and the
// query engine, then registers every tool.
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// A single embedder instance is shared by the pipeline and the query
	// engine, so embeddings cached during ingest serve later queries.
	emb, err := newEmbedder(cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	spans, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	sync := index.NewSync(store)

	pipeline, err := ingest.NewPipeline(ingest.Config{
		Store:     store,
		Embedder:  emb,
		Chunker:   spans,
		Index:     sync,
		BatchSize: cfg.Embedding.BatchSize,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	detector := dedup.NewDetector(store, dedup.Config{
		Model:             emb.Model(),
		LikelyThreshold:   cfg.Dedup.LikelyThreshold,
		PossibleThreshold: cfg.Dedup.PossibleThreshold,
	})

	policy := query.DefaultPolicy()
	policy.FTSWeight = cfg.Scoring.FTSWeight
	policy.VectorWeight = cfg.Scoring.VectorWeight
	policy.RecencyWeight = cfg.Scoring.RecencyWeight
	policy.RecencyCutoff = time.Duration(cfg.Scoring.RecencyCutoffD) * 24 * time.Hour

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		storage:  store,
		embed:    emb,
		index:    sync,
		detector: detector,
		pipeline: pipeline,
		engine:   query.NewEngine(store, emb, policy),
	}

	s.registerTools()
	return s, nil
}

// newEmbedder builds the provider from configuration; an unset provider
// defers to environment-based auto-detection.
func newEmbedder(cfg *config.Config) (embedder.Embedder, error) {
	if cfg.Embedding.Provider == "" {
		return embedder.NewFromEnv()
	}
	return embedder.New(embedder.Config{
		Provider:  cfg.Embedding.Provider,
		APIKey:    apiKeyFor(cfg.Embedding.Provider),
		ModelPath: cfg.Embedding.ModelPath,
		CacheSize: cfg.Embedding.CacheSize,
	})
}

func apiKeyFor(provider string) string {
	switch strings.ToLower(provider) {
	case embedder.ProviderJina:
		return os.Getenv("JINA_API_KEY")
	case embedder.ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	defer func() { _ = s.embed.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchDocumentsTool(), s.handleSearchDocuments)
	s.mcp.AddTool(vectorSearchTool(), s.handleVectorSearch)
	s.mcp.AddTool(hybridSearchTool(), s.handleHybridSearch)
	s.mcp.AddTool(findDuplicatesTool(), s.handleFindDuplicates)
	s.mcp.AddTool(checkDuplicateByHashTool(), s.handleCheckDuplicateByHash)
	s.mcp.AddTool(archiveDocumentTool(), s.handleArchiveDocument)
	s.mcp.AddTool(updateEmbeddingsTool(), s.handleUpdateEmbeddings)
	s.mcp.AddTool(processPendingDocumentsTool(), s.handleProcessPendingDocuments)
	s.mcp.AddTool(getDocumentStatisticsTool(), s.handleGetDocumentStatistics)
	s.mcp.AddTool(getSystemHealthTool(), s.handleGetSystemHealth)
}
