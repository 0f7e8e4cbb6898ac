// Package storage persists documents, chunks, embeddings, and the full-text
// index in SQLite. Two drivers are supported behind build tags: the pure Go
// modernc driver (default) and mattn/go-sqlite3 with the sqlite-vec
// extension for SQL-side vector distance.
package storage

import (
	"context"

	"github.com/kansofy/docintel-mcp/pkg/types"
)

// TextResult is one full-text search hit at document granularity.
type TextResult struct {
	DocumentID int64
	Filename   string
	// Score is the normalized BM25 relevance in [0,1].
	Score   float64
	Snippet string
}

// VectorResult is one vector search hit at chunk granularity.
type VectorResult struct {
	ChunkID    int64
	DocumentID int64
	ChunkIndex int
	Filename   string
	// Similarity is the raw cosine similarity in [-1,1]. Callers map it
	// to display range.
	Similarity float64
	Text       string
}

// CorpusEmbedding is a stored vector with enough context to aggregate
// similarity per document.
type CorpusEmbedding struct {
	ChunkID    int64
	DocumentID int64
	Filename   string
	Vector     []float32
}

// Stats summarizes corpus state for the statistics and health tools.
type Stats struct {
	TotalDocuments int64
	ByStatus       map[string]int64
	ByCategory     map[string]int64
	TotalBytes     int64
	ChunkCount     int64
	EmbeddingCount int64
	EmbeddedDocs   int64
	CompletedDocs  int64
	IndexedDocs    int64
	SchemaVersion  string
}

// Storage is the persistence interface for the document store.
type Storage interface {
	// Documents
	CreateDocument(ctx context.Context, doc *types.Document) error
	GetDocument(ctx context.Context, id int64) (*types.Document, error)
	GetDocumentByUUID(ctx context.Context, uuid string) (*types.Document, error)
	UpdateDocument(ctx context.Context, doc *types.Document) error
	UpdateDocumentStatus(ctx context.Context, id int64, status types.DocumentStatus) error
	ListDocumentsByStatus(ctx context.Context, status types.DocumentStatus) ([]*types.Document, error)
	// FindDocumentsByHash returns non-deleted documents whose content
	// hash equals hash, excluding excludeID (pass 0 to exclude nothing).
	FindDocumentsByHash(ctx context.Context, hash string, excludeID int64) ([]*types.Document, error)
	SoftDeleteDocument(ctx context.Context, id int64) error

	// Chunks. ReplaceChunks atomically deletes a document's chunk set
	// and inserts the new one; chunk IDs are filled in on return.
	ReplaceChunks(ctx context.Context, documentID int64, chunks []*types.Chunk) error
	ListChunks(ctx context.Context, documentID int64) ([]*types.Chunk, error)

	// Embeddings
	UpsertEmbedding(ctx context.Context, emb *types.Embedding) error
	ListDocumentEmbeddings(ctx context.Context, documentID int64, model string) ([]*types.Embedding, error)
	// ListCorpusEmbeddings returns all vectors under model for completed,
	// non-deleted documents, excluding excludeDocumentID.
	ListCorpusEmbeddings(ctx context.Context, model string, excludeDocumentID int64) ([]CorpusEmbedding, error)
	// ListChunksMissingEmbeddings returns the document's chunks that have
	// no embedding under model. Chunks already embedded are never returned,
	// so backfill paths cannot touch existing vectors.
	ListChunksMissingEmbeddings(ctx context.Context, documentID int64, model string) ([]*types.Chunk, error)

	// Search
	SearchText(ctx context.Context, query string, limit int) ([]TextResult, error)
	SearchVector(ctx context.Context, queryVector []float32, model string, limit int, minCosine float64) ([]VectorResult, error)

	// Full-text index maintenance, driven by internal/index hooks.
	UpsertFTSEntry(ctx context.Context, doc *types.Document) error
	DeleteFTSEntry(ctx context.Context, documentID int64) error
	ClearFTS(ctx context.Context) error
	// CheckFTS verifies the index is present and queryable.
	CheckFTS(ctx context.Context) error

	// Logs and stats
	InsertProcessingLog(ctx context.Context, log *types.ProcessingLog) error
	ListProcessingLogs(ctx context.Context, documentID int64) ([]*types.ProcessingLog, error)
	Stats(ctx context.Context) (*Stats, error)

	Close() error
}
