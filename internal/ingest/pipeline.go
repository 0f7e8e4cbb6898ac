// Package ingest runs documents through the processing pipeline: extract,
// hash, chunk, embed, categorize, persist, and publish index events. Every
// status transition a document goes through originates here.
package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kansofy/docintel-mcp/internal/chunker"
	"github.com/kansofy/docintel-mcp/internal/embedder"
	"github.com/kansofy/docintel-mcp/internal/extract"
	"github.com/kansofy/docintel-mcp/internal/hasher"
	"github.com/kansofy/docintel-mcp/internal/index"
	"github.com/kansofy/docintel-mcp/internal/storage"
	"github.com/kansofy/docintel-mcp/pkg/types"
)

// ErrPipelineBusy is returned when a batch operation is already running.
var ErrPipelineBusy = fmt.Errorf("%w: pipeline already running", types.ErrInvalidInput)

// Result summarizes one document's trip through the pipeline.
type Result struct {
	DocumentID int64         `json:"document_id"`
	Chunks     int           `json:"chunks"`
	Embedded   int           `json:"embedded"`
	Duplicate  bool          `json:"duplicate"`
	Category   types.Category `json:"category,omitempty"`
	Duration   time.Duration `json:"-"`
}

// BatchStats summarizes a pending-documents run.
type BatchStats struct {
	Processed  int           `json:"processed"`
	Duplicates int           `json:"duplicates"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"-"`
}

// UpdateStats summarizes an embedding backfill run.
type UpdateStats struct {
	TotalDocuments       int           `json:"total_documents"`
	AlreadyHadEmbeddings int           `json:"already_had_embeddings"`
	DocumentsUpdated     int           `json:"documents_updated"`
	ChunksEmbedded       int           `json:"chunks_embedded"`
	Failed               int           `json:"failed"`
	Duration             time.Duration `json:"-"`
}

// Pipeline orchestrates document processing.
type Pipeline struct {
	store     storage.Storage
	embed     embedder.Embedder
	extractor extract.Extractor
	chunks    *chunker.Chunker
	index     *index.Sync
	batchSize int
	lock      pipelineLock
}

// Config wires pipeline collaborators.
type Config struct {
	Store     storage.Storage
	Embedder  embedder.Embedder
	Extractor extract.Extractor
	Chunker   *chunker.Chunker
	Index     *index.Sync
	BatchSize int
}

// NewPipeline builds the pipeline. BatchSize controls how many chunk texts
// go to the embedder per call.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Store == nil || cfg.Embedder == nil || cfg.Index == nil {
		return nil, fmt.Errorf("%w: pipeline requires store, embedder, and index", types.ErrConfiguration)
	}
	if cfg.Extractor == nil {
		cfg.Extractor = extract.NewPlain()
	}
	if cfg.Chunker == nil {
		cfg.Chunker = chunker.Default()
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > embedder.MaxBatchSize {
		cfg.BatchSize = 32
	}
	return &Pipeline{
		store:     cfg.Store,
		embed:     cfg.Embedder,
		extractor: cfg.Extractor,
		chunks:    cfg.Chunker,
		index:     cfg.Index,
		batchSize: cfg.BatchSize,
	}, nil
}

// ProcessDocument runs one document through the full pipeline. On failure
// the document is marked failed with a processing log entry and the error is
// returned; other documents are unaffected.
func (p *Pipeline) ProcessDocument(ctx context.Context, documentID int64) (*Result, error) {
	started := time.Now()

	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == types.StatusDeleted {
		return nil, fmt.Errorf("%w: document %d is deleted", types.ErrNotFound, documentID)
	}

	if err := p.store.UpdateDocumentStatus(ctx, doc.ID, types.StatusProcessing); err != nil {
		return nil, err
	}

	result, err := p.process(ctx, doc)
	if err != nil {
		p.recordFailure(doc.ID, "process", err, time.Since(started))
		return nil, err
	}
	result.Duration = time.Since(started)

	p.recordLog(doc.ID, "process", "success",
		fmt.Sprintf("%d chunks, %d embedded", result.Chunks, result.Embedded), result.Duration)
	return result, nil
}

func (p *Pipeline) process(ctx context.Context, doc *types.Document) (*Result, error) {
	started := time.Now()

	data, err := os.ReadFile(doc.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read document file: %w", err)
	}

	// Hashing and extraction are independent; run them concurrently.
	var contentHash string
	var extracted *extract.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		contentHash = hasher.Document(data)
		return nil
	})
	g.Go(func() error {
		var err error
		extracted, err = p.extractor.Extract(gctx, data, doc.ContentType)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Exact-duplicate gate before any expensive work. The duplicate is
	// flagged and parked as failed; it never reaches the index.
	dups, err := p.store.FindDocumentsByHash(ctx, contentHash, doc.ID)
	if err != nil {
		return nil, err
	}
	if len(dups) > 0 {
		doc.ContentHash = contentHash
		doc.Status = types.StatusFailed
		if err := p.store.UpdateDocument(ctx, doc); err != nil {
			return nil, err
		}
		p.recordLog(doc.ID, "duplicate_check", "error",
			fmt.Sprintf("exact duplicate of document %d", dups[0].ID), 0)
		return &Result{DocumentID: doc.ID, Duplicate: true}, nil
	}

	category := categorize(extracted.Text, doc.Filename)

	spans := p.chunks.Split(extracted.Text)
	chunks := make([]*types.Chunk, len(spans))
	for i, span := range spans {
		chunks[i] = &types.Chunk{
			Index:      span.Index,
			Text:       span.Text,
			ByteLength: len(span.Text),
			Hash:       hasher.Chunk(doc.ID, span.Index, span.Text),
		}
	}
	if err := p.store.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return nil, err
	}

	embedded, err := p.embedChunks(ctx, chunks, doc.Filename, category)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc.ContentHash = contentHash
	doc.Category = category
	doc.Content = extracted.Text
	doc.Summary = summarize(extracted.Text)
	doc.Tables = extracted.Tables
	doc.FileSize = int64(len(data))
	doc.Metadata = &types.Metadata{
		Category:          category,
		OriginalFilename:  doc.OriginalFilename,
		ContentType:       doc.ContentType,
		FileSize:          int64(len(data)),
		PageCount:         extracted.PageCount,
		ProcessingSeconds: time.Since(started).Seconds(),
	}
	doc.ProcessedAt = &now
	doc.Status = types.StatusCompleted
	if err := p.store.UpdateDocument(ctx, doc); err != nil {
		return nil, err
	}

	// Publish completion: the document becomes searchable here.
	if err := p.index.OnDocumentCompleted(ctx, doc); err != nil {
		return nil, err
	}

	return &Result{
		DocumentID: doc.ID,
		Chunks:     len(chunks),
		Embedded:   embedded,
		Category:   category,
	}, nil
}

// embedChunks generates and stores embeddings in batches.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []*types.Chunk, filename string, category types.Category) (int, error) {
	embedded := 0
	for start := 0; start < len(chunks); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return embedded, err
		}

		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		resp, err := p.embed.GenerateBatch(ctx, embedder.BatchRequest{Texts: texts})
		if err != nil {
			return embedded, fmt.Errorf("embed batch at chunk %d: %w", start, err)
		}

		for i, emb := range resp.Embeddings {
			if err := p.store.UpsertEmbedding(ctx, &types.Embedding{
				ChunkID:  batch[i].ID,
				Vector:   emb.Vector,
				Model:    p.embed.Model(),
				Filename: filename,
				Category: category,
			}); err != nil {
				return embedded, err
			}
			embedded++
		}
	}
	return embedded, nil
}

// ProcessPending processes every uploaded document. Only one batch run may
// be active; concurrent calls fail fast with ErrPipelineBusy. Failures are
// isolated per document.
func (p *Pipeline) ProcessPending(ctx context.Context) (*BatchStats, error) {
	if !p.lock.TryAcquire() {
		return nil, ErrPipelineBusy
	}
	defer p.lock.Release()

	started := time.Now()
	docs, err := p.store.ListDocumentsByStatus(ctx, types.StatusUploaded)
	if err != nil {
		return nil, err
	}

	stats := &BatchStats{}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			stats.Duration = time.Since(started)
			return stats, err
		}

		result, err := p.ProcessDocument(ctx, doc.ID)
		switch {
		case err != nil:
			log.Printf("ingest: document %d failed: %v", doc.ID, err)
			stats.Failed++
		case result.Duplicate:
			stats.Duplicates++
		default:
			stats.Processed++
		}
	}
	stats.Duration = time.Since(started)
	return stats, nil
}

// UpdateEmbeddings backfills embeddings for completed documents missing
// vectors under the current model. Only chunks without a current-model
// embedding are embedded; existing vectors are never touched. Cancellation
// between batches keeps already-committed work; failures are isolated per
// document.
func (p *Pipeline) UpdateEmbeddings(ctx context.Context) (*UpdateStats, error) {
	if !p.lock.TryAcquire() {
		return nil, ErrPipelineBusy
	}
	defer p.lock.Release()

	started := time.Now()
	docs, err := p.store.ListDocumentsByStatus(ctx, types.StatusCompleted)
	if err != nil {
		return nil, err
	}

	stats := &UpdateStats{TotalDocuments: len(docs)}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			stats.Duration = time.Since(started)
			return stats, err
		}

		chunks, err := p.store.ListChunksMissingEmbeddings(ctx, doc.ID, p.embed.Model())
		if err != nil {
			stats.Failed++
			continue
		}
		if len(chunks) == 0 {
			stats.AlreadyHadEmbeddings++
			continue
		}
		embedded, err := p.embedChunks(ctx, chunks, doc.Filename, doc.Category)
		stats.ChunksEmbedded += embedded
		if err != nil {
			log.Printf("ingest: embedding backfill for document %d failed: %v", doc.ID, err)
			p.recordFailure(doc.ID, "update_embeddings", err, time.Since(started))
			stats.Failed++
			if ctx.Err() != nil {
				stats.Duration = time.Since(started)
				return stats, ctx.Err()
			}
			continue
		}
		if embedded > 0 {
			stats.DocumentsUpdated++
		}
		p.recordLog(doc.ID, "update_embeddings", "success",
			fmt.Sprintf("%d chunks embedded", embedded), time.Since(started))
	}
	stats.Duration = time.Since(started)
	return stats, nil
}

// DeleteDocument soft-deletes a document and removes it from the search
// index before returning.
func (p *Pipeline) DeleteDocument(ctx context.Context, documentID int64) error {
	if err := p.store.SoftDeleteDocument(ctx, documentID); err != nil {
		return err
	}
	return p.index.OnDocumentDeleted(ctx, documentID)
}

// ArchiveDocument moves a completed document into the archived quiescent
// state. Archived documents leave the default search scope but stay
// retrievable by direct lookup.
func (p *Pipeline) ArchiveDocument(ctx context.Context, documentID int64) error {
	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Status != types.StatusCompleted {
		return fmt.Errorf("%w: only completed documents can be archived, document %d is %q",
			types.ErrInvalidInput, documentID, doc.Status)
	}
	if err := p.store.UpdateDocumentStatus(ctx, documentID, types.StatusArchived); err != nil {
		return err
	}
	return p.index.OnDocumentArchived(ctx, documentID)
}

func (p *Pipeline) recordFailure(documentID int64, operation string, cause error, duration time.Duration) {
	if err := p.store.UpdateDocumentStatus(context.Background(), documentID, types.StatusFailed); err != nil {
		log.Printf("ingest: failed to mark document %d failed: %v", documentID, err)
	}
	p.recordLog(documentID, operation, "error", cause.Error(), duration)
}

func (p *Pipeline) recordLog(documentID int64, operation, status, message string, duration time.Duration) {
	err := p.store.InsertProcessingLog(context.Background(), &types.ProcessingLog{
		DocumentID: documentID,
		Operation:  operation,
		Status:     status,
		Message:    message,
		DurationMS: duration.Milliseconds(),
	})
	if err != nil {
		log.Printf("ingest: failed to record processing log for document %d: %v", documentID, err)
	}
}
