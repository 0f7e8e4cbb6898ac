package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kansofy/docintel-mcp/pkg/types"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (or creates) the database at dbPath and applies
// pending migrations.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// withTx runs fn inside a transaction, committing on nil and rolling back
// on error.
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Document operations

const documentColumns = `id, uuid, filename, original_filename, file_path, file_size,
	content_type, content_hash, category, status, content, summary, tables, metadata,
	uploaded_at, processed_at, updated_at`

func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *types.Document) error {
	if doc.UUID == "" {
		doc.UUID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = types.StatusUploaded
	}
	if !types.ValidStatus(doc.Status) {
		return fmt.Errorf("%w: invalid status %q", types.ErrInvalidInput, doc.Status)
	}

	tables, metadata, err := marshalDocumentJSON(doc)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO documents (uuid, filename, original_filename, file_path, file_size,
			content_type, content_hash, category, status, content, summary, tables, metadata,
			uploaded_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		doc.UUID, doc.Filename, doc.OriginalFilename, doc.FilePath, doc.FileSize,
		nullString(doc.ContentType), nullString(doc.ContentHash), nullString(string(doc.Category)),
		string(doc.Status), nullString(doc.Content), nullString(doc.Summary), tables, metadata,
		now, now)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	doc.ID = id
	doc.UploadedAt = now
	doc.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) getDocumentWithQuerier(ctx context.Context, q querier, where string, arg interface{}) (*types.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents WHERE " + where
	doc, err := scanDocument(q.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: document", types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, id int64) (*types.Document, error) {
	return s.getDocumentWithQuerier(ctx, s.querier(), "id = ?", id)
}

func (s *SQLiteStorage) GetDocumentByUUID(ctx context.Context, docUUID string) (*types.Document, error) {
	return s.getDocumentWithQuerier(ctx, s.querier(), "uuid = ?", docUUID)
}

func (s *SQLiteStorage) UpdateDocument(ctx context.Context, doc *types.Document) error {
	if !types.ValidStatus(doc.Status) {
		return fmt.Errorf("%w: invalid status %q", types.ErrInvalidInput, doc.Status)
	}

	tables, metadata, err := marshalDocumentJSON(doc)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `
		UPDATE documents
		SET filename = ?, file_size = ?, content_type = ?, content_hash = ?, category = ?,
		    status = ?, content = ?, summary = ?, tables = ?, metadata = ?,
		    processed_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		doc.Filename, doc.FileSize, nullString(doc.ContentType), nullString(doc.ContentHash),
		nullString(string(doc.Category)), string(doc.Status), nullString(doc.Content),
		nullString(doc.Summary), tables, metadata, doc.ProcessedAt, now, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: document %d", types.ErrNotFound, doc.ID)
	}
	doc.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpdateDocumentStatus(ctx context.Context, id int64, status types.DocumentStatus) error {
	if !types.ValidStatus(status) {
		return fmt.Errorf("%w: invalid status %q", types.ErrInvalidInput, status)
	}
	result, err := s.db.ExecContext(ctx,
		"UPDATE documents SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: document %d", types.ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStorage) ListDocumentsByStatus(ctx context.Context, status types.DocumentStatus) ([]*types.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents WHERE status = ? ORDER BY uploaded_at, id"
	rows, err := s.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanDocuments(rows)
}

func (s *SQLiteStorage) FindDocumentsByHash(ctx context.Context, hash string, excludeID int64) ([]*types.Document, error) {
	query := "SELECT " + documentColumns + ` FROM documents
		WHERE content_hash = ? AND id != ? AND status != ? ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, hash, excludeID, string(types.StatusDeleted))
	if err != nil {
		return nil, fmt.Errorf("failed to find documents by hash: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanDocuments(rows)
}

func (s *SQLiteStorage) SoftDeleteDocument(ctx context.Context, id int64) error {
	return s.UpdateDocumentStatus(ctx, id, types.StatusDeleted)
}

// Chunk operations

func (s *SQLiteStorage) ReplaceChunks(ctx context.Context, documentID int64, chunks []*types.Chunk) error {
	return s.withTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
			return fmt.Errorf("failed to delete old chunks: %w", err)
		}

		now := time.Now().UTC()
		for _, chunk := range chunks {
			result, err := q.ExecContext(ctx, `
				INSERT INTO chunks (document_id, chunk_index, text, byte_length, chunk_hash, created_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				documentID, chunk.Index, chunk.Text, chunk.ByteLength, chunk.Hash, now)
			if err != nil {
				return fmt.Errorf("failed to insert chunk %d: %w", chunk.Index, err)
			}
			id, err := result.LastInsertId()
			if err != nil {
				return err
			}
			chunk.ID = id
			chunk.DocumentID = documentID
			chunk.CreatedAt = now
		}
		return nil
	})
}

func (s *SQLiteStorage) ListChunks(ctx context.Context, documentID int64) ([]*types.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, text, byte_length, chunk_hash, created_at
		FROM chunks WHERE document_id = ? ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []*types.Chunk
	for rows.Next() {
		var c types.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Text, &c.ByteLength, &c.Hash, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// Embedding operations

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, emb *types.Embedding) error {
	if len(emb.Vector) == 0 {
		return fmt.Errorf("%w: empty vector", types.ErrInvalidInput)
	}
	query := `
		INSERT INTO embeddings (chunk_id, vector, dimension, model, filename, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id, model) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			filename = excluded.filename,
			category = excluded.category,
			created_at = excluded.created_at
		RETURNING id
	`
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, query,
		emb.ChunkID, serializeVector(emb.Vector), len(emb.Vector), emb.Model,
		nullString(emb.Filename), nullString(string(emb.Category)), now).Scan(&emb.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	emb.Dimension = len(emb.Vector)
	emb.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) ListDocumentEmbeddings(ctx context.Context, documentID int64, model string) ([]*types.Embedding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.chunk_id, e.vector, e.dimension, e.model, e.filename, e.category, e.created_at
		FROM embeddings e
		INNER JOIN chunks c ON e.chunk_id = c.id
		WHERE c.document_id = ? AND e.model = ?
		ORDER BY c.chunk_index`, documentID, model)
	if err != nil {
		return nil, fmt.Errorf("failed to list document embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var embeddings []*types.Embedding
	for rows.Next() {
		var e types.Embedding
		var blob []byte
		var filename, category sql.NullString
		if err := rows.Scan(&e.ID, &e.ChunkID, &blob, &e.Dimension, &e.Model, &filename, &category, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Vector = deserializeVector(blob)
		e.Filename = filename.String
		e.Category = types.Category(category.String)
		embeddings = append(embeddings, &e)
	}
	return embeddings, rows.Err()
}

func (s *SQLiteStorage) ListCorpusEmbeddings(ctx context.Context, model string, excludeDocumentID int64) ([]CorpusEmbedding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.chunk_id, c.document_id, d.filename, e.vector
		FROM embeddings e
		INNER JOIN chunks c ON e.chunk_id = c.id
		INNER JOIN documents d ON c.document_id = d.id
		WHERE e.model = ? AND c.document_id != ? AND d.status = ?`,
		model, excludeDocumentID, string(types.StatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("failed to list corpus embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []CorpusEmbedding
	for rows.Next() {
		var ce CorpusEmbedding
		var blob []byte
		if err := rows.Scan(&ce.ChunkID, &ce.DocumentID, &ce.Filename, &blob); err != nil {
			return nil, err
		}
		ce.Vector = deserializeVector(blob)
		result = append(result, ce)
	}
	return result, rows.Err()
}

func (s *SQLiteStorage) ListChunksMissingEmbeddings(ctx context.Context, documentID int64, model string) ([]*types.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, c.chunk_index, c.text, c.byte_length, c.chunk_hash, c.created_at
		FROM chunks c
		LEFT JOIN embeddings e ON e.chunk_id = c.id AND e.model = ?
		WHERE c.document_id = ? AND e.id IS NULL
		ORDER BY c.chunk_index`, model, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks missing embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []*types.Chunk
	for rows.Next() {
		var c types.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Text, &c.ByteLength, &c.Hash, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// Logs and stats

func (s *SQLiteStorage) InsertProcessingLog(ctx context.Context, log *types.ProcessingLog) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO processing_logs (document_id, operation, status, message, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		log.DocumentID, log.Operation, log.Status, nullString(log.Message), log.DurationMS, now)
	if err != nil {
		return fmt.Errorf("failed to insert processing log: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	log.ID = id
	log.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) ListProcessingLogs(ctx context.Context, documentID int64) ([]*types.ProcessingLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, operation, status, message, duration_ms, created_at
		FROM processing_logs WHERE document_id = ? ORDER BY created_at, id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list processing logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []*types.ProcessingLog
	for rows.Next() {
		var l types.ProcessingLog
		var message sql.NullString
		var duration sql.NullInt64
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.Operation, &l.Status, &message, &duration, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Message = message.String
		l.DurationMS = duration.Int64
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

func (s *SQLiteStorage) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByStatus:   make(map[string]int64),
		ByCategory: make(map[string]int64),
	}

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*), COALESCE(SUM(file_size), 0) FROM documents GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to collect status stats: %w", err)
	}
	for rows.Next() {
		var status string
		var count, bytes int64
		if err := rows.Scan(&status, &count, &bytes); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stats.ByStatus[status] = count
		stats.TotalDocuments += count
		stats.TotalBytes += bytes
		if status == string(types.StatusCompleted) {
			stats.CompletedDocs = count
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	rows, err = s.db.QueryContext(ctx,
		"SELECT COALESCE(category, ''), COUNT(*) FROM documents WHERE status != ? GROUP BY category",
		string(types.StatusDeleted))
	if err != nil {
		return nil, fmt.Errorf("failed to collect category stats: %w", err)
	}
	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if category == "" {
			category = string(types.CategoryOther)
		}
		stats.ByCategory[category] += count
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&stats.ChunkCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&stats.EmbeddingCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT c.document_id) FROM embeddings e INNER JOIN chunks c ON e.chunk_id = c.id").
		Scan(&stats.EmbeddedDocs); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents_fts").Scan(&stats.IndexedDocs); err != nil {
		// A missing FTS table is reported by CheckFTS; stats stay usable.
		stats.IndexedDocs = 0
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").
		Scan(&stats.SchemaVersion); err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	return stats, nil
}

// Scan helpers

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*types.Document, error) {
	var doc types.Document
	var contentType, contentHash, category, content, summary, tables, metadata sql.NullString
	var processedAt sql.NullTime
	var status string

	err := row.Scan(
		&doc.ID, &doc.UUID, &doc.Filename, &doc.OriginalFilename, &doc.FilePath, &doc.FileSize,
		&contentType, &contentHash, &category, &status, &content, &summary, &tables, &metadata,
		&doc.UploadedAt, &processedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.ContentType = contentType.String
	doc.ContentHash = contentHash.String
	doc.Category = types.Category(category.String)
	doc.Status = types.DocumentStatus(status)
	doc.Content = content.String
	doc.Summary = summary.String
	if processedAt.Valid {
		t := processedAt.Time
		doc.ProcessedAt = &t
	}
	if tables.Valid && tables.String != "" {
		if err := json.Unmarshal([]byte(tables.String), &doc.Tables); err != nil {
			return nil, fmt.Errorf("corrupt tables column for document %d: %w", doc.ID, err)
		}
	}
	if metadata.Valid && metadata.String != "" {
		doc.Metadata = &types.Metadata{}
		if err := json.Unmarshal([]byte(metadata.String), doc.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata column for document %d: %w", doc.ID, err)
		}
	}
	return &doc, nil
}

func scanDocuments(rows *sql.Rows) ([]*types.Document, error) {
	var docs []*types.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func marshalDocumentJSON(doc *types.Document) (tables, metadata interface{}, err error) {
	tables, metadata = nil, nil
	if len(doc.Tables) > 0 {
		b, err := json.Marshal(doc.Tables)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal tables: %w", err)
		}
		tables = string(b)
	}
	if doc.Metadata != nil {
		b, err := json.Marshal(doc.Metadata)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = string(b)
	}
	return tables, metadata, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
