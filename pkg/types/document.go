package types

import "time"

// DocumentStatus tracks a document through the ingest lifecycle.
type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
	StatusArchived   DocumentStatus = "archived"
	// StatusDeleted marks a soft-deleted document. The row survives for
	// audit purposes but the document is excluded from every search
	// surface and from duplicate detection.
	StatusDeleted DocumentStatus = "deleted"
)

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s DocumentStatus) bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusCompleted, StatusFailed, StatusArchived, StatusDeleted:
		return true
	}
	return false
}

// Category is the closed set of document categories assigned during ingest.
type Category string

const (
	CategoryContract     Category = "contract"
	CategoryInvoice      Category = "invoice"
	CategoryReport       Category = "report"
	CategoryEmail        Category = "email"
	CategoryPresentation Category = "presentation"
	CategoryOther        Category = "other"
)

// Document is a stored document and its processing state.
type Document struct {
	ID               int64          `json:"id"`
	UUID             string         `json:"uuid"`
	Filename         string         `json:"filename"`
	OriginalFilename string         `json:"original_filename"`
	FilePath         string         `json:"file_path"`
	FileSize         int64          `json:"file_size"`
	ContentType      string         `json:"content_type"`
	// ContentHash is the lowercase hex SHA-256 of the raw file bytes.
	// Empty until the ingest pipeline has hashed the document.
	ContentHash string         `json:"content_hash,omitempty"`
	Category    Category       `json:"category,omitempty"`
	Status      DocumentStatus `json:"status"`
	Content     string         `json:"content,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Tables      []Table        `json:"tables,omitempty"`
	Metadata    *Metadata      `json:"metadata,omitempty"`
	UploadedAt  time.Time      `json:"uploaded_at"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Metadata is the typed per-document metadata record. It is persisted as a
// JSON column but never treated as an open map in code.
type Metadata struct {
	Category          Category `json:"category,omitempty"`
	OriginalFilename  string   `json:"original_filename,omitempty"`
	ContentType       string   `json:"content_type,omitempty"`
	FileSize          int64    `json:"file_size,omitempty"`
	PageCount         int      `json:"page_count,omitempty"`
	ProcessingSeconds float64  `json:"processing_seconds,omitempty"`
}

// Table is a table extracted from a document, row-major.
type Table struct {
	Page    int        `json:"page,omitempty"`
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows"`
}

// ProcessingLog records one ingest operation performed on a document.
type ProcessingLog struct {
	ID         int64     `json:"id"`
	DocumentID int64     `json:"document_id"`
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
