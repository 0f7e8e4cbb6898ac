// Package extract defines the boundary between raw uploaded bytes and the
// structured text the rest of the system operates on. Rich format support
// (PDF, DOCX) plugs in behind the Extractor interface; the built-in
// extractor handles plain text and CSV, which is enough for the ingest
// pipeline and its tests.
package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kansofy/docintel-mcp/pkg/types"
)

// Result is the structured output of extraction.
type Result struct {
	Text      string
	Tables    []types.Table
	PageCount int
}

// Extractor turns raw document bytes into text and tables.
type Extractor interface {
	// Extract decodes data. contentType is the declared MIME type and
	// may be empty.
	Extract(ctx context.Context, data []byte, contentType string) (*Result, error)
}

// Plain extracts UTF-8 text and CSV tables.
type Plain struct{}

// NewPlain returns the built-in plain-text extractor.
func NewPlain() *Plain { return &Plain{} }

func (p *Plain) Extract(ctx context.Context, data []byte, contentType string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: document bytes are not valid UTF-8", types.ErrEncoding)
	}

	mime := baseMIME(contentType)
	switch mime {
	case "text/csv":
		return extractCSV(data)
	case "", "text/plain", "text/markdown", "application/json":
		return &Result{Text: string(data), PageCount: 1}, nil
	default:
		if strings.HasPrefix(mime, "text/") {
			return &Result{Text: string(data), PageCount: 1}, nil
		}
		return nil, fmt.Errorf("%w: unsupported content type %q", types.ErrInvalidInput, contentType)
	}
}

func extractCSV(data []byte) (*Result, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: malformed CSV: %v", types.ErrEncoding, err)
	}
	if len(records) == 0 {
		return &Result{PageCount: 1}, nil
	}

	table := types.Table{Headers: records[0]}
	if len(records) > 1 {
		table.Rows = records[1:]
	}

	// The flattened cell text keeps CSV content reachable by chunking
	// and full-text search.
	var sb strings.Builder
	for _, record := range records {
		sb.WriteString(strings.Join(record, " "))
		sb.WriteString("\n")
	}

	return &Result{
		Text:      sb.String(),
		Tables:    []types.Table{table},
		PageCount: 1,
	}, nil
}

func baseMIME(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
