package storage

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/kansofy/docintel-mcp/pkg/types"
)

// SearchText runs a full-text query against the documents index. The raw
// query is compiled to FTS5 MATCH syntax first, so caller input can never
// inject raw FTS operators. Scores are BM25 normalized to [0,1]; zero hits
// is a successful empty result, not an error.
func (s *SQLiteStorage) SearchText(ctx context.Context, query string, limit int) ([]TextResult, error) {
	compiled, err := compileFTSQuery(query)
	if err != nil {
		return nil, err
	}

	sqlQuery := `
		SELECT documents_fts.docid, d.filename,
		       bm25(documents_fts) AS score,
		       snippet(documents_fts, 2, '', '', '…', 16) AS snip
		FROM documents_fts
		INNER JOIN documents d ON d.id = documents_fts.docid
		WHERE documents_fts MATCH ?
		AND d.status = ?
		ORDER BY score LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, sqlQuery, compiled, string(types.StatusCompleted), limit)
	if err != nil {
		return nil, ftsError(err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]TextResult, 0, limit)
	for rows.Next() {
		var r TextResult
		var bm25 float64
		if err := rows.Scan(&r.DocumentID, &r.Filename, &bm25, &r.Snippet); err != nil {
			return nil, err
		}
		// BM25 scores from FTS5 are negative, lower is better. Normalize
		// to a positive relevance in [0,1].
		r.Score = 1.0 / (1.0 + math.Abs(bm25)/50.0)
		results = append(results, r)
	}
	return results, rows.Err()
}

// UpsertFTSEntry replaces the index row for doc. Callers (internal/index)
// invoke this only for completed documents.
func (s *SQLiteStorage) UpsertFTSEntry(ctx context.Context, doc *types.Document) error {
	return s.withTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, "DELETE FROM documents_fts WHERE docid = ?", doc.ID); err != nil {
			return ftsError(err)
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO documents_fts (docid, filename, content, metadata, summary)
			VALUES (?, ?, ?, ?, ?)`,
			doc.ID, doc.Filename, doc.Content, ftsMetadataText(doc), doc.Summary)
		if err != nil {
			return ftsError(err)
		}
		return nil
	})
}

// DeleteFTSEntry removes a document from the index.
func (s *SQLiteStorage) DeleteFTSEntry(ctx context.Context, documentID int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents_fts WHERE docid = ?", documentID); err != nil {
		return ftsError(err)
	}
	return nil
}

// ClearFTS empties the index, the first step of a rebuild.
func (s *SQLiteStorage) ClearFTS(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents_fts"); err != nil {
		return ftsError(err)
	}
	return nil
}

// CheckFTS verifies the index table exists and is queryable.
func (s *SQLiteStorage) CheckFTS(ctx context.Context) error {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents_fts").Scan(&n); err != nil {
		return ftsError(err)
	}
	return nil
}

// ftsMetadataText flattens the searchable metadata fields into one column.
func ftsMetadataText(doc *types.Document) string {
	parts := make([]string, 0, 3)
	if doc.Category != "" {
		parts = append(parts, string(doc.Category))
	}
	if doc.ContentType != "" {
		parts = append(parts, doc.ContentType)
	}
	if doc.OriginalFilename != "" && doc.OriginalFilename != doc.Filename {
		parts = append(parts, doc.OriginalFilename)
	}
	return strings.Join(parts, " ")
}

func ftsError(err error) error {
	if err != nil && strings.Contains(err.Error(), "no such table: documents_fts") {
		return fmt.Errorf("%w: %v", types.ErrIndexUnavailable, err)
	}
	return err
}

// Query compilation.
//
// The caller-facing grammar supports bare terms (implicitly ANDed), quoted
// phrases, AND/OR/NOT operators, a trailing * wildcard for prefix matching,
// and field:value scoping over the index columns. Everything else is treated
// as literal text: each term is emitted as a quoted FTS5 string so operator
// characters inside terms cannot reach the engine unescaped.

var ftsColumns = map[string]bool{
	"filename": true,
	"content":  true,
	"metadata": true,
	"summary":  true,
}

func compileFTSQuery(raw string) (string, error) {
	tokens := tokenizeQuery(raw)
	if len(tokens) == 0 {
		return "", fmt.Errorf("%w: empty search query", types.ErrInvalidInput)
	}

	var parts []string
	prevWasOperator := true // suppresses a leading operator
	for _, tok := range tokens {
		switch {
		case !tok.phrase && (tok.text == "AND" || tok.text == "OR"):
			if prevWasOperator {
				continue // dangling operator, drop it
			}
			parts = append(parts, tok.text)
			prevWasOperator = true
		case !tok.phrase && tok.text == "NOT":
			if len(parts) == 0 {
				continue // NOT needs a left operand in FTS5
			}
			parts = append(parts, "NOT")
			prevWasOperator = true
		default:
			parts = append(parts, compileTerm(tok))
			prevWasOperator = false
		}
	}

	// A trailing binary operator has no right operand.
	for len(parts) > 0 {
		last := parts[len(parts)-1]
		if last == "AND" || last == "OR" || last == "NOT" {
			parts = parts[:len(parts)-1]
			continue
		}
		break
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("%w: query contains no searchable terms", types.ErrInvalidInput)
	}
	return strings.Join(parts, " "), nil
}

type queryToken struct {
	text   string
	phrase bool // came from double quotes
}

func tokenizeQuery(raw string) []queryToken {
	var tokens []queryToken
	var current strings.Builder
	inQuotes := false

	flush := func(phrase bool) {
		if current.Len() > 0 {
			tokens = append(tokens, queryToken{text: current.String(), phrase: phrase})
			current.Reset()
		}
	}

	for _, r := range raw {
		switch {
		case r == '"':
			flush(inQuotes)
			inQuotes = !inQuotes
		case !inQuotes && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			flush(false)
		default:
			current.WriteRune(r)
		}
	}
	flush(inQuotes)
	return tokens
}

func compileTerm(tok queryToken) string {
	text := tok.text

	// Field scoping applies to bare terms only; inside a phrase a colon
	// is literal text.
	var column string
	if !tok.phrase {
		if idx := strings.Index(text, ":"); idx > 0 {
			field := strings.ToLower(text[:idx])
			if ftsColumns[field] && idx+1 < len(text) {
				column = field
				text = text[idx+1:]
			}
		}
	}

	// A trailing * requests prefix matching.
	prefix := false
	if !tok.phrase && strings.HasSuffix(text, "*") && len(text) > 1 {
		prefix = true
		text = strings.TrimSuffix(text, "*")
	}

	quoted := `"` + strings.ReplaceAll(text, `"`, `""`) + `"`
	if prefix {
		quoted += "*"
	}
	if column != "" {
		return column + " : " + quoted
	}
	return quoted
}
