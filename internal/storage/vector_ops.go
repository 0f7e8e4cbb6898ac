package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/kansofy/docintel-mcp/pkg/types"
)

// SearchVector finds the chunks most similar to queryVector under the given
// model, restricted to completed documents. minCosine is a raw cosine
// threshold in [-1,1]; results come back sorted by similarity descending.
func (s *SQLiteStorage) SearchVector(ctx context.Context, queryVector []float32, model string, limit int, minCosine float64) ([]VectorResult, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", types.ErrInvalidInput)
	}
	if limit <= 0 {
		return []VectorResult{}, nil
	}

	// SQL-side distance when sqlite-vec is compiled in, Go fallback
	// otherwise.
	if VectorExtensionAvailable {
		return s.searchVectorOptimized(ctx, queryVector, model, limit, minCosine)
	}
	return s.searchVectorFallback(ctx, queryVector, model, limit, minCosine)
}

func (s *SQLiteStorage) searchVectorOptimized(ctx context.Context, queryVector []float32, model string, limit int, minCosine float64) ([]VectorResult, error) {
	blob := serializeVector(queryVector)

	// vec_distance_cosine returns distance; similarity = 1 - distance.
	query := `
		SELECT c.id, c.document_id, c.chunk_index, d.filename, c.text,
		       1.0 - vec_distance_cosine(e.vector, ?) AS similarity
		FROM embeddings e
		INNER JOIN chunks c ON e.chunk_id = c.id
		INNER JOIN documents d ON c.document_id = d.id
		WHERE e.model = ? AND e.dimension = ? AND d.status = ?
		AND (1.0 - vec_distance_cosine(e.vector, ?)) >= ?
		ORDER BY similarity DESC LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query,
		blob, model, len(queryVector), string(types.StatusCompleted), blob, minCosine, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, limit)
	for rows.Next() {
		var r VectorResult
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.ChunkIndex, &r.Filename, &r.Text, &r.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan vector result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// searchVectorFallback loads candidate vectors and ranks them in Go. Used
// by purego builds where no vector extension is available.
func (s *SQLiteStorage) searchVectorFallback(ctx context.Context, queryVector []float32, model string, limit int, minCosine float64) ([]VectorResult, error) {
	query := `
		SELECT c.id, c.document_id, c.chunk_index, d.filename, c.text, e.vector
		FROM embeddings e
		INNER JOIN chunks c ON e.chunk_id = c.id
		INNER JOIN documents d ON c.document_id = d.id
		WHERE e.model = ? AND e.dimension = ? AND d.status = ?
	`
	rows, err := s.db.QueryContext(ctx, query, model, len(queryVector), string(types.StatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := rankCandidates(rows, queryVector, minCosine)
	if err != nil {
		return nil, err
	}

	if limit > len(candidates) {
		limit = len(candidates)
	}
	return candidates[:limit], nil
}

func rankCandidates(rows *sql.Rows, queryVector []float32, minCosine float64) ([]VectorResult, error) {
	var candidates []VectorResult
	for rows.Next() {
		var r VectorResult
		var blob []byte
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.ChunkIndex, &r.Filename, &r.Text, &blob); err != nil {
			return nil, err
		}

		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue // dimension mismatch, skip
		}

		r.Similarity = cosineSimilarity(queryVector, vector)
		if r.Similarity < minCosine {
			continue
		}
		candidates = append(candidates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Similarity descending, chunk ID ascending on ties for stable output.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].ChunkID < candidates[j].ChunkID
	})
	return candidates, nil
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
