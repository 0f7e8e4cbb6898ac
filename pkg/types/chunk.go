package types

import "time"

// Chunk is an immutable span of extracted document text. Reprocessing a
// document deletes its chunks and creates a fresh set; individual chunks are
// never updated in place.
type Chunk struct {
	ID         int64     `json:"id"`
	DocumentID int64     `json:"document_id"`
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	ByteLength int       `json:"byte_length"`
	// Hash is hex(sha256("{document_id}:{index}:{text}")), unique across
	// the entire chunk table.
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}

// Embedding is a stored vector for one chunk under one model version.
// A chunk may carry embeddings for several model versions at once; new
// versions supersede old ones at query time rather than overwrite them.
type Embedding struct {
	ID        int64     `json:"id"`
	ChunkID   int64     `json:"chunk_id"`
	Vector    []float32 `json:"-"`
	Dimension int       `json:"dimension"`
	Model     string    `json:"model"`
	// Filename and Category are denormalized document snapshots kept with
	// the vector so search hits can be rendered without a join.
	Filename  string    `json:"filename,omitempty"`
	Category  Category  `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
