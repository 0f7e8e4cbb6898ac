// Package hasher produces the content hashes used for exact duplicate
// detection and chunk identity. All hashes are lowercase hex SHA-256.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HexLength is the length of every hash this package produces.
const HexLength = 64

// Document hashes the raw file bytes exactly as stored, with no
// normalization. Identical bytes always hash identically; a one-byte change
// yields a different hash. An empty input is valid and hashes to the SHA-256
// of the empty string.
func Document(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Chunk hashes a chunk's identity triple. Including the document ID and
// chunk index means identical text at different positions, or in different
// documents, still yields distinct hashes, so the chunk table can carry a
// global uniqueness constraint.
func Chunk(documentID int64, index int, text string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%d:%s", documentID, index, text)))
	return hex.EncodeToString(sum[:])
}
