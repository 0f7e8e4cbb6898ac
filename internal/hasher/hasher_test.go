package hasher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentDeterministic(t *testing.T) {
	data := []byte("quarterly shipping manifest")
	h1 := Document(data)
	h2 := Document(data)
	assert.Equal(t, h1, h2)
	require.Len(t, h1, HexLength)
}

func TestDocumentSensitiveToSingleByte(t *testing.T) {
	a := Document([]byte("invoice 1001"))
	b := Document([]byte("invoice 1002"))
	assert.NotEqual(t, a, b)
}

func TestDocumentEmptyInput(t *testing.T) {
	// SHA-256 of the empty string.
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Document(nil))
	assert.Equal(t, Document(nil), Document([]byte{}))
}

func TestChunkIdentityTriple(t *testing.T) {
	base := Chunk(1, 0, "same text")

	assert.Equal(t, base, Chunk(1, 0, "same text"))
	assert.NotEqual(t, base, Chunk(2, 0, "same text"), "different document")
	assert.NotEqual(t, base, Chunk(1, 1, "same text"), "different index")
	assert.NotEqual(t, base, Chunk(1, 0, "other text"), "different text")
	assert.Len(t, base, HexLength)
}
