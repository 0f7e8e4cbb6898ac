package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kansofy/docintel-mcp/pkg/types"
)

func TestExtractPlainText(t *testing.T) {
	p := NewPlain()
	res, err := p.Extract(context.Background(), []byte("hello world"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Text)
	assert.Empty(t, res.Tables)
}

func TestExtractHonorsCharsetParameter(t *testing.T) {
	p := NewPlain()
	res, err := p.Extract(context.Background(), []byte("data"), "text/plain; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "data", res.Text)
}

func TestExtractInvalidUTF8(t *testing.T) {
	p := NewPlain()
	_, err := p.Extract(context.Background(), []byte{0xff, 0xfe, 0x00}, "text/plain")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrEncoding))
}

func TestExtractUnsupportedType(t *testing.T) {
	p := NewPlain()
	_, err := p.Extract(context.Background(), []byte("binary"), "application/pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidInput))
}

func TestExtractCSV(t *testing.T) {
	p := NewPlain()
	data := []byte("item,amount\nfreight,1200\ncustoms,300\n")
	res, err := p.Extract(context.Background(), data, "text/csv")
	require.NoError(t, err)

	require.Len(t, res.Tables, 1)
	assert.Equal(t, []string{"item", "amount"}, res.Tables[0].Headers)
	assert.Equal(t, [][]string{{"freight", "1200"}, {"customs", "300"}}, res.Tables[0].Rows)
	assert.Contains(t, res.Text, "freight 1200")
}

func TestExtractMalformedCSV(t *testing.T) {
	p := NewPlain()
	_, err := p.Extract(context.Background(), []byte("a,\"unterminated\n"), "text/csv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrEncoding))
}
