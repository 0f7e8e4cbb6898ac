package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kansofy/docintel-mcp/pkg/types"
)

func TestCompileFTSQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single term", "shipping", `"shipping"`},
		{"bare terms implicit and", "shipping manifest", `"shipping" "manifest"`},
		{"quoted phrase", `"bill of lading"`, `"bill of lading"`},
		{"explicit and", "cargo AND freight", `"cargo" AND "freight"`},
		{"or operator", "cargo OR freight", `"cargo" OR "freight"`},
		{"not operator", "cargo NOT freight", `"cargo" NOT "freight"`},
		{"wildcard prefix", "ship*", `"ship"*`},
		{"field scoped", "filename:report", `filename : "report"`},
		{"field scoped wildcard", "content:invoi*", `content : "invoi"*`},
		{"unknown field is literal", "owner:alice", `"owner:alice"`},
		{"lowercase and is a term", "cargo and freight", `"cargo" "and" "freight"`},
		{"quote escaped", `say "hi there" now`, `"say" "hi there" "now"`},
		{"leading operator dropped", "AND cargo", `"cargo"`},
		{"trailing operator dropped", "cargo AND", `"cargo"`},
		{"leading not dropped", "NOT cargo", `"cargo"`},
		{"injection characters quoted", "x); DROP TABLE--", `"x);" "DROP" "TABLE--"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := compileFTSQuery(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileFTSQueryEmpty(t *testing.T) {
	for _, input := range []string{"", "   ", "AND OR"} {
		_, err := compileFTSQuery(input)
		require.Error(t, err, "input %q", input)
		assert.True(t, errors.Is(err, types.ErrInvalidInput))
	}
}

func completedDocument(t *testing.T, s *SQLiteStorage, filename, content string) *types.Document {
	t.Helper()
	ctx := context.Background()
	doc := newTestDocument(filename)
	require.NoError(t, s.CreateDocument(ctx, doc))
	doc.Status = types.StatusCompleted
	doc.Content = content
	require.NoError(t, s.UpdateDocument(ctx, doc))
	return doc
}

func TestFTSRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	doc := completedDocument(t, s, "manifest.txt", "container cargo manifest for the eastbound voyage")
	require.NoError(t, s.UpsertFTSEntry(ctx, doc))

	results, err := s.SearchText(ctx, "cargo", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, doc.ID, results[0].DocumentID)
	assert.Equal(t, "manifest.txt", results[0].Filename)
	assert.Greater(t, results[0].Score, 0.0)
	assert.LessOrEqual(t, results[0].Score, 1.0)
	assert.Contains(t, results[0].Snippet, "cargo")
}

func TestFTSZeroResultsIsNotAnError(t *testing.T) {
	s := newTestStorage(t)
	results, err := s.SearchText(context.Background(), "nonexistentterm", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFTSDeleteRemovesEntry(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	doc := completedDocument(t, s, "gone.txt", "ephemeral searchable text")
	require.NoError(t, s.UpsertFTSEntry(ctx, doc))

	require.NoError(t, s.DeleteFTSEntry(ctx, doc.ID))
	results, err := s.SearchText(ctx, "ephemeral", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFTSUpsertIsIdempotent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	doc := completedDocument(t, s, "twice.txt", "duplicated index entry check")
	require.NoError(t, s.UpsertFTSEntry(ctx, doc))
	require.NoError(t, s.UpsertFTSEntry(ctx, doc))

	results, err := s.SearchText(ctx, "duplicated", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestFTSFilenameFieldScope(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	a := completedDocument(t, s, "quarterly.txt", "plain words here")
	b := completedDocument(t, s, "other.txt", "quarterly figures inside content")
	require.NoError(t, s.UpsertFTSEntry(ctx, a))
	require.NoError(t, s.UpsertFTSEntry(ctx, b))

	results, err := s.SearchText(ctx, "filename:quarterly", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, a.ID, results[0].DocumentID)
}

func TestFTSRankOrdering(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	heavy := completedDocument(t, s, "heavy.txt", "freight freight freight freight appears constantly freight")
	light := completedDocument(t, s, "light.txt", "freight mentioned once among many other unrelated boring words about weather")
	require.NoError(t, s.UpsertFTSEntry(ctx, heavy))
	require.NoError(t, s.UpsertFTSEntry(ctx, light))

	results, err := s.SearchText(ctx, "freight", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, heavy.ID, results[0].DocumentID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestCheckFTS(t *testing.T) {
	s := newTestStorage(t)
	require.NoError(t, s.CheckFTS(context.Background()))
}
