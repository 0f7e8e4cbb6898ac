package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kansofy/docintel-mcp/internal/storage"
	"github.com/kansofy/docintel-mcp/pkg/types"
)

func newFixture(t *testing.T) (*Sync, storage.Storage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewSync(store), store
}

func addDocument(t *testing.T, store storage.Storage, filename, content string, status types.DocumentStatus) *types.Document {
	t.Helper()
	ctx := context.Background()
	doc := &types.Document{
		Filename:         filename,
		OriginalFilename: filename,
		FilePath:         "/uploads/" + filename,
		FileSize:         int64(len(content)),
	}
	require.NoError(t, store.CreateDocument(ctx, doc))
	doc.Status = status
	doc.Content = content
	require.NoError(t, store.UpdateDocument(ctx, doc))
	return doc
}

func TestCompletedDocumentBecomesSearchable(t *testing.T) {
	sync, store := newFixture(t)
	ctx := context.Background()

	doc := addDocument(t, store, "report.txt", "annual revenue report", types.StatusCompleted)

	// Not searchable until the completion event fires.
	results, err := store.SearchText(ctx, "revenue", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, sync.OnDocumentCompleted(ctx, doc))
	results, err = store.SearchText(ctx, "revenue", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, doc.ID, results[0].DocumentID)
}

func TestNonCompletedDocumentRejected(t *testing.T) {
	sync, store := newFixture(t)
	ctx := context.Background()

	doc := addDocument(t, store, "wip.txt", "still processing", types.StatusProcessing)
	err := sync.OnDocumentCompleted(ctx, doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidInput))
}

func TestDeletionRemovesFromIndexBeforeReturn(t *testing.T) {
	sync, store := newFixture(t)
	ctx := context.Background()

	doc := addDocument(t, store, "gone.txt", "soon to vanish entirely", types.StatusCompleted)
	require.NoError(t, sync.OnDocumentCompleted(ctx, doc))

	require.NoError(t, store.SoftDeleteDocument(ctx, doc.ID))
	require.NoError(t, sync.OnDocumentDeleted(ctx, doc.ID))

	results, err := store.SearchText(ctx, "vanish", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRebuildIndexesOnlyCompleted(t *testing.T) {
	sync, store := newFixture(t)
	ctx := context.Background()

	done := addDocument(t, store, "done.txt", "finalized cargo ledger", types.StatusCompleted)
	addDocument(t, store, "pending.txt", "cargo ledger draft", types.StatusUploaded)
	addDocument(t, store, "failed.txt", "cargo ledger broken", types.StatusFailed)

	indexed, err := sync.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, indexed)

	results, err := store.SearchText(ctx, "cargo", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, done.ID, results[0].DocumentID)
}

func TestRebuildIsIdempotent(t *testing.T) {
	sync, store := newFixture(t)
	ctx := context.Background()

	doc := addDocument(t, store, "stable.txt", "idempotent rebuild target", types.StatusCompleted)
	require.NoError(t, sync.OnDocumentCompleted(ctx, doc))

	for i := 0; i < 3; i++ {
		indexed, err := sync.Rebuild(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, indexed)
	}

	results, err := store.SearchText(ctx, "idempotent", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
