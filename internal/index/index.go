// Package index keeps the full-text index in lockstep with document
// lifecycle events. Index membership is an application decision: the ingest
// pipeline publishes completion and deletion events here, and this package
// is the only writer of the documents_fts table. There are no database
// triggers; a document becomes searchable when its completion hook runs and
// stops being searchable when its deletion hook runs.
package index

import (
	"context"
	"fmt"
	"log"

	"github.com/kansofy/docintel-mcp/internal/storage"
	"github.com/kansofy/docintel-mcp/pkg/types"
)

// Sync applies document lifecycle events to the full-text index.
type Sync struct {
	store storage.Storage
}

// NewSync creates the index synchronizer.
func NewSync(store storage.Storage) *Sync {
	return &Sync{store: store}
}

// OnDocumentCompleted indexes a document that has finished processing.
// Only completed documents may enter the index.
func (s *Sync) OnDocumentCompleted(ctx context.Context, doc *types.Document) error {
	if doc.Status != types.StatusCompleted {
		return fmt.Errorf("%w: cannot index document %d with status %q",
			types.ErrInvalidInput, doc.ID, doc.Status)
	}
	if err := s.store.UpsertFTSEntry(ctx, doc); err != nil {
		return fmt.Errorf("index document %d: %w", doc.ID, err)
	}
	return nil
}

// OnDocumentDeleted removes a document from the index. The entry is gone
// before this returns, so no later search can surface the document.
func (s *Sync) OnDocumentDeleted(ctx context.Context, documentID int64) error {
	if err := s.store.DeleteFTSEntry(ctx, documentID); err != nil {
		return fmt.Errorf("unindex document %d: %w", documentID, err)
	}
	return nil
}

// OnDocumentArchived removes an archived document from the index. Archived
// documents are out of the default search scope; direct lookup still works.
func (s *Sync) OnDocumentArchived(ctx context.Context, documentID int64) error {
	if err := s.store.DeleteFTSEntry(ctx, documentID); err != nil {
		return fmt.Errorf("unindex archived document %d: %w", documentID, err)
	}
	return nil
}

// Rebuild drops every index entry and reindexes all completed documents.
// This is the recovery path for a corrupt or inconsistent index.
func (s *Sync) Rebuild(ctx context.Context) (int, error) {
	if err := s.store.ClearFTS(ctx); err != nil {
		return 0, fmt.Errorf("clear index: %w", err)
	}

	docs, err := s.store.ListDocumentsByStatus(ctx, types.StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("list completed documents: %w", err)
	}

	indexed := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		if err := s.store.UpsertFTSEntry(ctx, doc); err != nil {
			log.Printf("rebuild: failed to index document %d: %v", doc.ID, err)
			continue
		}
		indexed++
	}
	return indexed, nil
}

// Check reports whether the index is present and queryable.
func (s *Sync) Check(ctx context.Context) error {
	return s.store.CheckFTS(ctx)
}
