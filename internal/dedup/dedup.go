// Package dedup detects duplicate documents, exactly by content hash and
// approximately by embedding similarity.
package dedup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kansofy/docintel-mcp/internal/storage"
	"github.com/kansofy/docintel-mcp/pkg/types"
)

// Classification labels for near-duplicate matches.
const (
	ClassLikelyDuplicate   = "likely_duplicate"
	ClassPossibleDuplicate = "possible_duplicate"
	ClassSimilar           = "similar"
)

// Default near-duplicate thresholds, in display similarity [0,1].
const (
	DefaultLikelyThreshold   = 0.98
	DefaultPossibleThreshold = 0.90
)

// ExactMatch is a document sharing the exact content hash.
type ExactMatch struct {
	DocumentID int64                `json:"id"`
	UUID       string               `json:"uuid"`
	Filename   string               `json:"filename"`
	Status     types.DocumentStatus `json:"status"`
	UploadedAt time.Time            `json:"uploaded_at"`
}

// NearMatch is a document whose content is similar to the source document.
// The classification label is exposed as the match status.
type NearMatch struct {
	DocumentID int64  `json:"id"`
	Filename   string `json:"filename"`
	// Similarity is in display range [0,1], the max over all chunk pairs.
	Similarity     float64 `json:"similarity"`
	MatchingChunks int     `json:"matching_chunks"`
	Classification string  `json:"status"`
}

// Detector classifies duplicates against the stored corpus.
type Detector struct {
	store             storage.Storage
	model             string
	likelyThreshold   float64
	possibleThreshold float64
}

// Config tunes the detector. Zero thresholds fall back to defaults.
type Config struct {
	Model             string
	LikelyThreshold   float64
	PossibleThreshold float64
}

// NewDetector creates a detector reading vectors stored under cfg.Model.
func NewDetector(store storage.Storage, cfg Config) *Detector {
	d := &Detector{
		store:             store,
		model:             cfg.Model,
		likelyThreshold:   cfg.LikelyThreshold,
		possibleThreshold: cfg.PossibleThreshold,
	}
	if d.likelyThreshold == 0 {
		d.likelyThreshold = DefaultLikelyThreshold
	}
	if d.possibleThreshold == 0 {
		d.possibleThreshold = DefaultPossibleThreshold
	}
	return d
}

// CheckExactByHash returns non-deleted documents whose content hash equals
// hash, excluding excludeID. Used both as a pre-insert check (excludeID 0)
// and for stored documents.
func (d *Detector) CheckExactByHash(ctx context.Context, hash string, excludeID int64) ([]ExactMatch, error) {
	if len(hash) != 64 {
		return nil, fmt.Errorf("%w: content hash must be 64 hex characters, got %d", types.ErrInvalidInput, len(hash))
	}
	docs, err := d.store.FindDocumentsByHash(ctx, hash, excludeID)
	if err != nil {
		return nil, err
	}
	matches := make([]ExactMatch, 0, len(docs))
	for _, doc := range docs {
		matches = append(matches, ExactMatch{
			DocumentID: doc.ID,
			UUID:       doc.UUID,
			Filename:   doc.Filename,
			Status:     doc.Status,
			UploadedAt: doc.UploadedAt,
		})
	}
	return matches, nil
}

// CheckExact finds exact duplicates of a stored document.
func (d *Detector) CheckExact(ctx context.Context, documentID int64) (*types.Document, []ExactMatch, error) {
	doc, err := d.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	if doc.ContentHash == "" {
		return nil, nil, fmt.Errorf("%w: document %d has no content hash yet", types.ErrInvalidInput, documentID)
	}
	matches, err := d.CheckExactByHash(ctx, doc.ContentHash, documentID)
	if err != nil {
		return nil, nil, err
	}
	return doc, matches, nil
}

// FindNear finds near-duplicates of documentID at or above threshold, which
// is a display similarity in [0.7, 1.0]. Document-level similarity is the
// maximum over all chunk pairs between the two documents; matching chunks
// counts the candidate's chunks whose best pair clears the threshold.
func (d *Detector) FindNear(ctx context.Context, documentID int64, threshold float64) ([]NearMatch, error) {
	if threshold < 0.7 || threshold > 1.0 {
		return nil, fmt.Errorf("%w: threshold %.2f outside [0.7, 1.0]", types.ErrInvalidInput, threshold)
	}

	source, err := d.store.ListDocumentEmbeddings(ctx, documentID, d.model)
	if err != nil {
		return nil, err
	}
	if len(source) == 0 {
		// Distinguish a missing document from an unembedded one.
		if _, err := d.store.GetDocument(ctx, documentID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: document %d", types.ErrNoEmbeddings, documentID)
	}

	corpus, err := d.store.ListCorpusEmbeddings(ctx, d.model, documentID)
	if err != nil {
		return nil, err
	}

	type docAgg struct {
		filename string
		best     float64
		matching int
	}
	perDoc := make(map[int64]*docAgg)

	for _, candidate := range corpus {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Best similarity of this candidate chunk against any source chunk.
		best := -1.0
		for _, src := range source {
			cos := storage.CosineSimilarity(src.Vector, candidate.Vector)
			if cos > best {
				best = cos
			}
		}
		sim := DisplaySimilarity(best)

		agg := perDoc[candidate.DocumentID]
		if agg == nil {
			agg = &docAgg{filename: candidate.Filename}
			perDoc[candidate.DocumentID] = agg
		}
		if sim > agg.best {
			agg.best = sim
		}
		if sim >= threshold {
			agg.matching++
		}
	}

	matches := make([]NearMatch, 0, len(perDoc))
	for docID, agg := range perDoc {
		if agg.best < threshold {
			continue
		}
		matches = append(matches, NearMatch{
			DocumentID:     docID,
			Filename:       agg.filename,
			Similarity:     agg.best,
			MatchingChunks: agg.matching,
			Classification: d.classify(agg.best),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].DocumentID < matches[j].DocumentID
	})
	return matches, nil
}

func (d *Detector) classify(similarity float64) string {
	switch {
	case similarity >= d.likelyThreshold:
		return ClassLikelyDuplicate
	case similarity >= d.possibleThreshold:
		return ClassPossibleDuplicate
	default:
		return ClassSimilar
	}
}

// DisplaySimilarity maps raw cosine similarity [-1,1] onto the [0,1] range
// used in every caller-facing similarity value.
func DisplaySimilarity(cosine float64) float64 {
	return (cosine + 1) / 2
}
