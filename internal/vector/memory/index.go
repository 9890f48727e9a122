// Package memory implements the segment index as an in-process cosine
// similarity store guarded by a reader/writer lock.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/resilience2relief/backend/internal/vector"
	"github.com/resilience2relief/backend/pkg/logger"
)

// Index keeps every entry in memory. Structural mutations take the write
// lock so adds and removes serialize; searches take the read lock so any
// number can run concurrently. A search racing an add may or may not see
// the new entries, but a search issued after Add returns always does.
type Index struct {
	mu              sync.RWMutex
	dim             int
	embedderVersion string
	entries         map[string]vector.Entry
	byDocument      map[string][]string
}

func NewIndex(dim int, embedderVersion string) *Index {
	return &Index{
		dim:             dim,
		embedderVersion: embedderVersion,
		entries:         make(map[string]vector.Entry),
		byDocument:      make(map[string][]string),
	}
}

func (idx *Index) Add(_ context.Context, entries []vector.Entry) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, e := range entries {
		if len(e.Embedding) != idx.dim {
			return fmt.Errorf("%w: got %d, index has %d", vector.ErrDimensionMismatch, len(e.Embedding), idx.dim)
		}
	}

	for _, e := range entries {
		if _, exists := idx.entries[e.SegmentID]; !exists {
			idx.byDocument[e.DocumentID] = append(idx.byDocument[e.DocumentID], e.SegmentID)
		}
		idx.entries[e.SegmentID] = e
	}

	logger.Debug("Index entries added", zap.Int("count", len(entries)), zap.Int("size", len(idx.entries)))
	return nil
}

func (idx *Index) RemoveDocument(_ context.Context, documentID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	segmentIDs := idx.byDocument[documentID]
	for _, id := range segmentIDs {
		delete(idx.entries, id)
	}
	delete(idx.byDocument, documentID)

	logger.Debug("Index entries removed",
		zap.String("doc_id", documentID),
		zap.Int("count", len(segmentIDs)),
	)
	return nil
}

// Search scores candidates by cosine similarity after the metadata
// prefilter. The returned bool reports whether the unfiltered fallback
// was taken because the prefilter matched nothing.
func (idx *Index) Search(_ context.Context, queryVector []float32, k int, prefilter vector.Prefilter) ([]vector.SearchResult, bool, error) {
	if k <= 0 {
		return nil, false, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(queryVector) != idx.dim {
		return nil, false, fmt.Errorf("%w: query has %d, index has %d", vector.ErrDimensionMismatch, len(queryVector), idx.dim)
	}

	candidates := idx.filterLocked(prefilter)
	fellBack := false
	if len(candidates) == 0 && !prefilter.Empty() {
		candidates = idx.filterLocked(vector.Prefilter{})
		fellBack = true
		logger.Info("Prefilter matched no entries, falling back to unfiltered search")
	}

	results := make([]vector.SearchResult, 0, len(candidates))
	for _, e := range candidates {
		results = append(results, vector.SearchResult{
			SegmentID:  e.SegmentID,
			DocumentID: e.DocumentID,
			Score:      cosine(queryVector, e.Embedding),
			IngestedAt: e.IngestedAt,
		})
	}

	// Ties break on segment id so identical corpora rank identically.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].SegmentID < results[j].SegmentID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, fellBack, nil
}

func (idx *Index) filterLocked(prefilter vector.Prefilter) []vector.Entry {
	matched := make([]vector.Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		if matchesPrefilter(e, prefilter) {
			matched = append(matched, e)
		}
	}
	return matched
}

func matchesPrefilter(e vector.Entry, p vector.Prefilter) bool {
	if len(p.Sectors) > 0 && !intersects(e.Sectors, p.Sectors) {
		return false
	}
	if len(p.Regions) > 0 && !intersects(e.Regions, p.Regions) {
		return false
	}
	if len(p.DisasterTypes) > 0 && !intersects(e.DisasterTypes, p.DisasterTypes) {
		return false
	}
	return true
}

func intersects[T comparable](a, b []T) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

func (idx *Index) EmbedderVersion() string {
	return idx.embedderVersion
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ vector.Index = (*Index)(nil)
