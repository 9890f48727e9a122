// Package retriever turns a user query into a ranked, deduplicated set of
// reference segments.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/resilience2relief/backend/internal/embedding"
	"github.com/resilience2relief/backend/internal/storage/models"
	"github.com/resilience2relief/backend/internal/storage/sqlite"
	"github.com/resilience2relief/backend/internal/taxonomy"
	"github.com/resilience2relief/backend/internal/vector"
	"github.com/resilience2relief/backend/pkg/logger"
)

var (
	// ErrNoRelevantContent signals the index holds nothing for the query,
	// filtered or otherwise.
	ErrNoRelevantContent = errors.New("no relevant reference content found")

	// ErrEmbeddingVersionMismatch signals the configured embedder does not
	// match the one that built the index.
	ErrEmbeddingVersionMismatch = errors.New("embedder version does not match index")
)

// Filters narrows retrieval candidates. All fields optional.
type Filters struct {
	Sectors       []taxonomy.Sector
	Regions       []taxonomy.Region
	DisasterTypes []taxonomy.DisasterType
}

// Result is one retrieved segment joined with its source text and
// document metadata.
type Result struct {
	Segment  models.Segment
	Document models.Document
	Score    float64
}

type Retriever struct {
	index           vector.Index
	embedder        embedding.Embedder
	db              *sqlite.Client
	topK            int
	overfetchFactor int
	perDocumentCap  int
}

func New(index vector.Index, embedder embedding.Embedder, db *sqlite.Client, topK, overfetchFactor, perDocumentCap int) *Retriever {
	if topK <= 0 {
		topK = 8
	}
	if overfetchFactor <= 0 {
		overfetchFactor = 3
	}
	if perDocumentCap <= 0 {
		perDocumentCap = 2
	}
	return &Retriever{
		index:           index,
		embedder:        embedder,
		db:              db,
		topK:            topK,
		overfetchFactor: overfetchFactor,
		perDocumentCap:  perDocumentCap,
	}
}

// Retrieve embeds the query and searches the index, overfetching so the
// per-document cap still leaves a full result set. The fellBack flag
// reports that the metadata prefilter matched nothing and the search ran
// unfiltered.
func (r *Retriever) Retrieve(ctx context.Context, query string, filters Filters) ([]Result, bool, error) {
	if v := r.index.EmbedderVersion(); v != "" && v != r.embedder.Version() {
		return nil, false, fmt.Errorf("%w: index built with %q, configured %q",
			ErrEmbeddingVersionMismatch, v, r.embedder.Version())
	}

	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, false, fmt.Errorf("failed to embed query: %w", err)
	}

	prefilter := vector.Prefilter{
		Sectors:       filters.Sectors,
		Regions:       filters.Regions,
		DisasterTypes: filters.DisasterTypes,
	}

	candidates, fellBack, err := r.index.Search(ctx, queryVector, r.topK*r.overfetchFactor, prefilter)
	if err != nil {
		return nil, false, fmt.Errorf("failed to search index: %w", err)
	}
	if len(candidates) == 0 {
		return nil, fellBack, ErrNoRelevantContent
	}

	// Equal scores rank by document recency, newer first, then segment id
	// for a stable order.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if !candidates[i].IngestedAt.Equal(candidates[j].IngestedAt) {
			return candidates[i].IngestedAt.After(candidates[j].IngestedAt)
		}
		return candidates[i].SegmentID < candidates[j].SegmentID
	})

	perDoc := make(map[string]int)
	results := make([]Result, 0, r.topK)
	for _, c := range candidates {
		if perDoc[c.DocumentID] >= r.perDocumentCap {
			continue
		}

		seg, err := r.db.GetSegment(c.SegmentID)
		if err != nil {
			logger.Warn("Indexed segment missing from store", zap.String("segment_id", c.SegmentID))
			continue
		}
		doc, err := r.db.GetDocument(c.DocumentID)
		if err != nil {
			logger.Warn("Indexed document missing from store", zap.String("doc_id", c.DocumentID))
			continue
		}

		perDoc[c.DocumentID]++
		results = append(results, Result{Segment: *seg, Document: *doc, Score: c.Score})
		if len(results) == r.topK {
			break
		}
	}

	if len(results) == 0 {
		return nil, fellBack, ErrNoRelevantContent
	}

	logger.Info("Retrieval complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(results)),
		zap.Bool("filter_fallback", fellBack),
	)

	return results, fellBack, nil
}
