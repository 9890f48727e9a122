// Package vector defines the segment index contract shared by the
// in-memory and Milvus backends.
package vector

import (
	"context"
	"errors"
	"time"

	"github.com/resilience2relief/backend/internal/taxonomy"
)

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Entry is one indexed segment: its embedding plus the denormalized
// metadata used for prefiltering before any vector comparison.
type Entry struct {
	SegmentID     string
	DocumentID    string
	Embedding     []float32
	Sectors       []taxonomy.Sector
	Regions       []taxonomy.Region
	DisasterTypes []taxonomy.DisasterType
	IngestedAt    time.Time
}

// Prefilter narrows search candidates by metadata intersection. Empty
// slices impose no constraint.
type Prefilter struct {
	Sectors       []taxonomy.Sector
	Regions       []taxonomy.Region
	DisasterTypes []taxonomy.DisasterType
}

func (p Prefilter) Empty() bool {
	return len(p.Sectors) == 0 && len(p.Regions) == 0 && len(p.DisasterTypes) == 0
}

// SearchResult is one scored candidate. Score is cosine similarity, higher
// is better.
type SearchResult struct {
	SegmentID  string
	DocumentID string
	Score      float64
	IngestedAt time.Time
}

// Index is the segment vector index. Add and Remove serialize against each
// other; Search runs concurrently with both and is side-effect-free.
// When the prefilter matches zero entries, Search falls back to an
// unfiltered pass rather than returning empty, and reports the fallback.
type Index interface {
	Add(ctx context.Context, entries []Entry) error
	RemoveDocument(ctx context.Context, documentID string) error
	Search(ctx context.Context, queryVector []float32, k int, prefilter Prefilter) ([]SearchResult, bool, error)
	Size() int
	EmbedderVersion() string
}
