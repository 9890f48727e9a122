package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resilience2relief/backend/internal/taxonomy"
	"github.com/resilience2relief/backend/internal/vector"
)

func entry(segID, docID string, emb []float32, sectors ...taxonomy.Sector) vector.Entry {
	return vector.Entry{
		SegmentID:  segID,
		DocumentID: docID,
		Embedding:  emb,
		Sectors:    sectors,
		IngestedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestAddAndSearch(t *testing.T) {
	idx := NewIndex(3, "local-hash-v1")
	ctx := context.Background()

	err := idx.Add(ctx, []vector.Entry{
		entry("s1", "d1", []float32{1, 0, 0}),
		entry("s2", "d1", []float32{0, 1, 0}),
		entry("s3", "d2", []float32{0.9, 0.1, 0}),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Size())

	results, fellBack, err := idx.Search(ctx, []float32{1, 0, 0}, 2, vector.Prefilter{})
	require.NoError(t, err)
	assert.False(t, fellBack)
	require.Len(t, results, 2)
	assert.Equal(t, "s1", results[0].SegmentID)
	assert.Equal(t, "s3", results[1].SegmentID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchDeterministicTieBreak(t *testing.T) {
	idx := NewIndex(2, "local-hash-v1")
	ctx := context.Background()

	// Identical vectors produce identical scores; order must still be stable.
	require.NoError(t, idx.Add(ctx, []vector.Entry{
		entry("s_b", "d1", []float32{1, 0}),
		entry("s_a", "d2", []float32{1, 0}),
		entry("s_c", "d3", []float32{1, 0}),
	}))

	for i := 0; i < 5; i++ {
		results, _, err := idx.Search(ctx, []float32{1, 0}, 3, vector.Prefilter{})
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "s_a", results[0].SegmentID)
		assert.Equal(t, "s_b", results[1].SegmentID)
		assert.Equal(t, "s_c", results[2].SegmentID)
	}
}

func TestSearchPrefilter(t *testing.T) {
	idx := NewIndex(2, "local-hash-v1")
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []vector.Entry{
		entry("s1", "d1", []float32{1, 0}, taxonomy.SectorHousing),
		entry("s2", "d2", []float32{1, 0}, taxonomy.SectorHealth),
	}))

	results, fellBack, err := idx.Search(ctx, []float32{1, 0}, 10, vector.Prefilter{
		Sectors: []taxonomy.Sector{taxonomy.SectorHousing},
	})
	require.NoError(t, err)
	assert.False(t, fellBack)
	require.Len(t, results, 1)
	assert.Equal(t, "s1", results[0].SegmentID)
}

func TestSearchPrefilterFallback(t *testing.T) {
	idx := NewIndex(2, "local-hash-v1")
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []vector.Entry{
		entry("s1", "d1", []float32{1, 0}, taxonomy.SectorHousing),
	}))

	// Nothing matches agriculture; the search must fall back unfiltered
	// and say so.
	results, fellBack, err := idx.Search(ctx, []float32{1, 0}, 10, vector.Prefilter{
		Sectors: []taxonomy.Sector{taxonomy.SectorAgriculture},
	})
	require.NoError(t, err)
	assert.True(t, fellBack)
	require.Len(t, results, 1)
	assert.Equal(t, "s1", results[0].SegmentID)
}

func TestRemoveDocument(t *testing.T) {
	idx := NewIndex(2, "local-hash-v1")
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []vector.Entry{
		entry("s1", "d1", []float32{1, 0}),
		entry("s2", "d1", []float32{0, 1}),
		entry("s3", "d2", []float32{1, 1}),
	}))

	require.NoError(t, idx.RemoveDocument(ctx, "d1"))
	assert.Equal(t, 1, idx.Size())

	results, _, err := idx.Search(ctx, []float32{1, 0}, 10, vector.Prefilter{})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "d1", r.DocumentID)
	}

	// Removing an unknown document is a no-op.
	require.NoError(t, idx.RemoveDocument(ctx, "missing"))
	assert.Equal(t, 1, idx.Size())
}

func TestDimensionMismatch(t *testing.T) {
	idx := NewIndex(3, "local-hash-v1")
	ctx := context.Background()

	err := idx.Add(ctx, []vector.Entry{entry("s1", "d1", []float32{1, 0})})
	assert.ErrorIs(t, err, vector.ErrDimensionMismatch)
	assert.Equal(t, 0, idx.Size())

	require.NoError(t, idx.Add(ctx, []vector.Entry{entry("s1", "d1", []float32{1, 0, 0})}))

	_, _, err = idx.Search(ctx, []float32{1, 0}, 5, vector.Prefilter{})
	assert.ErrorIs(t, err, vector.ErrDimensionMismatch)
}

func TestAddUpsertsSegment(t *testing.T) {
	idx := NewIndex(2, "local-hash-v1")
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []vector.Entry{entry("s1", "d1", []float32{1, 0})}))
	require.NoError(t, idx.Add(ctx, []vector.Entry{entry("s1", "d1", []float32{0, 1})}))
	assert.Equal(t, 1, idx.Size())

	results, _, err := idx.Search(ctx, []float32{0, 1}, 1, vector.Prefilter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestConcurrentSearchAndAdd(t *testing.T) {
	idx := NewIndex(2, "local-hash-v1")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				seg := fmt.Sprintf("s_%d_%d", i, j)
				doc := fmt.Sprintf("d_%d", i)
				err := idx.Add(ctx, []vector.Entry{entry(seg, doc, []float32{1, float32(j)})})
				assert.NoError(t, err)
			}
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _, err := idx.Search(ctx, []float32{1, 0}, 5, vector.Prefilter{})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 8*50, idx.Size())
}

func TestSearchZeroK(t *testing.T) {
	idx := NewIndex(2, "local-hash-v1")

	results, fellBack, err := idx.Search(context.Background(), []float32{1, 0}, 0, vector.Prefilter{})
	require.NoError(t, err)
	assert.False(t, fellBack)
	assert.Empty(t, results)
}
