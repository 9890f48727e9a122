package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resilience2relief/backend/internal/storage/models"
	"github.com/resilience2relief/backend/internal/taxonomy"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	c, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.InitSchema())

	return c
}

func sampleDocument(id string) (*models.Document, []models.Segment) {
	now := time.Now().UTC().Truncate(time.Second)
	doc := &models.Document{
		ID:            id,
		Filename:      id + ".txt",
		Format:        "txt",
		ContentHash:   "hash-" + id,
		DisasterTypes: []taxonomy.DisasterType{taxonomy.DisasterCyclone},
		Sectors:       []taxonomy.Sector{taxonomy.SectorHousing},
		Regions:       []taxonomy.Region{taxonomy.RegionVanuatu},
		Entities: models.Entities{
			Organizations: []string{"World Bank"},
			Amounts:       []string{"USD 25 million"},
			Dates:         []string{"March 2015"},
		},
		WordCount:  120,
		IngestedAt: now,
	}
	segments := []models.Segment{
		{ID: id + "_seg_0", DocumentID: id, Index: 0, Text: "First segment.", EndOffset: 14, CreatedAt: now},
		{ID: id + "_seg_1", DocumentID: id, Index: 1, Text: "Second segment.", StartOffset: 15, EndOffset: 30, CreatedAt: now},
	}
	return doc, segments
}

func TestInsertAndGetDocument(t *testing.T) {
	c := newTestClient(t)
	doc, segments := sampleDocument("doc1")

	require.NoError(t, c.InsertDocument(doc, segments))

	got, err := c.GetDocument("doc1")
	require.NoError(t, err)
	assert.Equal(t, doc.Filename, got.Filename)
	assert.Equal(t, doc.ContentHash, got.ContentHash)
	assert.Equal(t, doc.DisasterTypes, got.DisasterTypes)
	assert.Equal(t, doc.Sectors, got.Sectors)
	assert.Equal(t, doc.Regions, got.Regions)
	assert.Equal(t, doc.Entities, got.Entities)
	assert.Equal(t, doc.WordCount, got.WordCount)
	assert.Equal(t, doc.IngestedAt.Unix(), got.IngestedAt.Unix())
}

func TestGetDocumentMissing(t *testing.T) {
	c := newTestClient(t)

	_, err := c.GetDocument("nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestGetDocumentByHash(t *testing.T) {
	c := newTestClient(t)
	doc, segments := sampleDocument("doc1")
	require.NoError(t, c.InsertDocument(doc, segments))

	got, err := c.GetDocumentByHash("hash-doc1")
	require.NoError(t, err)
	assert.Equal(t, "doc1", got.ID)

	_, err = c.GetDocumentByHash("hash-unknown")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestInsertDuplicateIDFails(t *testing.T) {
	c := newTestClient(t)
	doc, segments := sampleDocument("doc1")
	require.NoError(t, c.InsertDocument(doc, segments))

	err := c.InsertDocument(doc, segments)
	assert.Error(t, err)
}

func TestGetSegment(t *testing.T) {
	c := newTestClient(t)
	doc, segments := sampleDocument("doc1")
	require.NoError(t, c.InsertDocument(doc, segments))

	seg, err := c.GetSegment("doc1_seg_1")
	require.NoError(t, err)
	assert.Equal(t, "doc1", seg.DocumentID)
	assert.Equal(t, 1, seg.Index)
	assert.Equal(t, "Second segment.", seg.Text)
	assert.Equal(t, 15, seg.StartOffset)
	assert.Equal(t, 30, seg.EndOffset)
}

func TestDeleteDocumentCascades(t *testing.T) {
	c := newTestClient(t)
	doc, segments := sampleDocument("doc1")
	require.NoError(t, c.InsertDocument(doc, segments))

	segmentIDs, err := c.DeleteDocument("doc1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc1_seg_0", "doc1_seg_1"}, segmentIDs)

	_, err = c.GetDocument("doc1")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	_, err = c.GetSegment("doc1_seg_0")
	assert.Error(t, err)

	count, err := c.CountSegments()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteDocumentMissing(t *testing.T) {
	c := newTestClient(t)

	_, err := c.DeleteDocument("ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListDocuments(t *testing.T) {
	c := newTestClient(t)

	for i := 0; i < 5; i++ {
		doc, segments := sampleDocument(fmt.Sprintf("doc%d", i))
		doc.ContentHash = fmt.Sprintf("hash-%d", i)
		require.NoError(t, c.InsertDocument(doc, segments))
	}

	docs, total, err := c.ListDocuments(0, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, docs, 3)

	docs, total, err = c.ListDocuments(3, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, docs, 2)
}

func TestCounts(t *testing.T) {
	c := newTestClient(t)
	doc, segments := sampleDocument("doc1")
	require.NoError(t, c.InsertDocument(doc, segments))

	docCount, err := c.CountDocuments()
	require.NoError(t, err)
	assert.Equal(t, 1, docCount)

	segCount, err := c.CountSegments()
	require.NoError(t, err)
	assert.Equal(t, 2, segCount)
}

func TestGenerationHistoryRoundTrip(t *testing.T) {
	c := newTestClient(t)

	record := &models.GenerationRecord{
		ID:           "gen1",
		Query:        "housing recovery in vanuatu",
		ProjectCount: 3,
		Grounded:     true,
		SegmentsUsed: 5,
		LatencyMS:    120,
		CreatedAt:    time.Now().UTC(),
	}
	provenance := []models.ProvenanceRecord{
		{GenerationID: "gen1", ProjectID: "p1", SegmentID: "s1", DocumentID: "d1", Score: 0.91},
		{GenerationID: "gen1", ProjectID: "p2", SegmentID: "s2", DocumentID: "d1", Score: 0.85},
	}

	require.NoError(t, c.InsertGenerationRecord(record, provenance))

	records, err := c.GetGenerationHistory(10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, record.Query, got.Query)
	assert.Equal(t, record.ProjectCount, got.ProjectCount)
	assert.True(t, got.Grounded)
	assert.Equal(t, record.SegmentsUsed, got.SegmentsUsed)
	assert.Equal(t, record.LatencyMS, got.LatencyMS)

	total, err := c.CountGenerations()
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestGenerationHistoryLimit(t *testing.T) {
	c := newTestClient(t)

	for i := 0; i < 4; i++ {
		record := &models.GenerationRecord{
			ID:           fmt.Sprintf("gen%d", i),
			Query:        fmt.Sprintf("query %d", i),
			ProjectCount: 1,
			CreatedAt:    time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, c.InsertGenerationRecord(record, nil))
	}

	records, err := c.GetGenerationHistory(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "gen3", records[0].ID)
	assert.Equal(t, "gen2", records[1].ID)
}
