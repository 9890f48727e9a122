// Package milvus backs the segment index with a remote Milvus collection
// for corpora too large to hold in process. Selected via index.backend in
// the configuration; the in-memory backend remains the default.
package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/resilience2relief/backend/internal/vector"
	"github.com/resilience2relief/backend/pkg/logger"
)

type Index struct {
	client          client.Client
	collectionName  string
	dim             int
	embedderVersion string
}

func NewIndex(endpoint, collectionName string, dim int, embedderVersion string) (*Index, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus index initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	idx := &Index{
		client:          c,
		collectionName:  collectionName,
		dim:             dim,
		embedderVersion: embedderVersion,
	}

	if err := idx.ensureCollection(context.Background()); err != nil {
		return nil, err
	}

	return idx, nil
}

func (m *Index) Close() error {
	return m.client.Close()
}

func (m *Index) ensureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Disaster recovery reference segment embeddings",
		Fields: []*entity.Field{
			{
				Name:       "segment_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.dim),
				},
			},
			{
				Name:       "document_id",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "sectors",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "256"},
			},
			{
				Name:       "regions",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "256"},
			},
			{
				Name:       "disaster_types",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "256"},
			},
			{
				Name:     "ingested_at",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.IP, 1024)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))
	return nil
}

func (m *Index) Add(ctx context.Context, entries []vector.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	segmentIDs := make([]string, len(entries))
	embeddings := make([][]float32, len(entries))
	documentIDs := make([]string, len(entries))
	sectors := make([]string, len(entries))
	regions := make([]string, len(entries))
	disasters := make([]string, len(entries))
	timestamps := make([]int64, len(entries))

	for i, e := range entries {
		if len(e.Embedding) != m.dim {
			return fmt.Errorf("%w: got %d, index has %d", vector.ErrDimensionMismatch, len(e.Embedding), m.dim)
		}
		segmentIDs[i] = e.SegmentID
		embeddings[i] = e.Embedding
		documentIDs[i] = e.DocumentID
		sectors[i] = joinTags(e.Sectors)
		regions[i] = joinTags(e.Regions)
		disasters[i] = joinTags(e.DisasterTypes)
		timestamps[i] = e.IngestedAt.Unix()
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("segment_id", segmentIDs),
		entity.NewColumnFloatVector("embedding", m.dim, embeddings),
		entity.NewColumnVarChar("document_id", documentIDs),
		entity.NewColumnVarChar("sectors", sectors),
		entity.NewColumnVarChar("regions", regions),
		entity.NewColumnVarChar("disaster_types", disasters),
		entity.NewColumnInt64("ingested_at", timestamps),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entries: %w", err)
	}

	if err := m.client.Flush(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Entries inserted into milvus", zap.Int("count", len(entries)))
	return nil
}

func (m *Index) RemoveDocument(ctx context.Context, documentID string) error {
	expr := fmt.Sprintf(`document_id == "%s"`, documentID)
	err := m.client.Delete(ctx, m.collectionName, "", expr)
	if err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}

	logger.Info("Document entries removed from milvus", zap.String("doc_id", documentID))
	return nil
}

func (m *Index) Search(ctx context.Context, queryVector []float32, k int, prefilter vector.Prefilter) ([]vector.SearchResult, bool, error) {
	results, err := m.search(ctx, queryVector, k, buildExpr(prefilter))
	if err != nil {
		return nil, false, err
	}

	if len(results) == 0 && !prefilter.Empty() {
		logger.Info("Prefilter matched no entries, falling back to unfiltered search")
		results, err = m.search(ctx, queryVector, k, "")
		if err != nil {
			return nil, false, err
		}
		return results, true, nil
	}

	return results, false, nil
}

func (m *Index) search(ctx context.Context, queryVector []float32, k int, expr string) ([]vector.SearchResult, error) {
	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"segment_id", "document_id", "ingested_at"},
		[]entity.Vector{entity.FloatVector(queryVector)},
		"embedding",
		entity.IP,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]vector.SearchResult, 0)
	for _, sr := range searchResult {
		segmentIDCol := sr.Fields.GetColumn("segment_id")
		documentIDCol := sr.Fields.GetColumn("document_id")
		ingestedAtCol := sr.Fields.GetColumn("ingested_at")

		for i := 0; i < sr.ResultCount; i++ {
			segmentID, _ := segmentIDCol.Get(i)
			documentID, _ := documentIDCol.Get(i)
			ingestedAt, _ := ingestedAtCol.Get(i)

			results = append(results, vector.SearchResult{
				SegmentID:  segmentID.(string),
				DocumentID: documentID.(string),
				Score:      float64(sr.Scores[i]),
				IngestedAt: time.Unix(ingestedAt.(int64), 0),
			})
		}
	}

	return results, nil
}

// buildExpr renders the prefilter as a milvus boolean expression over the
// comma-joined tag columns.
func buildExpr(p vector.Prefilter) string {
	var clauses []string
	for _, s := range p.Sectors {
		clauses = append(clauses, fmt.Sprintf(`sectors like "%%%s%%"`, s))
	}
	for _, r := range p.Regions {
		clauses = append(clauses, fmt.Sprintf(`regions like "%%%s%%"`, r))
	}
	for _, d := range p.DisasterTypes {
		clauses = append(clauses, fmt.Sprintf(`disaster_types like "%%%s%%"`, d))
	}
	return strings.Join(clauses, " || ")
}

func joinTags[T ~string](tags []T) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

// Size reports the collection's row count so restarts against a
// populated collection see the real corpus size.
func (m *Index) Size() int {
	stats, err := m.client.GetCollectionStatistics(context.Background(), m.collectionName)
	if err != nil {
		logger.Warn("Failed to read collection statistics", zap.Error(err))
		return 0
	}
	n, err := strconv.Atoi(stats["row_count"])
	if err != nil {
		return 0
	}
	return n
}

func (m *Index) EmbedderVersion() string {
	return m.embedderVersion
}

var _ vector.Index = (*Index)(nil)
