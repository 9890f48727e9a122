// Package builder feeds ingested document entities into the organization
// co-occurrence graph.
package builder

import (
	"context"

	"go.uber.org/zap"

	"github.com/resilience2relief/backend/internal/kg/neo4j"
	"github.com/resilience2relief/backend/internal/storage/models"
	"github.com/resilience2relief/backend/pkg/logger"
)

type Builder struct {
	kgClient *neo4j.Client
}

func NewBuilder(kgClient *neo4j.Client) *Builder {
	return &Builder{kgClient: kgClient}
}

// BuildFromDocument records the document's organizations and their
// pairwise co-occurrence. Graph failures are logged, not fatal; the graph
// only enriches partner suggestions.
func (b *Builder) BuildFromDocument(ctx context.Context, doc *models.Document) {
	orgs := doc.Entities.Organizations
	if len(orgs) < 2 {
		return
	}

	logger.Info("Recording document organizations",
		zap.String("doc_id", doc.ID),
		zap.Int("organizations", len(orgs)),
	)

	if err := b.kgClient.RecordCoOccurrence(ctx, doc.ID, orgs); err != nil {
		logger.Warn("Failed to record co-occurrence", zap.String("doc_id", doc.ID), zap.Error(err))
	}
}

// RemoveDocument withdraws a deleted document's edge contributions.
func (b *Builder) RemoveDocument(ctx context.Context, documentID string) {
	if err := b.kgClient.RemoveDocument(ctx, documentID); err != nil {
		logger.Warn("Failed to remove document from graph", zap.String("doc_id", documentID), zap.Error(err))
	}
}
