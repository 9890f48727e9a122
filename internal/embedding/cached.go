package embedding

import (
	"context"
	"time"

	"go.uber.org/zap"

	rediscache "github.com/resilience2relief/backend/internal/cache/redis"
	"github.com/resilience2relief/backend/pkg/logger"
	"github.com/resilience2relief/backend/pkg/utils"
)

const embeddingTTL = 24 * time.Hour

// CachedEmbedder wraps an Embedder with a redis lookaside cache. Cache
// failures degrade to a direct call, never to an error.
type CachedEmbedder struct {
	inner Embedder
	cache *rediscache.Client
}

func NewCachedEmbedder(inner Embedder, cache *rediscache.Client) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := utils.HashString(text)

	if vec, ok, err := e.cache.GetEmbedding(ctx, e.inner.Version(), hash); err == nil && ok {
		return vec, nil
	} else if err != nil {
		logger.Warn("Embedding cache read failed", zap.Error(err))
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.SetEmbedding(ctx, e.inner.Version(), hash, vec, embeddingTTL); err != nil {
		logger.Warn("Embedding cache write failed", zap.Error(err))
	}

	return vec, nil
}

func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))

	var missing []string
	var missingIdx []int
	for i, text := range texts {
		hash := utils.HashString(text)
		if vec, ok, err := e.cache.GetEmbedding(ctx, e.inner.Version(), hash); err == nil && ok {
			results[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		vecs, err := e.inner.EmbedBatch(ctx, missing)
		if err != nil {
			return nil, err
		}
		for j, vec := range vecs {
			results[missingIdx[j]] = vec
			hash := utils.HashString(missing[j])
			if err := e.cache.SetEmbedding(ctx, e.inner.Version(), hash, vec, embeddingTTL); err != nil {
				logger.Warn("Embedding cache write failed", zap.Error(err))
			}
		}
	}

	return results, nil
}

func (e *CachedEmbedder) Version() string {
	return e.inner.Version()
}

func (e *CachedEmbedder) Dimension() int {
	return e.inner.Dimension()
}

var _ Embedder = (*CachedEmbedder)(nil)
