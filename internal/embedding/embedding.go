// Package embedding provides the pluggable text-embedding capability used
// at both index and query time. The index records which embedder version
// produced its vectors so a query embedded with a different version is
// detected instead of silently returning garbage similarities.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/resilience2relief/backend/pkg/config"
)

// Embedder turns text into a fixed-dimension vector. Implementations must
// be safe for concurrent use and deterministic for identical input within
// a single version.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
	Dimension() int
}

// NewEmbedder selects an embedder implementation from configuration.
func NewEmbedder(cfg config.EmbeddingConfig) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIEmbedder(cfg), nil
	case "local", "":
		return NewLocalEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, local)", cfg.Provider)
	}
}
