package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

const localVersion = "local-hash-v1"

var wordPattern = regexp.MustCompile(`[a-z0-9']+`)

// LocalEmbedder is a deterministic feature-hashing embedder. Each token is
// hashed into a bucket of the vector with a sign derived from a second
// hash, then the vector is L2-normalized so cosine scores stay in [-1, 1].
// It needs no network access and produces identical vectors for identical
// text, which is what the tests and the offline default rely on.
type LocalEmbedder struct {
	dim int
}

func NewLocalEmbedder(dim int) *LocalEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &LocalEmbedder{dim: dim}
}

func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)

	tokens := wordPattern.FindAllString(strings.ToLower(text), -1)
	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		sum := h.Sum32()

		bucket := int(sum % uint32(e.dim))
		sign := float32(1)
		if (sum>>16)&1 == 1 {
			sign = -1
		}
		vec[bucket] += sign
	}

	normalize(vec)
	return vec, nil
}

func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *LocalEmbedder) Version() string {
	return localVersion
}

func (e *LocalEmbedder) Dimension() int {
	return e.dim
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
