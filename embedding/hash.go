package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// HashEmbedder generates deterministic unit vectors from a text hash. It has
// no external dependencies and identical inputs always produce identical
// vectors, which makes it the default for local development and tests.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a hash-based embedder. A non-positive dims selects
// 384, matching common sentence-transformer output sizes.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &HashEmbedder{dimensions: dims}
}

// Embed creates a deterministic embedding from text.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))

	// Use the hash as seed for an LCG stream mapped into [-1, 1].
	seed := h.Sum64()
	vec := make([]float32, e.dimensions)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

// Dimensions returns the embedding size.
func (e *HashEmbedder) Dimensions() int { return e.dimensions }

// normalize converts the vector to unit length.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
