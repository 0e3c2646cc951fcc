package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder is a deterministic offline embedder for tests and local runs.
// Each token hashes to a fixed pseudo-random direction, and the text embeds
// to the normalized sum of its token vectors: identical texts embed
// identically (self-similarity 1.0), texts sharing words score higher than
// unrelated ones, and no model files are needed.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder.
func New() *Embedder {
	return &Embedder{
		dimensions: 384, // Match all-MiniLM-L6-v2 dimensions
	}
}

// Embed produces a deterministic embedding from the token hashes.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embedding := make([]float32, m.dimensions)

	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,!?;:\"'")
		if token == "" {
			continue
		}

		h := fnv.New64a()
		h.Write([]byte(token))
		seed := h.Sum64()

		for i := 0; i < m.dimensions; i++ {
			// LCG driven by the token hash
			seed = seed*6364136223846793005 + 1442695040888963407
			embedding[i] += float32(int64(seed)) / float32(math.MaxInt64)
		}
	}

	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int {
	return m.dimensions
}

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
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
