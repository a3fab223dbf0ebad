package valueobjects

import (
	"fmt"
	"math"

	"engram-backend/pkg/errors"
)

// Embedding is a dense vector representation of memory content. A nil
// embedding means the vector is stale and awaiting an asynchronous refresh.
type Embedding []float32

// NewEmbedding validates an embedding against the expected dimension
func NewEmbedding(values []float32, dimension int) (Embedding, error) {
	if len(values) != dimension {
		return nil, errors.NewValidation(
			fmt.Sprintf("embedding must have dimension %d, got %d", dimension, len(values)))
	}
	for _, v := range values {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, errors.NewValidation("embedding values must be finite")
		}
	}
	out := make(Embedding, len(values))
	copy(out, values)
	return out, nil
}

// IsStale reports whether the vector is missing and awaiting refresh
func (e Embedding) IsStale() bool { return len(e) == 0 }

// Cosine returns the cosine similarity between two embeddings, 0 when either
// is stale or zero-length.
func (e Embedding) Cosine(other Embedding) float64 {
	if len(e) == 0 || len(e) != len(other) {
		return 0
	}
	var dot, normA, normB float64
	for i := range e {
		dot += float64(e[i]) * float64(other[i])
		normA += float64(e[i]) * float64(e[i])
		normB += float64(other[i]) * float64(other[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Distance is cosine distance, the ordering used for vector candidate ranking
func (e Embedding) Distance(other Embedding) float64 {
	return 1 - e.Cosine(other)
}
