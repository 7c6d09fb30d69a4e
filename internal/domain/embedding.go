package domain

import (
	"context"
	"math"
)

// EmbeddingMethod tags how an embedding vector was produced.
type EmbeddingMethod string

// Embedding method constants.
const (
	MethodDense  EmbeddingMethod = "dense"
	MethodSparse EmbeddingMethod = "sparse"
	MethodHybrid EmbeddingMethod = "hybrid"
)

// EmbeddingVector is a fixed-length embedding plus its provenance tag.
// Never mutated after construction.
type EmbeddingVector struct {
	Values     []float32
	Method     EmbeddingMethod
	Dimensions int
}

// NewEmbeddingVector builds a vector with Dimensions derived from the values.
func NewEmbeddingVector(values []float32, method EmbeddingMethod) EmbeddingVector {
	return EmbeddingVector{Values: values, Method: method, Dimensions: len(values)}
}

// IsZero reports whether the vector carries no values.
func (v EmbeddingVector) IsZero() bool { return len(v.Values) == 0 }

// EmbeddingResult carries the vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Vector       EmbeddingVector
	PromptTokens int
	TotalTokens  int
}

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies external provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ClampScore forces a score into [0,1]. NaN and infinities collapse to 0.
// The second return reports whether the input was out of range; callers
// log clamped values instead of propagating them.
func ClampScore(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, true
	}
	if v < 0 {
		return 0, true
	}
	if v > 1 {
		return 1, true
	}
	return v, false
}
