package embedding

import (
	"context"
	"math"
	"strings"

	"doc-qa-be/pkg/rag"
)

// Task types passed through to providers that distinguish asymmetric
// embeddings (queries vs documents).
const (
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

// Result carries a batch of vectors plus the model identity so downstream
// consumers can validate compatibility. Vectors aligns 1:1 with the input
// texts; a rejected item (blank input) keeps its slot as nil so the batch
// continues.
type Result struct {
	Vectors    [][]float32
	Model      string
	Dimensions int
}

// Provider defines the interface for generating text embeddings. Embed is
// batched and deterministic for a fixed model version.
type Provider interface {
	Embed(ctx context.Context, texts []string, taskType string) (*Result, error)
	Model() string
	Dimensions() int
}

// normalizeVector normalizes a vector to unit length (magnitude = 1).
// Cosine distance in pgvector requires normalized vectors for accurate
// similarity.
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}

// checkDimensions rejects vectors whose length differs from the configured
// index dimensionality. Mixing model versions silently degrades ranking, so
// this is fatal rather than a warning.
func checkDimensions(model string, vec []float32, expected int) error {
	if expected > 0 && len(vec) != expected {
		return &rag.DimensionMismatchError{Model: model, Got: len(vec), Expected: expected}
	}
	return nil
}

// rejectable reports whether a batch item should be skipped instead of
// failing the whole batch.
func rejectable(text string) bool {
	return strings.TrimSpace(text) == ""
}
