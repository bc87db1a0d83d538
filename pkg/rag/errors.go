package rag

import (
	"errors"
	"fmt"
)

// Sentinel errors for the retrieval/generation pipeline.
// Handlers map these to transport-level responses; optional stages
// (rewrite, expansion, rerank) absorb their own failures and never
// surface these.
var (
	// ErrEmptyDocument is returned when a document contains no indexable text.
	ErrEmptyDocument = errors.New("document is empty or whitespace-only")

	// ErrProviderUnavailable indicates the selected provider cannot serve the
	// request. The orchestrator falls back to the secondary provider if one
	// is configured.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderTimeout indicates a provider call exceeded its deadline.
	ErrProviderTimeout = errors.New("provider timeout")

	// ErrIndexSearch indicates the vector index search failed after retry.
	ErrIndexSearch = errors.New("index search failed")

	// ErrStreamInterrupted indicates the provider stream broke mid-answer.
	// Any partial text already emitted is preserved by the caller.
	ErrStreamInterrupted = errors.New("stream interrupted")

	// ErrInvalidOptions indicates the request carried an unknown option flag.
	ErrInvalidOptions = errors.New("invalid rag options")
)

// DimensionMismatchError is fatal: vectors from a different embedding model
// version must never be compared against the configured index.
type DimensionMismatchError struct {
	Model    string
	Got      int
	Expected int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: model %s produced %d dimensions, index expects %d", e.Model, e.Got, e.Expected)
}
