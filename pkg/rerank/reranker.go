package rerank

import "context"

// Candidate is one fused retrieval result offered for second-pass scoring.
type Candidate struct {
	ID      string
	Content string
	Score   float64 // initial fused score, for logging
}

// Result pairs a candidate ID with its cross-encoder relevance score.
type Result struct {
	ID    string
	Score float64
}

// Reranker scores (query, passage) pairs with a cross-encoder-style
// relevance model. Results come back sorted by score descending. Reranking
// is an optimization: on error, callers fall back to the fused order.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate) ([]Result, error)
	ModelName() string
}
