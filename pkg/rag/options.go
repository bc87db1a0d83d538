package rag

import "fmt"

// Options controls the optional pipeline stages. Each flag toggles
// independently; composition order is fixed: rewrite -> expansion ->
// dense/sparse fan-out -> fusion -> rerank.
type Options struct {
	QueryExpansion bool `json:"query_expansion"`
	HybridSearch   bool `json:"hybrid_search"`
	Reranking      bool `json:"reranking"`
	AutoRewrite    bool `json:"auto_rewrite"`
	CrossEncoder   bool `json:"cross_encoder"`
}

// knownOptionKeys is the closed set of recognized flags. Requests carrying
// anything else are rejected at validation rather than silently ignored.
var knownOptionKeys = map[string]bool{
	"query_expansion": true,
	"hybrid_search":   true,
	"reranking":       true,
	"auto_rewrite":    true,
	"cross_encoder":   true,
}

// ValidateOptionKeys checks a raw options payload against the closed flag
// set. The request DTO decodes into a map first so unknown keys are visible.
func ValidateOptionKeys(raw map[string]bool) error {
	for key := range raw {
		if !knownOptionKeys[key] {
			return fmt.Errorf("%w: unknown flag %q", ErrInvalidOptions, key)
		}
	}
	return nil
}

// OptionsFromMap builds Options from a validated raw payload.
func OptionsFromMap(raw map[string]bool) (Options, error) {
	if err := ValidateOptionKeys(raw); err != nil {
		return Options{}, err
	}
	return Options{
		QueryExpansion: raw["query_expansion"],
		HybridSearch:   raw["hybrid_search"],
		Reranking:      raw["reranking"],
		AutoRewrite:    raw["auto_rewrite"],
		CrossEncoder:   raw["cross_encoder"],
	}, nil
}

// WantsRerank reports whether a second-pass relevance model should rescore
// the fused candidates. Reranking and CrossEncoder share one code path.
func (o Options) WantsRerank() bool {
	return o.Reranking || o.CrossEncoder
}
