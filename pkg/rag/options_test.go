package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsFromMap(t *testing.T) {
	opts, err := OptionsFromMap(map[string]bool{
		"hybrid_search":  true,
		"auto_rewrite":   true,
		"reranking":      false,
		"cross_encoder":  false,
		"query_expansion": true,
	})
	require.NoError(t, err)
	assert.True(t, opts.HybridSearch)
	assert.True(t, opts.AutoRewrite)
	assert.True(t, opts.QueryExpansion)
	assert.False(t, opts.Reranking)
}

func TestOptionsFromMapUnknownKey(t *testing.T) {
	_, err := OptionsFromMap(map[string]bool{"semantic_boost": true})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestOptionsFromMapNil(t *testing.T) {
	opts, err := OptionsFromMap(nil)
	require.NoError(t, err)
	assert.Equal(t, Options{}, opts)
}

func TestWantsRerank(t *testing.T) {
	assert.False(t, Options{}.WantsRerank())
	assert.True(t, Options{Reranking: true}.WantsRerank())
	assert.True(t, Options{CrossEncoder: true}.WantsRerank())
}
