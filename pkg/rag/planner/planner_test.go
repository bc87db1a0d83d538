package planner

import (
	"context"
	"errors"
	"testing"

	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	generate func(prompt string) (string, error)
	prompts  []string
}

func (p *scriptedProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return "", errors.New("not used")
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	p.prompts = append(p.prompts, prompt)
	return p.generate(prompt)
}

func (p *scriptedProvider) ChatStream(ctx context.Context, history []llm.Message, options ...llm.Option) (<-chan llm.StreamChunk, error) {
	return nil, errors.New("not used")
}

func (p *scriptedProvider) Name() string { return "scripted" }

func TestBuildPlainQuestion(t *testing.T) {
	p := New(nil, logger.NewNopLogger())

	plan := p.Build(context.Background(), "what is the leave policy?", nil, false, false)

	assert.Equal(t, "what is the leave policy?", plan.Query)
	assert.Equal(t, []string{"what is the leave policy?"}, plan.Variants)
	assert.False(t, plan.Rewritten)
}

func TestBuildRewriteWithoutHistorySkipsModel(t *testing.T) {
	provider := &scriptedProvider{generate: func(string) (string, error) {
		return "should not be called", nil
	}}
	p := New(provider, logger.NewNopLogger())

	plan := p.Build(context.Background(), "how many days?", nil, true, false)

	assert.Empty(t, provider.prompts)
	assert.Equal(t, "how many days?", plan.Query)
	assert.False(t, plan.Rewritten)
}

func TestBuildRewriteResolvesReferences(t *testing.T) {
	provider := &scriptedProvider{generate: func(string) (string, error) {
		return `"How many days of annual leave do employees get?"`, nil
	}}
	p := New(provider, logger.NewNopLogger())
	history := []llm.Message{
		{Role: "user", Content: "Tell me about the leave policy"},
		{Role: "assistant", Content: "Employees get annual leave..."},
	}

	plan := p.Build(context.Background(), "how many days is that?", history, true, false)

	assert.Equal(t, "How many days of annual leave do employees get?", plan.Query)
	assert.True(t, plan.Rewritten)
	assert.Equal(t, []string{plan.Query}, plan.Variants)
}

func TestBuildRewriteFailureDegrades(t *testing.T) {
	provider := &scriptedProvider{generate: func(string) (string, error) {
		return "", errors.New("model offline")
	}}
	p := New(provider, logger.NewNopLogger())
	history := []llm.Message{{Role: "user", Content: "context"}}

	plan := p.Build(context.Background(), "raw question", history, true, false)

	assert.Equal(t, "raw question", plan.Query)
	assert.False(t, plan.Rewritten)
}

func TestBuildExpansionSanitizesAndCaps(t *testing.T) {
	provider := &scriptedProvider{generate: func(string) (string, error) {
		return "1. annual leave allowance\n- Annual Leave Allowance\n2) vacation day entitlement\n3. holiday quota rules", nil
	}}
	p := New(provider, logger.NewNopLogger())

	plan := p.Build(context.Background(), "annual leave days", nil, false, true)

	require.Len(t, plan.Variants, MaxVariants)
	assert.Equal(t, "annual leave days", plan.Variants[0])
	assert.Equal(t, "annual leave allowance", plan.Variants[1])
	assert.Equal(t, "vacation day entitlement", plan.Variants[2])
}

func TestBuildExpansionFailureDegrades(t *testing.T) {
	provider := &scriptedProvider{generate: func(string) (string, error) {
		return "", errors.New("model offline")
	}}
	p := New(provider, logger.NewNopLogger())

	plan := p.Build(context.Background(), "q", nil, false, true)

	assert.Equal(t, []string{"q"}, plan.Variants)
}
