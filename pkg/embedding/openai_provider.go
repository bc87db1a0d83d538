package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	openai "github.com/sashabaranov/go-openai"

	"doc-qa-be/pkg/rag"
)

// OpenAIProvider implements Provider over the OpenAI embeddings API.
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	dimensions int
}

func NewOpenAIProvider(apiKey, model string, dimensions int) *OpenAIProvider {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIProvider{
		client:     openai.NewClient(apiKey),
		model:      model,
		dimensions: dimensions,
	}
}

func (p *OpenAIProvider) Model() string   { return p.model }
func (p *OpenAIProvider) Dimensions() int { return p.dimensions }

// Embed sends one batched request for all non-blank inputs and maps the
// returned vectors back to their original slots.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string, taskType string) (*Result, error) {
	result := &Result{
		Vectors:    make([][]float32, len(texts)),
		Model:      p.model,
		Dimensions: p.dimensions,
	}

	// Collect accepted items, remembering original positions.
	var inputs []string
	var positions []int
	for i, text := range texts {
		if rejectable(text) {
			continue
		}
		inputs = append(inputs, text)
		positions = append(positions, i)
	}
	if len(inputs) == 0 {
		return result, nil
	}

	operation := func() (openai.EmbeddingResponse, error) {
		resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(p.model),
			Input: inputs,
		})
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return openai.EmbeddingResponse{}, fmt.Errorf("%w: %v", rag.ErrProviderTimeout, err)
			}
			return openai.EmbeddingResponse{}, backoff.Permanent(err)
		}
		return resp, nil
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(inputs))
	}

	for j, data := range resp.Data {
		vec := data.Embedding
		if err := checkDimensions(p.model, vec, p.dimensions); err != nil {
			return nil, err
		}
		result.Vectors[positions[j]] = normalizeVector(vec)
	}

	return result, nil
}
