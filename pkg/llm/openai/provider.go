package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"doc-qa-be/pkg/llm"
	"doc-qa-be/pkg/rag"
)

// OpenAIProvider implements llm.Provider over the OpenAI chat API.
// A custom base URL allows OpenAI-compatible gateways.
type OpenAIProvider struct {
	client    *openai.Client
	modelName string
}

var _ llm.Provider = &OpenAIProvider{}

func NewOpenAIProvider(apiKey, modelName, baseURL string) *OpenAIProvider {
	if modelName == "" {
		modelName = openai.GPT4oMini
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(cfg),
		modelName: modelName,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) buildRequest(history []llm.Message, options *llm.Options, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == "model" {
			role = openai.ChatMessageRoleAssistant
		}
		messages[i] = openai.ChatCompletionMessage{Role: role, Content: msg.Content}
	}

	model := p.modelName
	if options.Model != "" {
		model = options.Model
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(options.Temperature),
		Stream:      stream,
	}
	if options.MaxTokens > 0 {
		req.MaxTokens = options.MaxTokens
	}
	return req
}

func (p *OpenAIProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := llm.ApplyOptions(opts...)

	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(history, options, false))
	if err != nil {
		return "", wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// ChatStream forwards completion deltas in arrival order. One goroutine
// reads the SSE stream and is its only consumer.
func (p *OpenAIProvider) ChatStream(ctx context.Context, history []llm.Message, opts ...llm.Option) (<-chan llm.StreamChunk, error) {
	options := llm.ApplyOptions(opts...)

	stream, err := p.client.CreateChatCompletionStream(ctx, p.buildRequest(history, options, true))
	if err != nil {
		return nil, wrapError(err)
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		defer stream.Close()

		// Every send races ctx so a consumer that stops reading after
		// cancellation never strands this goroutine mid-send.
		send := func(chunk llm.StreamChunk) bool {
			select {
			case out <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				send(llm.StreamChunk{Done: true})
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					send(llm.StreamChunk{Err: ctx.Err()})
					return
				}
				send(llm.StreamChunk{Err: fmt.Errorf("%w: %v", rag.ErrStreamInterrupted, err)})
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				if !send(llm.StreamChunk{Delta: delta}) {
					return
				}
			}
		}
	}()

	return out, nil
}

func wrapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: openai: %v", rag.ErrProviderTimeout, err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode < 500 {
		return fmt.Errorf("openai: %w", err)
	}
	return fmt.Errorf("%w: openai: %v", rag.ErrProviderUnavailable, err)
}
