package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// ApplyOptions folds the given options over the defaults.
func ApplyOptions(opts ...Option) *Options {
	options := &Options{Temperature: 0.7}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// StreamChunk is one increment of a streamed completion. A chunk carries
// either a token delta, a terminal error, or Done. The channel is closed
// after the terminal chunk.
type StreamChunk struct {
	Delta string
	Done  bool
	Err   error
}

// Provider defines the contract for any LLM backend. Concrete variants are
// cloud-hosted or locally-hosted models; both must support synchronous
// completion and token streaming.
type Provider interface {
	// Chat sends a chat history to the model and returns the full response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)

	// ChatStream sends a chat history and returns a channel of token
	// deltas in arrival order. The channel has exactly one terminal chunk
	// (Done or Err) and is closed afterwards. Cancelling ctx stops
	// consumption of the underlying provider stream.
	ChatStream(ctx context.Context, history []Message, options ...Option) (<-chan StreamChunk, error)

	// Name returns the provider tag ("openai", "ollama").
	Name() string
}
