package factory

import (
	"fmt"
	"sync"

	"doc-qa-be/pkg/llm"
	"doc-qa-be/pkg/llm/ollama"
	"doc-qa-be/pkg/llm/openai"
)

// Known provider tags. The set is closed: requests naming anything else are
// rejected at validation, never at call time.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// IsKnownProvider reports whether tag names a supported provider kind.
func IsKnownProvider(tag string) bool {
	switch tag {
	case ProviderOpenAI, ProviderOllama:
		return true
	}
	return false
}

// Config carries the provider credentials and defaults from app config.
type Config struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	OllamaBaseURL string
	OllamaModel   string
}

// NewProvider builds the provider for a validated tag.
func NewProvider(tag string, cfg Config) (llm.Provider, error) {
	switch tag {
	case ProviderOllama:
		return ollama.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel), nil
	case ProviderOpenAI:
		return openai.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", tag)
	}
}

// Registry resolves request-selected providers from a fixed config. It
// caches constructed providers since they are stateless HTTP clients.
type Registry struct {
	cfg       Config
	mu        sync.Mutex
	providers map[string]llm.Provider
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg, providers: make(map[string]llm.Provider)}
}

// Get returns the provider for tag, constructing it on first use.
func (r *Registry) Get(tag string) (llm.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[tag]; ok {
		return p, nil
	}
	p, err := NewProvider(tag, r.cfg)
	if err != nil {
		return nil, err
	}
	r.providers[tag] = p
	return p, nil
}
