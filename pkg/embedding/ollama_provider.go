package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"doc-qa-be/pkg/rag"
)

// OllamaProvider implements Provider for local Ollama models
// (e.g. nomic-embed-text).
type OllamaProvider struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

func NewOllamaProvider(baseURL, model string, dimensions int) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	return &OllamaProvider{
		baseURL:    baseURL,
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *OllamaProvider) Model() string   { return p.model }
func (p *OllamaProvider) Dimensions() int { return p.dimensions }

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed generates one vector per input. Blank items are skipped (nil slot)
// so a single malformed input does not fail the batch. Timeouts are retried
// with bounded exponential backoff.
func (p *OllamaProvider) Embed(ctx context.Context, texts []string, taskType string) (*Result, error) {
	// taskType is ignored for Ollama models, kept for interface compatibility
	result := &Result{
		Vectors:    make([][]float32, len(texts)),
		Model:      p.model,
		Dimensions: p.dimensions,
	}

	for i, text := range texts {
		if rejectable(text) {
			continue
		}

		vec, err := p.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		if err := checkDimensions(p.model, vec, p.dimensions); err != nil {
			return nil, err
		}
		result.Vectors[i] = normalizeVector(vec)
	}

	return result, nil
}

func (p *OllamaProvider) embedOne(ctx context.Context, text string) ([]float32, error) {
	operation := func() ([]float32, error) {
		vec, err := p.callAPI(ctx, text)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %v", rag.ErrProviderTimeout, err)
			}
			return nil, backoff.Permanent(err)
		}
		return vec, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
}

func (p *OllamaProvider) callAPI(ctx context.Context, text string) ([]float32, error) {
	reqBody := ollamaEmbeddingRequest{Model: p.model, Prompt: text}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/embeddings", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embedding error: %s", string(bodyBytes))
	}

	var ollamaResp ollamaEmbeddingResponse
	if err := json.Unmarshal(bodyBytes, &ollamaResp); err != nil {
		return nil, err
	}

	values := make([]float32, len(ollamaResp.Embedding))
	for i, v := range ollamaResp.Embedding {
		values[i] = float32(v)
	}
	return values, nil
}
