package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// EmbedFunc produces a float32 embedding vector from text.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// NewOpenAIEmbedFunc returns an EmbedFunc backed by an OpenAI-compatible
// embeddings endpoint. baseURL may point at any compatible server.
func NewOpenAIEmbedFunc(apiKey, baseURL, model string) EmbedFunc {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(cfg)

	return func(ctx context.Context, text string) ([]float32, error) {
		rsp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(model),
		})
		if err != nil {
			return nil, fmt.Errorf("create embeddings: %w", err)
		}
		if len(rsp.Data) == 0 || len(rsp.Data[0].Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding response")
		}
		return rsp.Data[0].Embedding, nil
	}
}

// NewOllamaEmbedFunc returns an EmbedFunc backed by a local Ollama server.
func NewOllamaEmbedFunc(baseURL, model string) EmbedFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, text string) ([]float32, error) {
		body, err := json.Marshal(map[string]string{
			"model":  model,
			"prompt": text,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/embeddings", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("embeddings request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("embeddings request: status %d", resp.StatusCode)
		}

		var out struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if len(out.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding response")
		}
		return out.Embedding, nil
	}
}
