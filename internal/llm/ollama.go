package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const ollamaTimeout = 60 * time.Second

// OllamaBackend talks to a local Ollama server.
type OllamaBackend struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaBackend creates a backend for the Ollama server at baseURL.
func NewOllamaBackend(baseURL, model string) *OllamaBackend {
	return &OllamaBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: ollamaTimeout},
	}
}

func (b *OllamaBackend) Name() string  { return "ollama" }
func (b *OllamaBackend) Model() string { return b.model }

// Available probes the Ollama server and checks that the configured model is
// installed. Model names match ignoring the tag, so "llama3.2" accepts
// "llama3.2:latest".
func (b *OllamaBackend) Available(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("decode tags: %w", err)
	}

	want, _, _ := strings.Cut(b.model, ":")
	for _, m := range tags.Models {
		have, _, _ := strings.Cut(m.Name, ":")
		if have == want {
			return nil
		}
	}
	return fmt.Errorf("model %q not installed", b.model)
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
	Error           string  `json:"error"`
}

func (b *OllamaBackend) Chat(ctx context.Context, messages []Message, opts Options) (Reply, error) {
	resp, err := b.send(ctx, messages, opts, false)
	if err != nil {
		return Reply{}, err
	}
	defer resp.Body.Close()

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Reply{}, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return Reply{}, fmt.Errorf("ollama: %s", out.Error)
	}

	return Reply{
		Message: out.Message.Content,
		Backend: b.Name(),
		Model:   out.Model,
		Usage: Usage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
		},
	}, nil
}

// ChatStream parses Ollama's line-delimited JSON stream into events.
func (b *OllamaBackend) ChatStream(ctx context.Context, messages []Message, opts Options) (<-chan StreamEvent, error) {
	resp, err := b.send(ctx, messages, opts, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}

			var chunk ollamaChatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				ch <- StreamEvent{Err: fmt.Errorf("decode chunk: %w", err)}
				return
			}
			if chunk.Error != "" {
				ch <- StreamEvent{Err: fmt.Errorf("ollama: %s", chunk.Error)}
				return
			}
			if chunk.Message.Content != "" {
				ch <- StreamEvent{Delta: chunk.Message.Content}
			}
			if chunk.Done {
				ch <- StreamEvent{Done: true}
				return
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- StreamEvent{Err: err}
			return
		}
		ch <- StreamEvent{Done: true}
	}()
	return ch, nil
}

func (b *OllamaBackend) send(ctx context.Context, messages []Message, opts Options, stream bool) (*http.Response, error) {
	reqBody := ollamaChatRequest{
		Model:    b.model,
		Messages: messages,
		Stream:   stream,
	}
	if opts.Temperature > 0 || opts.MaxTokens > 0 {
		reqBody.Options = map[string]any{}
		if opts.Temperature > 0 {
			reqBody.Options["temperature"] = opts.Temperature
		}
		if opts.MaxTokens > 0 {
			reqBody.Options["num_predict"] = opts.MaxTokens
		}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, transient(fmt.Errorf("ollama: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		err := fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(respBody))
		if transientStatus(resp.StatusCode) {
			return nil, transient(err)
		}
		return nil, err
	}
	return resp, nil
}
