package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const openAITimeout = 15 * time.Second

// OpenAIBackend talks to any OpenAI-compatible chat completion endpoint,
// Groq's in the default configuration.
type OpenAIBackend struct {
	name   string
	model  string
	apiKey string
	client *openai.Client
}

// NewOpenAIBackend creates a backend for an OpenAI-compatible API.
func NewOpenAIBackend(name, apiKey, baseURL, model string) *OpenAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIBackend{
		name:   name,
		model:  model,
		apiKey: apiKey,
		client: openai.NewClientWithConfig(cfg),
	}
}

func (b *OpenAIBackend) Name() string  { return b.name }
func (b *OpenAIBackend) Model() string { return b.model }

// Available reports whether the backend is configured. A hosted API is
// assumed reachable when an API key is present; actual failures surface as
// transient errors at request time.
func (b *OpenAIBackend) Available(_ context.Context) error {
	if b.apiKey == "" {
		return fmt.Errorf("no API key configured")
	}
	return nil
}

func (b *OpenAIBackend) Chat(ctx context.Context, messages []Message, opts Options) (Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, openAITimeout)
	defer cancel()

	resp, err := b.client.CreateChatCompletion(ctx, b.request(messages, opts, false))
	if err != nil {
		return Reply{}, b.classify(err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, fmt.Errorf("%s: empty completion", b.name)
	}

	return Reply{
		Message: resp.Choices[0].Message.Content,
		Backend: b.name,
		Model:   resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func (b *OpenAIBackend) ChatStream(ctx context.Context, messages []Message, opts Options) (<-chan StreamEvent, error) {
	stream, err := b.client.CreateChatCompletionStream(ctx, b.request(messages, opts, true))
	if err != nil {
		return nil, b.classify(err)
	}

	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		defer stream.Close()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				ch <- StreamEvent{Done: true}
				return
			}
			if err != nil {
				ch <- StreamEvent{Err: b.classify(err)}
				return
			}
			if len(chunk.Choices) > 0 {
				ch <- StreamEvent{Delta: chunk.Choices[0].Delta.Content}
			}
		}
	}()
	return ch, nil
}

func (b *OpenAIBackend) request(messages []Message, opts Options, stream bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:       b.model,
		Messages:    msgs,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      stream,
	}
}

// classify wraps errors, marking retryable ones transient.
func (b *OpenAIBackend) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if transientStatus(apiErr.HTTPStatusCode) {
			return transient(fmt.Errorf("%s: %w", b.name, err))
		}
		return fmt.Errorf("%s: %w", b.name, err)
	}
	if IsTransient(err) {
		return transient(fmt.Errorf("%s: %w", b.name, err))
	}
	return fmt.Errorf("%s: %w", b.name, err)
}
