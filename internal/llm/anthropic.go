package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicTimeout = 15 * time.Second

// AnthropicBackend talks to the Anthropic Messages API.
type AnthropicBackend struct {
	model  string
	apiKey string
	client anthropic.Client
}

// NewAnthropicBackend creates a backend for the Anthropic API.
func NewAnthropicBackend(apiKey, model string) *AnthropicBackend {
	return &AnthropicBackend{
		model:  model,
		apiKey: apiKey,
		client: anthropic.NewClient(anthropicopt.WithAPIKey(apiKey)),
	}
}

func (b *AnthropicBackend) Name() string  { return "anthropic" }
func (b *AnthropicBackend) Model() string { return b.model }

func (b *AnthropicBackend) Available(_ context.Context) error {
	if b.apiKey == "" {
		return fmt.Errorf("no API key configured")
	}
	return nil
}

func (b *AnthropicBackend) Chat(ctx context.Context, messages []Message, opts Options) (Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, anthropicTimeout)
	defer cancel()

	resp, err := b.client.Messages.New(ctx, b.params(messages, opts))
	if err != nil {
		return Reply{}, b.classify(err)
	}

	var text string
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += tb.Text
		}
	}
	if text == "" {
		return Reply{}, fmt.Errorf("anthropic: empty completion")
	}

	return Reply{
		Message: text,
		Backend: b.Name(),
		Model:   string(resp.Model),
		Usage: Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

func (b *AnthropicBackend) ChatStream(ctx context.Context, messages []Message, opts Options) (<-chan StreamEvent, error) {
	stream := b.client.Messages.NewStreaming(ctx, b.params(messages, opts))

	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok {
					ch <- StreamEvent{Delta: text.Text}
				}
			}
		}
		if err := stream.Err(); err != nil {
			ch <- StreamEvent{Err: b.classify(err)}
			return
		}
		ch <- StreamEvent{Done: true}
	}()
	return ch, nil
}

func (b *AnthropicBackend) params(messages []Message, opts Options) anthropic.MessageNewParams {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: int64(maxTokens),
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(opts.Temperature))
	}

	for _, m := range messages {
		switch m.Role {
		case "system":
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case "assistant":
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return params
}

func (b *AnthropicBackend) classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if transientStatus(apiErr.StatusCode) {
			return transient(fmt.Errorf("anthropic: %w", err))
		}
		return fmt.Errorf("anthropic: %w", err)
	}
	if IsTransient(err) {
		return transient(fmt.Errorf("anthropic: %w", err))
	}
	return fmt.Errorf("anthropic: %w", err)
}
