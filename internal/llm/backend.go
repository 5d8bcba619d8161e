// Package llm abstracts the chat model backends and routes requests between
// them with failover.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
)

// Message is one turn of a chat transcript sent to a backend.
type Message struct {
	Role    string `json:"role"` // system, user or assistant
	Content string `json:"content"`
}

// Options tune a single generation request.
type Options struct {
	Temperature float32
	MaxTokens   int
}

// Usage reports token accounting when the backend provides it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Reply is a completed generation.
type Reply struct {
	Message string `json:"message"`
	Backend string `json:"backend"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// StreamEvent is one incremental piece of a streamed generation.
type StreamEvent struct {
	Delta string
	Done  bool
	Err   error
}

// Backend is a chat model provider.
type Backend interface {
	// Name identifies the backend for routing hints and status reporting.
	Name() string
	// Model returns the configured model identifier.
	Model() string
	// Available probes whether the backend can currently serve requests.
	Available(ctx context.Context) error
	// Chat runs a blocking generation.
	Chat(ctx context.Context, messages []Message, opts Options) (Reply, error)
	// ChatStream runs a streaming generation. The channel is closed after
	// the final event.
	ChatStream(ctx context.Context, messages []Message, opts Options) (<-chan StreamEvent, error)
}

// errTransient marks failures worth retrying on another backend, such as
// timeouts, connection errors and server-side overload.
var errTransient = errors.New("transient backend error")

func transient(err error) error {
	return fmt.Errorf("%w: %w", errTransient, err)
}

// IsTransient reports whether a backend error should trigger failover rather
// than surface to the caller.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// transientStatus reports whether an HTTP status from a backend indicates a
// retryable condition.
func transientStatus(code int) bool {
	return code == 429 || code >= 500
}

// NoBackendError is returned when no backend could serve a request. Reasons
// records why each candidate was skipped or failed.
type NoBackendError struct {
	Reasons map[string]string
}

func (e *NoBackendError) Error() string {
	if len(e.Reasons) == 0 {
		return "no backend available"
	}
	parts := make([]string, 0, len(e.Reasons))
	for name, reason := range e.Reasons {
		parts = append(parts, fmt.Sprintf("%s: %s", name, reason))
	}
	sort.Strings(parts)
	return "no backend available (" + strings.Join(parts, "; ") + ")"
}
