// Package integrations executes actions the model requests in its structured
// replies, such as reading the clock or calling external services.
package integrations

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Handler executes one action. data carries the model-provided arguments and
// may be nil. The returned message is appended to the assistant's reply.
type Handler func(ctx context.Context, data map[string]any, userID string) (string, error)

// Registry maps action names to handlers. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	now      func() time.Time
}

// NewRegistry creates a Registry with the builtin time and date actions.
func NewRegistry() *Registry {
	r := &Registry{
		handlers: make(map[string]Handler),
		now:      time.Now,
	}
	r.Register("get_time", r.getTime)
	r.Register("get_date", r.getDate)
	return r
}

// Register adds or replaces a handler.
func (r *Registry) Register(action string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[action] = h
}

// Execute runs the handler for action. The second return is false when no
// handler is registered, which callers treat as a silent no-op.
func (r *Registry) Execute(ctx context.Context, action string, data map[string]any, userID string) (string, bool, error) {
	r.mu.RLock()
	h, ok := r.handlers[action]
	r.mu.RUnlock()
	if !ok {
		return "", false, nil
	}

	msg, err := h(ctx, data, userID)
	if err != nil {
		return "", true, fmt.Errorf("action %s: %w", action, err)
	}
	return msg, true, nil
}

// Actions lists registered action names in stable order.
func (r *Registry) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) getTime(context.Context, map[string]any, string) (string, error) {
	return "The current time is " + r.now().Format("3:04 PM") + ".", nil
}

func (r *Registry) getDate(context.Context, map[string]any, string) (string, error) {
	return "Today is " + r.now().Format("Monday, January 2, 2006") + ".", nil
}
