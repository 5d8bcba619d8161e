package handlers

import (
	"net/http"

	"github.com/SevenCandid/Seven-Assistant/internal/llm"
	"github.com/SevenCandid/Seven-Assistant/internal/persona"
	"github.com/SevenCandid/Seven-Assistant/pkg/api"
)

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	api.WriteSuccess(w, map[string]string{"status": "ok"})
}

// Personalities handles GET /personalities.
func Personalities(w http.ResponseWriter, r *http.Request) {
	api.WriteSuccess(w, map[string]any{
		"personalities": persona.All(),
		"default":       persona.DefaultName,
	})
}

// LLMHandler serves backend status.
type LLMHandler struct {
	Dispatcher *llm.Dispatcher
}

// Status handles GET /llm/status.
func (h *LLMHandler) Status(w http.ResponseWriter, r *http.Request) {
	statuses := h.Dispatcher.Statuses(r.Context())

	out := make([]api.BackendStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, api.BackendStatus{
			Name:      s.Name,
			Model:     s.Model,
			Available: s.Available,
			Reason:    s.Reason,
		})
	}
	api.WriteSuccess(w, out)
}
