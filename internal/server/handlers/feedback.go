package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/SevenCandid/Seven-Assistant/internal/insights"
	"github.com/SevenCandid/Seven-Assistant/internal/store"
	"github.com/SevenCandid/Seven-Assistant/pkg/api"
)

// FeedbackHandler serves the feedback and learning endpoints.
type FeedbackHandler struct {
	Ledger       *insights.Ledger
	Store        store.Store
	PromoteFloor int
}

// Add handles POST /feedback.
func (h *FeedbackHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req api.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" || req.MessageID == "" {
		api.WriteError(w, http.StatusBadRequest, "user_id and message_id are required")
		return
	}

	id, err := h.Ledger.AddFeedback(r.Context(), insights.Feedback{
		UserID:            req.UserID,
		MessageID:         req.MessageID,
		Type:              req.Type,
		Rating:            req.Rating,
		Correction:        req.Correction,
		UserMessage:       req.UserMessage,
		AssistantResponse: req.AssistantResponse,
	})
	if err != nil {
		if strings.Contains(err.Error(), "unknown feedback type") || strings.Contains(err.Error(), "rating must be") {
			api.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		api.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.WriteSuccess(w, map[string]any{"id": id})
}

// Summary handles GET /feedback/summary/{user_id}.
func (h *FeedbackHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	s, err := h.Ledger.Summary(r.Context(), userID)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.WriteSuccess(w, s)
}

// Apply handles POST /feedback/apply. It promotes recurring corrections into
// the user's long-term memory.
func (h *FeedbackHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" {
		api.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	n, err := h.Ledger.Promote(r.Context(), req.UserID, h.PromoteFloor, factSink{h.Store})
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.WriteSuccess(w, map[string]any{"applied": n})
}

// factSink adapts the session store to the ledger's memory writer.
type factSink struct {
	store store.Store
}

func (s factSink) AddFact(ctx context.Context, userID, fact string) error {
	mem, err := s.store.Memory(ctx, userID)
	if err != nil {
		return err
	}
	for _, f := range mem.Facts {
		if f == fact {
			return nil
		}
	}
	mem.Facts = append(mem.Facts, fact)
	return s.store.ReplaceMemory(ctx, userID, mem)
}
