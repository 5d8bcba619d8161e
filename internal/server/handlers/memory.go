package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/SevenCandid/Seven-Assistant/internal/store"
	"github.com/SevenCandid/Seven-Assistant/pkg/api"
)

// MemoryHandler serves the long-term memory endpoints.
type MemoryHandler struct {
	Store store.Store
}

// Get handles GET /memory/{user_id}.
func (h *MemoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	mem, err := h.Store.Memory(r.Context(), userID)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	facts := mem.Facts
	if facts == nil {
		facts = []string{}
	}
	api.WriteSuccess(w, api.MemoryResponse{
		Summary:   mem.Summary,
		Facts:     facts,
		UpdatedAt: mem.UpdatedAt,
	})
}

// Update handles PUT /memory/{user_id}.
func (h *MemoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	var req api.MemoryUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if _, err := h.Store.CreateUser(r.Context(), userID); err != nil {
		api.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.Store.ReplaceMemory(r.Context(), userID, store.Memory{
		Summary: req.Summary,
		Facts:   req.Facts,
	}); err != nil {
		api.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.WriteSuccess(w, map[string]string{"user_id": userID, "message": "memory updated"})
}

// Delete handles DELETE /memory/{user_id}.
func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	if err := h.Store.ClearMemory(r.Context(), userID); err != nil {
		api.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.WriteSuccess(w, map[string]string{"user_id": userID, "message": "memory cleared"})
}
