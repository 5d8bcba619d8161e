package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/SevenCandid/Seven-Assistant/internal/knowledge"
	"github.com/SevenCandid/Seven-Assistant/pkg/api"
)

// KnowledgeHandler serves the knowledge base endpoints.
type KnowledgeHandler struct {
	Base *knowledge.Base
}

// Add handles POST /knowledge/add.
func (h *KnowledgeHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req api.KnowledgeAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		api.WriteError(w, http.StatusBadRequest, "content must not be empty")
		return
	}

	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	if req.Title != "" {
		metadata["title"] = req.Title
	}
	if req.Source != "" {
		metadata["source"] = req.Source
	}

	entry, existed, err := h.Base.Add(r.Context(), req.Content, metadata)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	api.WriteSuccess(w, map[string]any{
		"id":      entry.ID,
		"existed": existed,
	})
}

// Query handles POST /knowledge/query.
func (h *KnowledgeHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req api.KnowledgeQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		api.WriteError(w, http.StatusBadRequest, "query must not be empty")
		return
	}

	results, err := h.Base.Query(r.Context(), req.Query, req.TopK, req.MinSimilarity)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]api.KnowledgeEntry, 0, len(results))
	for _, res := range results {
		out = append(out, toAPIEntry(res.Entry, res.Similarity, res.Rank))
	}
	api.WriteSuccess(w, out)
}

// List handles GET /knowledge/list.
func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := h.Base.All()

	out := make([]api.KnowledgeEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, toAPIEntry(e, 0, 0))
	}
	api.WriteSuccess(w, out)
}

// Delete handles DELETE /knowledge/{id}.
func (h *KnowledgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.Base.Delete(r.Context(), id); err != nil {
		api.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.WriteSuccess(w, map[string]string{"id": id, "message": "entry deleted"})
}

// Clear handles DELETE /knowledge.
func (h *KnowledgeHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Base.Clear(r.Context()); err != nil {
		api.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.WriteSuccess(w, map[string]string{"message": "knowledge base cleared"})
}

// Stats handles GET /knowledge/stats.
func (h *KnowledgeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	api.WriteSuccess(w, h.Base.Stats())
}

func toAPIEntry(e knowledge.Entry, similarity float64, rank int) api.KnowledgeEntry {
	return api.KnowledgeEntry{
		ID:         e.ID,
		Title:      e.Metadata["title"],
		Content:    e.Content,
		Source:     e.Metadata["source"],
		CreatedAt:  e.Timestamp,
		Metadata:   e.Metadata,
		Similarity: similarity,
		Rank:       rank,
	}
}
