package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/SevenCandid/Seven-Assistant/internal/chat"
	"github.com/SevenCandid/Seven-Assistant/internal/emotion"
	"github.com/SevenCandid/Seven-Assistant/internal/llm"
	"github.com/SevenCandid/Seven-Assistant/internal/store"
	"github.com/SevenCandid/Seven-Assistant/pkg/api"
)

// ChatHandler serves the conversation endpoints.
type ChatHandler struct {
	Orchestrator *chat.Orchestrator
	Store        store.Store
}

// Chat handles POST /chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		api.WriteError(w, http.StatusBadRequest, "message must not be empty")
		return
	}

	turn := chat.TurnRequest{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Message:   req.Message,
		Provider:  req.Provider,
	}
	if req.VoiceEmotion != nil {
		turn.Voice = emotion.Analysis{
			Emotion:   req.VoiceEmotion.Emotion,
			Intensity: req.VoiceEmotion.Intensity,
			Source:    "voice",
		}
	}

	res, err := h.Orchestrator.ProcessTurn(r.Context(), turn)
	if err != nil {
		var nbe *llm.NoBackendError
		if errors.As(err, &nbe) {
			api.WriteError(w, http.StatusServiceUnavailable, nbe.Error())
			return
		}
		api.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := api.ChatResponse{
		Message:   res.Reply,
		UserID:    res.UserID,
		SessionID: res.SessionID,
		Provider:  res.Backend,
		Model:     res.Model,
		Actions:   []api.ActionInfo{},
	}
	if res.Topic.Label != "" {
		resp.Topic = &api.TopicInfo{
			CurrentTopic: res.Topic.Label,
			TopicChanged: res.TopicNew,
			TopicHistory: res.TopicHistory,
			MessageCount: res.Topic.Turns,
		}
	}
	if res.Ambiguity.Query != "" {
		resp.Ambiguity = &api.Ambiguity{
			Intent:             res.Ambiguity.Intent,
			Score:              res.Ambiguity.Confidence,
			IsAmbiguous:        res.Ambiguity.Ambiguous,
			NeedsClarification: res.Ambiguity.NeedsClarification,
			Reasons:            res.Ambiguity.Reasons,
		}
	}
	for _, a := range res.Actions {
		resp.Actions = append(resp.Actions, api.ActionInfo{Type: a.Action, Result: a.Message})
	}

	api.WriteSuccess(w, resp)
}

// NewChat handles POST /new_chat.
func (h *ChatHandler) NewChat(w http.ResponseWriter, r *http.Request) {
	var req api.NewChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	userID, err := h.Store.CreateUser(r.Context(), req.UserID)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sessionID, err := h.Store.CreateSession(r.Context(), userID)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	mem, err := h.Store.Memory(r.Context(), userID)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	api.WriteSuccess(w, api.NewChatResponse{
		SessionID:     sessionID,
		UserID:        userID,
		Message:       "New chat session started",
		MemorySummary: mem.Summary,
		FactsCount:    len(mem.Facts),
	})
}

// Sessions handles GET /sessions/{user_id}.
func (h *ChatHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, _ = strconv.Atoi(l)
	}

	sessions, err := h.Store.Sessions(r.Context(), userID, limit)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]api.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, api.SessionInfo{
			SessionID: s.ID,
			CreatedAt: s.CreatedAt,
			Title:     s.Title,
		})
	}
	api.WriteSuccess(w, out)
}

// Messages handles GET /session/{session_id}/messages.
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, _ = strconv.Atoi(l)
	}

	msgs, err := h.Store.Messages(r.Context(), sessionID, limit)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]api.MessageInfo, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, api.MessageInfo{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}
	api.WriteSuccess(w, out)
}

// DeleteSession handles DELETE /session/{session_id}.
func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	if err := h.Store.DeleteSession(r.Context(), sessionID); err != nil {
		api.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.WriteSuccess(w, map[string]string{"session_id": sessionID, "message": "session deleted"})
}
