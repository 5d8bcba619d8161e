package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/SevenCandid/Seven-Assistant/internal/server/handlers"
)

func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Health
	mux.HandleFunc("GET /health", handlers.Health)

	// Conversation
	ch := &handlers.ChatHandler{Orchestrator: s.deps.Orchestrator, Store: s.deps.Store}
	mux.HandleFunc("POST /chat", ch.Chat)
	mux.HandleFunc("POST /new_chat", ch.NewChat)
	mux.HandleFunc("GET /sessions/{user_id}", ch.Sessions)
	mux.HandleFunc("GET /session/{session_id}/messages", ch.Messages)
	mux.HandleFunc("DELETE /session/{session_id}", ch.DeleteSession)

	// Knowledge base (only active when an embedder is configured)
	if s.deps.Knowledge != nil {
		kh := &handlers.KnowledgeHandler{Base: s.deps.Knowledge}
		mux.HandleFunc("POST /knowledge/add", kh.Add)
		mux.HandleFunc("POST /knowledge/query", kh.Query)
		mux.HandleFunc("GET /knowledge/list", kh.List)
		mux.HandleFunc("DELETE /knowledge/{id}", kh.Delete)
		mux.HandleFunc("DELETE /knowledge", kh.Clear)
		mux.HandleFunc("GET /knowledge/stats", kh.Stats)
	}

	// Long-term memory
	mh := &handlers.MemoryHandler{Store: s.deps.Store}
	mux.HandleFunc("GET /memory/{user_id}", mh.Get)
	mux.HandleFunc("PUT /memory/{user_id}", mh.Update)
	mux.HandleFunc("DELETE /memory/{user_id}", mh.Delete)

	// Feedback and learning
	fh := &handlers.FeedbackHandler{Ledger: s.deps.Ledger, Store: s.deps.Store, PromoteFloor: s.deps.PromoteFloor}
	mux.HandleFunc("POST /feedback", fh.Add)
	mux.HandleFunc("GET /feedback/summary/{user_id}", fh.Summary)
	mux.HandleFunc("POST /feedback/apply", fh.Apply)

	// Personalities
	mux.HandleFunc("GET /personalities", handlers.Personalities)

	// Backend status
	lh := &handlers.LLMHandler{Dispatcher: s.deps.Dispatcher}
	mux.HandleFunc("GET /llm/status", lh.Status)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
