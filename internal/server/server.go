// Package server exposes the assistant over HTTP.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/SevenCandid/Seven-Assistant/internal/chat"
	"github.com/SevenCandid/Seven-Assistant/internal/config"
	"github.com/SevenCandid/Seven-Assistant/internal/insights"
	"github.com/SevenCandid/Seven-Assistant/internal/knowledge"
	"github.com/SevenCandid/Seven-Assistant/internal/llm"
	"github.com/SevenCandid/Seven-Assistant/internal/store"
)

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	Orchestrator *chat.Orchestrator
	Store        store.Store
	Knowledge    *knowledge.Base
	Ledger       *insights.Ledger
	Dispatcher   *llm.Dispatcher
	PromoteFloor int
}

// Server is the assistant's HTTP API server.
type Server struct {
	cfg    *config.Config
	http   *http.Server
	logger *zap.Logger
	deps   Deps
}

// New creates a Server.
func New(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{cfg: cfg, logger: logger, deps: deps}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.http = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.withLogging(withCORS(mux)),
	}
	return s
}

// Start starts the server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.logger.Info("server listening",
		zap.String("addr", s.http.Addr),
		zap.String("db", s.cfg.DatabasePath))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("server shutdown error", zap.Error(err))
		}
		if s.deps.Store != nil {
			s.deps.Store.Close()
		}
		return nil
	case err := <-errCh:
		return err
	}
}
