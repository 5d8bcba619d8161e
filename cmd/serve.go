package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SevenCandid/Seven-Assistant/internal/chat"
	"github.com/SevenCandid/Seven-Assistant/internal/config"
	"github.com/SevenCandid/Seven-Assistant/internal/insights"
	"github.com/SevenCandid/Seven-Assistant/internal/integrations"
	"github.com/SevenCandid/Seven-Assistant/internal/intent"
	"github.com/SevenCandid/Seven-Assistant/internal/knowledge"
	"github.com/SevenCandid/Seven-Assistant/internal/llm"
	"github.com/SevenCandid/Seven-Assistant/internal/server"
	"github.com/SevenCandid/Seven-Assistant/internal/store"
	"github.com/SevenCandid/Seven-Assistant/internal/topics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Seven backend server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()

		if host, _ := cmd.Flags().GetString("host"); host != "" {
			cfg.Host = host
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Port = port
		}
		if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
			cfg.DatabasePath = dbPath
		}
		if kbDir, _ := cmd.Flags().GetString("knowledge-dir"); kbDir != "" {
			cfg.KnowledgeDir = kbDir
		}

		if err := config.EnsureDirs(cfg); err != nil {
			return err
		}

		logger, err := zap.NewProduction()
		if err != nil {
			return err
		}
		defer logger.Sync()

		s, err := store.NewSQLite(cfg.DatabasePath)
		if err != nil {
			return err
		}

		ledger, err := insights.NewLedger(s.DB())
		if err != nil {
			return err
		}

		embedFunc := newEmbedFunc(cfg)
		kb, err := knowledge.New(cfg.KnowledgeDir, embedFunc)
		if err != nil {
			return err
		}
		logger.Info("knowledge base ready", zap.String("dir", cfg.KnowledgeDir))

		dispatcher := llm.NewDispatcher(logger, llm.DefaultFailoverPolicy(), newBackends(cfg)...)
		for _, st := range dispatcher.Statuses(cmd.Context()) {
			logger.Info("backend registered",
				zap.String("name", st.Name),
				zap.String("model", st.Model),
				zap.Bool("available", st.Available))
		}

		scorer := intent.NewScorer(intent.WithEmbedder(intent.EmbedFunc(embedFunc)))
		classifier := topics.NewEmbeddingClassifier(topics.EmbedFunc(embedFunc))

		chatCfg := chat.DefaultConfig()
		chatCfg.DefaultUserID = cfg.DefaultUserID

		orch := chat.New(s, kb, ledger, classifier, scorer, dispatcher, integrations.NewRegistry(), logger, chatCfg)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := server.New(cfg, logger, server.Deps{
			Orchestrator: orch,
			Store:        s,
			Knowledge:    kb,
			Ledger:       ledger,
			Dispatcher:   dispatcher,
			PromoteFloor: chatCfg.PromoteFloor,
		})
		return srv.Start(ctx)
	},
}

// newEmbedFunc picks the embeddings provider: a remote OpenAI-compatible
// endpoint when a key is configured, local Ollama otherwise.
func newEmbedFunc(cfg *config.Config) knowledge.EmbedFunc {
	if cfg.EmbeddingsAPIKey != "" {
		model := cfg.EmbeddingsModel
		if model == "" {
			model = "text-embedding-3-small"
		}
		return knowledge.NewOpenAIEmbedFunc(cfg.EmbeddingsAPIKey, cfg.EmbeddingsBaseURL, model)
	}
	model := cfg.EmbeddingsModel
	if model == "" {
		model = "nomic-embed-text"
	}
	return knowledge.NewOllamaEmbedFunc(cfg.OllamaURL, model)
}

// newBackends builds the dispatch order: Groq first, Anthropic second,
// local Ollama as the last resort.
func newBackends(cfg *config.Config) []llm.Backend {
	backends := []llm.Backend{
		llm.NewOpenAIBackend("groq", cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqModel),
	}
	if cfg.AnthropicAPIKey != "" {
		model := cfg.AnthropicModel
		if model == "" {
			model = "claude-3-5-haiku-latest"
		}
		backends = append(backends, llm.NewAnthropicBackend(cfg.AnthropicAPIKey, model))
	}
	backends = append(backends, llm.NewOllamaBackend(cfg.OllamaURL, cfg.OllamaModel))
	return backends
}

func init() {
	serveCmd.Flags().String("host", "", "bind address")
	serveCmd.Flags().Int("port", 0, "listen port")
	serveCmd.Flags().String("db", "", "sqlite database path")
	serveCmd.Flags().String("knowledge-dir", "", "knowledge base directory")
	rootCmd.AddCommand(serveCmd)
}
