package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// Config holds the backend server configuration.
type Config struct {
	Host string
	Port int

	// Remote OpenAI-compatible provider (Groq by default).
	GroqAPIKey  string
	GroqBaseURL string
	GroqModel   string

	// Optional Anthropic provider.
	AnthropicAPIKey string
	AnthropicModel  string

	// Local Ollama provider.
	OllamaURL   string
	OllamaModel string

	// Embeddings endpoint (OpenAI-compatible). Falls back to Ollama when unset.
	EmbeddingsAPIKey  string
	EmbeddingsBaseURL string
	EmbeddingsModel   string

	DatabasePath  string // sqlite file for sessions, memory, and feedback
	KnowledgeDir  string // chromem data + entries.json
	DefaultUserID string // single-user deployments fall back to this
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:          "0.0.0.0",
		Port:          8080,
		GroqBaseURL:   "https://api.groq.com/openai/v1",
		GroqModel:     "llama-3.1-8b-instant",
		OllamaURL:     "http://localhost:11434",
		OllamaModel:   "llama3.2",
		DatabasePath:  filepath.Join(DataDir(), "memory.db"),
		KnowledgeDir:  filepath.Join(DataDir(), "knowledge"),
		DefaultUserID: "seven_user",
	}
}

// FromEnv returns DefaultConfig overridden by environment variables.
func FromEnv() *Config {
	cfg := DefaultConfig()

	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setStr(&cfg.Host, "HOST")
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	setStr(&cfg.GroqAPIKey, "GROQ_API_KEY")
	setStr(&cfg.GroqBaseURL, "GROQ_API_BASE")
	setStr(&cfg.GroqModel, "GROQ_MODEL")
	setStr(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setStr(&cfg.AnthropicModel, "ANTHROPIC_MODEL")
	setStr(&cfg.OllamaURL, "OLLAMA_URL")
	setStr(&cfg.OllamaModel, "OLLAMA_MODEL")
	setStr(&cfg.EmbeddingsAPIKey, "EMBEDDINGS_API_KEY")
	setStr(&cfg.EmbeddingsBaseURL, "EMBEDDINGS_API_BASE")
	setStr(&cfg.EmbeddingsModel, "EMBEDDINGS_MODEL")
	setStr(&cfg.DatabasePath, "DATABASE_PATH")
	setStr(&cfg.KnowledgeDir, "KNOWLEDGE_DIR")
	setStr(&cfg.DefaultUserID, "DEFAULT_USER_ID")

	return cfg
}

// DataDir returns the default data directory for seven-server.
func DataDir() string {
	if dir := os.Getenv("SEVEN_DATA_DIR"); dir != "" {
		return dir
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "seven")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "seven")
}

// EnsureDirs creates the required directories if they don't exist.
func EnsureDirs(cfg *Config) error {
	dirs := []string{filepath.Dir(cfg.DatabasePath), cfg.KnowledgeDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
