// Package config loads configuration from environment variables and .env files.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the docqa service
type Config struct {
	// Server
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Auth
	APIKey    string        `env:"API_KEY"`
	JWTSecret string        `env:"JWT_SECRET" envDefault:"change-this-in-production"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`

	// PostgreSQL conversation store. Empty means in-memory history.
	DatabaseURL string `env:"DATABASE_URL"`

	// Qdrant
	QdrantGRPCURL string `env:"QDRANT_GRPC_URL" envDefault:"localhost:6334"`

	// Ollama
	OllamaURL            string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaEmbeddingModel string `env:"OLLAMA_EMBEDDING_MODEL" envDefault:"nomic-embed-text"`
	OllamaLLMModel       string `env:"OLLAMA_LLM_MODEL" envDefault:"llama3.2"`

	// Reranker service
	RerankerURL           string        `env:"RERANKER_URL" envDefault:"http://localhost:8000"`
	RerankTimeout         time.Duration `env:"RERANK_TIMEOUT" envDefault:"5s"`
	RerankerProbeInterval time.Duration `env:"RERANKER_PROBE_INTERVAL" envDefault:"30s"`

	// Per-stage timeouts. The rerank timeout above is deliberately separate:
	// it is the sole trigger of the fallback scoring path.
	EmbedTimeout    time.Duration `env:"EMBED_TIMEOUT" envDefault:"10s"`
	RetrieveTimeout time.Duration `env:"RETRIEVE_TIMEOUT" envDefault:"2s"`
	GenerateTimeout time.Duration `env:"GENERATE_TIMEOUT" envDefault:"120s"`
	PersistTimeout  time.Duration `env:"PERSIST_TIMEOUT" envDefault:"3s"`

	// Retrieval and selection. The decay constant and caps are empirical
	// defaults; tune per deployment.
	TopK            int     `env:"TOP_K" envDefault:"10"`
	MaxSelected     int     `env:"MAX_SELECTED" envDefault:"10"`
	MinPerSource    int     `env:"MIN_PER_SOURCE" envDefault:"1"`
	FallbackDecay   float64 `env:"FALLBACK_DECAY" envDefault:"0.05"`
	MaxExcerptChars int     `env:"MAX_EXCERPT_CHARS" envDefault:"2000"`

	// Generation
	Temperature float32 `env:"TEMPERATURE" envDefault:"0.1"`
	MaxTokens   int     `env:"MAX_TOKENS" envDefault:"2048"`

	// Conversation history
	HistoryTurns int           `env:"HISTORY_TURNS" envDefault:"5"`
	HistoryTTL   time.Duration `env:"HISTORY_TTL" envDefault:"1h"`
}

// Load loads configuration from .env file (if present) and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
