// Package config loads configuration from environment variables and .env files.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the session engine service.
type Config struct {
	// Server
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Qdrant
	QdrantGRPCURL string `env:"QDRANT_GRPC_URL" envDefault:"localhost:6334"`
	Collection    string `env:"QDRANT_COLLECTION" envDefault:"documents"`

	// Ollama
	OllamaURL            string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaEmbeddingModel string `env:"OLLAMA_EMBEDDING_MODEL" envDefault:"snowflake-arctic-embed"`
	OllamaLLMModel       string `env:"OLLAMA_LLM_MODEL" envDefault:"llama3.2"`

	// Auth — per-session bearer token, not per-tenant (this domain has no tenants)
	SessionTokenSecret string        `env:"SESSION_TOKEN_SECRET" envDefault:"change-this-in-production"`
	SessionTokenExpiry time.Duration `env:"SESSION_TOKEN_EXPIRY" envDefault:"6h"`

	// Session engine tunables (spec §6 Configuration)
	EmbeddingDimension     int     `env:"EMBEDDING_DIMENSION" envDefault:"1024"`
	DirectMatchThreshold   float32 `env:"DIRECT_MATCH_THRESHOLD" envDefault:"0.85"`
	SearchTopK             int     `env:"SEARCH_TOP_K" envDefault:"100"`
	HDBSCANMinClusterSize  int     `env:"HDBSCAN_MIN_CLUSTER_SIZE" envDefault:"5"`
	MaxClusters            int     `env:"MAX_CLUSTERS" envDefault:"4"`
	MaxFollowupQuestions   int     `env:"MAX_FOLLOWUP_QUESTIONS" envDefault:"3"`
	SessionTTL             time.Duration `env:"SESSION_TTL" envDefault:"2h"`
	OracleTimeout          time.Duration `env:"ORACLE_TIMEOUT" envDefault:"60s"`

	// Default ingestion chunking (thin wrapper, cmd/indexctl)
	DefaultChunkTargetWords int `env:"DEFAULT_CHUNK_TARGET_WORDS" envDefault:"256"`
	DefaultChunkMaxWords    int `env:"DEFAULT_CHUNK_MAX_WORDS" envDefault:"512"`
}

// Load loads configuration from .env file (if present) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
