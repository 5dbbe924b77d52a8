package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/knoguchi/docmemory/internal/auth"
	"github.com/knoguchi/docmemory/internal/config"
	"github.com/knoguchi/docmemory/internal/embedder"
	"github.com/knoguchi/docmemory/internal/llm"
	"github.com/knoguchi/docmemory/internal/server"
	"github.com/knoguchi/docmemory/internal/session"
	"github.com/knoguchi/docmemory/internal/vectorstore"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting document memory session service",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
	)

	vectorStore, err := vectorstore.NewQdrantStore(ctx, cfg.QdrantGRPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer vectorStore.Close()
	slog.Info("connected to Qdrant")

	dense := embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL:    cfg.OllamaURL,
		Model:      cfg.OllamaEmbeddingModel,
		Dimension:  cfg.EmbeddingDimension,
		HTTPClient: &http.Client{Timeout: cfg.OracleTimeout},
	})
	sparse := embedder.NewBM25Vectorizer()
	slog.Info("initialized embedders", "dense_model", cfg.OllamaEmbeddingModel)

	llmClient := llm.NewOllamaClient(
		llm.WithBaseURL(cfg.OllamaURL),
		llm.WithModel(cfg.OllamaLLMModel),
		llm.WithTimeout(cfg.OracleTimeout),
	)
	slog.Info("initialized LLM client", "model", cfg.OllamaLLMModel)

	retriever := vectorstore.NewAdapter(vectorStore, dense, sparse, cfg.Collection, cfg.SearchTopK)

	engine := session.NewEngine(retriever, llmClient, dense, session.Config{
		DirectMatchThreshold:  cfg.DirectMatchThreshold,
		HDBSCANMinClusterSize: cfg.HDBSCANMinClusterSize,
		MaxClusters:           cfg.MaxClusters,
		MaxFollowupQuestions:  cfg.MaxFollowupQuestions,
		LLMModel:              cfg.OllamaLLMModel,
		LLMTemperature:        llm.DefaultTemperature,
		SessionTTL:            cfg.SessionTTL,
	}, logger)
	defer engine.Close()

	sessionAuth := auth.NewSessionAuth(cfg.SessionTokenSecret, cfg.SessionTokenExpiry)
	handlers := server.NewHandlers(engine, sessionAuth)

	httpServer, err := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.HTTPPort,
		Logger:         logger,
		AllowedOrigins: []string{"*"},
		Auth:           sessionAuth,
		Handlers:       handlers,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	slog.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// Ensure interfaces are satisfied at compile time.
var (
	_ vectorstore.VectorStore = (*vectorstore.QdrantStore)(nil)
	_ embedder.Embedder       = (*embedder.OllamaEmbedder)(nil)
	_ embedder.SparseEmbedder = (*embedder.BM25Vectorizer)(nil)
	_ llm.LLM                 = (*llm.OllamaClient)(nil)
	_ session.Retriever       = (*vectorstore.Adapter)(nil)
)
