package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okrdocs/docqa/internal/auth"
	"github.com/okrdocs/docqa/internal/config"
	"github.com/okrdocs/docqa/internal/embedder"
	"github.com/okrdocs/docqa/internal/llm"
	"github.com/okrdocs/docqa/internal/memory"
	"github.com/okrdocs/docqa/internal/pipeline"
	"github.com/okrdocs/docqa/internal/repository"
	"github.com/okrdocs/docqa/internal/repository/postgres"
	"github.com/okrdocs/docqa/internal/reranker"
	"github.com/okrdocs/docqa/internal/server"
	"github.com/okrdocs/docqa/internal/vectorstore"
)

func main() {
	// Set up structured logging
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.Default()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting docqa service",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
	)

	// Conversation history: Postgres when configured, in-memory otherwise
	var history repository.ConversationRepository
	if cfg.DatabaseURL != "" {
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		history = postgres.NewConversationRepo(db)
		slog.Info("connected to PostgreSQL conversation store")
	} else {
		history = memory.NewStore(cfg.HistoryTurns*2, cfg.HistoryTTL)
		slog.Info("using in-memory conversation store")
	}

	// Initialize Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(ctx, cfg.QdrantGRPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer vectorStore.Close()
	slog.Info("connected to Qdrant")

	// Initialize Ollama embedder
	embed := embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL: cfg.OllamaURL,
		Model:   cfg.OllamaEmbeddingModel,
	})
	slog.Info("initialized Ollama embedder", "model", cfg.OllamaEmbeddingModel)

	if err := vectorStore.EnsureCollection(ctx, embed.Dimension()); err != nil {
		return fmt.Errorf("failed to ensure passage collection: %w", err)
	}

	// Initialize Ollama LLM
	llmClient := llm.NewOllamaClient(
		llm.WithBaseURL(cfg.OllamaURL),
		llm.WithModel(cfg.OllamaLLMModel),
	)
	slog.Info("initialized Ollama LLM", "model", cfg.OllamaLLMModel)

	// Semantic scorer with out-of-band readiness probing; the positional
	// fallback keeps queries answerable while the model is down.
	semantic := reranker.NewSemanticScorer(reranker.SemanticConfig{
		BaseURL:       cfg.RerankerURL,
		ProbeInterval: cfg.RerankerProbeInterval,
		Logger:        logger,
	})
	semantic.StartHealthProbe(ctx)

	orchestrator := reranker.NewOrchestrator(
		semantic,
		reranker.NewPositionalScorer(cfg.FallbackDecay),
		cfg.RerankTimeout,
		logger,
	)

	controller := pipeline.NewController(embed, vectorStore, orchestrator, llmClient, history, pipeline.Options{
		TopK:            cfg.TopK,
		MaxSelected:     cfg.MaxSelected,
		MinPerSource:    cfg.MinPerSource,
		MaxExcerptChars: cfg.MaxExcerptChars,
		HistoryTurns:    cfg.HistoryTurns,
		Model:           cfg.OllamaLLMModel,
		Temperature:     cfg.Temperature,
		MaxTokens:       cfg.MaxTokens,
		EmbedTimeout:    cfg.EmbedTimeout,
		RetrieveTimeout: cfg.RetrieveTimeout,
		GenerateTimeout: cfg.GenerateTimeout,
		PersistTimeout:  cfg.PersistTimeout,
	}, logger)

	authMiddleware := auth.NewMiddleware(
		auth.NewJWTManager(&auth.JWTConfig{
			Secret: cfg.JWTSecret,
			Expiry: cfg.JWTExpiry,
			Issuer: "docqa",
		}),
		cfg.APIKey,
	)

	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.HTTPPort,
		Logger:         logger,
		AllowedOrigins: []string{"*"}, // Configure in production
		Auth:           authMiddleware,
		Pipeline:       controller,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// Ensure interfaces are satisfied at compile time
var (
	_ repository.ConversationRepository = (*postgres.ConversationRepo)(nil)
	_ repository.ConversationRepository = (*memory.Store)(nil)
	_ vectorstore.VectorStore           = (*vectorstore.QdrantStore)(nil)
	_ embedder.Embedder                 = (*embedder.OllamaEmbedder)(nil)
	_ llm.LLM                           = (*llm.OllamaClient)(nil)
	_ reranker.Scorer                   = (*reranker.SemanticScorer)(nil)
	_ reranker.Scorer                   = (*reranker.PositionalScorer)(nil)
)
