package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getstacklabs/stackhub/internal/cache"
	"github.com/getstacklabs/stackhub/internal/config"
	"github.com/getstacklabs/stackhub/internal/embedder"
	"github.com/getstacklabs/stackhub/internal/fetcher"
	"github.com/getstacklabs/stackhub/internal/mcp"
	"github.com/getstacklabs/stackhub/internal/ranker"
	"github.com/getstacklabs/stackhub/internal/registry"
	"github.com/getstacklabs/stackhub/internal/registry/postgres"
	"github.com/getstacklabs/stackhub/internal/retrieval"
	"github.com/getstacklabs/stackhub/internal/server"
	"github.com/getstacklabs/stackhub/internal/vectorstore"
)

func main() {
	// Structured logging goes to stderr: stdout belongs to the MCP transport
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
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

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting stackhub",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
		"embedding_provider", cfg.EmbeddingProvider,
	)

	// Initialize PostgreSQL template registry
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	templateRepo := postgres.NewTemplateRepo(db)
	slog.Info("connected to PostgreSQL")

	// Initialize Qdrant vector index
	index, err := vectorstore.NewQdrantIndex(ctx, cfg.QdrantGRPCURL, cfg.QdrantCollection)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer index.Close()
	slog.Info("connected to Qdrant", "collection", cfg.QdrantCollection)

	// Initialize embedder
	embed, err := embedder.NewFromSettings(embedder.Settings{
		Provider:     cfg.EmbeddingProvider,
		OllamaURL:    cfg.OllamaURL,
		OllamaModel:  cfg.OllamaModel,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		OpenAIModel:  cfg.OpenAIModel,
		Dimension:    cfg.EmbeddingDimension,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}
	slog.Info("initialized embedder", "model", embed.ModelName(), "dimension", embed.Dimension())

	// A dimension mismatch between the embedder and the collection is a
	// configuration error; fail at startup, not per query.
	if err := index.EnsureCollection(ctx, embed.Dimension()); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}

	// Initialize retrieval pipeline
	rank := ranker.New(ranker.Weights{
		SimilarityWeight: cfg.SimilarityWeight,
		TagBoostPerMatch: cfg.TagBoostPerMatch,
		TagBoostCap:      cfg.TagBoostCap,
		RecencyBoostMax:  cfg.RecencyBoostMax,
	})

	results, err := cache.New(cfg.CacheMaxEntries)
	if err != nil {
		return fmt.Errorf("failed to create result cache: %w", err)
	}

	retrievalSvc := retrieval.NewService(embed, index, rank, results,
		retrieval.WithCacheTTL(cfg.CacheTTL),
		retrieval.WithTimeout(cfg.NetworkTimeout),
		retrieval.WithRetryPolicy(retrieval.RetryPolicy{
			MaxAttempts: cfg.RetryAttempts,
			BaseDelay:   cfg.RetryBackoff,
			MaxDelay:    2 * time.Second,
			Multiplier:  2.0,
		}),
		retrieval.WithLogger(slog.Default()),
	)

	// Template content fetch
	fetch := fetcher.New(cfg.TemplateRepoOwner, cfg.TemplateRepoName, nil)

	// Create servers
	mcpServer := mcp.NewServer(retrievalSvc, templateRepo, fetch, cfg.DefaultTopK)
	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Port:        cfg.HTTPPort,
		APIKey:      cfg.APIKey,
		DefaultTopK: cfg.DefaultTopK,
		Logger:      slog.Default(),
		Ready:       db.Health,
	}, retrievalSvc, templateRepo)

	// Start servers
	errCh := make(chan error, 2)

	go func() {
		slog.Info("starting HTTP server", "port", cfg.HTTPPort)
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	go func() {
		slog.Info("serving MCP on stdio")
		if err := mcpServer.Serve(ctx); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
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

	slog.Info("servers stopped")
	return nil
}

// Ensure interfaces are satisfied at compile time
var (
	_ registry.TemplateRegistry = (*postgres.TemplateRepo)(nil)
	_ vectorstore.VectorIndex   = (*vectorstore.QdrantIndex)(nil)
	_ embedder.Embedder         = (*embedder.OllamaEmbedder)(nil)
	_ embedder.Embedder         = (*embedder.OpenAIEmbedder)(nil)
)
