// Command stackhub-sync embeds template registry metadata and upserts the
// vectors into the index. Run it after adding or editing templates so
// search reflects the registry.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/getstacklabs/stackhub/internal/config"
	"github.com/getstacklabs/stackhub/internal/embedder"
	"github.com/getstacklabs/stackhub/internal/ingest"
	"github.com/getstacklabs/stackhub/internal/registry/postgres"
	"github.com/getstacklabs/stackhub/internal/vectorstore"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("sync failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	templateRepo := postgres.NewTemplateRepo(db)

	index, err := vectorstore.NewQdrantIndex(ctx, cfg.QdrantGRPCURL, cfg.QdrantCollection)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer index.Close()

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

	pipeline := ingest.NewPipeline(templateRepo, embed, index, ingest.PipelineConfig{
		Logger: slog.Default(),
	})

	stats, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	slog.Info("sync complete",
		"templates", stats.Templates,
		"skipped", stats.Skipped,
		"duration", stats.Duration,
	)
	return nil
}
