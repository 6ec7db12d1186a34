// Package ingest synchronizes the template registry into the vector index:
// it embeds template descriptions and upserts the resulting points. This is
// the path that produces embeddings once and stores them alongside template
// metadata; the retrieval core only ever reads them back.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/getstacklabs/stackhub/internal/embedder"
	"github.com/getstacklabs/stackhub/internal/registry"
	"github.com/getstacklabs/stackhub/internal/vectorstore"
)

const (
	// defaultBatchSize is how many templates are embedded per batch call.
	defaultBatchSize = 32

	// defaultConcurrency bounds concurrent embed+upsert batches.
	defaultConcurrency = 2

	// pageSize is the registry list page size.
	pageSize = 200
)

// PipelineConfig holds configuration for the sync pipeline
type PipelineConfig struct {
	// BatchSize is the number of templates embedded per batch (default 32).
	BatchSize int

	// Concurrency bounds in-flight batches (default 2).
	Concurrency int

	// Logger for progress reporting.
	Logger *slog.Logger
}

// Stats contains statistics about a sync run
type Stats struct {
	JobID     uuid.UUID
	Templates int
	Skipped   int
	Duration  time.Duration
}

// Pipeline reads templates from the registry, embeds their descriptions and
// upserts vectors into the index.
type Pipeline struct {
	registry registry.TemplateRegistry
	embedder embedder.Embedder
	index    vectorstore.VectorIndex
	config   PipelineConfig
}

// NewPipeline creates a new sync pipeline
func NewPipeline(reg registry.TemplateRegistry, emb embedder.Embedder, index vectorstore.VectorIndex, config PipelineConfig) *Pipeline {
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaultConcurrency
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Pipeline{
		registry: reg,
		embedder: emb,
		index:    index,
		config:   config,
	}
}

// Run synchronizes all registry templates into the vector index. Templates
// with an empty description are skipped with a warning rather than failing
// the run.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	start := time.Now()
	stats := &Stats{JobID: uuid.New()}
	logger := p.config.Logger.With("job_id", stats.JobID)

	if err := p.index.EnsureCollection(ctx, p.embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	templates, err := p.listAll(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("starting template sync", "templates", len(templates), "model", p.embedder.ModelName())

	var embeddable []*registry.Template
	for _, tmpl := range templates {
		if strings.TrimSpace(tmpl.Description) == "" {
			logger.Warn("skipping template with empty description", "template_id", tmpl.ID)
			stats.Skipped++
			continue
		}
		embeddable = append(embeddable, tmpl)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)

	for begin := 0; begin < len(embeddable); begin += p.config.BatchSize {
		end := begin + p.config.BatchSize
		if end > len(embeddable) {
			end = len(embeddable)
		}
		batch := embeddable[begin:end]

		g.Go(func() error {
			if err := p.syncBatch(gctx, batch); err != nil {
				return err
			}
			logger.Debug("synced batch", "size", len(batch))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sync failed: %w", err)
	}

	stats.Templates = len(embeddable)
	stats.Duration = time.Since(start)
	logger.Info("template sync completed",
		"templates", stats.Templates,
		"skipped", stats.Skipped,
		"duration", stats.Duration,
	)
	return stats, nil
}

// syncBatch embeds one batch of descriptions, upserts the points and records
// the embedding provenance back into the registry.
func (p *Pipeline) syncBatch(ctx context.Context, batch []*registry.Template) error {
	texts := make([]string, len(batch))
	for i, tmpl := range batch {
		texts[i] = embeddingText(tmpl)
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed batch: %w", err)
	}

	now := time.Now().UTC()
	points := make([]vectorstore.TemplatePoint, len(batch))
	for i, tmpl := range batch {
		points[i] = vectorstore.TemplatePoint{
			TemplateID: tmpl.ID,
			Name:       tmpl.Name,
			Vector:     vectors[i],
			Tags:       tmpl.Tags,
			Language:   tmpl.Language,
			Category:   tmpl.Category,
			UpdatedAt:  tmpl.UpdatedAt.UTC().Format(time.RFC3339),
		}
	}

	if err := p.index.Upsert(ctx, points); err != nil {
		return fmt.Errorf("failed to upsert batch: %w", err)
	}

	info := registry.EmbeddingInfo{
		Model:      p.embedder.ModelName(),
		Dimension:  p.embedder.Dimension(),
		EmbeddedAt: now.Format(time.RFC3339),
	}
	for _, tmpl := range batch {
		if err := p.registry.SetEmbeddingInfo(ctx, tmpl.ID, info); err != nil {
			return fmt.Errorf("failed to record embedding info for %s: %w", tmpl.ID, err)
		}
	}

	return nil
}

// embeddingText builds the text that represents a template in vector space.
// Name and tags are included so short descriptions still carry signal.
func embeddingText(tmpl *registry.Template) string {
	var sb strings.Builder
	sb.WriteString(tmpl.Name)
	sb.WriteString("\n")
	sb.WriteString(tmpl.Description)
	if len(tmpl.Tags) > 0 {
		sb.WriteString("\nTags: ")
		sb.WriteString(strings.Join(tmpl.Tags, ", "))
	}
	if tmpl.Language != "" {
		sb.WriteString("\nLanguage: ")
		sb.WriteString(tmpl.Language)
	}
	return sb.String()
}

func (p *Pipeline) listAll(ctx context.Context) ([]*registry.Template, error) {
	var all []*registry.Template
	for offset := 0; ; offset += pageSize {
		page, total, err := p.registry.List(ctx, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list templates: %w", err)
		}
		all = append(all, page...)
		if len(all) >= total || len(page) == 0 {
			return all, nil
		}
	}
}
