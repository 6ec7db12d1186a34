package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/getstacklabs/stackhub/internal/registry"
)

// TemplateRepo implements registry.TemplateRegistry
type TemplateRepo struct {
	db *DB
}

// NewTemplateRepo creates a new template repository
func NewTemplateRepo(db *DB) *TemplateRepo {
	return &TemplateRepo{db: db}
}

const templateColumns = `id, name, description, tags, language, category, repo_path, embedding, created_at, updated_at`

// GetByID retrieves a template by its identifier
func (r *TemplateRepo) GetByID(ctx context.Context, id string) (*registry.Template, error) {
	query := fmt.Sprintf(`SELECT %s FROM templates WHERE id = $1`, templateColumns)

	tmpl, err := scanTemplate(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, registry.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return tmpl, nil
}

// List retrieves templates ordered by identifier, with pagination. The total
// count is returned alongside the page.
func (r *TemplateRepo) List(ctx context.Context, limit, offset int) ([]*registry.Template, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM templates`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count templates: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM templates ORDER BY id LIMIT $1 OFFSET $2`, templateColumns)
	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*registry.Template
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, tmpl)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate templates: %w", err)
	}

	return templates, total, nil
}

// Upsert inserts or replaces a template record
func (r *TemplateRepo) Upsert(ctx context.Context, tmpl *registry.Template) error {
	embeddingJSON, err := json.Marshal(tmpl.Embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding info: %w", err)
	}

	query := `
		INSERT INTO templates (id, name, description, tags, language, category, repo_path, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			tags = EXCLUDED.tags,
			language = EXCLUDED.language,
			category = EXCLUDED.category,
			repo_path = EXCLUDED.repo_path,
			embedding = EXCLUDED.embedding,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.db.Pool.Exec(ctx, query,
		tmpl.ID, tmpl.Name, tmpl.Description, tmpl.Tags, tmpl.Language,
		tmpl.Category, tmpl.RepoPath, embeddingJSON, tmpl.CreatedAt, tmpl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert template: %w", err)
	}
	return nil
}

// SetEmbeddingInfo records which model produced the stored vector
func (r *TemplateRepo) SetEmbeddingInfo(ctx context.Context, id string, info registry.EmbeddingInfo) error {
	embeddingJSON, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding info: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, `UPDATE templates SET embedding = $2 WHERE id = $1`, id, embeddingJSON)
	if err != nil {
		return fmt.Errorf("failed to update embedding info: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return registry.ErrNotFound
	}
	return nil
}

// row abstracts pgx.Row and pgx.Rows for scanning
type row interface {
	Scan(dest ...any) error
}

func scanTemplate(r row) (*registry.Template, error) {
	var tmpl registry.Template
	var embeddingJSON []byte

	err := r.Scan(
		&tmpl.ID, &tmpl.Name, &tmpl.Description, &tmpl.Tags, &tmpl.Language,
		&tmpl.Category, &tmpl.RepoPath, &embeddingJSON, &tmpl.CreatedAt, &tmpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(embeddingJSON) > 0 {
		if err := json.Unmarshal(embeddingJSON, &tmpl.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding info: %w", err)
		}
	}

	return &tmpl, nil
}

// Ensure TemplateRepo implements registry.TemplateRegistry
var _ registry.TemplateRegistry = (*TemplateRepo)(nil)
