// Package registry defines the template metadata model and its data access
// interface. The registry is the system of record for template metadata;
// the vector index only holds derived embeddings and payload snapshots.
package registry

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested template does not exist
var ErrNotFound = errors.New("not found")

// Template represents a project template record. The retrieval core never
// mutates a Template; writes happen only through the sync pipeline.
type Template struct {
	ID          string // stable slug, unique (e.g. "react-typescript-starter")
	Name        string
	Description string
	Tags        []string
	Language    string
	Category    string
	RepoPath    string // directory name inside the template monorepo
	Embedding   EmbeddingInfo
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EmbeddingInfo records which model produced the stored vector, so a model
// upgrade can detect stale embeddings during sync.
type EmbeddingInfo struct {
	Model      string `json:"model"`
	Dimension  int    `json:"dimension"`
	EmbeddedAt string `json:"embedded_at,omitempty"`
}

// TemplateRegistry defines operations for template metadata persistence
type TemplateRegistry interface {
	GetByID(ctx context.Context, id string) (*Template, error)
	List(ctx context.Context, limit, offset int) ([]*Template, int, error)
	Upsert(ctx context.Context, tmpl *Template) error
	SetEmbeddingInfo(ctx context.Context, id string, info EmbeddingInfo) error
}
