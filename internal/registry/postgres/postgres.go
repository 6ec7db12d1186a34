// Package postgres implements the template registry on PostgreSQL. The
// registry is the source of truth for template metadata; embeddings live in
// the vector index and are rebuilt from here by the sync pipeline.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns        = 8
	defaultConnMaxIdleTime = 5 * time.Minute
)

// DB holds the registry connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// New opens a connection pool against databaseURL and verifies it with a
// ping. Pool sizing stays modest: the registry serves metadata lookups and
// the periodic sync scan, not query traffic.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if config.MaxConns == 0 {
		config.MaxConns = defaultMaxConns
	}
	config.MaxConnIdleTime = defaultConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Health reports whether the registry is reachable. Used by the readiness
// probe.
func (db *DB) Health(ctx context.Context) error {
	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("registry unreachable: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
