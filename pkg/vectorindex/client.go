// Package vectorindex implements the semantic search backend (spec §3/§6.3)
// over Postgres+pgvector, grounded on pkg/store's same pgx/database/sql +
// golang-migrate shape — the two packages may share a DSN but never a
// migration namespace, since the vector index is an optional capability
// (spec §4.8.1's "discovery degrades silently without it").
package vectorindex

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/agentbus/core/pkg/config"
)

//go:embed migrations
var migrationsFS embed.FS

// Client wraps the pooled connection used by the VectorIndex adapter.
type Client struct {
	db         *sql.DB
	dimensions int
}

// Close releases the connection pool.
func (c *Client) Close() error { return c.db.Close() }

// NewClient opens a connection to cfg.DSN, pings it, and applies the
// embedded pgvector migrations.
func NewClient(ctx context.Context, cfg config.VectorIndexConfig) (*Client, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open vector index connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping vector index: %w", err)
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply vector index migrations: %w", err)
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = 1536
	}
	return &Client{db: db, dimensions: dims}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres migrate driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	defer source.Close()

	m, err := migrate.NewWithInstance("iofs", source, "agentbus_vectorindex", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
