package collection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // postgres driver
)

// CollectionsTableDDL creates the table that holds one row per collection.
const CollectionsTableDDL = `CREATE TABLE IF NOT EXISTS collections (
	name       TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const (
	selectCollectionSQL = `SELECT data FROM collections WHERE name = $1`
	upsertCollectionSQL = `INSERT INTO collections (name, data, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`
)

// PostgresBackend stores each collection as one row. The upsert is a single
// statement and therefore atomic.
type PostgresBackend struct {
	db *sql.DB
}

// OpenPostgres opens a connection pool using the lib/pq driver.
func OpenPostgres(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// NewPostgresBackend wraps db.
func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// EnsureSchema creates the collections table if it does not exist.
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, CollectionsTableDDL); err != nil {
		return fmt.Errorf("failed to create collections table: %w", err)
	}
	return nil
}

// Name implements Backend.
func (b *PostgresBackend) Name() string { return "postgres" }

// DB exposes the pool for health checks.
func (b *PostgresBackend) DB() *sql.DB { return b.db }

// Read implements Backend.
func (b *PostgresBackend) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	var data []byte
	err := b.db.QueryRowContext(ctx, selectCollectionSQL, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write implements Backend.
func (b *PostgresBackend) Write(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	_, err := b.db.ExecContext(ctx, upsertCollectionSQL, name, data)
	return err
}

// Ping implements Backend.
func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}
