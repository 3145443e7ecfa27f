// Package postgres implements the store driver on PostgreSQL.
//
// PostgreSQL is the only supported backend: semantic search depends on the
// pgvector extension and lexical search on tsvector ranking.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/memexhq/memex/internal/profile"
	"github.com/memexhq/memex/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a PostgreSQL-backed store driver.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	// Conservative pool sizing for a single-user personal service.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &DB{
		db:      db,
		profile: profile,
	}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_catalog = current_database() AND table_name = 'capture' AND table_type = 'BASE TABLE')",
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}

// Migrate creates the schema when missing. Embedding dimensionality is
// fixed at creation time from the profile.
func (d *DB) Migrate(ctx context.Context) error {
	dimensions := d.profile.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = 1536
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS capture (
			id SERIAL PRIMARY KEY,
			uid TEXT NOT NULL UNIQUE,
			creator_id INTEGER NOT NULL,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL,
			media_url TEXT NOT NULL DEFAULT '',
			media_kind TEXT NOT NULL DEFAULT 'image',
			note TEXT NOT NULL DEFAULT '',
			tags TEXT[] NOT NULL DEFAULT '{}',
			extracted_text TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			processed_ts BIGINT,
			extracted_date TEXT NOT NULL DEFAULT '',
			extracted_time TEXT NOT NULL DEFAULT '',
			extracted_timestamp BIGINT,
			temporal_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			temporal_context JSONB,
			embedding vector(%d)
		)`, dimensions),
		`CREATE INDEX IF NOT EXISTS idx_capture_creator_status ON capture (creator_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_capture_search_text ON capture USING GIN (to_tsvector('english', note || ' ' || extracted_text))`,
	}

	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to run migration")
		}
	}
	return nil
}

// placeholder returns the n-th positional placeholder.
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
