package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// NewPostgresDB opens and pings a PostgreSQL connection pool.
func NewPostgresDB(dsn string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns / 2)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables the repositories expect. Safe to run on
// every start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS venues (
		id           UUID PRIMARY KEY,
		name         TEXT NOT NULL,
		slug         TEXT NOT NULL UNIQUE,
		center_lat   DOUBLE PRECISION NOT NULL DEFAULT 0,
		center_lng   DOUBLE PRECISION NOT NULL DEFAULT 0,
		zoom         DOUBLE PRECISION NOT NULL DEFAULT 18,
		status       TEXT NOT NULL DEFAULT 'draft',
		floors       JSONB NOT NULL DEFAULT '{}',
		floor_photos JSONB NOT NULL DEFAULT '{}',
		content      JSONB NOT NULL DEFAULT '{}',
		owner_id     UUID,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS units (
		id          UUID PRIMARY KEY,
		venue_id    UUID NOT NULL REFERENCES venues(id) ON DELETE CASCADE,
		room_id     TEXT NOT NULL,
		floor       INTEGER NOT NULL,
		name        TEXT NOT NULL DEFAULT '',
		geometry    JSONB,
		content     JSONB NOT NULL DEFAULT '{}',
		owner_id    UUID,
		needs_sync  BOOLEAN NOT NULL DEFAULT FALSE,
		last_synced TIMESTAMPTZ,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (venue_id, room_id)
	)`,
	`CREATE INDEX IF NOT EXISTS units_needs_sync_idx ON units (needs_sync) WHERE needs_sync`,
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name    TEXT NOT NULL DEFAULT '',
		last_name     TEXT NOT NULL DEFAULT '',
		role          TEXT NOT NULL,
		venue_id      UUID,
		room_id       TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}
