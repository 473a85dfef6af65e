// Package repository implements the Postgres learner backend for shared
// deployments where several tutoring devices serve one classroom. The
// local JSON store remains the default single-machine backend.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects to Postgres through the pgx stdlib driver.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables the repositories need.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS learners (
			id                  TEXT PRIMARY KEY,
			name                TEXT NOT NULL,
			age                 INT NOT NULL,
			grade               INT NOT NULL,
			last_active_at      TIMESTAMPTZ,
			login_streak        JSONB,
			practice_streak     JSONB,
			goals               JSONB,
			questions_asked     INT NOT NULL DEFAULT 0,
			conversations_done  INT NOT NULL DEFAULT 0,
			last_nudge_shown_at TIMESTAMPTZ,
			last_suggestion_at  TIMESTAMPTZ,
			celebrated_goal_ids TEXT[] NOT NULL DEFAULT '{}',
			nudge_interactions  JSONB,
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS nudge_interactions (
			id          BIGSERIAL PRIMARY KEY,
			nudge_id    TEXT NOT NULL,
			learner_id  TEXT NOT NULL,
			reason      TEXT NOT NULL,
			action      TEXT NOT NULL,
			priority    TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_learner
			ON nudge_interactions (learner_id, occurred_at)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
