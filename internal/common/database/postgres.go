package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"device-research/internal/common/config"

	_ "github.com/lib/pq"
)

// researchTurnsDDL creates the audit table written by internal/audit.
const researchTurnsDDL = `
CREATE TABLE IF NOT EXISTS research_turns (
	id          UUID PRIMARY KEY,
	session_id  TEXT NOT NULL,
	question    TEXT NOT NULL,
	sources     TEXT[] NOT NULL DEFAULT '{}',
	answer      TEXT NOT NULL,
	duration_ms BIGINT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS research_turns_session_idx ON research_turns (session_id, created_at DESC);
`

type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// EnsureSchema creates the tables the worker writes to if they are missing.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, researchTurnsDDL); err != nil {
		return fmt.Errorf("failed to create research_turns: %w", err)
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
