// ABOUTME: PostgreSQL implementation of the Store interface using lib/pq
// ABOUTME: Used when interactions must outlive a single host; schema is created on open

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// Connection pool settings.
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 25
	DefaultConnMaxLifetime = 5 * time.Minute
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS interactions (
		id TEXT PRIMARY KEY,
		platform TEXT NOT NULL,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL DEFAULT '',
		duration_ms BIGINT NOT NULL,
		success BOOLEAN NOT NULL,
		data_json TEXT,
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_interactions_created
		ON interactions(created_at);

	CREATE INDEX IF NOT EXISTS idx_interactions_user
		ON interactions(platform, user_id, created_at);
`

// PostgresStore implements the Store interface using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore connects to dsn, verifies the connection and creates the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	logger := slog.Default().With("component", "store")
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("Postgres store initialized")
	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.logger.Info("closing Postgres store")
	return s.db.Close()
}

// SaveInteraction inserts an interaction, generating ID and CreatedAt if unset.
func (s *PostgresStore) SaveInteraction(ctx context.Context, i *Interaction) error {
	prepare(i)

	args, err := interactionArgs(i, i.CreatedAt)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, insertInteractionQuery(dollar), args...); err != nil {
		return fmt.Errorf("inserting interaction: %w", err)
	}

	s.logger.Debug("saved interaction",
		"id", i.ID,
		"platform", i.Platform,
		"user_id", i.UserID,
		"success", i.Success,
	)
	return nil
}

// ListInteractions returns interactions matching f, newest first.
func (s *PostgresStore) ListInteractions(ctx context.Context, f InteractionFilter) ([]*Interaction, error) {
	query, args := listInteractionsQuery(f, dollar, func(t time.Time) any { return t })
	return queryInteractions(ctx, s.db, query, args, func(v any) (time.Time, error) {
		t, ok := v.(time.Time)
		if !ok {
			return time.Time{}, fmt.Errorf("unexpected created_at type %T", v)
		}
		return t.UTC(), nil
	})
}
