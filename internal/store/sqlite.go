// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides interaction persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteTimeLayout is fixed width so text ordering matches time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Recorder writes and admin reads may overlap
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS interactions (
			id TEXT PRIMARY KEY,
			platform TEXT NOT NULL,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL,
			success INTEGER NOT NULL,
			data_json TEXT,
			error TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_interactions_created
			ON interactions(created_at);

		CREATE INDEX IF NOT EXISTS idx_interactions_user
			ON interactions(platform, user_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// SaveInteraction inserts an interaction, generating ID and CreatedAt if unset.
func (s *SQLiteStore) SaveInteraction(ctx context.Context, i *Interaction) error {
	prepare(i)

	args, err := interactionArgs(i, i.CreatedAt.Format(sqliteTimeLayout))
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, insertInteractionQuery(questionMark), args...); err != nil {
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
func (s *SQLiteStore) ListInteractions(ctx context.Context, f InteractionFilter) ([]*Interaction, error) {
	query, args := listInteractionsQuery(f, questionMark, func(t time.Time) any {
		return t.Format(sqliteTimeLayout)
	})
	return queryInteractions(ctx, s.db, query, args, parseSQLiteTime)
}

func parseSQLiteTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		return time.Parse(sqliteTimeLayout, t)
	case []byte:
		return time.Parse(sqliteTimeLayout, string(t))
	case time.Time:
		return t.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unexpected created_at type %T", v)
	}
}
