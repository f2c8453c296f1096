// ABOUTME: Query building and row scanning shared by the SQLite and Postgres stores
// ABOUTME: The dialects differ only in placeholder syntax and column types

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// placeholder renders the n-th (1-based) bind parameter for a dialect.
type placeholder func(n int) string

func questionMark(int) string { return "?" }

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

const interactionColumns = `id, platform, user_id, session_id, message, action, duration_ms, success, data_json, error, created_at`

func insertInteractionQuery(ph placeholder) string {
	params := make([]string, 11)
	for i := range params {
		params[i] = ph(i + 1)
	}
	return `INSERT INTO interactions (` + interactionColumns + `) VALUES (` + strings.Join(params, ", ") + `)`
}

func interactionArgs(i *Interaction, createdAt any) ([]any, error) {
	var dataJSON *string
	if i.Data != nil {
		data, err := json.Marshal(i.Data)
		if err != nil {
			return nil, fmt.Errorf("marshaling interaction data: %w", err)
		}
		str := string(data)
		dataJSON = &str
	}
	return []any{
		i.ID, i.Platform, i.UserID, i.SessionID, i.Message, i.Action,
		i.DurationMS, i.Success, dataJSON, i.Error, createdAt,
	}, nil
}

// listInteractionsQuery builds a filtered SELECT, newest first.
func listInteractionsQuery(f InteractionFilter, ph placeholder, since func(time.Time) any) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, ph(len(args))))
	}

	if f.Platform != "" {
		add("platform = %s", f.Platform)
	}
	if f.UserID != "" {
		add("user_id = %s", f.UserID)
	}
	if f.Since != nil {
		add("created_at >= %s", since(f.Since.UTC()))
	}

	query := `SELECT ` + interactionColumns + ` FROM interactions`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, normalizeLimit(f.Limit))
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %s`, ph(len(args)))
	return query, args
}

// scanInteractions reads rows produced by listInteractionsQuery. parseTime
// converts the dialect's created_at column value.
func scanInteractions(rows *sql.Rows, parseTime func(any) (time.Time, error)) ([]*Interaction, error) {
	var out []*Interaction
	for rows.Next() {
		var (
			i        Interaction
			dataJSON sql.NullString
			created  any
		)
		if err := rows.Scan(
			&i.ID, &i.Platform, &i.UserID, &i.SessionID, &i.Message, &i.Action,
			&i.DurationMS, &i.Success, &dataJSON, &i.Error, &created,
		); err != nil {
			return nil, fmt.Errorf("scanning interaction: %w", err)
		}
		if dataJSON.Valid && dataJSON.String != "" {
			if err := json.Unmarshal([]byte(dataJSON.String), &i.Data); err != nil {
				return nil, fmt.Errorf("unmarshaling interaction data: %w", err)
			}
		}
		t, err := parseTime(created)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		i.CreatedAt = t
		out = append(out, &i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating interactions: %w", err)
	}
	return out, nil
}

func queryInteractions(ctx context.Context, db *sql.DB, query string, args []any, parseTime func(any) (time.Time, error)) ([]*Interaction, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying interactions: %w", err)
	}
	defer rows.Close()
	return scanInteractions(rows, parseTime)
}
