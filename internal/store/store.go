// ABOUTME: Store interface and data types for relay-gateway persistence
// ABOUTME: Defines the Interaction audit record and the query filter shared by all backends

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Limits for ListInteractions.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000

	// maxMessageRunes bounds the stored message excerpt.
	maxMessageRunes = 100
)

// Interaction is one audited conversation turn.
type Interaction struct {
	ID         string         `json:"id"`
	Platform   string         `json:"platform"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id,omitempty"`
	Message    string         `json:"message,omitempty"` // excerpt of the inbound text
	Action     string         `json:"action,omitempty"`  // response type produced
	DurationMS int64          `json:"duration_ms"`
	Success    bool           `json:"success"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// InteractionFilter narrows ListInteractions. Zero fields match everything.
type InteractionFilter struct {
	Platform string
	UserID   string
	Since    *time.Time
	Limit    int // default 100, max 1000
}

// Store persists interactions.
type Store interface {
	SaveInteraction(ctx context.Context, i *Interaction) error
	// ListInteractions returns matching interactions, newest first.
	ListInteractions(ctx context.Context, f InteractionFilter) ([]*Interaction, error)
	Close() error
}

// prepare fills the generated fields of i and truncates the message excerpt.
func prepare(i *Interaction) {
	if i.ID == "" {
		i.ID = uuid.Must(uuid.NewV7()).String()
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now()
	}
	i.CreatedAt = i.CreatedAt.UTC()
	if r := []rune(i.Message); len(r) > maxMessageRunes {
		i.Message = string(r[:maxMessageRunes])
	}
}

// normalizeLimit applies the default and cap to a list limit.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
