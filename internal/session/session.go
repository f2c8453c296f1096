// ABOUTME: Conversation session record and its deep-copy semantics.
// ABOUTME: A session tracks where one platform user is in the FAQ conversation.

package session

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Step is a position in the conversation state machine.
type Step string

// Known steps. The set is open: new handlers may introduce more.
const (
	StepInit     Step = "init"
	StepCategory Step = "category"
	StepQuestion Step = "question"
)

// Turn is one recorded inbound message and the reply it produced.
type Turn struct {
	At    time.Time `json:"at"`
	Input string    `json:"input"`
	Reply string    `json:"reply"`
	Step  Step      `json:"step"`
}

// Session is the conversation state for one platform-qualified user.
type Session struct {
	ID              string         `json:"id"`
	Key             string         `json:"key"`
	Step            Step           `json:"step"`
	CurrentCategory string         `json:"current_category,omitempty"`
	History         []Turn         `json:"history"`
	CreatedAt       time.Time      `json:"created_at"`
	LastActiveAt    time.Time      `json:"last_active_at"`
	Data            map[string]any `json:"data"`
}

// Key builds the platform-qualified session key for a user.
func Key(platform, userID string) string {
	return platform + ":" + userID
}

// newSession creates a session at StepInit with a fresh UUIDv7 identifier.
func newSession(key string, now time.Time) *Session {
	return &Session{
		ID:           uuid.Must(uuid.NewV7()).String(),
		Key:          key,
		Step:         StepInit,
		History:      []Turn{},
		CreatedAt:    now,
		LastActiveAt: now,
		Data:         map[string]any{},
	}
}

// AddTurn appends a turn, dropping the oldest entries beyond limit.
// A limit of zero or less keeps the full history.
func (s *Session) AddTurn(t Turn, limit int) {
	s.History = append(s.History, t)
	s.trimHistory(limit)
}

func (s *Session) trimHistory(limit int) {
	if limit <= 0 || len(s.History) <= limit {
		return
	}
	drop := len(s.History) - limit
	s.History = slices.Clone(s.History[drop:])
}

// Snapshot returns a deep copy of s. Nothing in the copy aliases s.
func Snapshot(s *Session) Session {
	if s == nil {
		return Session{}
	}
	out := *s
	out.History = slices.Clone(s.History)
	if out.History == nil {
		out.History = []Turn{}
	}
	out.Data = cloneMap(s.Data)
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies the container types JSON-shaped data is built from.
// Other values are copied by assignment.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return slices.Clone(val)
	case map[string]string:
		return maps.Clone(val)
	default:
		return v
	}
}
