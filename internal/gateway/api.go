// ABOUTME: HTTP handlers for health, the FAQ page and the admin API
// ABOUTME: Admin routes expose session stats, session reset, audit records and customer profiles

package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/2389/chat-relay/internal/builtins"
	"github.com/2389/chat-relay/internal/contextstore"
	"github.com/2389/chat-relay/internal/platform"
	"github.com/2389/chat-relay/internal/session"
	"github.com/2389/chat-relay/internal/store"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status        string        `json:"status"`
	Version       string        `json:"version"`
	Environment   string        `json:"environment"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Sessions      session.Stats `json:"sessions"`
}

// SessionInfo is one session in the GET /api/sessions listing.
type SessionInfo struct {
	ID              string    `json:"id"`
	Key             string    `json:"key"`
	Step            string    `json:"step"`
	CurrentCategory string    `json:"current_category,omitempty"`
	Turns           int       `json:"turns"`
	CreatedAt       time.Time `json:"created_at"`
	LastActiveAt    time.Time `json:"last_active_at"`
}

// SessionsResponse is the JSON response for GET /api/sessions.
type SessionsResponse struct {
	Stats    session.Stats `json:"stats"`
	Sessions []SessionInfo `json:"sessions"`
}

// InteractionsResponse is the JSON response for GET /api/interactions.
type InteractionsResponse struct {
	Interactions []*store.Interaction `json:"interactions"`
}

// handleHealth returns service status and session counts.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       g.version,
		Environment:   g.config.Environment,
		UptimeSeconds: int64(time.Since(g.startedAt).Seconds()),
		Sessions:      g.engine.Sessions().Stats(),
	})
}

// handleFAQ serves the catalog rendered once at startup.
func (g *Gateway) handleFAQ(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(g.faqHTML)
}

// handleListSessions handles GET /api/sessions.
func (g *Gateway) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := g.engine.Sessions().List()
	resp := SessionsResponse{
		Stats:    g.engine.Sessions().Stats(),
		Sessions: make([]SessionInfo, 0, len(sessions)),
	}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, SessionInfo{
			ID:              s.ID,
			Key:             s.Key,
			Step:            string(s.Step),
			CurrentCategory: s.CurrentCategory,
			Turns:           len(s.History),
			CreatedAt:       s.CreatedAt,
			LastActiveAt:    s.LastActiveAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDeleteSession handles DELETE /api/sessions/{platform}/{user}.
func (g *Gateway) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	p := platform.Parse(r.PathValue("platform"))
	user := r.PathValue("user")
	if !g.engine.Reset(p, user) {
		writeJSONError(w, http.StatusNotFound, "session not found")
		return
	}
	g.logger.Info("session reset by admin", "platform", p, "user_id", user)
	w.WriteHeader(http.StatusNoContent)
}

// handleListInteractions handles GET /api/interactions?platform=&user_id=&limit=.
func (g *Gateway) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	if g.store == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "interaction store disabled")
		return
	}

	q := r.URL.Query()
	filter := store.InteractionFilter{
		Platform: q.Get("platform"),
		UserID:   q.Get("user_id"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	items, err := g.store.ListInteractions(r.Context(), filter)
	if err != nil {
		g.logger.Error("failed to list interactions", "error", err)
		writeJSONError(w, http.StatusInternalServerError, internalErrorMsg)
		return
	}
	if items == nil {
		items = []*store.Interaction{}
	}
	writeJSON(w, http.StatusOK, InteractionsResponse{Interactions: items})
}

// handleGetProfile handles GET /api/profiles/{platform}/{user}.
func (g *Gateway) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p := platform.Parse(r.PathValue("platform"))
	key := session.Key(string(p), r.PathValue("user"))

	ns := contextstore.Scope(g.engine.Contexts(), builtins.AnalysisName)
	profile, ok := builtins.Profile(ns, key)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
