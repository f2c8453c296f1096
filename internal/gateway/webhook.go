// ABOUTME: HTTP handlers for platform webhooks
// ABOUTME: POST /webhook/{platform} runs a turn; GET /webhook/facebook answers the Messenger challenge

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/2389/chat-relay/internal/platform"
)

// maxWebhookBody caps a webhook request body.
const maxWebhookBody = 10 << 20

// handleWebhook handles POST /webhook/{platform}.
func (g *Gateway) handleWebhook(w http.ResponseWriter, r *http.Request) {
	p := platform.Parse(r.PathValue("platform"))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if g.router.Enabled(p) {
		if err := g.signatures.verify(p, r, body); err != nil {
			g.logger.Warn("rejected webhook", "platform", p, "error", err)
			writeJSONError(w, http.StatusUnauthorized, err.Error())
			return
		}
	}

	res, err := g.router.Route(r.Context(), p, body)
	if err != nil {
		var routeErr *Error
		if errors.As(err, &routeErr) {
			writeJSONError(w, routeErr.Status, routeErr.Msg)
			return
		}
		writeJSONError(w, http.StatusInternalServerError, internalErrorMsg)
		return
	}

	if raw, ok := res.Payload.(platform.Raw); ok {
		w.Header().Set("Content-Type", raw.ContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw.Body)
		return
	}
	writeJSON(w, http.StatusOK, res.Payload)
}

// handleFacebookVerify handles GET /webhook/facebook, the Messenger
// subscription handshake.
func (g *Gateway) handleFacebookVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := g.config.Platforms.Facebook.VerifyToken
	if token == "" || q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != token {
		writeJSONError(w, http.StatusForbidden, "verification failed")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, q.Get("hub.challenge"))
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes an {"error": msg} response.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
