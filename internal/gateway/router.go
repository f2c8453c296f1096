// ABOUTME: Router runs one webhook turn: allow-list, standardize, engine, adapt
// ABOUTME: Maps failures onto HTTP statuses and emits a fire-and-forget audit record per turn

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/2389/chat-relay/internal/builtins"
	"github.com/2389/chat-relay/internal/engine"
	"github.com/2389/chat-relay/internal/platform"
	"github.com/2389/chat-relay/internal/store"
)

// Router errors
var (
	// ErrUnsupportedPlatform means the platform is not on the allow-list
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// internalErrorMsg is all a caller learns about a 500.
const internalErrorMsg = "internal error"

// echoReason acknowledges a platform echo of the bot's own reply.
const echoReason = "echo of own message"

// Error is a routing failure with the HTTP status it maps to.
// Msg is safe to show the caller; Err carries the detail for logs.
type Error struct {
	Status int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Handler runs a conversation turn. Satisfied by *engine.Engine.
type Handler interface {
	HandleMessage(ctx context.Context, ev platform.Event) (engine.Result, error)
}

// Aborter is implemented by handlers whose plugins claim per-turn state,
// such as a dedupe record. The Router calls Abort when a turn the handler
// completed still fails, so the platform's retry is not treated as a repeat.
// Satisfied by *engine.Engine.
type Aborter interface {
	Abort(ctx context.Context, ev platform.Event, values map[string]any)
}

// Auditor accepts interaction records without blocking. Satisfied by *store.Recorder.
type Auditor interface {
	Record(i store.Interaction)
}

// RouterConfig configures a Router.
type RouterConfig struct {
	Handler     Handler
	Enabled     []string
	Auditor     Auditor // optional
	TurnTimeout time.Duration
	Logger      *slog.Logger
}

// Result is a routed turn: the platform-native reply plus what produced it.
type Result struct {
	Payload   any
	Event     platform.Event
	Response  platform.Response
	SessionID string
	Values    map[string]any // plugin outputs, e.g. the customer profile
}

// Ignored is the payload for a turn a plugin vetoed, such as a redelivered
// message: the platform gets an acknowledgement and nothing to send.
type Ignored struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Router dispatches raw webhook payloads through the conversation engine.
type Router struct {
	handler     Handler
	enabled     map[platform.Platform]bool
	auditor     Auditor
	turnTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
	adapt       func(platform.Platform, platform.Message) (any, error)
}

// NewRouter creates a Router. Handler is required.
func NewRouter(cfg RouterConfig) (*Router, error) {
	if cfg.Handler == nil {
		return nil, errors.New("router: handler is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	enabled := make(map[platform.Platform]bool, len(cfg.Enabled))
	for _, name := range cfg.Enabled {
		if p := platform.Parse(name); p != "" {
			enabled[p] = true
		}
	}
	return &Router{
		handler:     cfg.Handler,
		enabled:     enabled,
		auditor:     cfg.Auditor,
		turnTimeout: cfg.TurnTimeout,
		logger:      logger.With("component", "router"),
		now:         time.Now,
		adapt:       platform.AdaptToPlatform,
	}, nil
}

// Enabled reports whether p is on the allow-list.
func (r *Router) Enabled(p platform.Platform) bool {
	return r.enabled[p]
}

// Route runs one turn for a raw payload from platform p.
// A platform off the allow-list fails with status 400 before any adapter runs.
func (r *Router) Route(ctx context.Context, p platform.Platform, payload []byte) (res Result, err error) {
	if !r.enabled[p] {
		return Result{}, &Error{
			Status: http.StatusBadRequest,
			Msg:    fmt.Sprintf("unsupported platform %q", p),
			Err:    ErrUnsupportedPlatform,
		}
	}

	start := r.now()
	res.Event = platform.Event{Platform: p}
	handled := false
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic while routing",
				"platform", p,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			err = &Error{Status: http.StatusInternalServerError, Msg: internalErrorMsg, Err: fmt.Errorf("panic: %v", rec)}
		}
		if handled && err != nil {
			r.abort(ctx, res)
		}
		r.audit(start, res, err)
	}()

	if r.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.turnTimeout)
		defer cancel()
	}

	ev, err := platform.Standardize(p, payload)
	if err != nil {
		return res, &Error{Status: http.StatusBadRequest, Msg: err.Error(), Err: err}
	}
	res.Event = ev

	if ev.Echo {
		res.Response = platform.Response{Kind: platform.KindIgnored}
		res.Payload = Ignored{Status: string(platform.KindIgnored), Reason: echoReason}
		return res, nil
	}

	turn, err := r.handler.HandleMessage(ctx, ev)
	if err != nil {
		return res, r.internal("handling message", err, ev)
	}
	res.Response = turn.Response
	res.SessionID = turn.SessionID
	res.Values = turn.Values
	handled = true

	if turn.Response.Kind == platform.KindIgnored {
		res.Payload = Ignored{Status: string(platform.KindIgnored), Reason: turn.Response.Metadata["reason"]}
		return res, nil
	}

	out, err := r.adapt(p, platform.Message{
		Platform:       p,
		UserID:         ev.UserID,
		ConversationID: ev.ConversationID,
		Response:       turn.Response,
	})
	if err != nil {
		return res, r.internal("adapting response", err, ev)
	}
	res.Payload = out
	return res, nil
}

// abort lets the handler release claims for a turn it completed but the
// caller never saw succeed.
func (r *Router) abort(ctx context.Context, res Result) {
	a, ok := r.handler.(Aborter)
	if !ok {
		return
	}
	a.Abort(ctx, res.Event, res.Values)
}

func (r *Router) internal(stage string, err error, ev platform.Event) *Error {
	r.logger.Error(stage+" failed",
		"platform", ev.Platform,
		"user_id", ev.UserID,
		"error", err,
	)
	return &Error{Status: http.StatusInternalServerError, Msg: internalErrorMsg, Err: fmt.Errorf("%s: %w", stage, err)}
}

// audit hands the turn to the auditor. Write failures never reach the caller.
func (r *Router) audit(start time.Time, res Result, err error) {
	if r.auditor == nil {
		return
	}
	i := store.Interaction{
		Platform:   string(res.Event.Platform),
		UserID:     res.Event.UserID,
		SessionID:  res.SessionID,
		Message:    res.Event.Message,
		Action:     string(res.Response.Kind),
		DurationMS: r.now().Sub(start).Milliseconds(),
		Success:    err == nil,
		CreatedAt:  start,
	}
	if err != nil {
		i.Error = err.Error()
	} else {
		i.Data = map[string]any{"step": res.Response.Step}
		if v, ok := res.Values[builtins.ValueCustomerProfile]; ok {
			i.Data[builtins.ValueCustomerProfile] = v
		}
	}
	r.auditor.Record(i)
}
