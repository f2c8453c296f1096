// ABOUTME: Conversation engine orchestrating one turn: plugins, session, state machine.
// ABOUTME: Owns the session manager, context store, plugin pipeline and the sweeper that bounds them.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/2389/chat-relay/internal/content"
	"github.com/2389/chat-relay/internal/contextstore"
	"github.com/2389/chat-relay/internal/janitor"
	"github.com/2389/chat-relay/internal/pipeline"
	"github.com/2389/chat-relay/internal/platform"
	"github.com/2389/chat-relay/internal/session"
)

// ErrNoHandler indicates a session is at a step no handler is registered for.
var ErrNoHandler = errors.New("no handler for step")

// engineNamespace is the context namespace the engine itself writes to.
const engineNamespace = "engine"

// Content is the FAQ lookup the state machine needs. *content.Catalog implements it.
type Content interface {
	Welcome() string
	Help() string
	Prompt() string
	LastUpdated() string
	Categories() []content.Category
	CategoryQuestions(categoryID string) []content.QuestionRef
	Answer(questionID string) (content.Answer, bool)
}

// Config holds engine dependencies and tuning. Zero durations use the
// package defaults of the components they configure.
type Config struct {
	Content        Content
	SessionTimeout time.Duration
	SweepInterval  time.Duration
	ContextTTL     time.Duration
	HistoryLimit   int
	Logger         *slog.Logger
	Clock          func() time.Time
}

// Result is the outcome of one turn.
type Result struct {
	Response   platform.Response
	SessionKey string
	SessionID  string         // empty when the turn was vetoed before the session was loaded
	Values     map[string]any // plugin outputs from the turn's bag
}

// Engine runs conversation turns.
type Engine struct {
	content  Content
	sessions *session.Manager
	contexts *contextstore.Memory
	plugins  *pipeline.Pipeline
	janitor  *janitor.Janitor
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.RWMutex
	handlers map[session.Step]StepHandler
}

// New creates an Engine. cfg.Content is required.
func New(cfg Config) (*Engine, error) {
	if cfg.Content == nil {
		return nil, fmt.Errorf("engine: content is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	contexts := contextstore.New(
		contextstore.WithDefaultTTL(cfg.ContextTTL),
		contextstore.WithClock(now),
	)
	sessions := session.NewManager(
		session.WithTimeout(cfg.SessionTimeout),
		session.WithHistoryLimit(cfg.HistoryLimit),
		session.WithClock(now),
		session.WithLogger(logger),
	)

	e := &Engine{
		content:  cfg.Content,
		sessions: sessions,
		contexts: contexts,
		plugins:  pipeline.New(contexts, logger),
		janitor:  janitor.New(cfg.SweepInterval, logger),
		now:      now,
		logger:   logger.With("component", "engine"),
	}
	e.janitor.Add("sessions", janitor.SweepFunc(sessions.Sweep))
	e.janitor.Add("contexts", contexts)
	e.handlers = e.defaultHandlers()
	return e, nil
}

// Pipeline returns the plugin pipeline for registration at startup.
func (e *Engine) Pipeline() *pipeline.Pipeline { return e.plugins }

// Sessions returns the session manager.
func (e *Engine) Sessions() *session.Manager { return e.sessions }

// Contexts returns the context store shared with plugins.
func (e *Engine) Contexts() contextstore.Store { return e.contexts }

// Janitor returns the sweeper for sessions and context entries.
func (e *Engine) Janitor() *janitor.Janitor { return e.janitor }

// Start begins periodic sweeping. It returns immediately.
func (e *Engine) Start(ctx context.Context) {
	e.janitor.Start(ctx)
}

// Close stops periodic sweeping.
func (e *Engine) Close() error {
	e.janitor.Stop()
	return nil
}

// Reset ends the session for a platform user. Returns false if there was none.
func (e *Engine) Reset(p platform.Platform, userID string) bool {
	return e.sessions.End(session.Key(p.String(), userID))
}

// HandleMessage runs one turn: pre-process plugins, the state machine step
// for the user's session, then post-process plugins. Unknown input degrades
// to an error response; an error is returned only when ctx ends before the
// state machine runs.
func (e *Engine) HandleMessage(ctx context.Context, ev platform.Event) (Result, error) {
	key := session.Key(ev.Platform.String(), ev.UserID)

	bag := pipeline.Bag{
		Event:   ev,
		Context: contextstore.Scope(e.contexts, engineNamespace),
		Values:  map[string]any{},
	}
	bag = e.plugins.Run(ctx, pipeline.PreProcess, bag)
	if bag.Vetoed() {
		e.logger.Info("turn vetoed",
			"session_key", key,
			"plugin", bag.Veto.Plugin,
			"reason", bag.Veto.Reason,
		)
		return Result{
			Response: platform.Response{
				Kind:     platform.KindIgnored,
				Metadata: map[string]string{"plugin": bag.Veto.Plugin, "reason": bag.Veto.Reason},
			},
			SessionKey: key,
			Values:     bag.Values,
		}, nil
	}
	if err := ctx.Err(); err != nil {
		e.Abort(ctx, bag.Event, bag.Values)
		return Result{SessionKey: key}, fmt.Errorf("turn aborted before state machine: %w", err)
	}
	defer func() {
		if rec := recover(); rec != nil {
			e.Abort(ctx, bag.Event, bag.Values)
			panic(rec)
		}
	}()

	input := strings.ToLower(strings.TrimSpace(bag.Event.Message))
	if isReset(input) && e.sessions.End(key) {
		e.logger.Info("session reset", "session_key", key)
	}

	sess, release := e.sessions.Begin(key)
	defer release()

	from := sess.Step
	resp, err := e.step(&sess, input)
	if err != nil {
		e.logger.Error("state machine step failed",
			"session_key", key,
			"session_id", sess.ID,
			"step", from,
			"error", err,
		)
		resp = e.failure(&sess)
	}
	resp.Step = string(sess.Step)

	sess.AddTurn(session.Turn{
		At:    e.now(),
		Input: ev.Message,
		Reply: resp.Text,
		Step:  sess.Step,
	}, e.sessions.HistoryLimit())
	e.sessions.Save(sess)

	e.logger.Debug("turn handled",
		"session_key", key,
		"session_id", sess.ID,
		"from_step", from,
		"to_step", sess.Step,
		"response_type", resp.Kind,
	)

	snap := session.Snapshot(&sess)
	bag.Session = &snap
	bag.Response = &resp
	bag = e.plugins.Run(ctx, pipeline.PostProcess, bag)
	if bag.Response != nil {
		resp = *bag.Response
	}

	return Result{
		Response:   resp,
		SessionKey: key,
		SessionID:  sess.ID,
		Values:     bag.Values,
	}, nil
}

// Abort runs the abort hook for ev so plugins can release what they claimed
// in pre-process. values are the turn's Result.Values. Callers use it when a
// turn fails after HandleMessage returned; HandleMessage aborts its own
// failures. It runs even when ctx is already done.
func (e *Engine) Abort(ctx context.Context, ev platform.Event, values map[string]any) {
	e.logger.Debug("turn aborted",
		"platform", ev.Platform,
		"user_id", ev.UserID,
		"message_id", ev.MessageID,
	)
	e.plugins.Run(context.WithoutCancel(ctx), pipeline.Abort, pipeline.Bag{
		Event:   ev,
		Context: contextstore.Scope(e.contexts, engineNamespace),
		Values:  values,
	})
}

func isReset(input string) bool {
	switch input {
	case "reset", "restart", "/start":
		return true
	}
	return false
}
