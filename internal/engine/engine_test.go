// ABOUTME: Tests for the conversation engine and its FAQ state machine.
// ABOUTME: Drives full turns against the embedded catalog with a controllable clock.

package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/2389/chat-relay/internal/builtins"
	"github.com/2389/chat-relay/internal/content"
	"github.com/2389/chat-relay/internal/pipeline"
	"github.com/2389/chat-relay/internal/platform"
	"github.com/2389/chat-relay/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T) (*Engine, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	e, err := New(Config{
		Content: content.Default(),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:   clk.Now,
	})
	require.NoError(t, err)
	return e, clk
}

func send(t *testing.T, e *Engine, user, msg string) Result {
	t.Helper()
	res, err := e.HandleMessage(context.Background(), platform.Event{
		Platform: platform.Facebook,
		UserID:   user,
		Message:  msg,
	})
	require.NoError(t, err)
	return res
}

func stepOf(t *testing.T, e *Engine, user string) session.Session {
	t.Helper()
	s, ok := e.Sessions().Get(session.Key("facebook", user))
	require.True(t, ok)
	return s
}

func TestNew_RequiresContent(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestColdStart_YieldsCategoryStep(t *testing.T) {
	e, _ := newTestEngine(t)

	res := send(t, e, "u1", "hello")

	assert.Equal(t, platform.KindWelcome, res.Response.Kind)
	assert.Equal(t, "category", res.Response.Step)
	assert.Len(t, res.Response.Options, 4)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, session.StepCategory, stepOf(t, e, "u1").Step)
}

func TestConversationCycle(t *testing.T) {
	e, _ := newTestEngine(t)
	send(t, e, "u1", "hi")

	res := send(t, e, "u1", "investment")
	assert.Equal(t, platform.KindQuestions, res.Response.Kind)
	assert.Equal(t, "question", res.Response.Step)
	require.NotEmpty(t, res.Response.Options)
	assert.Equal(t, "become-shareholder", res.Response.Options[0].ID)
	assert.Equal(t, "investment", stepOf(t, e, "u1").CurrentCategory)

	res = send(t, e, "u1", "no-such-question")
	assert.Equal(t, platform.KindError, res.Response.Kind)
	assert.Equal(t, content.Default().Help(), res.Response.Text)
	assert.Equal(t, "question", res.Response.Step)
	assert.Equal(t, session.StepQuestion, stepOf(t, e, "u1").Step)

	res = send(t, e, "u1", "become-shareholder")
	assert.Equal(t, platform.KindAnswer, res.Response.Kind)
	assert.NotEmpty(t, res.Response.Text)
	assert.Equal(t, "2024-06-20", res.Response.Metadata["lastUpdated"])
	assert.Equal(t, session.StepQuestion, stepOf(t, e, "u1").Step)

	res = send(t, e, "u1", "back")
	assert.Equal(t, platform.KindWelcome, res.Response.Kind)
	assert.Equal(t, "category", res.Response.Step)
	s := stepOf(t, e, "u1")
	assert.Equal(t, session.StepCategory, s.Step)
	assert.Empty(t, s.CurrentCategory)
}

func TestInvalidCategory_StaysOnCategory(t *testing.T) {
	e, _ := newTestEngine(t)
	send(t, e, "u1", "hi")

	res := send(t, e, "u1", "weather")
	assert.Equal(t, platform.KindError, res.Response.Kind)
	assert.Equal(t, "category", res.Response.Step)
	assert.Len(t, res.Response.Options, 4, "the menu is offered again")
}

func TestSelectionIsCaseInsensitiveAndByIndex(t *testing.T) {
	e, _ := newTestEngine(t)
	send(t, e, "u1", "hi")

	res := send(t, e, "u1", "  INVESTMENT ")
	assert.Equal(t, platform.KindQuestions, res.Response.Kind)

	res = send(t, e, "u1", "2")
	require.Equal(t, platform.KindAnswer, res.Response.Kind)
	assert.Equal(t, "investment", res.Response.Metadata["category"])

	send(t, e, "u1", "back")
	res = send(t, e, "u1", "4")
	assert.Equal(t, "contact", res.Response.Metadata["category"])

	res = send(t, e, "u1", "99")
	assert.Equal(t, platform.KindError, res.Response.Kind)
}

func TestResetCommand_RestartsSession(t *testing.T) {
	e, _ := newTestEngine(t)
	first := send(t, e, "u1", "hi")
	send(t, e, "u1", "investment")

	res := send(t, e, "u1", "/start")
	assert.Equal(t, platform.KindWelcome, res.Response.Kind)
	assert.Equal(t, "category", res.Response.Step)
	assert.NotEqual(t, first.SessionID, res.SessionID)
	assert.Len(t, stepOf(t, e, "u1").History, 1)
}

func TestHistory_IsRecordedAndBounded(t *testing.T) {
	clk := &clock{now: time.Now()}
	e, err := New(Config{
		Content:      content.Default(),
		HistoryLimit: 3,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:        clk.Now,
	})
	require.NoError(t, err)

	for _, msg := range []string{"hi", "general", "1", "2", "3"} {
		send(t, e, "u1", msg)
	}

	h := stepOf(t, e, "u1").History
	require.Len(t, h, 3)
	assert.Equal(t, "1", h[0].Input)
	assert.Equal(t, "3", h[2].Input)
}

func TestUsersAreIsolatedPerPlatform(t *testing.T) {
	e, _ := newTestEngine(t)
	send(t, e, "u1", "hi")
	send(t, e, "u1", "general")

	res, err := e.HandleMessage(context.Background(), platform.Event{Platform: platform.Zalo, UserID: "u1", Message: "general"})
	require.NoError(t, err)
	assert.Equal(t, platform.KindWelcome, res.Response.Kind, "zalo:u1 is a new user")
}

func TestUnknownStep_GenericErrorAndSessionKept(t *testing.T) {
	e, _ := newTestEngine(t)
	send(t, e, "u1", "hi")

	s := stepOf(t, e, "u1")
	s.Step = "survey"
	e.Sessions().Save(s)

	res := send(t, e, "u1", "anything")
	assert.Equal(t, platform.KindError, res.Response.Kind)
	assert.Equal(t, "internal", res.Response.Metadata["error"])
	assert.Equal(t, s.ID, res.SessionID)
	assert.Equal(t, session.Step("survey"), stepOf(t, e, "u1").Step)

	res = send(t, e, "u1", "back")
	assert.Equal(t, platform.KindWelcome, res.Response.Kind, "back still recovers the session")
}

func TestHandle_CustomStep(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Handle("survey", func(s *session.Session, input string) (platform.Response, error) {
		s.Step = session.StepCategory
		return platform.Response{Kind: platform.KindAnswer, Text: "thanks for " + input}, nil
	})
	send(t, e, "u1", "hi")
	s := stepOf(t, e, "u1")
	s.Step = "survey"
	e.Sessions().Save(s)

	res := send(t, e, "u1", "5 stars")
	assert.Equal(t, "thanks for 5 stars", res.Response.Text)
	assert.Equal(t, "category", res.Response.Step)
}

func TestStepHandlerError_Degrades(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Handle(session.StepCategory, func(*session.Session, string) (platform.Response, error) {
		return platform.Response{}, errors.New("catalog unavailable")
	})
	send(t, e, "u1", "hi")

	res := send(t, e, "u1", "general")
	assert.Equal(t, platform.KindError, res.Response.Kind)
	assert.Equal(t, "category", res.Response.Step)
}

func TestPreProcessVeto_SkipsStateMachine(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.Pipeline().Register(pipeline.Definition{
		PluginName:  "blocker",
		PluginHooks: []pipeline.Hook{pipeline.PreProcess},
		Exec: func(_ context.Context, _ pipeline.Hook, bag pipeline.Bag) (pipeline.Bag, error) {
			bag.Veto = &pipeline.Veto{Reason: "spam"}
			return bag, nil
		},
	}))

	res := send(t, e, "u1", "hi")
	assert.Equal(t, platform.KindIgnored, res.Response.Kind)
	assert.Equal(t, "blocker", res.Response.Metadata["plugin"])
	assert.Empty(t, res.SessionID)
	_, ok := e.Sessions().Get(session.Key("facebook", "u1"))
	assert.False(t, ok, "no session is created for a vetoed turn")
}

func TestPipelineOrder_PrePostAroundStep(t *testing.T) {
	e, _ := newTestEngine(t)
	var seen []string
	record := func(name string, hook pipeline.Hook) pipeline.Definition {
		return pipeline.Definition{
			PluginName:  name,
			PluginHooks: []pipeline.Hook{hook},
			Exec: func(_ context.Context, h pipeline.Hook, bag pipeline.Bag) (pipeline.Bag, error) {
				step := "none"
				if bag.Session != nil {
					step = string(bag.Session.Step)
				}
				seen = append(seen, name+":"+step)
				if h == pipeline.PostProcess {
					bag.Response.Metadata = map[string]string{"tagged": name}
				}
				return bag, nil
			},
		}
	}
	require.NoError(t, e.Pipeline().Register(record("pre", pipeline.PreProcess)))
	require.NoError(t, e.Pipeline().Register(record("post", pipeline.PostProcess)))

	res := send(t, e, "u1", "hi")
	assert.Equal(t, []string{"pre:none", "post:category"}, seen)
	assert.Equal(t, "post", res.Response.Metadata["tagged"])
}

func TestPreProcessRewrite_DrivesStateMachine(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.Pipeline().Register(pipeline.Definition{
		PluginName:  "alias",
		PluginHooks: []pipeline.Hook{pipeline.PreProcess},
		Exec: func(_ context.Context, _ pipeline.Hook, bag pipeline.Bag) (pipeline.Bag, error) {
			if bag.Event.Message == "invest" {
				bag.Event.Message = "investment"
			}
			return bag, nil
		},
	}))
	send(t, e, "u1", "hi")

	res := send(t, e, "u1", "invest")
	assert.Equal(t, platform.KindQuestions, res.Response.Kind)
	assert.Equal(t, "invest", stepOf(t, e, "u1").History[1].Input, "history keeps the raw input")
}

func TestCancelledContext_ReturnsError(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.HandleMessage(ctx, platform.Event{Platform: platform.Facebook, UserID: "u1", Message: "hi"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFailedTurn_RedeliveryIsAnswered(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.Pipeline().Register(builtins.NewDedupe(time.Minute)))

	var cancel context.CancelFunc
	require.NoError(t, e.Pipeline().Register(pipeline.Definition{
		PluginName:  "canceller",
		PluginHooks: []pipeline.Hook{pipeline.PreProcess},
		Exec: func(_ context.Context, _ pipeline.Hook, bag pipeline.Bag) (pipeline.Bag, error) {
			if cancel != nil {
				cancel()
			}
			return bag, nil
		},
	}))

	ev := platform.Event{Platform: platform.Facebook, UserID: "u1", MessageID: "mid.1", Message: "hi"}

	ctx, c := context.WithCancel(context.Background())
	cancel = c
	_, err := e.HandleMessage(ctx, ev)
	require.ErrorIs(t, err, context.Canceled)

	cancel = nil
	res, err := e.HandleMessage(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, platform.KindWelcome, res.Response.Kind)

	res, err = e.HandleMessage(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, platform.KindIgnored, res.Response.Kind, "a delivered turn still dedupes")
}

func TestPanickingTurn_ReleasesDedupe(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.Pipeline().Register(builtins.NewDedupe(time.Minute)))

	fail := true
	e.Handle(session.StepInit, func(s *session.Session, _ string) (platform.Response, error) {
		if fail {
			panic("step exploded")
		}
		s.Step = session.StepCategory
		return platform.Response{Kind: platform.KindWelcome, Text: "hi"}, nil
	})

	ev := platform.Event{Platform: platform.Facebook, UserID: "u1", MessageID: "mid.2", Message: "hi"}
	assert.Panics(t, func() { _, _ = e.HandleMessage(context.Background(), ev) })

	fail = false
	res, err := e.HandleMessage(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, platform.KindWelcome, res.Response.Kind)
}

func TestSweep_ThroughEngine(t *testing.T) {
	e, clk := newTestEngine(t)
	send(t, e, "u1", "hi")

	clk.Advance(session.DefaultTimeout - time.Second)
	send(t, e, "u1", "general")

	assert.Zero(t, e.Sessions().Sweep(clk.Now().Add(time.Second)), "touched 1s before the timeout")
	assert.Equal(t, 1, e.Sessions().Sweep(clk.Now().Add(session.DefaultTimeout+time.Nanosecond)))
}

func TestStartClose(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Start(context.Background())
	assert.True(t, e.Janitor().IsRunning())
	require.NoError(t, e.Close())
	assert.False(t, e.Janitor().IsRunning())
}

func TestConcurrentTurns(t *testing.T) {
	e, _ := newTestEngine(t)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := "u" + string(rune('a'+i%5))
			_, err := e.HandleMessage(context.Background(), platform.Event{Platform: platform.Telegram, UserID: user, Message: "general"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, e.Sessions().Stats().Total)
}
