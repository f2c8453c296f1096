// ABOUTME: Tests for the webhook router using a stub conversation handler
// ABOUTME: Covers the allow-list, status mapping, panic recovery, turn timeouts and audit records

package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/chat-relay/internal/builtins"
	"github.com/2389/chat-relay/internal/engine"
	"github.com/2389/chat-relay/internal/platform"
	"github.com/2389/chat-relay/internal/store"
)

const fbPayload = `{"sender":{"id":"psid-1"},"recipient":{"id":"PAGE"},"message":{"mid":"m.1","text":"hello"}}`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubHandler struct {
	mu     sync.Mutex
	calls  int
	ctx    context.Context
	result engine.Result
	err    error
	panics bool
}

func (s *stubHandler) HandleMessage(ctx context.Context, ev platform.Event) (engine.Result, error) {
	s.mu.Lock()
	s.calls++
	s.ctx = ctx
	s.mu.Unlock()
	if s.panics {
		panic("boom")
	}
	return s.result, s.err
}

type captureAuditor struct {
	mu    sync.Mutex
	items []store.Interaction
}

func (c *captureAuditor) Record(i store.Interaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, i)
}

func (c *captureAuditor) all() []store.Interaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]store.Interaction(nil), c.items...)
}

func newTestRouter(t *testing.T, h Handler, timeout time.Duration) (*Router, *captureAuditor) {
	t.Helper()
	aud := &captureAuditor{}
	r, err := NewRouter(RouterConfig{
		Handler:     h,
		Enabled:     []string{"facebook", " Zalo ", "whatsapp"},
		Auditor:     aud,
		TurnTimeout: timeout,
		Logger:      quietLogger(),
	})
	require.NoError(t, err)
	return r, aud
}

func answerResult() engine.Result {
	return engine.Result{
		Response: platform.Response{
			Kind: platform.KindQuestions,
			Step: "question",
			Text: "Pick a question",
			Options: []platform.Option{
				{ID: "q1", Title: "What is it?"},
			},
		},
		SessionKey: "facebook:psid-1",
		SessionID:  "sess-1",
		Values:     map[string]any{builtins.ValueCustomerProfile: "profile"},
	}
}

func TestNewRouter_RequiresHandler(t *testing.T) {
	_, err := NewRouter(RouterConfig{})
	assert.Error(t, err)
}

func TestRoute_Success(t *testing.T) {
	h := &stubHandler{result: answerResult()}
	r, aud := newTestRouter(t, h, 0)

	res, err := r.Route(context.Background(), platform.Facebook, []byte(fbPayload))
	require.NoError(t, err)

	reply, ok := res.Payload.(platform.FacebookReply)
	require.True(t, ok, "payload is %T", res.Payload)
	assert.Equal(t, "psid-1", reply.Recipient.ID)
	assert.Equal(t, "sess-1", res.SessionID)
	assert.Equal(t, "hello", res.Event.Message)

	records := aud.all()
	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
	assert.Equal(t, "facebook", records[0].Platform)
	assert.Equal(t, "psid-1", records[0].UserID)
	assert.Equal(t, "sess-1", records[0].SessionID)
	assert.Equal(t, string(platform.KindQuestions), records[0].Action)
	assert.Equal(t, "question", records[0].Data["step"])
	assert.Equal(t, "profile", records[0].Data[builtins.ValueCustomerProfile])
}

func TestRoute_UnsupportedPlatform(t *testing.T) {
	h := &stubHandler{result: answerResult()}
	r, aud := newTestRouter(t, h, 0)

	for _, p := range []platform.Platform{"myspace", platform.Telegram} {
		_, err := r.Route(context.Background(), p, []byte(fbPayload))

		var routeErr *Error
		require.ErrorAs(t, err, &routeErr)
		assert.Equal(t, http.StatusBadRequest, routeErr.Status)
		assert.ErrorIs(t, err, ErrUnsupportedPlatform)
	}
	assert.Zero(t, h.calls, "engine must not run for a disabled platform")
	assert.Empty(t, aud.all())
	assert.True(t, r.Enabled(platform.Zalo), "allow-list entries are normalized")
}

func TestRoute_InvalidPayload(t *testing.T) {
	h := &stubHandler{result: answerResult()}
	r, aud := newTestRouter(t, h, 0)

	_, err := r.Route(context.Background(), platform.Facebook, []byte(`{"message":{"text":"no sender"}}`))

	var routeErr *Error
	require.ErrorAs(t, err, &routeErr)
	assert.Equal(t, http.StatusBadRequest, routeErr.Status)
	assert.ErrorIs(t, err, platform.ErrInvalidPayload)
	assert.Zero(t, h.calls)

	records := aud.all()
	require.Len(t, records, 1)
	assert.False(t, records[0].Success)
	assert.Equal(t, "facebook", records[0].Platform)
	assert.NotEmpty(t, records[0].Error)
}

func TestRoute_HandlerError(t *testing.T) {
	cause := errors.New("database on fire")
	r, aud := newTestRouter(t, &stubHandler{err: cause}, 0)

	_, err := r.Route(context.Background(), platform.Facebook, []byte(fbPayload))

	var routeErr *Error
	require.ErrorAs(t, err, &routeErr)
	assert.Equal(t, http.StatusInternalServerError, routeErr.Status)
	assert.Equal(t, "internal error", routeErr.Msg)
	assert.ErrorIs(t, err, cause)

	records := aud.all()
	require.Len(t, records, 1)
	assert.False(t, records[0].Success)
}

func TestRoute_PanicBecomesInternalError(t *testing.T) {
	r, aud := newTestRouter(t, &stubHandler{panics: true}, 0)

	var err error
	require.NotPanics(t, func() {
		_, err = r.Route(context.Background(), platform.Facebook, []byte(fbPayload))
	})

	var routeErr *Error
	require.ErrorAs(t, err, &routeErr)
	assert.Equal(t, http.StatusInternalServerError, routeErr.Status)
	assert.Equal(t, "internal error", routeErr.Msg)
	assert.Len(t, aud.all(), 1)
}

func TestRoute_TurnTimeout(t *testing.T) {
	h := &stubHandler{result: answerResult()}
	r, _ := newTestRouter(t, h, 2*time.Second)

	_, err := r.Route(context.Background(), platform.Facebook, []byte(fbPayload))
	require.NoError(t, err)

	deadline, ok := h.ctx.Deadline()
	require.True(t, ok, "turn timeout sets a deadline")
	assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)

	h2 := &stubHandler{result: answerResult()}
	r2, _ := newTestRouter(t, h2, 0)
	_, err = r2.Route(context.Background(), platform.Facebook, []byte(fbPayload))
	require.NoError(t, err)
	_, ok = h2.ctx.Deadline()
	assert.False(t, ok, "no deadline without a turn timeout")
}

func TestRoute_RawPayload(t *testing.T) {
	r, _ := newTestRouter(t, &stubHandler{result: answerResult()}, 0)

	res, err := r.Route(context.Background(), platform.WhatsApp, []byte("From=whatsapp%3A%2B15550001&To=whatsapp%3A%2B15559999&Body=hi&MessageSid=SM1"))
	require.NoError(t, err)

	raw, ok := res.Payload.(platform.Raw)
	require.True(t, ok)
	assert.Equal(t, "text/xml", raw.ContentType)
	assert.Contains(t, string(raw.Body), "Pick a question")
	assert.Equal(t, "+15550001", res.Event.UserID)
}

func TestRoute_IgnoredSkipsAdapter(t *testing.T) {
	h := &stubHandler{result: engine.Result{
		Response: platform.Response{
			Kind:     platform.KindIgnored,
			Metadata: map[string]string{"plugin": "dedupe", "reason": "duplicate message key"},
		},
	}}
	r, aud := newTestRouter(t, h, 0)

	res, err := r.Route(context.Background(), platform.Facebook, []byte(fbPayload))
	require.NoError(t, err)
	assert.Equal(t, Ignored{Status: "ignored", Reason: "duplicate message key"}, res.Payload)

	records := aud.all()
	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
	assert.Equal(t, "ignored", records[0].Action)
}

func TestRoute_EchoSkipsHandler(t *testing.T) {
	h := &stubHandler{result: answerResult()}
	r, aud := newTestRouter(t, h, 0)

	echo := `{"sender":{"id":"PAGE"},"recipient":{"id":"psid-1"},"message":{"mid":"m.2","text":"Welcome!","is_echo":true}}`
	res, err := r.Route(context.Background(), platform.Facebook, []byte(echo))
	require.NoError(t, err)
	assert.Equal(t, Ignored{Status: "ignored", Reason: "echo of own message"}, res.Payload)
	assert.Zero(t, h.calls, "echoes never start a turn")

	records := aud.all()
	require.Len(t, records, 1)
	assert.Equal(t, "ignored", records[0].Action)
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "bad", (&Error{Status: 400, Msg: "bad"}).Error())
	e := &Error{Status: 500, Msg: "internal error", Err: errors.New("detail")}
	assert.Equal(t, "internal error: detail", e.Error())
	assert.Equal(t, "detail", errors.Unwrap(e).Error())
}

type abortingHandler struct {
	stubHandler
	aborted []platform.Event
	values  []map[string]any
}

func (a *abortingHandler) Abort(_ context.Context, ev platform.Event, values map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.aborted = append(a.aborted, ev)
	a.values = append(a.values, values)
}

func TestRoute_AdapterFailureAbortsTurn(t *testing.T) {
	h := &abortingHandler{stubHandler: stubHandler{result: answerResult()}}
	r, _ := newTestRouter(t, h, 0)
	r.adapt = func(platform.Platform, platform.Message) (any, error) {
		return nil, errors.New("adapter broke")
	}

	_, err := r.Route(context.Background(), platform.Facebook, []byte(fbPayload))

	var routeErr *Error
	require.ErrorAs(t, err, &routeErr)
	assert.Equal(t, http.StatusInternalServerError, routeErr.Status)
	require.Len(t, h.aborted, 1)
	assert.Equal(t, "m.1", h.aborted[0].MessageID)
	assert.Equal(t, "profile", h.values[0][builtins.ValueCustomerProfile])
}

func TestRoute_AdapterPanicAbortsTurn(t *testing.T) {
	h := &abortingHandler{stubHandler: stubHandler{result: answerResult()}}
	r, _ := newTestRouter(t, h, 0)
	r.adapt = func(platform.Platform, platform.Message) (any, error) {
		panic("adapter exploded")
	}

	_, err := r.Route(context.Background(), platform.Facebook, []byte(fbPayload))
	require.Error(t, err)
	assert.Len(t, h.aborted, 1)
}

func TestRoute_AbortOnlyAfterHandledTurn(t *testing.T) {
	ok := &abortingHandler{stubHandler: stubHandler{result: answerResult()}}
	r, _ := newTestRouter(t, ok, 0)
	_, err := r.Route(context.Background(), platform.Facebook, []byte(fbPayload))
	require.NoError(t, err)
	assert.Empty(t, ok.aborted, "a successful turn keeps its claims")

	failing := &abortingHandler{stubHandler: stubHandler{err: errors.New("engine failed")}}
	r, _ = newTestRouter(t, failing, 0)
	_, err = r.Route(context.Background(), platform.Facebook, []byte(fbPayload))
	require.Error(t, err)
	assert.Empty(t, failing.aborted, "the handler releases its own failures")

	_, err = r.Route(context.Background(), platform.Facebook, []byte(`not json`))
	require.Error(t, err)
	assert.Empty(t, failing.aborted)
}
