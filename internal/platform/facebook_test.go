// ABOUTME: Tests for the Facebook Messenger adapter.
// ABOUTME: Covers bare and enveloped webhooks, quick replies, postbacks and Send API output.

package platform

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacebook_Standardize_Messaging(t *testing.T) {
	payload := `{"sender":{"id":"PSID1"},"recipient":{"id":"PAGE"},"timestamp":1,"message":{"mid":"m.1","text":"Investment"}}`

	evt, err := Standardize(Facebook, []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, Facebook, evt.Platform)
	assert.Equal(t, "PSID1", evt.UserID)
	assert.Equal(t, "m.1", evt.MessageID)
	assert.Equal(t, "Investment", evt.Message)
	assert.Equal(t, "PAGE", evt.RawData["recipient"].(map[string]any)["id"])
}

func TestFacebook_Standardize_Envelope(t *testing.T) {
	payload := `{"object":"page","entry":[{"id":"PAGE","time":1,"messaging":[
		{"sender":{"id":"PSID2"},"recipient":{"id":"PAGE"},"message":{"mid":"m.2","text":"hello"}}
	]}]}`

	evt, err := FacebookAdapter{}.Standardize([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "PSID2", evt.UserID)
	assert.Equal(t, "hello", evt.Message)
}

func TestFacebook_Standardize_QuickReplyWins(t *testing.T) {
	payload := `{"sender":{"id":"u"},"message":{"mid":"m","text":"💰 Invest","quick_reply":{"payload":"investment"}}}`

	evt, err := FacebookAdapter{}.Standardize([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "investment", evt.Message)
}

func TestFacebook_Standardize_Postback(t *testing.T) {
	payload := `{"sender":{"id":"u"},"postback":{"mid":"p1","title":"Get Started","payload":"GET_STARTED"}}`

	evt, err := FacebookAdapter{}.Standardize([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "GET_STARTED", evt.Message)
	assert.Equal(t, "p1", evt.MessageID)
}

func TestFacebook_Standardize_Echo(t *testing.T) {
	payload := `{"sender":{"id":"PAGE"},"recipient":{"id":"PSID1"},"message":{"mid":"m.9","text":"Welcome!","is_echo":true}}`

	evt, err := FacebookAdapter{}.Standardize([]byte(payload))
	require.NoError(t, err)
	assert.True(t, evt.Echo)

	evt, err = FacebookAdapter{}.Standardize([]byte(`{"sender":{"id":"u"},"message":{"mid":"m","text":"hi"}}`))
	require.NoError(t, err)
	assert.False(t, evt.Echo)
}

func TestFacebook_Standardize_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `<xml/>`},
		{name: "missing sender", payload: `{"message":{"text":"hi"}}`},
		{name: "empty envelope", payload: `{"object":"page","entry":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FacebookAdapter{}.Standardize([]byte(tt.payload))
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestFacebook_Adapt(t *testing.T) {
	out, err := AdaptToPlatform(Facebook, Message{
		Platform: Facebook,
		UserID:   "PSID1",
		Response: Response{
			Kind:    KindWelcome,
			Text:    "Choose a topic",
			Options: []Option{{ID: "general", Title: "About us"}, {ID: "investment", Title: "Investment and shareholders"}},
		},
	})
	require.NoError(t, err)

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"recipient":{"id":"PSID1"},
		"messaging_type":"RESPONSE",
		"message":{
			"text":"Choose a topic",
			"quick_replies":[
				{"content_type":"text","title":"About us","payload":"general"},
				{"content_type":"text","title":"Investment and shar…","payload":"investment"}
			]
		}
	}`, string(data))
}

func TestFacebook_Adapt_NoOptions(t *testing.T) {
	out, err := FacebookAdapter{}.Adapt(Message{UserID: "u", Response: Response{Text: "answer"}})
	require.NoError(t, err)

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"recipient":{"id":"u"},"messaging_type":"RESPONSE","message":{"text":"answer"}}`, string(data))
}

func TestFacebook_Adapt_TooManyOptions(t *testing.T) {
	var opts []Option
	for i := 0; i < 15; i++ {
		opts = append(opts, Option{ID: fmt.Sprint(i), Title: fmt.Sprintf("Option %d", i)})
	}

	out, err := FacebookAdapter{}.Adapt(Message{UserID: "u", Response: Response{Text: "Pick", Options: opts}})
	require.NoError(t, err)

	reply := out.(FacebookReply)
	assert.Len(t, reply.Message.QuickReplies, fbMaxQuickReplies)
	assert.True(t, strings.Contains(reply.Message.Text, "15. Option 14"))
}
