// ABOUTME: Tests for the Zalo, Telegram, TikTok and Weibo adapters.
// ABOUTME: Each adapter standardizes a sample webhook and adapts a reply back to wire shape.

package platform

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marshal(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

var sampleMenu = Message{
	UserID: "u1",
	Response: Response{
		Kind:    KindQuestions,
		Text:    "Questions:",
		Options: []Option{{ID: "become-shareholder", Title: "How to invest?"}},
	},
}

func TestZalo_Standardize(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		userID  string
		message string
		msgID   string
	}{
		{
			name:    "v3 sender",
			payload: `{"app_id":"1","event_name":"user_send_text","sender":{"id":"2468"},"recipient":{"id":"OA"},"message":{"text":"contact","msg_id":"z1"}}`,
			userID:  "2468", message: "contact", msgID: "z1",
		},
		{
			name:    "legacy fromuid",
			payload: `{"fromuid":1357,"msgid":"z2","message":{"text":"back"}}`,
			userID:  "1357", message: "back", msgID: "z2",
		},
		{
			name:    "legacy string message",
			payload: `{"fromuid":"999","message":"hello"}`,
			userID:  "999", message: "hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, err := Standardize(Zalo, []byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, Zalo, evt.Platform)
			assert.Equal(t, tt.userID, evt.UserID)
			assert.Equal(t, tt.message, evt.Message)
			assert.Equal(t, tt.msgID, evt.MessageID)
		})
	}
}

func TestZalo_Standardize_MissingSender(t *testing.T) {
	_, err := ZaloAdapter{}.Standardize([]byte(`{"message":{"text":"hi"}}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestZalo_Adapt(t *testing.T) {
	out, err := ZaloAdapter{}.Adapt(sampleMenu)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"recipient":{"user_id":"u1"},
		"message":{
			"text":"Questions:",
			"attachment":{"type":"template","payload":{"buttons":[
				{"title":"How to invest?","type":"oa.query.show","payload":"become-shareholder"}
			]}}
		}
	}`, marshal(t, out))
}

func TestTelegram_Standardize_Message(t *testing.T) {
	payload := `{"update_id":10,"message":{"message_id":5,"from":{"id":111},"chat":{"id":-222},"text":"/start"}}`

	evt, err := Standardize(Telegram, []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "111", evt.UserID)
	assert.Equal(t, "-222", evt.ConversationID)
	assert.Equal(t, "10", evt.MessageID)
	assert.Equal(t, "/start", evt.Message)
}

func TestTelegram_Standardize_CallbackQuery(t *testing.T) {
	payload := `{"update_id":11,"callback_query":{"id":"cb1","from":{"id":111},"message":{"message_id":6,"chat":{"id":111}},"data":"investment"}}`

	evt, err := TelegramAdapter{}.Standardize([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "111", evt.UserID)
	assert.Equal(t, "111", evt.ConversationID)
	assert.Equal(t, "cb1", evt.MessageID)
	assert.Equal(t, "investment", evt.Message)
}

func TestTelegram_Standardize_UnsupportedUpdate(t *testing.T) {
	_, err := TelegramAdapter{}.Standardize([]byte(`{"update_id":12,"edited_message":{}}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestTelegram_Adapt(t *testing.T) {
	msg := sampleMenu
	msg.ConversationID = "-222"

	out, err := TelegramAdapter{}.Adapt(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"method":"sendMessage",
		"chat_id":"-222",
		"text":"Questions:",
		"reply_markup":{"inline_keyboard":[[{"text":"How to invest?","callback_data":"become-shareholder"}]]}
	}`, marshal(t, out))
}

func TestTelegram_Adapt_FallsBackToUserChat(t *testing.T) {
	out, err := TelegramAdapter{}.Adapt(Message{UserID: "111", Response: Response{Text: "hi"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"sendMessage","chat_id":"111","text":"hi"}`, marshal(t, out))
}

func TestTikTok_RoundTrip(t *testing.T) {
	payload := `{"event":"receive_message","content":{"conversation_id":"c1","message_id":"t1","type":"text","from_user":{"id":"tt-user"},"text":{"body":"general"}}}`

	evt, err := Standardize(TikTok, []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "tt-user", evt.UserID)
	assert.Equal(t, "c1", evt.ConversationID)
	assert.Equal(t, "t1", evt.MessageID)
	assert.Equal(t, "general", evt.Message)

	msg := sampleMenu
	msg.UserID = evt.UserID
	msg.ConversationID = evt.ConversationID
	out, err := AdaptToPlatform(TikTok, msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"recipient":{"id":"tt-user"},
		"conversation_id":"c1",
		"message_type":"TEXT",
		"text":{"body":"Questions:\n1. How to invest?"}
	}`, marshal(t, out))
}

func TestTikTok_Standardize_MissingUser(t *testing.T) {
	_, err := TikTokAdapter{}.Standardize([]byte(`{"content":{"text":{"body":"x"}}}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestWeibo_RoundTrip(t *testing.T) {
	payload := `{"type":"text","receiver_id":5001,"sender_id":7001,"created_at":"Mon Jul 16 18:09:20 +0800 2025","text":"products","data":{}}`

	evt, err := Standardize(Weibo, []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "7001", evt.UserID)
	assert.Equal(t, "5001", evt.ConversationID)
	assert.Equal(t, "products", evt.Message)

	out, err := AdaptToPlatform(Weibo, Message{
		UserID:         evt.UserID,
		ConversationID: evt.ConversationID,
		Response:       Response{Text: "ok"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":true,"receiver_id":"7001","sender_id":"5001","type":"text","data":"{\"text\":\"ok\"}"}`, marshal(t, out))
}

func TestWeibo_Standardize_EventKey(t *testing.T) {
	payload := `{"type":"event","receiver_id":5001,"sender_id":7001,"text":"","data":{"subtype":"click","key":"contact"}}`

	evt, err := WeiboAdapter{}.Standardize([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "contact", evt.Message)
}
