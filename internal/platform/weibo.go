// ABOUTME: Weibo fan-service adapter for private message push.
// ABOUTME: Replies echo sender and receiver back swapped, with data as an encoded JSON string.

package platform

import (
	"encoding/json"
	"fmt"
)

// WeiboAdapter implements Adapter for Weibo private messages.
type WeiboAdapter struct{}

type wbInbound struct {
	Type       string      `json:"type"`
	ReceiverID json.Number `json:"receiver_id"`
	SenderID   json.Number `json:"sender_id"`
	CreatedAt  string      `json:"created_at"`
	Text       string      `json:"text"`
	Data       struct {
		Key string `json:"key"` // event menu payload
	} `json:"data"`
}

// WeiboReply is the passive reply body.
type WeiboReply struct {
	Result     bool   `json:"result"`
	ReceiverID string `json:"receiver_id"`
	SenderID   string `json:"sender_id"`
	Type       string `json:"type"`
	Data       string `json:"data"`
}

// Platform implements Adapter.
func (WeiboAdapter) Platform() Platform { return Weibo }

// Standardize implements Adapter. The receiving account becomes the
// ConversationID so the reply can be addressed from it.
func (WeiboAdapter) Standardize(payload []byte) (Event, error) {
	var in wbInbound
	raw, err := decodeJSON(payload, &in)
	if err != nil {
		return Event{}, err
	}
	if in.SenderID == "" {
		return Event{}, missingField(Weibo, "sender_id")
	}

	text := in.Text
	if in.Type == "event" && in.Data.Key != "" {
		text = in.Data.Key
	}

	return Event{
		Platform:       Weibo,
		UserID:         in.SenderID.String(),
		ConversationID: in.ReceiverID.String(),
		Message:        text,
		RawData:        raw,
	}, nil
}

// Adapt implements Adapter.
func (WeiboAdapter) Adapt(msg Message) (any, error) {
	data, err := json.Marshal(map[string]string{"text": plainText(msg.Response)})
	if err != nil {
		return nil, fmt.Errorf("encoding weibo data: %w", err)
	}
	return WeiboReply{
		Result:     true,
		ReceiverID: msg.UserID,
		SenderID:   msg.ConversationID,
		Type:       "text",
		Data:       string(data),
	}, nil
}
