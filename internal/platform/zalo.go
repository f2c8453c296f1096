// ABOUTME: Zalo Official Account adapter.
// ABOUTME: Reads both the legacy fromuid webhook and the v3 sender/message webhook.

package platform

import "encoding/json"

// ZaloAdapter implements Adapter for Zalo OA.
type ZaloAdapter struct{}

type zaloInbound struct {
	// v2
	FromUID json.Number     `json:"fromuid"`
	MsgID   string          `json:"msgid"`
	Message json.RawMessage `json:"message"`
	// v3
	EventName string `json:"event_name"`
	Sender    struct {
		ID string `json:"id"`
	} `json:"sender"`
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
}

type zaloMessage struct {
	Text  string `json:"text"`
	MsgID string `json:"msg_id"`
}

// ZaloReply is the OA message/cs request body.
type ZaloReply struct {
	Recipient struct {
		UserID string `json:"user_id"`
	} `json:"recipient"`
	Message ZaloOutMsg `json:"message"`
}

// ZaloOutMsg holds reply text and an optional button template.
type ZaloOutMsg struct {
	Text       string          `json:"text"`
	Attachment *ZaloAttachment `json:"attachment,omitempty"`
}

// ZaloAttachment is a template attachment carrying query buttons.
type ZaloAttachment struct {
	Type    string `json:"type"`
	Payload struct {
		Buttons []ZaloButton `json:"buttons"`
	} `json:"payload"`
}

// ZaloButton sends its payload back as a user message when tapped.
type ZaloButton struct {
	Title   string `json:"title"`
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// Platform implements Adapter.
func (ZaloAdapter) Platform() Platform { return Zalo }

// Standardize implements Adapter.
func (ZaloAdapter) Standardize(payload []byte) (Event, error) {
	var in zaloInbound
	raw, err := decodeJSON(payload, &in)
	if err != nil {
		return Event{}, err
	}

	userID := in.Sender.ID
	if userID == "" {
		userID = in.FromUID.String()
	}
	if userID == "" {
		return Event{}, missingField(Zalo, "sender.id")
	}

	evt := Event{
		Platform:  Zalo,
		UserID:    userID,
		MessageID: in.MsgID,
		RawData:   raw,
	}

	// message is an object in v3 and a bare string in some legacy callbacks.
	var msg zaloMessage
	if err := json.Unmarshal(in.Message, &msg); err == nil {
		evt.Message = msg.Text
		if msg.MsgID != "" {
			evt.MessageID = msg.MsgID
		}
	} else {
		var text string
		if json.Unmarshal(in.Message, &text) == nil {
			evt.Message = text
		}
	}
	return evt, nil
}

// Adapt implements Adapter.
func (ZaloAdapter) Adapt(msg Message) (any, error) {
	var reply ZaloReply
	reply.Recipient.UserID = msg.UserID
	reply.Message.Text = msg.Text

	if len(msg.Options) > 0 {
		att := &ZaloAttachment{Type: "template"}
		for _, opt := range msg.Options {
			att.Payload.Buttons = append(att.Payload.Buttons, ZaloButton{
				Title:   opt.Title,
				Type:    "oa.query.show",
				Payload: opt.ID,
			})
		}
		reply.Message.Attachment = att
	}
	return reply, nil
}
