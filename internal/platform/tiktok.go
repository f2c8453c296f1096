// ABOUTME: TikTok Business Messaging adapter for direct-message webhooks.
// ABOUTME: Only text messages are supported; options are sent as a numbered list.

package platform

// TikTokAdapter implements Adapter for TikTok direct messages.
type TikTokAdapter struct{}

type ttInbound struct {
	Event   string `json:"event"`
	Content struct {
		ConversationID string `json:"conversation_id"`
		MessageID      string `json:"message_id"`
		Type           string `json:"type"`
		From           struct {
			ID string `json:"id"`
		} `json:"from_user"`
		Text struct {
			Body string `json:"body"`
		} `json:"text"`
	} `json:"content"`
}

// TikTokReply is the send-message request body.
type TikTokReply struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	ConversationID string `json:"conversation_id,omitempty"`
	MessageType    string `json:"message_type"`
	Text           struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Platform implements Adapter.
func (TikTokAdapter) Platform() Platform { return TikTok }

// Standardize implements Adapter.
func (TikTokAdapter) Standardize(payload []byte) (Event, error) {
	var in ttInbound
	raw, err := decodeJSON(payload, &in)
	if err != nil {
		return Event{}, err
	}
	if in.Content.From.ID == "" {
		return Event{}, missingField(TikTok, "content.from_user.id")
	}

	return Event{
		Platform:       TikTok,
		UserID:         in.Content.From.ID,
		ConversationID: in.Content.ConversationID,
		MessageID:      in.Content.MessageID,
		Message:        in.Content.Text.Body,
		RawData:        raw,
	}, nil
}

// Adapt implements Adapter.
func (TikTokAdapter) Adapt(msg Message) (any, error) {
	var reply TikTokReply
	reply.Recipient.ID = msg.UserID
	reply.ConversationID = msg.ConversationID
	reply.MessageType = "TEXT"
	reply.Text.Body = plainText(msg.Response)
	return reply, nil
}
